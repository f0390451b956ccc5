package impact

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Store is what the engine needs from persistence: the calibration
// history plus listing scorable clusters and writing assessments back.
type Store interface {
	History
	ListScorable(ctx context.Context, limit int) ([]cluster.Cluster, error)
	SaveAssessment(ctx context.Context, clusterID string, a *cluster.Assessment) error
}

// Outcome is one cluster's scoring result from a rescore run.
type Outcome struct {
	Cluster    cluster.Cluster
	Assessment cluster.Assessment

	// NewlyLabeled is set when this run flipped the cluster to
	// high-impact; used for alerting.
	NewlyLabeled bool
}

// Engine scores clusters, calibrates thresholds, and applies the gates.
type Engine struct {
	store    Store
	resolver *Resolver
	shadow   *ShadowScorer // optional, nil = disabled
}

// NewEngine creates a scoring engine.
func NewEngine(s Store, shadow *ShadowScorer) *Engine {
	return &Engine{
		store:    s,
		resolver: NewResolver(s),
		shadow:   shadow,
	}
}

type staged struct {
	c          cluster.Cluster
	comps      cluster.ComponentScores
	res        cluster.ScoreResult
	resolution cluster.ThresholdResolution
	qualifies  bool
}

// Rescore scores every active cluster and persists the assessments.
//
// Gate evaluation is a two-pass protocol: the first pass scores all
// clusters and collects the absolute-high cohort, the second evaluates
// gates with each cluster's count of *other* qualifiers, so several
// simultaneously exceptional clusters can all pass even when their own
// presence inflates the calibrated threshold.
func (e *Engine) Rescore(ctx context.Context) ([]Outcome, error) {
	clusters, err := e.store.ListScorable(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list scorable clusters: %w", err)
	}
	if len(clusters) == 0 {
		return nil, nil
	}

	stagedRuns := make([]staged, 0, len(clusters))
	qualifierCount := 0

	for _, c := range clusters {
		in := c.Input()
		comps := ScoreComponents(in)
		res := ScoreWithComponents(in, comps)

		resolution, err := e.resolver.Resolve(ctx, c.ID)
		if err != nil {
			// Calibration is a recalibration target, not a hard
			// real-time constraint: on store trouble keep the
			// cluster's last-known threshold and move on.
			resolution = lastKnownResolution(c)
			fmt.Fprintf(os.Stderr, "  threshold resolve %s: %v (using %s %.3f)\n",
				c.ID, err, resolution.Bucket, resolution.Threshold)
		}

		s := staged{c: c, comps: comps, res: res, resolution: resolution}
		if res.Eligible && IsAbsoluteHighQualifier(*res.Final, res.Confidence, comps.Evidence) {
			s.qualifies = true
			qualifierCount++
		}
		stagedRuns = append(stagedRuns, s)
	}

	now := time.Now().UTC()
	outcomes := make([]Outcome, 0, len(stagedRuns))

	for _, s := range stagedRuns {
		gate := GateResult{
			ConfidenceOK: s.res.Confidence >= ConfidenceFloor,
			EvidenceOK:   s.comps.Evidence >= EvidenceGateFloor,
		}
		if s.res.Eligible {
			others := qualifierCount
			if s.qualifies {
				others--
			}
			gate = EvaluateGates(*s.res.Final, s.res.Confidence, s.comps.Evidence, s.resolution.Threshold, others)
		}

		assessment := cluster.Assessment{
			Result:           s.res,
			Components:       s.comps,
			Resolution:       s.resolution,
			PassedThreshold:  gate.ThresholdOK,
			PassedConfidence: gate.ConfidenceOK,
			PassedEvidence:   gate.EvidenceOK,
			HighImpact:       gate.Passed,
			AssessedAt:       now,
		}

		if e.shadow != nil && s.res.Eligible {
			payload, err := e.shadow.Evaluate(ctx, s.c, s.res)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  shadow score %s: %v\n", s.c.ID, err)
			} else {
				assessment.ShadowPayload = payload
			}
		}

		if err := e.store.SaveAssessment(ctx, s.c.ID, &assessment); err != nil {
			fmt.Fprintf(os.Stderr, "  save assessment %s: %v\n", s.c.ID, err)
			continue
		}

		if gate.Passed && gate.Path != PassStandard {
			fmt.Fprintf(os.Stderr, "  %s passed via %s (final %.3f vs threshold %.3f)\n",
				s.c.ID, gate.Path, *s.res.Final, s.resolution.Threshold)
		}

		outcomes = append(outcomes, Outcome{
			Cluster:      s.c,
			Assessment:   assessment,
			NewlyLabeled: gate.Passed && !s.c.HighImpact,
		})
	}

	return outcomes, nil
}

func lastKnownResolution(c cluster.Cluster) cluster.ThresholdResolution {
	if c.Threshold != nil {
		bucket := cluster.Bucket(c.ThresholdBucket)
		if bucket == "" {
			bucket = cluster.BucketGlobal
		}
		return cluster.ThresholdResolution{Bucket: bucket, Threshold: *c.Threshold}
	}
	return cluster.ThresholdResolution{Bucket: cluster.BucketGlobal, Threshold: DefaultThreshold}
}
