package impact

import (
	"math"
	"strings"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Composite weights and lifecycle constants.
const (
	weightNovelty     = 0.45
	weightTranslation = 0.40
	weightEvidence    = 0.15

	// A provisional score is a conservative estimate published before a
	// full source document is in hand, hence the discount.
	provisionalDiscount = 0.96

	confidenceBase          = 0.62
	confidenceSourceStep    = 0.03
	confidenceSourceCap     = 0.12
	confidenceEligibleBonus = 0.12

	// EvidenceGateFloor is the evidence score a cluster must reach to
	// pass the evidence gate. Shared between the composite scorer's
	// reason codes and the gate evaluator.
	EvidenceGateFloor = 0.35

	reasonCodeFloor = 0.70
	multiSourceMin  = 3
)

// Score computes the composite impact result for one cluster input.
// The provisional score is always present; the final score exists iff a
// full source document was available, which also drives the version tag.
func Score(in cluster.ScoringInput) cluster.ScoreResult {
	comps := ScoreComponents(in)
	return ScoreWithComponents(in, comps)
}

// ScoreWithComponents builds the composite result from already-computed
// component scores. Used by the engine to avoid scoring twice when it
// also persists the component breakdown.
func ScoreWithComponents(in cluster.ScoringInput, comps cluster.ComponentScores) cluster.ScoreResult {
	impact := clamp01(weightNovelty*comps.Novelty +
		weightTranslation*comps.Translation +
		weightEvidence*comps.Evidence)

	res := cluster.ScoreResult{
		Provisional: clamp01(impact * provisionalDiscount),
		Eligible:    in.HasFullDocument,
		Version:     cluster.ScoreVersionProvisional,
	}
	if res.Eligible {
		final := impact
		res.Final = &final
		res.Version = cluster.ScoreVersionFinal
	}

	count := in.DistinctSourceCount
	if count < 0 {
		count = 0
	}
	conf := confidenceBase + math.Min(confidenceSourceCap, confidenceSourceStep*float64(count))
	if res.Eligible {
		conf += confidenceEligibleBonus
	}
	res.Confidence = clamp01(conf)

	if comps.Novelty >= reasonCodeFloor {
		res.ReasonCodes = appendReason(res.ReasonCodes, cluster.ReasonHighNovelty)
	}
	if comps.Translation >= reasonCodeFloor {
		res.ReasonCodes = appendReason(res.ReasonCodes, cluster.ReasonHighTranslation)
	}
	if hasContentType(in.ContentTypes, cluster.ContentPeerReviewed) {
		res.ReasonCodes = appendReason(res.ReasonCodes, cluster.ReasonPeerReviewed)
	}
	if in.DistinctSourceCount >= multiSourceMin {
		res.ReasonCodes = appendReason(res.ReasonCodes, cluster.ReasonMultiSource)
	}
	if comps.Evidence >= EvidenceGateFloor {
		res.ReasonCodes = appendReason(res.ReasonCodes, cluster.ReasonEvidenceGate)
	}

	return res
}

// appendReason appends code unless already present, preserving
// evaluation order for golden-output comparisons.
func appendReason(codes []string, code string) []string {
	for _, c := range codes {
		if c == code {
			return codes
		}
	}
	return append(codes, code)
}

func hasContentType(types []string, want string) bool {
	for _, t := range types {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
