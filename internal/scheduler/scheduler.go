package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/elonfeng/impactgate/internal/store"
	"github.com/elonfeng/impactgate/pkg/alert"
	"github.com/elonfeng/impactgate/pkg/impact"
	"github.com/elonfeng/impactgate/pkg/ingest"
)

// Scheduler runs periodic ingestion, rescoring, and guardrail checks.
type Scheduler struct {
	store      store.Store
	sources    []ingest.Source
	topics     map[string][]string
	engine     *impact.Engine
	monitor    *impact.Monitor
	alertMgr   *alert.Manager
	windows    []int
	ingestInt  time.Duration
	scoreInt   time.Duration
}

// New creates a new scheduler.
func New(
	s store.Store,
	sources []ingest.Source,
	topics map[string][]string,
	engine *impact.Engine,
	alertMgr *alert.Manager,
	windows []int,
	ingestInt, scoreInt time.Duration,
) *Scheduler {
	if ingestInt == 0 {
		ingestInt = 30 * time.Minute
	}
	if scoreInt == 0 {
		scoreInt = time.Hour
	}
	return &Scheduler{
		store:     s,
		sources:   sources,
		topics:    topics,
		engine:    engine,
		monitor:   impact.NewMonitor(s),
		alertMgr:  alertMgr,
		windows:   windows,
		ingestInt: ingestInt,
		scoreInt:  scoreInt,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ingestTicker := time.NewTicker(s.ingestInt)
	scoreTicker := time.NewTicker(s.scoreInt)
	defer ingestTicker.Stop()
	defer scoreTicker.Stop()

	// Run immediately on start.
	fmt.Fprintln(os.Stderr, "scheduler: initial ingestion...")
	s.ingestAll(ctx)
	fmt.Fprintln(os.Stderr, "scheduler: initial scoring...")
	s.scoreAndAlert(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (ingest every %s, score every %s)\n",
		s.ingestInt, s.scoreInt)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ingestTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: ingesting...")
			s.ingestAll(ctx)
		case <-scoreTicker.C:
			fmt.Fprintln(os.Stderr, "scheduler: scoring...")
			s.scoreAndAlert(ctx)
		}
	}
}

func (s *Scheduler) ingestAll(ctx context.Context) {
	items, clusters, err := ingest.Run(ctx, s.sources, s.store, s.topics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ingest error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  total: %d items into %d clusters\n", items, clusters)
}

func (s *Scheduler) scoreAndAlert(ctx context.Context) {
	outcomes, err := s.engine.Rescore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  scoring error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "  scored %d clusters\n", len(outcomes))

	s.checkGuardrail(ctx)

	if !s.alertMgr.HasNotifiers() {
		return
	}

	for _, o := range outcomes {
		if !o.NewlyLabeled {
			continue
		}

		final := 0.0
		if o.Assessment.Result.Final != nil {
			final = *o.Assessment.Result.Final
		}

		notification := &alert.Notification{
			Kind:      alert.KindHighImpact,
			Title:     o.Cluster.Title,
			Body:      fmt.Sprintf("Labeled high-impact: final %.3f vs %s threshold %.3f (%s)", final, o.Assessment.Resolution.Bucket, o.Assessment.Resolution.Threshold, strings.Join(o.Assessment.Result.ReasonCodes, ", ")),
			URL:       o.Cluster.URL,
			Score:     final,
			Threshold: o.Assessment.Resolution.Threshold,
			ClusterID: o.Cluster.ID,
		}

		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			fmt.Fprintf(os.Stderr, "  alert error for %q: %v\n", o.Cluster.Title, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  alerted: %s (final: %.3f)\n", o.Cluster.Title, final)
	}
}

func (s *Scheduler) checkGuardrail(ctx context.Context) {
	rates, err := s.monitor.RateWindows(ctx, s.windows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  guardrail error: %v\n", err)
		return
	}

	for _, w := range rates {
		fmt.Fprintf(os.Stderr, "  guardrail %dd: rate %.4f (%d/%d) in_band=%v\n",
			w.Days, w.Rate, w.Labeled, w.Eligible, w.InBand)
		if w.InBand || !s.alertMgr.HasNotifiers() {
			continue
		}

		notification := &alert.Notification{
			Kind:  alert.KindGuardrail,
			Title: fmt.Sprintf("Label rate out of band (%dd window)", w.Days),
			Body: fmt.Sprintf("Observed %.4f over %d eligible clusters; band is [%.3f, %.3f].",
				w.Rate, w.Eligible, impact.GuardrailRateMin, impact.GuardrailRateMax),
			Score: w.Rate,
		}
		if err := s.alertMgr.Broadcast(ctx, notification); err != nil {
			fmt.Fprintf(os.Stderr, "  guardrail alert error: %v\n", err)
		}
	}
}
