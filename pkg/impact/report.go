package impact

import (
	"context"
	"fmt"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// DefaultReportLimit caps each side of the calibration report.
const DefaultReportLimit = 20

// Reporter assembles ranked audit rows for human calibration review.
type Reporter struct {
	history History
}

// NewReporter creates a calibration reporter over the given history.
func NewReporter(h History) *Reporter {
	return &Reporter{history: h}
}

// DebugReport returns the clear passes (labeled high-impact) and near
// misses (assessed but unlabeled), each ordered by threshold delta
// descending with final score as tiebreak and capped at limit. Every
// row carries the full component breakdown and gate flags so a reviewer
// can see why a borderline cluster did or did not qualify.
func (r *Reporter) DebugReport(ctx context.Context, limit int, eligibleOnly bool) (passes, nearMisses []cluster.DebugRow, err error) {
	if limit <= 0 {
		limit = DefaultReportLimit
	}

	passes, err = r.history.DebugRows(ctx, DebugQuery{Limit: limit, EligibleOnly: eligibleOnly, HighImpact: true})
	if err != nil {
		return nil, nil, fmt.Errorf("list passes: %w", err)
	}

	nearMisses, err = r.history.DebugRows(ctx, DebugQuery{Limit: limit, EligibleOnly: eligibleOnly, HighImpact: false})
	if err != nil {
		return nil, nil, fmt.Errorf("list near misses: %w", err)
	}

	return passes, nearMisses, nil
}
