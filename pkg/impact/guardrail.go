package impact

import (
	"context"
	"fmt"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Guardrail band for the system-wide label rate. Drifting outside it
// means the calibration is over- or under-labeling.
const (
	GuardrailRateMin = 0.007
	GuardrailRateMax = 0.013
)

// DefaultRateWindows are the trailing windows checked when none are
// requested explicitly.
var DefaultRateWindows = []int{7, 30}

// Monitor computes trailing-window label rates from assessed history.
type Monitor struct {
	history History
}

// NewMonitor creates a guardrail monitor over the given history.
func NewMonitor(h History) *Monitor {
	return &Monitor{history: h}
}

// RateWindows returns one observation per requested trailing window, in
// request order. A window with no eligible clusters reports a zero rate
// and counts as in-band: absence of signal is not a violation.
func (m *Monitor) RateWindows(ctx context.Context, windowDays []int) ([]cluster.RateWindow, error) {
	if len(windowDays) == 0 {
		windowDays = DefaultRateWindows
	}

	windows := make([]cluster.RateWindow, 0, len(windowDays))
	for _, days := range windowDays {
		eligible, labeled, err := m.history.RateCounts(ctx, days)
		if err != nil {
			return nil, fmt.Errorf("rate counts %dd: %w", days, err)
		}

		w := cluster.RateWindow{Days: days, Eligible: eligible, Labeled: labeled, InBand: true}
		if eligible > 0 {
			w.Rate = float64(labeled) / float64(eligible)
			w.InBand = w.Rate >= GuardrailRateMin && w.Rate <= GuardrailRateMax
		}
		windows = append(windows, w)
	}

	return windows, nil
}
