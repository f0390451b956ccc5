package impact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

func TestDebugReport(t *testing.T) {
	h := &fakeHistory{rows: map[bool][]cluster.DebugRow{
		true: {
			{ClusterID: "a", FinalScore: 0.98, Threshold: 0.95, ThresholdDelta: 0.03, HighImpact: true},
		},
		false: {
			{ClusterID: "b", FinalScore: 0.94, Threshold: 0.95, ThresholdDelta: -0.01},
			{ClusterID: "c", FinalScore: 0.80, Threshold: 0.95, ThresholdDelta: -0.15},
		},
	}}

	passes, misses, err := NewReporter(h).DebugReport(context.Background(), 10, true)
	require.NoError(t, err)

	require.Len(t, passes, 1)
	assert.Equal(t, "a", passes[0].ClusterID)

	require.Len(t, misses, 2)
	assert.Equal(t, "b", misses[0].ClusterID)

	assert.Equal(t, 10, h.lastQuery.Limit)
	assert.True(t, h.lastQuery.EligibleOnly)
}

func TestDebugReportDefaultLimit(t *testing.T) {
	h := &fakeHistory{rows: map[bool][]cluster.DebugRow{}}

	_, _, err := NewReporter(h).DebugReport(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultReportLimit, h.lastQuery.Limit)
}
