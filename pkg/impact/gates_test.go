package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name       string
		final      float64
		confidence float64
		evidence   float64
		threshold  float64
		qualified  int
		passed     bool
		path       PassPath
	}{
		{
			name:  "standard pass",
			final: 0.99, confidence: 0.80, evidence: 0.50, threshold: 0.95,
			passed: true, path: PassStandard,
		},
		{
			name:  "confidence floor blocks",
			final: 0.99, confidence: 0.70, evidence: 0.50, threshold: 0.95,
			passed: false, path: PassNone,
		},
		{
			name:  "evidence floor blocks",
			final: 0.99, confidence: 0.80, evidence: 0.20, threshold: 0.95,
			passed: false, path: PassNone,
		},
		{
			name:  "below threshold, below absolute bar",
			final: 0.94, confidence: 0.80, evidence: 0.50, threshold: 0.95,
			passed: false, path: PassNone,
		},
		{
			name:  "escape hatch within slack of inflated threshold",
			final: 0.975, confidence: 0.80, evidence: 0.45, threshold: 0.985,
			passed: true, path: PassEscapeHatch,
		},
		{
			name:  "escape hatch needs the absolute bar",
			final: 0.965, confidence: 0.80, evidence: 0.45, threshold: 0.97,
			passed: false, path: PassNone,
		},
		{
			name:  "qualified set override",
			final: 0.972, confidence: 0.81, evidence: 0.46, threshold: 0.99, qualified: 5,
			passed: true, path: PassQualifiedSet,
		},
		{
			name:  "qualified set too small",
			final: 0.972, confidence: 0.81, evidence: 0.46, threshold: 0.99, qualified: 1,
			passed: false, path: PassNone,
		},
		{
			name:  "floors bind on override paths too",
			final: 0.98, confidence: 0.74, evidence: 0.45, threshold: 0.99, qualified: 5,
			passed: false, path: PassNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateGates(tt.final, tt.confidence, tt.evidence, tt.threshold, tt.qualified)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.path, res.Path)
			assert.Equal(t, tt.passed, PassesGates(tt.final, tt.confidence, tt.evidence, tt.threshold, tt.qualified))
		})
	}
}

func TestGateResultFlags(t *testing.T) {
	res := EvaluateGates(0.975, 0.80, 0.45, 0.985, 0)
	assert.True(t, res.Passed)
	assert.False(t, res.ThresholdOK) // escape hatch pass, not a threshold pass
	assert.True(t, res.ConfidenceOK)
	assert.True(t, res.EvidenceOK)
}

func TestIsAbsoluteHighQualifier(t *testing.T) {
	assert.True(t, IsAbsoluteHighQualifier(0.97, 0.75, 0.35))
	assert.False(t, IsAbsoluteHighQualifier(0.969, 0.90, 0.90))
	assert.False(t, IsAbsoluteHighQualifier(0.99, 0.74, 0.90))
	assert.False(t, IsAbsoluteHighQualifier(0.99, 0.90, 0.34))
}
