package impact

// Gate floors and override bounds.
const (
	// ConfidenceFloor and EvidenceGateFloor are mandatory regardless of
	// any override path.
	ConfidenceFloor = 0.75

	// AbsoluteHighBar is the final score that qualifies a cluster for
	// the override paths.
	AbsoluteHighBar = 0.97

	// escapeHatchSlack is how far below a locally inflated threshold an
	// absolute-bar cluster may still land and pass.
	escapeHatchSlack = 0.015

	// qualifiedSetMin is how many other absolute-bar clusters must
	// exist for the qualified-set override to fire.
	qualifiedSetMin = 2
)

// PassPath identifies which gate path produced a pass.
type PassPath string

const (
	PassNone         PassPath = ""
	PassStandard     PassPath = "standard"
	PassEscapeHatch  PassPath = "escape_hatch"
	PassQualifiedSet PassPath = "qualified_set"
)

// GateResult is the full gate evaluation for one cluster.
type GateResult struct {
	Passed bool
	Path   PassPath

	// Raw per-gate flags, persisted for audit. ThresholdOK reflects the
	// standard comparison only; a pass via an override leaves it false.
	ThresholdOK  bool
	ConfidenceOK bool
	EvidenceOK   bool
}

// EvaluateGates decides whether a finally-scored cluster clears its
// resolved threshold. qualifiedSetCount is the number of *other*
// clusters currently meeting the absolute bar; the caller computes it
// with IsAbsoluteHighQualifier before invoking this (two-step protocol,
// so a cohort of simultaneously exceptional clusters does not gate
// itself out through its own effect on the calibration window).
func EvaluateGates(finalScore, confidence, evidenceScore, threshold float64, qualifiedSetCount int) GateResult {
	res := GateResult{
		ThresholdOK:  finalScore >= threshold,
		ConfidenceOK: confidence >= ConfidenceFloor,
		EvidenceOK:   evidenceScore >= EvidenceGateFloor,
	}

	if !res.ConfidenceOK || !res.EvidenceOK {
		return res
	}

	switch {
	case res.ThresholdOK:
		res.Passed = true
		res.Path = PassStandard
	case finalScore >= AbsoluteHighBar && finalScore >= threshold-escapeHatchSlack:
		res.Passed = true
		res.Path = PassEscapeHatch
	case finalScore >= AbsoluteHighBar && qualifiedSetCount >= qualifiedSetMin:
		res.Passed = true
		res.Path = PassQualifiedSet
	}

	return res
}

// PassesGates reports whether the cluster clears the gates. A cluster
// without a final score never passes; callers check eligibility first.
func PassesGates(finalScore, confidence, evidenceScore, threshold float64, qualifiedSetCount int) bool {
	return EvaluateGates(finalScore, confidence, evidenceScore, threshold, qualifiedSetCount).Passed
}

// IsAbsoluteHighQualifier reports whether a cluster belongs to the
// qualified set: at the absolute bar with both hard floors held. Used
// by callers to build the cohort count before gate evaluation.
func IsAbsoluteHighQualifier(finalScore, confidence, evidenceScore float64) bool {
	return finalScore >= AbsoluteHighBar &&
		confidence >= ConfidenceFloor &&
		evidenceScore >= EvidenceGateFloor
}
