package impact

import (
	"math"
	"strings"
	"unicode"

	"github.com/elonfeng/impactgate/pkg/cluster"
)

// Component scoring constants. Tuned against a hand-labeled backlog of
// story clusters; change them together with the calibration window.
const (
	noveltyBase               = 0.44
	noveltyCueStep            = 0.06
	noveltyCueCap             = 0.24
	noveltyDiversityRef       = 0.52
	noveltyDiversityGain      = 0.25
	noveltyDiversityMin       = -0.04
	noveltyDiversityMax       = 0.10
	noveltyTitleBonus         = 0.05
	noveltyReviewPenalty      = 0.12
	noveltyIncrementalPenalty = 0.08
	noveltyReplicationPenalty = 0.05

	translationBase        = 0.34
	translationWeakStep    = 0.04
	translationWeakCap     = 0.24
	translationStrongStep  = 0.10
	translationStrongCap   = 0.26
	translationNumberBonus = 0.05
	translationDomainBonus = 0.06
	translationHedgeStep   = 0.03
	translationHedgeCap    = 0.10

	evidenceBase             = 0.30
	evidencePeerReviewBonus  = 0.30
	evidencePreprintBonus    = 0.18
	evidenceReportBonus      = 0.12
	evidenceFullDocBonus     = 0.14
	evidenceSourceGain       = 0.08
	evidenceSourceCap        = 0.16
	evidenceRiskPenalty      = 0.05
	evidencePressOnlyPenalty = 0.22
)

var noveltyCues = []string{"first", "novel", "new", "unprecedented", "state-of-the-art", "sota"}

var translationWeakCues = []string{
	"patient", "clinical", "industry", "policy", "deployment",
	"scale", "cost", "real-world", "outcome", "adoption",
}

var translationStrongCues = []string{
	"clinical trial", "fda", "approved", "deployed", "deployed at scale",
	"policy change", "production", "real-world",
}

var hedgeCues = []string{"might", "could", "may", "potentially", "possibly", "preliminary"}

// evidenceRiskFlags is the flag set that triggers the flat evidence
// penalty. RiskSingleSource is intentionally absent: a single-source
// story is handled by the source-count term and the confidence formula,
// and penalizing the flag on top of that double-counts. Keep it out.
var evidenceRiskFlags = map[string]bool{
	cluster.RiskPressReleaseOnly: true,
	cluster.RiskUnverifiedClaim:  true,
	cluster.RiskSmallSample:      true,
}

// ScoreComponents maps a scoring input to the three bounded component
// scores. Total and side-effect-free: any well-typed input yields a
// result with every component in [0,1].
func ScoreComponents(in cluster.ScoringInput) cluster.ComponentScores {
	text := strings.ToLower(in.Title + " " + in.Takeaway)
	tokens := tokenize(text)

	return cluster.ComponentScores{
		Novelty:     noveltyScore(in, text, tokens),
		Translation: translationScore(text, tokens),
		Evidence:    evidenceScore(in),
	}
}

func noveltyScore(in cluster.ScoringInput, text string, tokens []string) float64 {
	score := noveltyBase

	cueBonus := float64(countCues(text, noveltyCues)) * noveltyCueStep
	score += math.Min(cueBonus, noveltyCueCap)

	// Lexical diversity relative to the baseline unique-token ratio.
	if len(tokens) > 0 {
		unique := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			unique[t] = true
		}
		ratio := float64(len(unique)) / float64(len(tokens))
		score += clampRange((ratio-noveltyDiversityRef)*noveltyDiversityGain, noveltyDiversityMin, noveltyDiversityMax)
	}

	title := strings.ToLower(in.Title)
	if strings.Contains(title, "first") || strings.Contains(title, "novel") {
		score += noveltyTitleBonus
	}

	if strings.Contains(text, "review") || strings.Contains(text, "survey") {
		score -= noveltyReviewPenalty
	}
	if strings.Contains(text, "incremental") || strings.Contains(text, "extension") {
		score -= noveltyIncrementalPenalty
	}
	if strings.Contains(text, "replication") {
		score -= noveltyReplicationPenalty
	}

	return clamp01(score)
}

func translationScore(text string, tokens []string) float64 {
	score := translationBase

	weak := float64(countCues(text, translationWeakCues)) * translationWeakStep
	score += math.Min(weak, translationWeakCap)

	strong := float64(countCues(text, translationStrongCues)) * translationStrongStep
	score += math.Min(strong, translationStrongCap)

	if hasNumericToken(tokens) {
		score += translationNumberBonus
	}
	if strings.Contains(text, "patient") || strings.Contains(text, "clinical") || strings.Contains(text, "policy") {
		score += translationDomainBonus
	}

	hedge := float64(countCues(text, hedgeCues)) * translationHedgeStep
	score -= math.Min(hedge, translationHedgeCap)

	return clamp01(score)
}

func evidenceScore(in cluster.ScoringInput) float64 {
	score := evidenceBase

	types := make(map[string]bool, len(in.ContentTypes))
	for _, t := range in.ContentTypes {
		types[strings.ToLower(t)] = true
	}

	// Mutually exclusive content-type bonus, strongest match wins.
	switch {
	case types[cluster.ContentPeerReviewed]:
		score += evidencePeerReviewBonus
	case types[cluster.ContentPreprint]:
		score += evidencePreprintBonus
	case types[cluster.ContentReport]:
		score += evidenceReportBonus
	}

	if in.HasFullDocument {
		score += evidenceFullDocBonus
	}

	// Diminishing returns on corroborating sources.
	count := in.DistinctSourceCount
	if count < 0 {
		count = 0
	}
	score += math.Min(evidenceSourceGain*math.Log(1+float64(count)), evidenceSourceCap)

	risky := false
	pressOnly := false
	for _, f := range in.RiskFlags {
		flag := strings.ToLower(f)
		if evidenceRiskFlags[flag] {
			risky = true
		}
		if flag == cluster.RiskPressReleaseOnly {
			pressOnly = true
		}
	}
	if risky {
		score -= evidenceRiskPenalty
	}
	if pressOnly {
		score -= evidencePressOnlyPenalty
	}

	return clamp01(score)
}

// tokenize splits lowercased text on maximal runs of ASCII letters/digits.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
}

// countCues counts how many cues occur in text. Substring containment,
// not token equality, so multi-word cue phrases match.
func countCues(text string, cues []string) int {
	hits := 0
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			hits++
		}
	}
	return hits
}

func hasNumericToken(tokens []string) bool {
	for _, t := range tokens {
		for _, r := range t {
			if r >= '0' && r <= '9' {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
