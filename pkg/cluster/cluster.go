package cluster

import (
	"time"
)

// Content-type tags attached to a cluster by ingestion.
const (
	ContentPeerReviewed = "peer_reviewed"
	ContentPreprint     = "preprint"
	ContentReport       = "report"
	ContentNews         = "news"
	ContentBlog         = "blog"
)

// Anti-hype risk flags. RiskSingleSource is tracked but deliberately
// carries no scoring penalty (see impact.EvidenceScore).
const (
	RiskPressReleaseOnly = "press_release_only"
	RiskSingleSource     = "single_source"
	RiskUnverifiedClaim  = "unverified_claim"
	RiskSmallSample      = "small_sample"
)

// Score version tags. These two constants are fixed; a third scoring
// semantics requires a version bump, never reuse.
const (
	ScoreVersionProvisional = "provisional_v1"
	ScoreVersionFinal       = "final_v1"
)

// Reason codes, in the order the composite scorer evaluates them.
const (
	ReasonHighNovelty    = "high_novelty_vs_topic"
	ReasonHighTranslation = "high_translation_scope"
	ReasonPeerReviewed   = "peer_reviewed_support"
	ReasonMultiSource    = "multi_source_independent_support"
	ReasonEvidenceGate   = "evidence_gate_passed"
)

// Bucket identifies the precision level a threshold was calibrated at.
type Bucket string

const (
	BucketTopicAge  Bucket = "topic_age"
	BucketAgeGlobal Bucket = "age_global"
	BucketGlobal    Bucket = "global"
)

// AgeBucket partitions clusters by elapsed time since creation.
type AgeBucket string

const (
	Age0to30   AgeBucket = "0_30d"
	Age31to90  AgeBucket = "31_90d"
	Age91to365 AgeBucket = "91_365d"
)

// AgeBucketFor returns the age bucket for a cluster created at createdAt,
// as seen from now.
func AgeBucketFor(createdAt, now time.Time) AgeBucket {
	age := now.Sub(createdAt)
	switch {
	case age <= 30*24*time.Hour:
		return Age0to30
	case age <= 90*24*time.Hour:
		return Age31to90
	default:
		return Age91to365
	}
}

// Cluster is a deduplicated group of related stories sharing a
// representative headline. It is the durable record in story_clusters;
// assessment columns are nil until the cluster has been scored.
type Cluster struct {
	ID       string `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	Takeaway string `json:"takeaway" db:"takeaway"`
	URL      string `json:"url" db:"url"`

	ContentTypes []string `json:"content_types" db:"-"`
	RiskFlags    []string `json:"risk_flags" db:"-"`
	ItemIDs      []string `json:"item_ids" db:"-"`

	DistinctSourceCount int  `json:"distinct_source_count" db:"distinct_source_count"`
	HasFullDocument     bool `json:"has_full_document" db:"has_full_document"`
	Active              bool `json:"active" db:"active"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	AssessedAt *time.Time `json:"assessed_at,omitempty" db:"assessed_at"`

	Eligible         bool     `json:"eligible" db:"eligible"`
	ProvisionalScore *float64 `json:"provisional_score,omitempty" db:"provisional_score"`
	FinalScore       *float64 `json:"final_score,omitempty" db:"final_score"`
	Confidence       *float64 `json:"confidence,omitempty" db:"confidence"`
	ScoreVersion     string   `json:"score_version,omitempty" db:"score_version"`
	ReasonCodes      []string `json:"reason_codes" db:"-"`

	NoveltyScore     *float64 `json:"novelty_score,omitempty" db:"novelty_score"`
	TranslationScore *float64 `json:"translation_score,omitempty" db:"translation_score"`
	EvidenceScore    *float64 `json:"evidence_score,omitempty" db:"evidence_score"`

	Threshold       *float64 `json:"threshold,omitempty" db:"threshold"`
	ThresholdBucket string   `json:"threshold_bucket,omitempty" db:"threshold_bucket"`

	PassedThreshold  bool `json:"passed_threshold" db:"passed_threshold"`
	PassedConfidence bool `json:"passed_confidence" db:"passed_confidence"`
	PassedEvidence   bool `json:"passed_evidence" db:"passed_evidence"`
	HighImpact       bool `json:"is_high_impact" db:"is_high_impact"`

	ShadowPayload *string `json:"shadow_payload,omitempty" db:"shadow_payload"`

	// JSON shadows for sqlx round-tripping of list columns.
	ContentTypesJSON string `json:"-" db:"content_types"`
	RiskFlagsJSON    string `json:"-" db:"risk_flags"`
	ItemIDsJSON      string `json:"-" db:"item_ids"`
	ReasonCodesJSON  string `json:"-" db:"reason_codes"`
}

// Input builds the ephemeral scoring input for this cluster.
func (c *Cluster) Input() ScoringInput {
	return ScoringInput{
		Takeaway:            c.Takeaway,
		Title:               c.Title,
		ContentTypes:        c.ContentTypes,
		RiskFlags:           c.RiskFlags,
		DistinctSourceCount: c.DistinctSourceCount,
		HasFullDocument:     c.HasFullDocument,
	}
}

// ScoringInput is the per-call snapshot of everything the scorer looks at.
// Immutable; it has no identity beyond the call.
type ScoringInput struct {
	Takeaway            string
	Title               string
	ContentTypes        []string
	RiskFlags           []string
	DistinctSourceCount int
	HasFullDocument     bool
}

// ComponentScores are the three bounded heuristic components in [0,1].
type ComponentScores struct {
	Novelty     float64 `json:"novelty" db:"novelty_score"`
	Translation float64 `json:"translation" db:"translation_score"`
	Evidence    float64 `json:"evidence" db:"evidence_score"`
}

// ScoreResult is the composite scoring outcome for one cluster.
// Final is non-nil iff Eligible, which holds iff a full source document
// was available at scoring time.
type ScoreResult struct {
	Provisional float64  `json:"provisional_score"`
	Final       *float64 `json:"final_score,omitempty"`
	Confidence  float64  `json:"confidence"`
	ReasonCodes []string `json:"reason_codes"`
	Eligible    bool     `json:"eligible"`
	Version     string   `json:"score_version"`
}

// ThresholdResolution is the outcome of threshold calibration for a cluster.
type ThresholdResolution struct {
	Bucket    Bucket  `json:"bucket"`
	Threshold float64 `json:"threshold"`
}

// Assessment bundles everything the engine persists after scoring a cluster.
type Assessment struct {
	Result     ScoreResult
	Components ComponentScores
	Resolution ThresholdResolution

	PassedThreshold  bool
	PassedConfidence bool
	PassedEvidence   bool
	HighImpact       bool

	ShadowPayload string
	AssessedAt    time.Time
}

// RateWindow is one trailing-window label-rate observation.
// InBand is vacuously true when no eligible clusters fell in the window.
type RateWindow struct {
	Days     int     `json:"window_days"`
	Eligible int     `json:"eligible"`
	Labeled  int     `json:"labeled"`
	Rate     float64 `json:"rate"`
	InBand   bool    `json:"in_band"`
}

// DebugRow is a read-only audit record used by the calibration report.
type DebugRow struct {
	ClusterID      string  `json:"cluster_id" db:"id"`
	Title          string  `json:"title" db:"title"`
	FinalScore     float64 `json:"final_score" db:"final_score"`
	Threshold      float64 `json:"threshold" db:"threshold"`
	ThresholdDelta float64 `json:"threshold_delta" db:"threshold_delta"`
	Confidence     float64 `json:"confidence" db:"confidence"`
	HighImpact     bool    `json:"is_high_impact" db:"is_high_impact"`

	Novelty     float64 `json:"novelty" db:"novelty_score"`
	Translation float64 `json:"translation" db:"translation_score"`
	Evidence    float64 `json:"evidence" db:"evidence_score"`

	PassedThreshold  bool `json:"passed_threshold" db:"passed_threshold"`
	PassedConfidence bool `json:"passed_confidence" db:"passed_confidence"`
	PassedEvidence   bool `json:"passed_evidence" db:"passed_evidence"`

	ShadowPayload *string `json:"shadow_payload,omitempty" db:"shadow_payload"`
}

// Meta is the identity lookup used by threshold calibration: when a
// cluster was created and its primary topic, if any.
type Meta struct {
	ClusterID  string
	CreatedAt  time.Time
	Topic      string  // empty when the cluster has no topic assignment
	TopicScore float64 // best association score
}
