package fatigue

import "time"

// MetricSample is one day of raw delivery performance for a single ad.
// Samples are supplied by the data store ordered by date ascending and are
// never mutated by the engine.
type MetricSample struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Reach       int64     `json:"reach"`
	Frequency   float64   `json:"frequency"`
	CTR         float64   `json:"ctr"`
	CPM         float64   `json:"cpm"`
	Spend       float64   `json:"spend"`

	// Negative-action counters. Zero when the platform did not report them.
	HideClicks       int64 `json:"hide_clicks,omitempty"`
	ReportSpamClicks int64 `json:"report_spam_clicks,omitempty"`
	UnlikeClicks     int64 `json:"unlike_clicks,omitempty"`

	// Video watch counts at percentile checkpoints. Zero when the ad has no
	// video component.
	VideoP25Watches  int64 `json:"video_p25_watches,omitempty"`
	VideoP50Watches  int64 `json:"video_p50_watches,omitempty"`
	VideoP75Watches  int64 `json:"video_p75_watches,omitempty"`
	VideoP100Watches int64 `json:"video_p100_watches,omitempty"`
}

// PenaltySeverity grades a detected delivery-algorithm penalty.
type PenaltySeverity string

const (
	PenaltyLow    PenaltySeverity = "low"
	PenaltyMedium PenaltySeverity = "medium"
	PenaltyHigh   PenaltySeverity = "high"
)

// AlgorithmPenalty captures evidence that the delivery algorithm is
// deprioritizing an ad (rising CPM paired with falling CTR).
type AlgorithmPenalty struct {
	CPMIncreaseRate float64         `json:"cpm_increase_rate"`
	DeliveryRate    float64         `json:"delivery_rate"`
	PenaltyDetected bool            `json:"penalty_detected"`
	Severity        PenaltySeverity `json:"severity"`
}

// Sentiment buckets the negative-feedback rate.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// NegativeFeedback holds the negative-action rate for the latest sample.
type NegativeFeedback struct {
	Rate      float64   `json:"rate"`
	Sentiment Sentiment `json:"sentiment"`
}

// DerivedMetrics are the comparative signals computed from a sample window.
// They have no identity of their own and are recomputed on every call.
type DerivedMetrics struct {
	FirstTimeRatio   float64          `json:"first_time_ratio"`
	CTRDeclineRate   float64          `json:"ctr_decline_rate"`
	CPMIncreaseRate  float64          `json:"cpm_increase_rate"`
	Frequency        float64          `json:"frequency"`
	NegativeRate     float64          `json:"negative_rate"`
	AlgorithmPenalty AlgorithmPenalty `json:"algorithm_penalty"`
}

// Factor identifies one of the three independent fatigue causes.
type Factor string

const (
	FactorAudience  Factor = "audience"
	FactorCreative  Factor = "creative"
	FactorAlgorithm Factor = "algorithm"
)

// factorOrder is the explicit tie-break order for primary-issue selection.
var factorOrder = []Factor{FactorAudience, FactorCreative, FactorAlgorithm}

// Level is the discrete severity classification of a composite score.
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelCaution  Level = "caution"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Breakdown holds the three factor sub-scores after secondary adjustments.
type Breakdown struct {
	Audience  int `json:"audience"`
	Creative  int `json:"creative"`
	Algorithm int `json:"algorithm"`
}

// FatigueScore is the composite assessment for one ad over one window.
type FatigueScore struct {
	Total        int       `json:"total"`
	Breakdown    Breakdown `json:"breakdown"`
	PrimaryIssue Factor    `json:"primary_issue"`
	Status       Level     `json:"status"`
}

// ScoreOptions carries the optional inputs to the composite scorer. The zero
// value is neutral: no contextual adjustment, no video signal, no content
// value discount.
type ScoreOptions struct {
	// Context adjusts the threshold catalog before scoring.
	Context *AdjustmentContext

	// VideoFatigueScore, when > 0, floors the creative sub-score. Callers
	// derive it from watch-percentile dropoff (see VideoFatigueFromWatches)
	// or supply their own.
	VideoFatigueScore float64

	// ContentValueScore, when > 20, discounts creative (full amount) and
	// audience (half) to avoid flagging evergreen high-value content.
	ContentValueScore float64
}

// AlertType names an urgent-alert rule.
type AlertType string

const (
	AlertNegativeFeedbackCritical AlertType = "NEGATIVE_FEEDBACK_CRITICAL"
	AlertAlgorithmPenaltyHigh     AlertType = "ALGORITHM_PENALTY_HIGH"
	AlertFrequencyExceeded        AlertType = "FREQUENCY_EXCEEDED"
	AlertMultipleIssues           AlertType = "MULTIPLE_ISSUES"
)

// AlertAction is the remediation an alert recommends.
type AlertAction string

const (
	ActionImmediatePause    AlertAction = "IMMEDIATE_PAUSE"
	ActionCampaignRebuild   AlertAction = "CAMPAIGN_REBUILD_REQUIRED"
	ActionFrequencyCap      AlertAction = "FREQUENCY_CAP_REQUIRED"
	ActionReviewAndOptimize AlertAction = "REVIEW_AND_OPTIMIZE"
)

// AlertSeverity ranks urgent alerts.
type AlertSeverity string

const (
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// UrgentAlert is a rule-triggered notification, distinct from the routine
// composite score. Alerts are append-only: a newer row supersedes, nothing
// updates in place.
type UrgentAlert struct {
	Type     AlertType          `json:"type"`
	AdID     string             `json:"ad_id"`
	Action   AlertAction        `json:"action"`
	Severity AlertSeverity      `json:"severity"`
	Metrics  map[string]float64 `json:"metrics"`
}
