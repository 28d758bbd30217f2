package fatigue

import (
	"fmt"
	"sort"
)

// MinSamples is the smallest window the trend math accepts. Fewer samples
// must surface as an insufficient-data result, never as fabricated defaults.
const MinSamples = 3

// comparison window length for the baseline/recent means. With 4-5 samples
// the two windows overlap; that is accepted behavior.
const comparisonWindow = 3

// InsufficientDataError reports a sample window too small to analyze.
// DataPoints is 0 for an empty set, which callers surface with a distinct
// message.
type InsufficientDataError struct {
	DataPoints int
}

func (e *InsufficientDataError) Error() string {
	if e.DataPoints == 0 {
		return "no data available"
	}
	return fmt.Sprintf("insufficient data: %d samples, need %d", e.DataPoints, MinSamples)
}

// DeriveMetrics computes the comparative signals for one ad from its daily
// samples. Samples are sorted by date ascending before any window math; the
// input slice is not modified.
func DeriveMetrics(samples []MetricSample) (DerivedMetrics, error) {
	if len(samples) < MinSamples {
		return DerivedMetrics{}, &InsufficientDataError{DataPoints: len(samples)}
	}

	sorted := sortByDate(samples)
	latest := sorted[len(sorted)-1]

	ctrDecline := declineRate(sorted, func(s MetricSample) float64 { return s.CTR })
	cpmIncrease := increaseRate(sorted, func(s MetricSample) float64 { return s.CPM })

	return DerivedMetrics{
		FirstTimeRatio:   firstTimeRatio(sorted),
		CTRDeclineRate:   ctrDecline,
		CPMIncreaseRate:  cpmIncrease,
		Frequency:        latest.Frequency,
		NegativeRate:     NegativeFeedbackOf(latest).Rate,
		AlgorithmPenalty: detectAlgorithmPenalty(cpmIncrease, ctrDecline, latest),
	}, nil
}

func sortByDate(samples []MetricSample) []MetricSample {
	sorted := make([]MetricSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// firstTimeRatio estimates the share of the latest day's impressions that
// reached previously-unseen users. With fewer than two samples there is no
// reach delta to compare, so it reports maximal freshness.
func firstTimeRatio(sorted []MetricSample) float64 {
	if len(sorted) < 2 {
		return 1.0
	}
	today := sorted[len(sorted)-1]
	yesterday := sorted[len(sorted)-2]

	impressions := today.Impressions
	if impressions < 1 {
		impressions = 1
	}
	ratio := float64(today.Reach-yesterday.Reach) / float64(impressions)
	return clamp01(ratio)
}

// declineRate is the proportional drop from the first-3 mean to the last-3
// mean, clamped at zero so an improving metric never reads as danger.
func declineRate(sorted []MetricSample, value func(MetricSample) float64) float64 {
	baseline, recent := windowMeans(sorted, value)
	if baseline == 0 {
		return 0
	}
	return clampNonNegative((baseline - recent) / baseline)
}

// increaseRate mirrors declineRate for metrics where rising is worse.
func increaseRate(sorted []MetricSample, value func(MetricSample) float64) float64 {
	baseline, recent := windowMeans(sorted, value)
	if baseline == 0 {
		return 0
	}
	return clampNonNegative((recent - baseline) / baseline)
}

func windowMeans(sorted []MetricSample, value func(MetricSample) float64) (baseline, recent float64) {
	n := len(sorted)
	w := comparisonWindow
	if w > n {
		w = n
	}
	for i := 0; i < w; i++ {
		baseline += value(sorted[i])
		recent += value(sorted[n-w+i])
	}
	return baseline / float64(w), recent / float64(w)
}

// detectAlgorithmPenalty flags delivery-algorithm deprioritization: CPM up
// more than 20% while CTR fell more than 10%. Severity tiers on the CPM
// movement alone.
func detectAlgorithmPenalty(cpmIncrease, ctrDecline float64, latest MetricSample) AlgorithmPenalty {
	deliveryRate := 0.0
	if latest.Reach > 0 {
		deliveryRate = float64(latest.Impressions) / float64(latest.Reach)
	}

	p := AlgorithmPenalty{
		CPMIncreaseRate: cpmIncrease,
		DeliveryRate:    deliveryRate,
		PenaltyDetected: cpmIncrease > 0.20 && ctrDecline > 0.10,
	}
	if !p.PenaltyDetected {
		return p
	}

	switch {
	case cpmIncrease > 0.50:
		p.Severity = PenaltyHigh
	case cpmIncrease > 0.35:
		p.Severity = PenaltyMedium
	default:
		p.Severity = PenaltyLow
	}
	return p
}

// NegativeFeedbackOf computes the negative-action rate of a single sample and
// buckets it into a sentiment.
func NegativeFeedbackOf(s MetricSample) NegativeFeedback {
	if s.Impressions <= 0 {
		return NegativeFeedback{Rate: 0, Sentiment: SentimentPositive}
	}
	actions := s.HideClicks + s.ReportSpamClicks + s.UnlikeClicks
	rate := float64(actions) / float64(s.Impressions)

	sentiment := SentimentPositive
	switch {
	case rate > 0.003:
		sentiment = SentimentNegative
	case rate > 0.001:
		sentiment = SentimentNeutral
	}
	return NegativeFeedback{Rate: rate, Sentiment: sentiment}
}

// VideoFatigueFromWatches maps watch-percentile dropoff of the latest sample
// to a 0-100 video fatigue score. Ads without video watches score 0.
func VideoFatigueFromWatches(s MetricSample) float64 {
	if s.VideoP25Watches <= 0 {
		return 0
	}
	completion := float64(s.VideoP100Watches) / float64(s.VideoP25Watches)
	earlyDrop := 1 - float64(s.VideoP50Watches)/float64(s.VideoP25Watches)

	score := (1-clamp01(completion))*60 + clamp01(earlyDrop)*40
	return clampScore(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
