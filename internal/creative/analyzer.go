// Package creative analyzes per-creative performance decay, independent of
// the per-ad composite fatigue scorer. It trends CTR with least squares,
// maps frequency onto a logistic saturation curve, measures decay from peak
// CTR, and projects the date the creative stops being viable.
package creative

import (
	"math"
	"sort"
	"time"
)

// Sample is one day of a creative's own performance series.
type Sample struct {
	Date        time.Time `json:"date"`
	CTR         float64   `json:"ctr"`
	Frequency   float64   `json:"frequency"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Spend       float64   `json:"spend"`
}

// Action is the recommended handling for a creative.
type Action string

const (
	ActionContinue Action = "continue"
	ActionRefresh  Action = "refresh"
	ActionPause    Action = "pause"
	ActionReplace  Action = "replace"
)

// Analysis is the full decay assessment for one creative.
type Analysis struct {
	FatigueScore        int     `json:"fatigue_score"`
	RecommendedAction   Action  `json:"recommended_action"`
	Message             string  `json:"message,omitempty"`
	CTRTrend            float64 `json:"ctr_trend"`
	FrequencySaturation int     `json:"frequency_saturation"`
	DecayRate           float64 `json:"decay_rate"`

	PeakPerformanceDate *time.Time `json:"peak_performance_date,omitempty"`
	DaysSincePeak       int        `json:"days_since_peak,omitempty"`

	PredictedEndOfLife *time.Time `json:"predicted_end_of_life,omitempty"`
	DaysUntilEndOfLife int        `json:"days_until_end_of_life,omitempty"`
}

// minViableCTR is the click-through floor below which a creative is treated
// as no longer worth serving, in percent.
const minViableCTR = 0.5

// minSamples is the smallest series the trend math accepts.
const minSamples = 3

// Analyze runs the full decay assessment on one creative's daily series.
// Pure and safe for arbitrary parallelism. Series shorter than three points
// report a zero score with an explicit message rather than fabricated math.
func Analyze(samples []Sample) Analysis {
	if len(samples) == 0 {
		return Analysis{RecommendedAction: ActionContinue, Message: "No data available"}
	}
	if len(samples) < minSamples {
		return Analysis{RecommendedAction: ActionContinue, Message: "insufficient data for trend analysis"}
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	trend := ctrTrend(sorted)
	saturation := frequencySaturation(sorted[len(sorted)-1].Frequency)
	decay, peakIdx := decayFromPeak(sorted)

	trendScore := clampScore(-trend * 30)
	decayScore := math.Min(100, decay*5)
	score := clampScore(trendScore*0.5 + saturation*0.2 + decayScore*0.3)

	a := Analysis{
		FatigueScore:        int(math.Round(score)),
		CTRTrend:            trend,
		FrequencySaturation: int(math.Round(saturation)),
		DecayRate:           decay,
	}
	a.RecommendedAction = recommendAction(score, saturation)

	if peakIdx < len(sorted)-1 || decay > 0 {
		peak := sorted[peakIdx].Date
		a.PeakPerformanceDate = &peak
		a.DaysSincePeak = len(sorted) - 1 - peakIdx
	}

	if decay > 0 {
		eol, days := predictEndOfLife(sorted[len(sorted)-1], decay)
		a.PredictedEndOfLife = &eol
		a.DaysUntilEndOfLife = days
	}

	return a
}

// ctrTrend fits an ordinary least-squares line to CTR over the sample index
// and normalizes the slope to percent-of-mean-CTR per step. Positive means
// the creative is improving.
func ctrTrend(sorted []Sample) float64 {
	n := float64(len(sorted))

	var sumX, sumY, sumXY, sumXX float64
	for i, s := range sorted {
		x := float64(i)
		sumX += x
		sumY += s.CTR
		sumXY += x * s.CTR
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom

	mean := sumY / n
	if mean == 0 {
		return 0
	}
	return slope / mean * 100
}

// frequencySaturation maps the latest frequency onto a logistic curve
// centered at 3 exposures per user: 100 / (1 + e^(-1.5*(f-3))).
func frequencySaturation(frequency float64) float64 {
	return clampScore(100 / (1 + math.Exp(-1.5*(frequency-3))))
}

// decayFromPeak measures the per-day percentage CTR drop from the series
// peak. A peak on the last observed day means no decay yet.
func decayFromPeak(sorted []Sample) (rate float64, peakIdx int) {
	for i, s := range sorted {
		if s.CTR > sorted[peakIdx].CTR {
			peakIdx = i
		}
	}
	last := len(sorted) - 1
	if peakIdx == last {
		return 0, peakIdx
	}

	peakCTR := sorted[peakIdx].CTR
	if peakCTR == 0 {
		return 0, peakIdx
	}
	daysSincePeak := float64(last - peakIdx)
	dropPct := (peakCTR - sorted[last].CTR) / peakCTR * 100

	rate = dropPct / daysSincePeak
	if rate < 0 {
		rate = 0
	}
	return rate, peakIdx
}

// recommendAction maps the fatigue score to a handling recommendation. In
// the highest band a heavily saturated audience downgrades "replace" to
// "refresh": a new creative shown to the same exhausted audience would burn
// budget, the audience needs rotating first.
func recommendAction(score, saturation float64) Action {
	switch {
	case score < 30:
		return ActionContinue
	case score < 50:
		return ActionRefresh
	case score < 70:
		if saturation > 60 {
			return ActionPause
		}
		return ActionRefresh
	default:
		if saturation > 80 {
			return ActionRefresh
		}
		return ActionReplace
	}
}

// predictEndOfLife projects when the current CTR crosses the minimum viable
// threshold at the observed decay rate. A creative already at or below the
// floor ends on its last observed day.
func predictEndOfLife(last Sample, decayRate float64) (time.Time, int) {
	currentCTR := last.CTR
	if currentCTR <= minViableCTR {
		return last.Date, 0
	}

	headroomPct := (currentCTR - minViableCTR) / currentCTR * 100
	days := int(math.Floor(headroomPct / decayRate))
	return last.Date.AddDate(0, 0, days), days
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
