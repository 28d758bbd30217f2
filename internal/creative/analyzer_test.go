package creative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func series(ctrs []float64, freqStart, freqStep float64) []Sample {
	samples := make([]Sample, 0, len(ctrs))
	for i, ctr := range ctrs {
		samples = append(samples, Sample{
			Date:        day(i),
			CTR:         ctr,
			Frequency:   freqStart + float64(i)*freqStep,
			Impressions: 10000,
			Clicks:      int64(ctr * 100),
			Spend:       80,
		})
	}
	return samples
}

func TestAnalyze_EmptySeries(t *testing.T) {
	a := Analyze(nil)

	assert.Zero(t, a.FatigueScore)
	assert.Equal(t, ActionContinue, a.RecommendedAction)
	assert.Equal(t, "No data available", a.Message)
	assert.Nil(t, a.PredictedEndOfLife)
}

func TestAnalyze_ShortSeries(t *testing.T) {
	for _, n := range []int{1, 2} {
		a := Analyze(series([]float64{2.0, 1.8}[:n], 1.5, 0))

		assert.Zero(t, a.FatigueScore, "n=%d", n)
		assert.Equal(t, ActionContinue, a.RecommendedAction)
		assert.Equal(t, "insufficient data for trend analysis", a.Message)
	}
}

func TestAnalyze_SteadyDecline(t *testing.T) {
	// Linear decline from 3.0 by 0.3 per day with rising frequency. Trend,
	// saturation, and decay all push the score into the top band.
	samples := series([]float64{3.0, 2.7, 2.4, 2.1, 1.8, 1.5, 1.2}, 2.0, 0.3)

	a := Analyze(samples)

	assert.Equal(t, 80, a.FatigueScore)
	assert.Equal(t, ActionReplace, a.RecommendedAction)
	assert.InDelta(t, -14.29, a.CTRTrend, 0.01)
	assert.Equal(t, 77, a.FrequencySaturation)
	assert.InDelta(t, 10.0, a.DecayRate, 0.001)

	require.NotNil(t, a.PeakPerformanceDate)
	assert.Equal(t, day(0), *a.PeakPerformanceDate)
	assert.Equal(t, 6, a.DaysSincePeak)

	require.NotNil(t, a.PredictedEndOfLife)
	assert.Equal(t, 5, a.DaysUntilEndOfLife)
	assert.Equal(t, day(6).AddDate(0, 0, 5), *a.PredictedEndOfLife)
}

func TestAnalyze_ImprovingSeries(t *testing.T) {
	samples := series([]float64{1.0, 1.1, 1.2, 1.3, 1.4}, 1.5, 0)

	a := Analyze(samples)

	assert.Equal(t, 2, a.FatigueScore)
	assert.Equal(t, ActionContinue, a.RecommendedAction)
	assert.Greater(t, a.CTRTrend, 0.0)
	assert.Zero(t, a.DecayRate)
	assert.Nil(t, a.PeakPerformanceDate)
	assert.Nil(t, a.PredictedEndOfLife)
}

func TestAnalyze_SaturationDowngradesReplace(t *testing.T) {
	// Top-band score but the audience is nearly exhausted: swapping the
	// creative alone would not help, so the call softens to refresh.
	samples := series([]float64{2.0, 1.75, 1.5, 1.25, 1.0, 0.75}, 4.5, 0)

	a := Analyze(samples)

	require.GreaterOrEqual(t, a.FatigueScore, 70)
	assert.Greater(t, a.FrequencySaturation, 80)
	assert.Equal(t, ActionRefresh, a.RecommendedAction)
}

func TestAnalyze_AlreadyBelowViableCTR(t *testing.T) {
	samples := series([]float64{1.0, 0.7, 0.4}, 2.0, 0)

	a := Analyze(samples)

	require.NotNil(t, a.PredictedEndOfLife)
	assert.Equal(t, day(2), *a.PredictedEndOfLife)
	assert.Zero(t, a.DaysUntilEndOfLife)
}

func TestAnalyze_SortsBeforeMath(t *testing.T) {
	ordered := series([]float64{3.0, 2.7, 2.4, 2.1, 1.8, 1.5, 1.2}, 2.0, 0.3)

	shuffled := make([]Sample, len(ordered))
	copy(shuffled, ordered)
	shuffled[0], shuffled[4] = shuffled[4], shuffled[0]
	shuffled[1], shuffled[6] = shuffled[6], shuffled[1]

	assert.Equal(t, Analyze(ordered), Analyze(shuffled))
}

func TestCTRTrend(t *testing.T) {
	t.Run("flat series has zero trend", func(t *testing.T) {
		assert.Zero(t, ctrTrend(series([]float64{2.0, 2.0, 2.0, 2.0}, 1.0, 0)))
	})

	t.Run("all-zero CTR has zero trend", func(t *testing.T) {
		assert.Zero(t, ctrTrend(series([]float64{0, 0, 0}, 1.0, 0)))
	})

	t.Run("slope normalized to percent of mean", func(t *testing.T) {
		// slope -0.3 on mean 2.1
		got := ctrTrend(series([]float64{3.0, 2.7, 2.4, 2.1, 1.8, 1.5, 1.2}, 1.0, 0))
		assert.InDelta(t, -14.2857, got, 0.001)
	})
}

func TestFrequencySaturation(t *testing.T) {
	assert.InDelta(t, 50.0, frequencySaturation(3.0), 0.001)
	assert.Less(t, frequencySaturation(1.0), 10.0)
	assert.Greater(t, frequencySaturation(5.0), 90.0)
}

func TestDecayFromPeak(t *testing.T) {
	t.Run("peak on last day means no decay", func(t *testing.T) {
		rate, peakIdx := decayFromPeak(series([]float64{1.0, 1.2, 1.4}, 1.0, 0))
		assert.Zero(t, rate)
		assert.Equal(t, 2, peakIdx)
	})

	t.Run("mid-series peak", func(t *testing.T) {
		rate, peakIdx := decayFromPeak(series([]float64{1.0, 2.0, 1.5, 1.0}, 1.0, 0))
		assert.Equal(t, 1, peakIdx)
		// 50% drop across two days
		assert.InDelta(t, 25.0, rate, 0.001)
	})

	t.Run("zero peak guards division", func(t *testing.T) {
		samples := series([]float64{0, 0, 0}, 1.0, 0)
		samples[2].CTR = -0.1 // bad upstream data must not produce NaN
		rate, _ := decayFromPeak(samples)
		assert.Zero(t, rate)
	})
}

func TestRecommendAction(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		saturation float64
		expected   Action
	}{
		{"low score continues", 20, 90, ActionContinue},
		{"mid score refreshes", 40, 90, ActionRefresh},
		{"upper-mid with saturated audience pauses", 60, 65, ActionPause},
		{"upper-mid with fresh audience refreshes", 60, 40, ActionRefresh},
		{"top band replaces", 85, 50, ActionReplace},
		{"top band saturated downgrades to refresh", 85, 85, ActionRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, recommendAction(tt.score, tt.saturation))
		})
	}
}
