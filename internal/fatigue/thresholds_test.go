package fatigue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdSet_Classify_Ascending(t *testing.T) {
	set := ThresholdSet{Safe: 0.15, Warning: 0.25, Critical: 0.40}

	tests := []struct {
		value float64
		tier  Tier
	}{
		{0.0, TierNone},
		{0.14, TierNone},
		{0.15, TierSafe},
		{0.20, TierSafe},
		{0.25, TierWarning},
		{0.39, TierWarning},
		{0.40, TierCritical},
		{0.90, TierCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tier, set.Classify(tt.value), "value %v", tt.value)
	}
}

func TestThresholdSet_Classify_Descending(t *testing.T) {
	set := ThresholdSet{Safe: 0.5, Warning: 0.4, Critical: 0.3, LowerIsWorse: true}

	tests := []struct {
		value float64
		tier  Tier
	}{
		{0.9, TierNone},
		{0.51, TierNone},
		{0.5, TierSafe},
		{0.45, TierSafe},
		{0.4, TierWarning},
		{0.31, TierWarning},
		{0.3, TierCritical},
		{0.0, TierCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tier, set.Classify(tt.value), "value %v", tt.value)
	}
}

func TestDefaultCatalog_CanonicalCuts(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, ThresholdSet{Safe: 2.5, Warning: 3.0, Critical: 3.5}, c[MetricFrequency])
	assert.Equal(t, ThresholdSet{Safe: 0.15, Warning: 0.25, Critical: 0.40}, c[MetricCTRDecline])
	assert.Equal(t, ThresholdSet{Safe: 0.5, Warning: 0.4, Critical: 0.3, LowerIsWorse: true}, c[MetricFirstTimeRatio])
	assert.Equal(t, ThresholdSet{Safe: 0.20, Warning: 0.35, Critical: 0.50}, c[MetricCPMIncrease])
	assert.Equal(t, ThresholdSet{Safe: 0.002, Warning: 0.005, Critical: 0.01}, c[MetricNegativeFeedback])
}

func TestCatalog_Classify_UnknownMetricIsNeutral(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, TierNone, c.Classify(Metric("mystery_metric"), 999))
}
