package fatigue

// Metric names a value the threshold catalog classifies.
type Metric string

const (
	MetricFrequency        Metric = "frequency"
	MetricCTRDecline       Metric = "ctr_decline"
	MetricFirstTimeRatio   Metric = "first_time_ratio"
	MetricCPMIncrease      Metric = "cpm_increase"
	MetricNegativeFeedback Metric = "negative_feedback"
)

// Tier is the classification of a metric value against its threshold set.
// TierNone means the value has not even reached the safe cut.
type Tier string

const (
	TierNone     Tier = "none"
	TierSafe     Tier = "safe"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// ThresholdSet holds the three cut points for one metric. For most metrics
// higher is worse (safe < warning < critical); when LowerIsWorse is set the
// cuts descend instead (first-time ratio: a low ratio means a stale
// audience).
type ThresholdSet struct {
	Safe         float64 `json:"safe"`
	Warning      float64 `json:"warning"`
	Critical     float64 `json:"critical"`
	LowerIsWorse bool    `json:"lower_is_worse,omitempty"`
}

// Classify buckets a value into a tier. Critical is checked first, then
// warning, then safe; the comparison direction flips for descending sets, so
// the check order is load-bearing.
func (t ThresholdSet) Classify(value float64) Tier {
	if t.LowerIsWorse {
		switch {
		case value <= t.Critical:
			return TierCritical
		case value <= t.Warning:
			return TierWarning
		case value <= t.Safe:
			return TierSafe
		}
		return TierNone
	}
	switch {
	case value >= t.Critical:
		return TierCritical
	case value >= t.Warning:
		return TierWarning
	case value >= t.Safe:
		return TierSafe
	}
	return TierNone
}

// Catalog is the per-metric threshold table. The canonical catalog is a
// versioned constant; adjusted copies are derived per call, the base is
// never mutated.
type Catalog map[Metric]ThresholdSet

// DefaultCatalog returns the canonical threshold catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		MetricFrequency:        {Safe: 2.5, Warning: 3.0, Critical: 3.5},
		MetricCTRDecline:       {Safe: 0.15, Warning: 0.25, Critical: 0.40},
		MetricFirstTimeRatio:   {Safe: 0.5, Warning: 0.4, Critical: 0.3, LowerIsWorse: true},
		MetricCPMIncrease:      {Safe: 0.20, Warning: 0.35, Critical: 0.50},
		MetricNegativeFeedback: {Safe: 0.002, Warning: 0.005, Critical: 0.01},
	}
}

// Classify buckets a value against the named metric's thresholds. An unknown
// metric classifies as TierNone so a misconfigured caller renders a neutral
// state instead of failing.
func (c Catalog) Classify(metric Metric, value float64) Tier {
	set, ok := c[metric]
	if !ok {
		return TierNone
	}
	return set.Classify(value)
}

// clone returns a copy safe to adjust without touching the receiver.
func (c Catalog) clone() Catalog {
	out := make(Catalog, len(c))
	for m, set := range c {
		out[m] = set
	}
	return out
}
