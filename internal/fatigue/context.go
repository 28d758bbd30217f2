package fatigue

import (
	"fmt"
	"strings"
)

// AdjustmentContext describes the business situation of the ad account.
// Empty/zero fields skip their rule.
type AdjustmentContext struct {
	Industry     string  `json:"industry,omitempty"`
	ProductPrice float64 `json:"product_price,omitempty"`
	CampaignGoal string  `json:"campaign_goal,omitempty"`
	Season       string  `json:"season,omitempty"`
}

// Adjustment is the audit entry for one applied threshold change.
type Adjustment struct {
	Metric   Metric  `json:"metric"`
	Reason   string  `json:"reason"`
	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
}

// ContextualThresholds bundles an adjusted catalog with its audit trail, in
// application order.
type ContextualThresholds struct {
	Thresholds  Catalog      `json:"thresholds"`
	Adjustments []Adjustment `json:"adjustments"`
	Explanation string       `json:"explanation"`
}

// industryProfile scales the frequency tolerance of a vertical.
type industryProfile struct {
	FrequencyMultiplier float64
	Description         string
}

// industryProfiles holds the per-vertical frequency multipliers. Verticals
// with long consideration cycles tolerate more repeated exposure before
// audiences tire.
var industryProfiles = map[string]industryProfile{
	"b2b_saas": {
		FrequencyMultiplier: 1.4,
		Description:         "B2B SaaS buyers evaluate over long cycles and tolerate repeated touches",
	},
	"finance": {
		FrequencyMultiplier: 1.25,
		Description:         "Financial products need sustained exposure to build trust",
	},
	"education": {
		FrequencyMultiplier: 1.15,
		Description:         "Education decisions involve multi-week research windows",
	},
	"ecommerce": {
		FrequencyMultiplier: 0.9,
		Description:         "E-commerce audiences burn out quickly on repeated product exposure",
	},
	"entertainment": {
		FrequencyMultiplier: 0.8,
		Description:         "Entertainment content goes stale fastest of all verticals",
	},
}

// priceTier overrides the frequency cuts outright for a consideration band.
type priceTier struct {
	MinPrice  float64
	Frequency ThresholdSet
	Reason    string
}

// priceTiers is evaluated top-down, first match wins. Expensive products
// justify more impressions per user before frequency counts as fatigue.
var priceTiers = []priceTier{
	{
		MinPrice:  50000,
		Frequency: ThresholdSet{Safe: 3.5, Warning: 4.0, Critical: 4.5},
		Reason:    "High-consideration purchase (price >= 50000) supports extended frequency",
	},
	{
		MinPrice:  10000,
		Frequency: ThresholdSet{Safe: 3.0, Warning: 3.5, Critical: 4.0},
		Reason:    "Mid-consideration purchase (price >= 10000) supports moderate extra frequency",
	},
}

// impulsePriceCeiling marks cheap impulse products that fatigue fastest.
const impulsePriceCeiling = 1000

var impulseFrequency = ThresholdSet{Safe: 2.0, Warning: 2.5, Critical: 3.0}

// seasonProfile scales thresholds for a named season.
type seasonProfile struct {
	FrequencyMultiplier        float64
	NegativeFeedbackMultiplier float64
	Description                string
}

var seasonProfiles = map[string]seasonProfile{
	"holiday": {
		FrequencyMultiplier:        1.1,
		NegativeFeedbackMultiplier: 1.5,
		Description:                "Holiday feeds are saturated; users tolerate more ads and complain more casually",
	},
	"summer_lull": {
		FrequencyMultiplier:        0.9,
		NegativeFeedbackMultiplier: 1.0,
		Description:                "Low-attention summer period, fatigue sets in sooner",
	},
}

// goalOverride replaces thresholds outright for a campaign goal. Goal rules
// run last and win any conflict with earlier rules.
type goalOverride struct {
	Frequency  *ThresholdSet
	CTRDecline *ThresholdSet
	Reason     string
}

var goalOverrides = map[string]goalOverride{
	"brand_awareness": {
		Frequency: &ThresholdSet{Safe: 3.5, Warning: 4.5, Critical: 5.5},
		Reason:    "Brand awareness optimizes for repeated exposure; frequency limits relax",
	},
	"conversion": {
		CTRDecline: &ThresholdSet{Safe: 0.10, Warning: 0.20, Critical: 0.30},
		Reason:     "Conversion campaigns degrade fast once click intent drops; CTR decline tightens",
	},
}

// AdjustCatalog derives a context-adjusted copy of the base catalog. Rules
// apply in a fixed sequence (industry, price tier, season, goal) and later
// rules may overwrite earlier outputs; every change lands in the audit trail
// in application order. The base catalog is never mutated.
func AdjustCatalog(base Catalog, ctx AdjustmentContext) (Catalog, []Adjustment) {
	adjusted := base.clone()
	var audit []Adjustment

	record := func(metric Metric, reason string, set ThresholdSet) {
		old := adjusted[metric]
		audit = append(audit, Adjustment{
			Metric:   metric,
			Reason:   reason,
			OldValue: old.Critical,
			NewValue: set.Critical,
		})
		adjusted[metric] = set
	}

	scale := func(set ThresholdSet, mult float64) ThresholdSet {
		set.Safe *= mult
		set.Warning *= mult
		set.Critical *= mult
		return set
	}

	if profile, ok := industryProfiles[strings.ToLower(ctx.Industry)]; ok {
		set := scale(adjusted[MetricFrequency], profile.FrequencyMultiplier)
		record(MetricFrequency, fmt.Sprintf("Frequency adjusted for %s industry: %s", ctx.Industry, profile.Description), set)
	}

	if ctx.ProductPrice > 0 {
		applied := false
		for _, tier := range priceTiers {
			if ctx.ProductPrice >= tier.MinPrice {
				set := tier.Frequency
				set.LowerIsWorse = adjusted[MetricFrequency].LowerIsWorse
				record(MetricFrequency, tier.Reason, set)
				applied = true
				break
			}
		}
		if !applied && ctx.ProductPrice < impulsePriceCeiling {
			record(MetricFrequency,
				fmt.Sprintf("Impulse-priced product (price < %d) fatigues quickly; frequency tightened", impulsePriceCeiling),
				impulseFrequency)
		}
	}

	if profile, ok := seasonProfiles[strings.ToLower(ctx.Season)]; ok {
		if profile.FrequencyMultiplier != 1.0 {
			set := scale(adjusted[MetricFrequency], profile.FrequencyMultiplier)
			record(MetricFrequency, fmt.Sprintf("Seasonal frequency adjustment (%s): %s", ctx.Season, profile.Description), set)
		}
		if profile.NegativeFeedbackMultiplier != 1.0 {
			set := scale(adjusted[MetricNegativeFeedback], profile.NegativeFeedbackMultiplier)
			record(MetricNegativeFeedback, fmt.Sprintf("Seasonal negative-feedback adjustment (%s): %s", ctx.Season, profile.Description), set)
		}
	}

	if override, ok := goalOverrides[strings.ToLower(ctx.CampaignGoal)]; ok {
		if override.Frequency != nil {
			record(MetricFrequency, override.Reason, *override.Frequency)
		}
		if override.CTRDecline != nil {
			record(MetricCTRDecline, override.Reason, *override.CTRDecline)
		}
	}

	return adjusted, audit
}

// GetContextualThresholds returns the adjusted catalog plus a human-readable
// audit trail for dashboard rendering.
func GetContextualThresholds(ctx AdjustmentContext) ContextualThresholds {
	thresholds, adjustments := AdjustCatalog(DefaultCatalog(), ctx)

	var lines []string
	for _, a := range adjustments {
		lines = append(lines, fmt.Sprintf("%s: %.4g -> %.4g (%s)", a.Metric, a.OldValue, a.NewValue, a.Reason))
	}
	explanation := "No contextual adjustments applied; canonical thresholds in effect."
	if len(lines) > 0 {
		explanation = strings.Join(lines, "\n")
	}

	return ContextualThresholds{
		Thresholds:  thresholds,
		Adjustments: adjustments,
		Explanation: explanation,
	}
}
