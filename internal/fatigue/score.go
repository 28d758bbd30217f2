package fatigue

import "math"

// pointBand awards a fixed number of points when a metric lands in a tier.
// Bands are evaluated top-down, first match wins, which keeps the
// business-defined discontinuities visible instead of burying them in nested
// conditionals.
type pointBand struct {
	Tier   Tier
	Points int
}

var (
	// audience sub-terms each carry half of the audience score.
	frequencyBands = []pointBand{
		{TierCritical, 50},
		{TierWarning, 35},
		{TierSafe, 20},
		{TierNone, 0},
	}
	firstTimeRatioBands = []pointBand{
		{TierCritical, 50},
		{TierWarning, 35},
		{TierSafe, 20},
		{TierNone, 0},
	}
	creativeBands = []pointBand{
		{TierCritical, 100},
		{TierWarning, 70},
		{TierSafe, 40},
		{TierNone, 0},
	}
	algorithmBands = []pointBand{
		{TierCritical, 100},
		{TierWarning, 70},
		{TierSafe, 40},
		{TierNone, 0},
	}
)

func awardPoints(bands []pointBand, tier Tier) int {
	for _, b := range bands {
		if b.Tier == tier {
			return b.Points
		}
	}
	return 0
}

// AudienceScore grades audience wear-out from frequency and first-time
// ratio, 0-100.
func AudienceScore(catalog Catalog, m DerivedMetrics) int {
	score := awardPoints(frequencyBands, catalog.Classify(MetricFrequency, m.Frequency)) +
		awardPoints(firstTimeRatioBands, catalog.Classify(MetricFirstTimeRatio, m.FirstTimeRatio))
	return minInt(100, score)
}

// CreativeScore grades creative wear-out from the CTR decline rate, 0-100.
func CreativeScore(catalog Catalog, m DerivedMetrics) int {
	return awardPoints(creativeBands, catalog.Classify(MetricCTRDecline, m.CTRDeclineRate))
}

// AlgorithmScore grades delivery-algorithm pressure from the CPM increase
// rate, 0-100.
func AlgorithmScore(catalog Catalog, m DerivedMetrics) int {
	return awardPoints(algorithmBands, catalog.Classify(MetricCPMIncrease, m.CPMIncreaseRate))
}

// composite weights. Audience wear-out is the strongest fatigue predictor.
const (
	weightAudience  = 0.40
	weightCreative  = 0.35
	weightAlgorithm = 0.25
)

// fatigueLevelGates maps a level to the minimum total that grants the NEXT
// level up: the "caution" gate grants warning, the "warning" gate grants
// critical. The off-by-one naming is historical and kept for parity with the
// rollout it shipped in; see DESIGN.md before renaming.
var fatigueLevelGates = map[Level]int{
	LevelHealthy: 30,
	LevelCaution: 50,
	LevelWarning: 70,
}

// ClassifyLevel maps a composite total to its severity level. Monotonic: a
// higher total never yields a lower level.
func ClassifyLevel(total int) Level {
	switch {
	case total >= fatigueLevelGates[LevelWarning]:
		return LevelCritical
	case total >= fatigueLevelGates[LevelCaution]:
		return LevelWarning
	case total >= fatigueLevelGates[LevelHealthy]:
		return LevelCaution
	}
	return LevelHealthy
}

// ComputeFatigueScore derives metrics from the sample window and produces
// the composite assessment. A window below MinSamples returns an
// *InsufficientDataError; numeric edge cases inside the window never error.
// Pure: safe to call with arbitrary parallelism.
func ComputeFatigueScore(samples []MetricSample, opts ScoreOptions) (*FatigueScore, error) {
	derived, err := DeriveMetrics(samples)
	if err != nil {
		return nil, err
	}
	return ScoreDerived(derived, opts), nil
}

// ScoreDerived runs the factor and composite scorers on already-derived
// metrics.
func ScoreDerived(m DerivedMetrics, opts ScoreOptions) *FatigueScore {
	catalog := DefaultCatalog()
	if opts.Context != nil {
		catalog, _ = AdjustCatalog(catalog, *opts.Context)
	}

	audience := AudienceScore(catalog, m)
	creative := CreativeScore(catalog, m)
	algorithm := AlgorithmScore(catalog, m)

	// Secondary adjustments, in fixed order so results are reproducible.

	// 1. Negative feedback bumps audience.
	switch {
	case m.NegativeRate > 0.003:
		audience = minInt(100, audience+30)
	case m.NegativeRate > 0.001:
		audience = minInt(100, audience+15)
	}

	// 2. A detected algorithm penalty bumps the algorithm factor by severity.
	if m.AlgorithmPenalty.PenaltyDetected {
		switch m.AlgorithmPenalty.Severity {
		case PenaltyHigh:
			algorithm = minInt(100, algorithm+40)
		case PenaltyMedium:
			algorithm = minInt(100, algorithm+25)
		case PenaltyLow:
			algorithm = minInt(100, algorithm+10)
		}
	}

	// 3. Video fatigue floors the creative factor.
	if opts.VideoFatigueScore > 0 {
		video := int(math.Round(clampScore(opts.VideoFatigueScore)))
		if video > creative {
			creative = video
		}
	}

	// 4. High-value content earns a discount: full from creative, half from
	// audience.
	if opts.ContentValueScore > 20 {
		discount := int(math.Round(opts.ContentValueScore))
		creative = maxInt(0, creative-discount)
		audience = maxInt(0, audience-discount/2)
	}

	total := int(math.Round(float64(audience)*weightAudience +
		float64(creative)*weightCreative +
		float64(algorithm)*weightAlgorithm))

	breakdown := Breakdown{Audience: audience, Creative: creative, Algorithm: algorithm}

	return &FatigueScore{
		Total:        total,
		Breakdown:    breakdown,
		PrimaryIssue: primaryIssue(breakdown),
		Status:       ClassifyLevel(total),
	}
}

// primaryIssue picks the largest post-adjustment factor. Ties resolve in the
// fixed order audience, creative, algorithm.
func primaryIssue(b Breakdown) Factor {
	values := map[Factor]int{
		FactorAudience:  b.Audience,
		FactorCreative:  b.Creative,
		FactorAlgorithm: b.Algorithm,
	}
	best := factorOrder[0]
	for _, f := range factorOrder[1:] {
		if values[f] > values[best] {
			best = f
		}
	}
	return best
}

// Recommend maps an assessment to the remediation shown to operators.
func Recommend(score *FatigueScore) string {
	switch score.Status {
	case LevelCritical:
		switch score.PrimaryIssue {
		case FactorAudience:
			return "pause_and_expand_audience"
		case FactorCreative:
			return "replace_creative"
		default:
			return "rebuild_campaign"
		}
	case LevelWarning:
		switch score.PrimaryIssue {
		case FactorAudience:
			return "expand_audience"
		case FactorCreative:
			return "refresh_creative"
		default:
			return "review_bidding"
		}
	case LevelCaution:
		return "monitor_closely"
	}
	return "continue"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
