package fatigue

// frequencyAlertCeiling is deliberately above the catalog's critical cut:
// urgent alerts fire only when an ad has sailed past routine scoring.
const frequencyAlertCeiling = 4.0

// EvaluateUrgentAlerts inspects one ad's latest derived metrics and returns
// zero or more urgent alerts in rule order. When two or more individual
// rules fire, a MULTIPLE_ISSUES alert is appended carrying the issue count.
// Cross-run deduplication belongs to the persistence layer, not here.
func EvaluateUrgentAlerts(adID string, m DerivedMetrics) []UrgentAlert {
	var alerts []UrgentAlert

	if m.NegativeRate > 0.003 {
		alerts = append(alerts, UrgentAlert{
			Type:     AlertNegativeFeedbackCritical,
			AdID:     adID,
			Action:   ActionImmediatePause,
			Severity: SeverityCritical,
			Metrics: map[string]float64{
				"negative_rate": m.NegativeRate,
			},
		})
	}

	if m.AlgorithmPenalty.PenaltyDetected && m.AlgorithmPenalty.Severity == PenaltyHigh {
		alerts = append(alerts, UrgentAlert{
			Type:     AlertAlgorithmPenaltyHigh,
			AdID:     adID,
			Action:   ActionCampaignRebuild,
			Severity: SeverityCritical,
			Metrics: map[string]float64{
				"cpm_increase_rate": m.AlgorithmPenalty.CPMIncreaseRate,
				"delivery_rate":     m.AlgorithmPenalty.DeliveryRate,
			},
		})
	}

	if m.Frequency > frequencyAlertCeiling {
		alerts = append(alerts, UrgentAlert{
			Type:     AlertFrequencyExceeded,
			AdID:     adID,
			Action:   ActionFrequencyCap,
			Severity: SeverityHigh,
			Metrics: map[string]float64{
				"frequency": m.Frequency,
			},
		})
	}

	if len(alerts) >= 2 {
		alerts = append(alerts, UrgentAlert{
			Type:     AlertMultipleIssues,
			AdID:     adID,
			Action:   ActionReviewAndOptimize,
			Severity: SeverityCritical,
			Metrics: map[string]float64{
				"issue_count": float64(len(alerts)),
			},
		})
	}

	return alerts
}
