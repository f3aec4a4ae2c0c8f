package analysis

import "math"

// TraditionalEstimate is the rule-based baseline (a 50/30/20-rule adaptation).
// It maps lifetime income and expenses to a recommended monthly savings
// amount, a success probability and a risk level, both on a 0-100 scale.
// Pure function; it keeps the ensemble sane while the learned model is
// undertrained.
func TraditionalEstimate(totalIncome, totalExpenses float64) (recommended, probability, risk float64) {
	if totalIncome == 0 {
		return 0, 20, 80
	}

	savingsRatio := (totalIncome - totalExpenses) / totalIncome
	surplus := math.Max(0, totalIncome-totalExpenses)

	// 20% of income, capped at 90% of the actual surplus.
	recommended = math.Min(totalIncome*0.20, surplus*0.9)

	switch {
	case savingsRatio >= 0.20:
		probability, risk = 90, 10
	case savingsRatio >= 0.10:
		probability, risk = 70, 30
	case savingsRatio > 0:
		probability, risk = 50, 50
	default:
		probability, risk = 20, 80
	}
	return recommended, probability, risk
}
