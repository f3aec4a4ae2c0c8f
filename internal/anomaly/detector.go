// Package anomaly flags suspicious transactions against a user's own
// spending history. The model is retrained from scratch on every call:
// stateless per request, no caching.
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// Contamination is the assumed share of outliers in any history; the
	// score threshold is the matching upper quantile of the history's own
	// scores.
	Contamination = 0.05

	// MinTransactionsToTrain is the minimum expense history before any
	// verdict other than "normal" is possible.
	MinTransactionsToTrain = 20

	// minCategorySamples gates the per-category 3-sigma rule.
	minCategorySamples = 5
)

// Detector checks single transactions for anomalies.
type Detector struct {
	log *logrus.Logger
}

// NewDetector creates a detector.
func NewDetector(log *logrus.Logger) *Detector {
	return &Detector{log: log}
}

// Check decides whether the candidate transaction is anomalous given the
// user's history. Income transactions and users with thin histories are
// always normal.
func (d *Detector) Check(history []models.Transaction, candidate models.Transaction) (bool, string) {
	if candidate.Type != models.TypeExpense {
		return false, "Income transaction, anomaly check not applied."
	}

	expenses := make([]models.Transaction, 0, len(history))
	for _, t := range history {
		if t.Type == models.TypeExpense {
			expenses = append(expenses, t)
		}
	}
	if len(expenses) < MinTransactionsToTrain {
		return false, fmt.Sprintf("Accepted as normal: only %d expenses on record (%d required to train).",
			len(expenses), MinTransactionsToTrain)
	}

	amount := candidate.Amount.InexactFloat64()

	// Rule 1: a category never used before is an anomaly by itself.
	categoryAmounts := make(map[string][]float64)
	for _, t := range expenses {
		categoryAmounts[t.CategoryID] = append(categoryAmounts[t.CategoryID], t.Amount.InexactFloat64())
	}
	catHistory, seen := categoryAmounts[candidate.CategoryID]
	if !seen {
		return true, fmt.Sprintf("Anomaly detected: first ever spending in category %s.", candidate.CategoryID)
	}

	// Rule 2: amount far beyond the category's own distribution.
	if len(catHistory) > minCategorySamples {
		mean, std := meanStd(catHistory)
		if amount > mean+3*std {
			return true, fmt.Sprintf("Anomaly detected: %.2f is far above your usual %.2f for this category.",
				amount, mean)
		}
	}

	// Contamination-based outlier model over amount, weekday and category
	// frequency, fit on the fly against the same history.
	scores := make([]float64, len(expenses))
	model := fitOutlierModel(expenses)
	for i, t := range expenses {
		scores[i] = model.score(&t)
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * (1 - Contamination))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	threshold := scores[idx]

	candidateScore := model.score(&candidate)
	d.log.Debugf("anomaly score %.3f (threshold %.3f) for amount %.2f", candidateScore, threshold, amount)
	if candidateScore > threshold {
		return true, fmt.Sprintf("Anomaly detected: this expense deviates strongly from your spending pattern (score %.2f).",
			candidateScore)
	}

	return false, "Expense looks normal."
}

// outlierModel scores transactions by how unusual their amount, weekday and
// category are relative to the fitted history.
type outlierModel struct {
	amountMean float64
	amountStd  float64
	weekdayFreq  [7]float64
	categoryFreq map[string]float64
}

func fitOutlierModel(expenses []models.Transaction) *outlierModel {
	m := &outlierModel{categoryFreq: make(map[string]float64)}

	amounts := make([]float64, len(expenses))
	var weekdayCount [7]float64
	for i, t := range expenses {
		amounts[i] = t.Amount.InexactFloat64()
		weekdayCount[int(t.Date.Weekday())]++
		m.categoryFreq[t.CategoryID]++
	}
	m.amountMean, m.amountStd = meanStd(amounts)

	n := float64(len(expenses))
	for i := range weekdayCount {
		m.weekdayFreq[i] = weekdayCount[i] / n
	}
	for k := range m.categoryFreq {
		m.categoryFreq[k] /= n
	}
	return m
}

func (m *outlierModel) score(t *models.Transaction) float64 {
	z := 0.0
	if m.amountStd > 0 {
		z = math.Abs(t.Amount.InexactFloat64()-m.amountMean) / m.amountStd
	}
	weekdayRarity := 1 - m.weekdayFreq[int(t.Date.Weekday())]
	categoryRarity := 1 - m.categoryFreq[t.CategoryID]
	return z + 0.5*weekdayRarity + 0.5*categoryRarity
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(vals)))
	return mean, std
}
