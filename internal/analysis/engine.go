package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/sirupsen/logrus"
)

// Ensemble weights: learned model vs. rule-based baseline.
const (
	modelWeight = 0.6
	tradWeight  = 0.4
)

// Engine blends model inference with the rule estimator and applies the
// goal-feasibility post-processing to produce the user-facing recommendation.
type Engine struct {
	store  DataStore
	params *ParamStore
	cache  *ResultCache
	log    *logrus.Logger
	now    func() time.Time
}

// NewEngine creates an analysis engine writing into the given result cache.
func NewEngine(store DataStore, params *ParamStore, cache *ResultCache, log *logrus.Logger) *Engine {
	return &Engine{store: store, params: params, cache: cache, log: log, now: time.Now}
}

// Analyze runs one budget analysis and caches the result under the goal id.
// It returns (nil, nil) when no trained model exists or the goal does not
// belong to the user; callers must treat a nil result as "try again later",
// never as a validated negative.
func (e *Engine) Analyze(userID, goalID, goalDate string) (*models.AnalysisResult, error) {
	if !e.params.IsTrained(userID) {
		e.log.Warnf("analysis skipped for user %s: model not trained", userID)
		return nil, nil
	}

	goal, err := e.store.GoalByID(goalID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	if goal == nil {
		e.log.Warnf("analysis skipped for user %s: goal %s not found", userID, goalID)
		return nil, nil
	}

	targetDate, monthsRemaining, haveDate, err := e.resolveTargetDate(goalID, goalDate)
	if err != nil {
		return nil, err
	}

	remaining := math.Max(0, goal.TargetAmount-goal.CurrentAmount)

	txs, err := e.store.TransactionsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	recurring, err := e.store.RecurringByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring transactions: %w", err)
	}
	feats := BuildFeatures(txs, recurring, e.now())

	net, err := e.params.LoadModel(userID)
	if err != nil {
		return nil, err
	}
	modelSavings, prob, risk := net.Infer(feats.Sequence, feats.Static)
	modelProb := prob * 100
	modelRisk := risk * 100

	tradSavings, tradProb, tradRisk := TraditionalEstimate(feats.TotalIncome, feats.TotalExpenses)

	e.log.Debugf("user %s goal %s: model sav=%.0f prob=%.0f risk=%.0f | rule sav=%.0f prob=%.0f risk=%.0f",
		userID, goalID, modelSavings, modelProb, modelRisk, tradSavings, tradProb, tradRisk)

	savingsRaw := modelSavings*modelWeight + tradSavings*tradWeight
	probRaw := (modelProb*modelWeight + tradProb*tradWeight) / 100
	riskRaw := (modelRisk*modelWeight + tradRisk*tradWeight) / 100

	actualSavings := math.Max(0, feats.AvgMonthlyIncome-feats.AvgMonthlyExpenses)
	requiredMonthly := remaining / math.Max(float64(monthsRemaining), 1)

	monthly := recommendMonthly(requiredMonthly, actualSavings, feats.AvgMonthlyIncome, savingsRaw)

	savingsGap := requiredMonthly / math.Max(actualSavings, 1)
	probability := adjustProbability(probRaw*100, savingsGap, requiredMonthly, feats.AvgMonthlyIncome)
	riskLevel := adjustRisk(riskRaw*100, savingsGap)
	if probability+riskLevel > 110 {
		riskLevel = math.Max(10, 105-probability)
	}

	riskLabel := "low"
	switch {
	case riskLevel >= 67:
		riskLabel = "high"
	case riskLevel >= 33:
		riskLabel = "medium"
	}

	explanation := fmt.Sprintf(
		"For your %d-month goal %q we recommend saving %.0f per month. "+
			"Your success probability is %.0f%% and your risk level is %s (%.0f%%).",
		monthsRemaining, goal.Name, monthly, probability, riskLabel, riskLevel)

	info := models.GoalInfo{
		GoalName:        goal.Name,
		TargetAmount:    goal.TargetAmount,
		CurrentAmount:   goal.CurrentAmount,
		RemainingAmount: remaining,
		MonthsRemaining: monthsRemaining,
	}
	if haveDate {
		info.TargetDate = targetDate.Format("2006-01-02")
	}

	result := &models.AnalysisResult{
		MonthlySavings:     round2(monthly),
		SuccessProbability: probability,
		RiskLevel:          riskLevel,
		Explanation:        explanation,
		GoalInfo:           info,
	}

	e.cache.Put(goalID, result)
	e.log.Infof("analysis cached for goal %s (monthly=%.2f prob=%.0f risk=%.0f)",
		goalID, result.MonthlySavings, probability, riskLevel)
	return result, nil
}

// resolveTargetDate picks the caller-supplied date when it matches a known
// candidate, else the latest candidate, else falls back to a 12-month horizon.
func (e *Engine) resolveTargetDate(goalID, goalDate string) (time.Time, int, bool, error) {
	dates, err := e.store.GoalDates(goalID)
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("failed to load goal dates: %w", err)
	}

	var chosen *models.GoalDate
	if goalDate != "" {
		if want, perr := time.Parse("2006-01-02", goalDate); perr == nil {
			for i := range dates {
				if dates[i].Date.Format("2006-01-02") == want.Format("2006-01-02") {
					chosen = &dates[i]
					break
				}
			}
		}
	} else if len(dates) > 0 {
		chosen = &dates[0] // newest first
	}

	now := e.now()
	if chosen == nil {
		return now, 12, false, nil
	}

	months := (chosen.Date.Year()-now.Year())*12 + int(chosen.Date.Month()-now.Month())
	if months < 1 {
		months = 1
	}
	return chosen.Date, months, true, nil
}

// recommendMonthly applies the feasibility pass: cap against income and
// actual savings capacity, then clamp into the final band.
func recommendMonthly(required, actual, avgIncome, blended float64) float64 {
	var monthly float64
	switch {
	case required > avgIncome*0.7:
		monthly = math.Min(avgIncome*0.7, actual*1.2)
	case required > actual:
		monthly = required*0.6 + math.Max(0, blended)*0.4
		monthly = math.Min(monthly, actual*1.2)
	default:
		monthly = required
	}

	minLimit := math.Min(100, required)
	return math.Max(minLimit, math.Min(monthly, avgIncome*0.75))
}

// adjustProbability scales the blended success probability by the savings
// gap and caps it when the goal eats too large a share of income.
func adjustProbability(base, gap, required, avgIncome float64) float64 {
	var p float64
	switch {
	case gap <= 0.5:
		p = math.Min(98, base+(0.5-gap)*60)
		if gap < 0.2 {
			p = math.Max(p, 90)
		}
	case gap <= 1.0:
		p = base * (1.0 - (gap-0.5)*0.2)
	default:
		p = base / (1.0 + (gap-1.0)*2.0)
	}

	incomeShare := required / math.Max(avgIncome, 1)
	if incomeShare > 0.5 {
		p = math.Min(p, 60)
	}
	if incomeShare > 0.7 {
		p = math.Min(p, 30)
	}

	return math.Max(5, math.Round(p))
}

// adjustRisk tiers the blended risk purely by the savings gap.
func adjustRisk(base, gap float64) float64 {
	var r float64
	switch {
	case gap > 2.0:
		r = math.Max(65, math.Min(90, base+40))
	case gap > 1.5:
		r = math.Max(45, math.Min(75, base+25))
	case gap > 1.0:
		r = math.Max(25, math.Min(55, base+15))
	default:
		r = math.Max(5, math.Min(35, base))
	}
	return math.Max(5, math.Round(r))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
