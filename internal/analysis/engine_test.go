package analysis

import (
	"io"
	"testing"
	"time"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory DataStore shared by the analysis tests.
type fakeStore struct {
	txs       map[string][]models.Transaction
	recurring map[string][]models.RecurringTransaction
	goals     map[string]*models.Goal
	dates     map[string][]models.GoalDate
	counts    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txs:       make(map[string][]models.Transaction),
		recurring: make(map[string][]models.RecurringTransaction),
		goals:     make(map[string]*models.Goal),
		dates:     make(map[string][]models.GoalDate),
		counts:    make(map[string]int),
	}
}

func (s *fakeStore) TransactionsByUser(userID string) ([]models.Transaction, error) {
	if userID == "poison" {
		panic("poisoned store")
	}
	return s.txs[userID], nil
}

func (s *fakeStore) RecurringByUser(userID string) ([]models.RecurringTransaction, error) {
	return s.recurring[userID], nil
}

func (s *fakeStore) GoalByID(goalID, userID string) (*models.Goal, error) {
	goal, ok := s.goals[goalID]
	if !ok || goal.UserID != userID {
		return nil, nil
	}
	return goal, nil
}

func (s *fakeStore) GoalDates(goalID string) ([]models.GoalDate, error) {
	return s.dates[goalID], nil
}

func (s *fakeStore) CountUserRecords(userID string) (int, error) {
	if n, ok := s.counts[userID]; ok {
		return n, nil
	}
	return len(s.txs[userID]) + len(s.recurring[userID]), nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// steadyHistory fills six months of one income and one expense transaction.
func steadyHistory(store *fakeStore, userID string, income, expense float64) {
	for m := 0; m < SeqLen; m++ {
		date := testNow.AddDate(0, -m, 0)
		store.txs[userID] = append(store.txs[userID],
			models.Transaction{UserID: userID, Amount: decimal.NewFromFloat(income), CategoryID: "salary", Date: date, Type: models.TypeIncome},
			models.Transaction{UserID: userID, Amount: decimal.NewFromFloat(expense), CategoryID: "living", Date: date, Type: models.TypeExpense},
		)
	}
}

func trainedSetup(t *testing.T, store *fakeStore, userID string) (*ParamStore, *ResultCache, *Engine) {
	t.Helper()
	params, err := NewParamStore(t.TempDir())
	require.NoError(t, err)

	trainer := NewTrainer(store, params, quietLogger())
	trainer.now = func() time.Time { return testNow }
	require.NoError(t, trainer.Train(userID))

	cache := NewResultCache()
	engine := NewEngine(store, params, cache, quietLogger())
	engine.now = func() time.Time { return testNow }
	return params, cache, engine
}

func TestAnalyzeUntrainedReturnsNil(t *testing.T) {
	store := newFakeStore()
	params, err := NewParamStore(t.TempDir())
	require.NoError(t, err)
	engine := NewEngine(store, params, NewResultCache(), quietLogger())

	result, err := engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestAnalyzeMissingGoalReturnsNil(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)
	_, cache, engine := trainedSetup(t, store, "u1")

	result, err := engine.Analyze("u1", "nope", "")
	require.NoError(t, err)
	require.Nil(t, result)

	// Goals of other users are invisible too.
	store.goals["g2"] = &models.Goal{ID: "g2", UserID: "someone-else", Name: "Car", TargetAmount: 5000}
	result, err = engine.Analyze("u1", "g2", "")
	require.NoError(t, err)
	require.Nil(t, result)

	_, found := cache.Get("nope")
	require.False(t, found)
}

func TestAnalyzeSteadySaver(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)
	store.goals["g1"] = &models.Goal{ID: "g1", UserID: "u1", Name: "Vacation", TargetAmount: 12000}
	target := testNow.AddDate(0, 6, 0)
	store.dates["g1"] = []models.GoalDate{{ID: "d1", GoalID: "g1", Date: target}}

	_, cache, engine := trainedSetup(t, store, "u1")

	result, err := engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.NotNil(t, result)

	// 12000 over 6 months is 2000/month, well inside the 4000 actual
	// capacity, so the requirement passes through untouched.
	require.Equal(t, 2000.0, result.MonthlySavings)

	require.GreaterOrEqual(t, result.SuccessProbability, 5.0)
	require.LessOrEqual(t, result.SuccessProbability, 98.0)
	require.GreaterOrEqual(t, result.RiskLevel, 5.0)
	require.LessOrEqual(t, result.RiskLevel, 35.0)
	require.LessOrEqual(t, result.SuccessProbability+result.RiskLevel, 110.0)

	require.Equal(t, 6, result.GoalInfo.MonthsRemaining)
	require.Equal(t, target.Format("2006-01-02"), result.GoalInfo.TargetDate)
	require.Equal(t, 12000.0, result.GoalInfo.RemainingAmount)
	require.NotEmpty(t, result.Explanation)

	cached, found := cache.Get("g1")
	require.True(t, found)
	require.Equal(t, result, cached)
}

func TestAnalyzeInfeasibleGoal(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 9000)
	store.goals["g1"] = &models.Goal{ID: "g1", UserID: "u1", Name: "House", TargetAmount: 18000}
	store.dates["g1"] = []models.GoalDate{{ID: "d1", GoalID: "g1", Date: testNow.AddDate(0, 6, 0)}}

	_, _, engine := trainedSetup(t, store, "u1")

	result, err := engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.NotNil(t, result)

	// Required 3000/month against a 1000 actual capacity: the feasibility
	// pass caps the recommendation at 1.2x what the user actually saves.
	require.Equal(t, 1200.0, result.MonthlySavings)

	// Gap of 3.0 lands in the highest risk tier.
	require.GreaterOrEqual(t, result.RiskLevel, 65.0)
	require.LessOrEqual(t, result.RiskLevel, 90.0)
	require.LessOrEqual(t, result.SuccessProbability, 20.0)
	require.GreaterOrEqual(t, result.SuccessProbability, 5.0)
}

func TestAnalyzeNoDatesFallsBackToTwelveMonths(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)
	store.goals["g1"] = &models.Goal{ID: "g1", UserID: "u1", Name: "Buffer", TargetAmount: 6000}

	_, _, engine := trainedSetup(t, store, "u1")

	result, err := engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, 12, result.GoalInfo.MonthsRemaining)
	require.Empty(t, result.GoalInfo.TargetDate)
}

func TestAnalyzeMatchesRequestedDate(t *testing.T) {
	store := newFakeStore()
	steadyHistory(store, "u1", 10000, 6000)
	store.goals["g1"] = &models.Goal{ID: "g1", UserID: "u1", Name: "Trip", TargetAmount: 4000}
	near := testNow.AddDate(0, 3, 0)
	far := testNow.AddDate(0, 9, 0)
	// Newest first, as the repository returns them.
	store.dates["g1"] = []models.GoalDate{
		{ID: "d2", GoalID: "g1", Date: far},
		{ID: "d1", GoalID: "g1", Date: near},
	}

	_, _, engine := trainedSetup(t, store, "u1")

	// Explicit date picks the matching candidate.
	result, err := engine.Analyze("u1", "g1", near.Format("2006-01-02"))
	require.NoError(t, err)
	require.Equal(t, 3, result.GoalInfo.MonthsRemaining)

	// No date picks the newest candidate.
	result, err = engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.Equal(t, 9, result.GoalInfo.MonthsRemaining)
}

func TestAnalyzeEmptyHistoryDegenerate(t *testing.T) {
	store := newFakeStore()
	store.goals["g1"] = &models.Goal{ID: "g1", UserID: "u1", Name: "Dream", TargetAmount: 10000}

	// Trained on empty history: the zero-income branch dominates and the
	// output must be pessimistic across the board.
	_, _, engine := trainedSetup(t, store, "u1")

	result, err := engine.Analyze("u1", "g1", "")
	require.NoError(t, err)
	require.NotNil(t, result)

	require.LessOrEqual(t, result.SuccessProbability, 20.0)
	require.GreaterOrEqual(t, result.RiskLevel, 65.0)
	require.Equal(t, 100.0, result.MonthlySavings)
	require.Equal(t, 12, result.GoalInfo.MonthsRemaining)
}

func TestRecommendMonthlyBands(t *testing.T) {
	// Feasible requirement passes through.
	require.Equal(t, 2000.0, recommendMonthly(2000, 4000, 10000, 1500))

	// Requirement above capacity blends and caps at 1.2x actual.
	got := recommendMonthly(3000, 1000, 10000, 500)
	require.Equal(t, 1200.0, got)

	// Requirement above 70% of income caps hard.
	got = recommendMonthly(8000, 2000, 10000, 500)
	require.Equal(t, 2400.0, got) // min(7000, 2400)

	// Never below min(100, required).
	got = recommendMonthly(50, 0, 10000, 0)
	require.Equal(t, 50.0, got)
}

func TestAdjustProbabilityTiers(t *testing.T) {
	// Tiny gap gets boosted and floored at 90.
	p := adjustProbability(60, 0.1, 500, 10000)
	require.GreaterOrEqual(t, p, 90.0)
	require.LessOrEqual(t, p, 98.0)

	// Gap above 1 decays sharply.
	p = adjustProbability(80, 3.0, 1000, 10000)
	require.LessOrEqual(t, p, 20.0)
	require.GreaterOrEqual(t, p, 5.0)

	// Income-share caps dominate.
	p = adjustProbability(95, 0.3, 6000, 10000)
	require.LessOrEqual(t, p, 60.0)
	p = adjustProbability(95, 0.3, 8000, 10000)
	require.LessOrEqual(t, p, 30.0)
}

func TestAdjustRiskTiers(t *testing.T) {
	require.GreaterOrEqual(t, adjustRisk(30, 2.5), 65.0)
	require.LessOrEqual(t, adjustRisk(90, 2.5), 90.0)
	require.GreaterOrEqual(t, adjustRisk(10, 1.7), 45.0)
	require.LessOrEqual(t, adjustRisk(90, 1.7), 75.0)
	require.GreaterOrEqual(t, adjustRisk(5, 1.2), 25.0)
	require.LessOrEqual(t, adjustRisk(90, 1.2), 55.0)
	require.LessOrEqual(t, adjustRisk(90, 0.5), 35.0)
	require.GreaterOrEqual(t, adjustRisk(0, 0.5), 5.0)
}
