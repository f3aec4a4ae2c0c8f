package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/androcoderr/finance-app/internal/models"
)

// Model input dimensions. The sequence always covers exactly SeqLen months.
const (
	SeqLen          = 6
	SeqInputSize    = 3 // income, expense, savings ratio
	StaticInputSize = 8
)

// DataStore is the slice of persistence the analysis subsystem needs.
// *repository.Repository satisfies it.
type DataStore interface {
	TransactionsByUser(userID string) ([]models.Transaction, error)
	RecurringByUser(userID string) ([]models.RecurringTransaction, error)
	GoalByID(goalID, userID string) (*models.Goal, error)
	GoalDates(goalID string) ([]models.GoalDate, error)
	CountUserRecords(userID string) (int, error)
}

// Features holds everything the model and the rule estimator consume for one user.
type Features struct {
	Sequence [][]float64 // SeqLen rows of [income, expense, ratio]
	Static   []float64   // StaticInputSize derived user statistics

	TotalIncome        float64
	TotalExpenses      float64
	MonthsWithData     int
	AvgMonthlyIncome   float64
	AvgMonthlyExpenses float64
}

type monthlyTotals struct {
	income  float64
	expense float64
}

// BuildFeatures folds a user's raw history into fixed-shape model inputs.
// Recurring transactions carry no historical dates, so each one is projected
// into the trailing six 30-day windows, deliberately double-counting relative
// to the literal transaction log to approximate recurring cash flow.
// Zero history is valid input and yields all-zero features.
func BuildFeatures(txs []models.Transaction, recurring []models.RecurringTransaction, now time.Time) *Features {
	f := &Features{}

	monthly := make(map[string]*monthlyTotals)
	txMonths := make(map[string]bool)
	categories := make(map[string]bool)

	bump := func(key, typ string, amount float64) {
		mt, ok := monthly[key]
		if !ok {
			mt = &monthlyTotals{}
			monthly[key] = mt
		}
		if typ == models.TypeIncome {
			mt.income += amount
		} else {
			mt.expense += amount
		}
	}

	for i := range txs {
		t := &txs[i]
		amount := t.Amount.InexactFloat64()
		key := t.Date.Format("2006-01")
		bump(key, t.Type, amount)
		txMonths[key] = true
		categories[t.CategoryID] = true
		if t.IsIncome() {
			f.TotalIncome += amount
		} else {
			f.TotalExpenses += amount
		}
	}

	for i := range recurring {
		rt := &recurring[i]
		amount := rt.Amount.InexactFloat64()
		for m := 0; m < SeqLen; m++ {
			key := now.AddDate(0, 0, -30*m).Format("2006-01")
			bump(key, rt.Type, amount)
		}
		categories[rt.CategoryID] = true
		if rt.Type == models.TypeIncome {
			f.TotalIncome += amount
		} else {
			f.TotalExpenses += amount
		}
	}

	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > SeqLen {
		keys = keys[len(keys)-SeqLen:]
	}

	for _, k := range keys {
		mt := monthly[k]
		ratio := (mt.income - mt.expense) / math.Max(mt.income, 1)
		f.Sequence = append(f.Sequence, []float64{mt.income, mt.expense, ratio})
	}
	for len(f.Sequence) < SeqLen {
		f.Sequence = append([][]float64{{0, 0, 0}}, f.Sequence...)
	}

	f.MonthsWithData = len(txMonths)
	if f.MonthsWithData < 1 {
		f.MonthsWithData = 1
	}
	f.AvgMonthlyIncome = f.TotalIncome / float64(f.MonthsWithData)
	f.AvgMonthlyExpenses = f.TotalExpenses / float64(f.MonthsWithData)

	f.Static = staticVector(len(txs), len(recurring), len(categories), len(txMonths), f)
	return f
}

// staticVector derives the auxiliary input from global user statistics.
// Counts and amounts go through log1p so the scale stays comparable across
// users; the two ratio entries are clamped instead.
func staticVector(txCount, recCount, catCount, monthCount int, f *Features) []float64 {
	incomeCV := 0.0
	if len(f.Sequence) > 0 && f.AvgMonthlyIncome > 0 {
		var sum, sumSq float64
		for _, row := range f.Sequence {
			sum += row[0]
			sumSq += row[0] * row[0]
		}
		n := float64(len(f.Sequence))
		mean := sum / n
		if mean > 0 {
			variance := sumSq/n - mean*mean
			if variance > 0 {
				incomeCV = math.Sqrt(variance) / mean
			}
		}
	}
	expenseRatio := f.TotalExpenses / math.Max(f.TotalIncome, 1)

	return []float64{
		math.Log1p(float64(txCount)),
		math.Log1p(float64(recCount)),
		math.Log1p(float64(catCount)),
		math.Log1p(float64(monthCount)),
		math.Log1p(f.AvgMonthlyIncome),
		math.Log1p(f.AvgMonthlyExpenses),
		clamp(incomeCV, 0, 3),
		clamp(expenseRatio, 0, 3),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
