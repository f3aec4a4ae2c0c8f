package analysis

import (
	"testing"
	"time"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func tx(date time.Time, typ string, amount float64, category string) models.Transaction {
	return models.Transaction{
		Amount:     decimal.NewFromFloat(amount),
		CategoryID: category,
		Date:       date,
		Type:       typ,
	}
}

func TestBuildFeaturesEmptyHistory(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	f := BuildFeatures(nil, nil, now)

	require.Len(t, f.Sequence, SeqLen)
	for _, row := range f.Sequence {
		require.Equal(t, []float64{0, 0, 0}, row)
	}
	require.Len(t, f.Static, StaticInputSize)
	require.Equal(t, 1, f.MonthsWithData)
	require.Zero(t, f.AvgMonthlyIncome)
	require.Zero(t, f.AvgMonthlyExpenses)
}

func TestBuildFeaturesPaddingAndOrder(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		tx(now.AddDate(0, -1, 0), models.TypeIncome, 2000, "salary"),
		tx(now, models.TypeIncome, 1000, "salary"),
	}
	f := BuildFeatures(txs, nil, now)

	require.Len(t, f.Sequence, SeqLen)
	for i := 0; i < SeqLen-2; i++ {
		require.Equal(t, []float64{0, 0, 0}, f.Sequence[i], "row %d should be left padding", i)
	}
	// Chronological order: May before June.
	require.Equal(t, 2000.0, f.Sequence[SeqLen-2][0])
	require.Equal(t, 1000.0, f.Sequence[SeqLen-1][0])

	require.Equal(t, 2, f.MonthsWithData)
	require.Equal(t, 1500.0, f.AvgMonthlyIncome)
}

func TestBuildFeaturesSavingsRatio(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		tx(now, models.TypeIncome, 1000, "salary"),
		tx(now, models.TypeExpense, 600, "rent"),
	}
	f := BuildFeatures(txs, nil, now)

	last := f.Sequence[SeqLen-1]
	require.Equal(t, 1000.0, last[0])
	require.Equal(t, 600.0, last[1])
	require.InDelta(t, 0.4, last[2], 1e-9)
}

func TestBuildFeaturesProjectsRecurring(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	recurring := []models.RecurringTransaction{{
		Amount:     decimal.NewFromFloat(1000),
		CategoryID: "salary",
		Type:       models.TypeIncome,
		Frequency:  models.FrequencyMonthly,
		StartDate:  now.AddDate(-1, 0, 0),
	}}
	f := BuildFeatures(nil, recurring, now)

	// The recurring amount appears in every trailing month of the sequence
	// but is counted once in the lifetime totals.
	for _, row := range f.Sequence {
		require.Equal(t, 1000.0, row[0])
	}
	require.Equal(t, 1000.0, f.TotalIncome)
	require.Equal(t, 1, f.MonthsWithData)
}

func TestStaticVectorDeterministic(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		tx(now, models.TypeIncome, 5000, "salary"),
		tx(now, models.TypeExpense, 3000, "rent"),
	}
	a := BuildFeatures(txs, nil, now)
	b := BuildFeatures(txs, nil, now)
	require.Equal(t, a.Static, b.Static)

	for i, v := range a.Static {
		require.False(t, v < 0, "static[%d] should be non-negative, got %f", i, v)
	}
	// The two ratio entries stay inside their clamp band.
	require.LessOrEqual(t, a.Static[6], 3.0)
	require.LessOrEqual(t, a.Static[7], 3.0)
}
