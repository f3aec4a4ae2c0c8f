package service

import (
	"time"

	"github.com/androcoderr/finance-app/internal/models"
)

// IncomeExpenseStats aggregates the user's transactions into per-month
// income/expense totals for the trailing N calendar months, oldest first.
// Months without activity appear with zero totals.
func (s *Service) IncomeExpenseStats(userID string, months int) ([]models.IncomeExpenseStats, error) {
	if months < 1 {
		months = 1
	}
	txs, err := s.repo.TransactionsByUser(userID)
	if err != nil {
		return nil, err
	}

	type totals struct{ income, expense float64 }
	byMonth := make(map[string]*totals)
	for i := range txs {
		key := txs[i].Date.Format("2006-01")
		mt, ok := byMonth[key]
		if !ok {
			mt = &totals{}
			byMonth[key] = mt
		}
		if txs[i].IsIncome() {
			mt.income += txs[i].Amount.InexactFloat64()
		} else {
			mt.expense += txs[i].Amount.InexactFloat64()
		}
	}

	now := time.Now()
	stats := make([]models.IncomeExpenseStats, 0, months)
	for i := months - 1; i >= 0; i-- {
		key := now.AddDate(0, -i, 0).Format("2006-01")
		entry := models.IncomeExpenseStats{Month: key}
		if mt, ok := byMonth[key]; ok {
			entry.Income = mt.income
			entry.Expense = mt.expense
			entry.NetBalance = mt.income - mt.expense
		}
		stats = append(stats, entry)
	}
	return stats, nil
}

// BalanceForecast projects the user's net balance forward by extrapolating
// the average daily net flow of the last 90 days.
func (s *Service) BalanceForecast(userID string, days int) (*models.BalanceForecast, error) {
	if days < 1 {
		days = 1
	}
	txs, err := s.repo.TransactionsByUser(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	windowStart := now.AddDate(0, 0, -90)
	var balance, windowNet float64
	for i := range txs {
		amount := txs[i].Amount.InexactFloat64()
		if !txs[i].IsIncome() {
			amount = -amount
		}
		balance += amount
		if txs[i].Date.After(windowStart) {
			windowNet += amount
		}
	}
	dailyNet := windowNet / 90

	forecast := &models.BalanceForecast{
		InitialBalance: balance,
		ForecastedDays: days,
		DailyForecast:  make([]models.DailyBalance, 0, days),
	}
	running := balance
	for i := 1; i <= days; i++ {
		running += dailyNet
		forecast.DailyForecast = append(forecast.DailyForecast, models.DailyBalance{
			Date:    now.AddDate(0, 0, i).Format("2006-01-02"),
			Balance: running,
		})
	}
	return forecast, nil
}
