package models

// IncomeExpenseStats represents monthly income and expense statistics
type IncomeExpenseStats struct {
	Month      string  `json:"month"` // Format: YYYY-MM
	Income     float64 `json:"income"`
	Expense    float64 `json:"expense"`
	NetBalance float64 `json:"net_balance"`
}

// BalanceForecast represents balance forecast for N days
type BalanceForecast struct {
	InitialBalance float64        `json:"initial_balance"`
	ForecastedDays int            `json:"forecasted_days"`
	DailyForecast  []DailyBalance `json:"daily_forecast"`
}

// DailyBalance represents balance for a specific day
type DailyBalance struct {
	Date    string  `json:"date"` // Format: YYYY-MM-DD
	Balance float64 `json:"balance"`
}
