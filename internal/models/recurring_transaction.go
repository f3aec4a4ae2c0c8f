package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recurring transaction frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// RecurringTransaction represents a repeating income or expense
type RecurringTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  string          `json:"category_id"`
	Description string          `json:"description"`
	Type        string          `json:"type"` // income or expense
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Frequency   string          `json:"frequency"` // daily, weekly, monthly
}

// ActiveAt reports whether the recurring transaction applies on the given day.
func (rt *RecurringTransaction) ActiveAt(t time.Time) bool {
	if t.Before(rt.StartDate) {
		return false
	}
	if rt.EndDate != nil && t.After(*rt.EndDate) {
		return false
	}
	return true
}
