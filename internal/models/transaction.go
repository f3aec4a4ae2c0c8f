package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Transaction represents a financial transaction
type Transaction struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	CategoryID   string          `json:"category_id"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"date"`
	Type         string          `json:"type"` // income or expense
	LinkedGoalID string          `json:"linked_goal_id,omitempty"`
}

// IsIncome reports whether the transaction adds to the user's balance.
func (t *Transaction) IsIncome() bool {
	return t.Type == TypeIncome
}
