package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill represents a recurring monthly bill
type Bill struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"` // zero for variable-amount bills
	DueDay    int             `json:"due_day"`
	Category  string          `json:"category"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// BillPayment records a payment of a bill for one period
type BillPayment struct {
	ID          string          `json:"id"`
	BillID      string          `json:"bill_id"`
	Period      string          `json:"period"` // YYYY-MM
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PaymentDate time.Time       `json:"payment_date"`
}

// BillStatus is a bill annotated with its state for the current period
type BillStatus struct {
	Bill
	Status   string `json:"status"` // upcoming or overdue
	DaysDiff int    `json:"days_diff"`
}
