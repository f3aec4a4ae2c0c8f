package models

import "time"

// Goal represents a savings goal
type Goal struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount"`
}

// GoalDate is a candidate target date for a goal
type GoalDate struct {
	ID     string    `json:"id"`
	GoalID string    `json:"goal_id"`
	Date   time.Time `json:"date"`
}
