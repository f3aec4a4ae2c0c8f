package models

// AnalysisRequest is a queued budget-analysis job for one user and,
// optionally, one specific goal.
type AnalysisRequest struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	GoalID   string `json:"goal_id,omitempty"`
	GoalDate string `json:"goal_date,omitempty"` // YYYY-MM-DD, optional
}

// GoalInfo summarizes the goal an analysis was computed for
type GoalInfo struct {
	GoalName        string  `json:"goal_name"`
	TargetAmount    float64 `json:"target_amount"`
	CurrentAmount   float64 `json:"current_amount"`
	RemainingAmount float64 `json:"remaining_amount"`
	TargetDate      string  `json:"target_date,omitempty"`
	MonthsRemaining int     `json:"months_remaining"`
}

// AnalysisResult is the output of one budget analysis run
type AnalysisResult struct {
	MonthlySavings     float64  `json:"monthly_savings"`
	SuccessProbability float64  `json:"success_probability"`
	RiskLevel          float64  `json:"risk_level"`
	Explanation        string   `json:"explanation"`
	GoalInfo           GoalInfo `json:"goal_info"`
}
