package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/androcoderr/finance-app/internal/analysis"
	"github.com/androcoderr/finance-app/internal/integrations/rates"
	"github.com/androcoderr/finance-app/internal/middleware"
	"github.com/androcoderr/finance-app/internal/models"
	"github.com/androcoderr/finance-app/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler decodes requests, delegates to the service layer and encodes
// responses.
type Handler struct {
	svc    *service.Service
	worker *analysis.Worker
	cache  *analysis.ResultCache
	rates  *rates.Client
	log    *logrus.Logger
}

// NewHandler initializes the handler
func NewHandler(svc *service.Service, worker *analysis.Worker, cache *analysis.ResultCache, ratesClient *rates.Client, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, worker: worker, cache: cache, rates: ratesClient, log: log}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	h.log.Errorf("request failed: %v", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.svc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	token, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateTransaction stores a transaction and returns the anomaly verdict
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var tx models.Transaction
	if !decode(w, r, &tx) {
		return
	}
	if tx.Type != models.TypeIncome && tx.Type != models.TypeExpense {
		respondError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}

	isAnomaly, message, err := h.svc.CreateTransaction(userID, &tx)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"transaction": tx,
		"anomaly":     map[string]any{"is_anomaly": isAnomaly, "message": message},
	})
}

// ListTransactions returns the user's transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	txs, err := h.svc.ListTransactions(userID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// UpdateTransaction updates one transaction
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var tx models.Transaction
	if !decode(w, r, &tx) {
		return
	}
	tx.ID = mux.Vars(r)["id"]

	if err := h.svc.UpdateTransaction(userID, &tx); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction removes one transaction
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTransaction(userID, mux.Vars(r)["id"]); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CheckAnomaly runs the anomaly detector without persisting
func (h *Handler) CheckAnomaly(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var tx models.Transaction
	if !decode(w, r, &tx) {
		return
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}

	isAnomaly, message, err := h.svc.CheckTransaction(userID, &tx)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"is_anomaly": isAnomaly, "message": message})
}

// CreateGoal creates a savings goal
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var goal models.Goal
	if !decode(w, r, &goal) {
		return
	}
	if goal.Name == "" || goal.TargetAmount <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive target_amount are required")
		return
	}

	if err := h.svc.CreateGoal(userID, &goal); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, goal)
}

// ListGoals lists the user's goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	goals, err := h.svc.ListGoals(userID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, goals)
}

// UpdateGoal updates one goal
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var goal models.Goal
	if !decode(w, r, &goal) {
		return
	}
	goal.ID = mux.Vars(r)["id"]

	if err := h.svc.UpdateGoal(userID, &goal); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

// DeleteGoal removes one goal
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteGoal(userID, mux.Vars(r)["id"]); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// AddGoalDate adds a candidate target date to a goal
func (h *Handler) AddGoalDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	gd, err := h.svc.AddGoalDate(userID, mux.Vars(r)["id"], date)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, gd)
}

// CreateRecurring creates a recurring transaction
func (h *Handler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var rt models.RecurringTransaction
	if !decode(w, r, &rt) {
		return
	}
	if rt.Frequency != models.FrequencyDaily && rt.Frequency != models.FrequencyWeekly && rt.Frequency != models.FrequencyMonthly {
		respondError(w, http.StatusBadRequest, "frequency must be daily, weekly or monthly")
		return
	}

	if err := h.svc.CreateRecurring(userID, &rt); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rt)
}

// ListRecurring lists recurring transactions
func (h *Handler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	rts, err := h.svc.ListRecurring(userID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rts)
}

// UpdateRecurring updates one recurring transaction
func (h *Handler) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var rt models.RecurringTransaction
	if !decode(w, r, &rt) {
		return
	}
	rt.ID = mux.Vars(r)["id"]

	if err := h.svc.UpdateRecurring(userID, &rt); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rt)
}

// DeleteRecurring removes one recurring transaction
func (h *Handler) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteRecurring(userID, mux.Vars(r)["id"]); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// CreateBill creates a bill
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var bill models.Bill
	if !decode(w, r, &bill) {
		return
	}
	if bill.Name == "" || bill.DueDay < 1 || bill.DueDay > 31 {
		respondError(w, http.StatusBadRequest, "name and a due_day between 1 and 31 are required")
		return
	}

	if err := h.svc.CreateBill(userID, &bill); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, bill)
}

// ListBills returns the user's bills split into upcoming and overdue
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	upcoming, overdue, err := h.svc.BillsWithStatus(userID, time.Now())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"upcoming": upcoming, "overdue": overdue})
}

// DeleteBill deactivates a bill
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteBill(userID, mux.Vars(r)["id"]); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// PayBill records a payment of a bill
func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payment models.BillPayment
	if !decode(w, r, &payment) {
		return
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now()
	}

	if err := h.svc.PayBill(userID, mux.Vars(r)["id"], &payment); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

// ListCategories lists all categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories()
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

// CreateCategory creates a category
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c models.Category
	if !decode(w, r, &c) {
		return
	}
	if c.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.svc.CreateCategory(&c); err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// IncomeExpenseStats returns monthly income/expense aggregates
func (h *Handler) IncomeExpenseStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	months := queryInt(r, "months", 6)
	stats, err := h.svc.IncomeExpenseStats(userID, months)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// BalanceForecast returns a daily balance projection
func (h *Handler) BalanceForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	days := queryInt(r, "days", 30)
	forecast, err := h.svc.BalanceForecast(userID, days)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecast)
}

// RequestBudgetAnalysis validates goal ownership and enqueues an analysis
// request; the response is returned before any computation happens.
func (h *Handler) RequestBudgetAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		GoalID   string `json:"goal_id"`
		GoalDate string `json:"goal_date"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.GoalID == "" {
		respondError(w, http.StatusBadRequest, "goal_id is required")
		return
	}

	if _, err := h.svc.GetGoal(userID, req.GoalID); err != nil {
		h.serviceError(w, err)
		return
	}

	err := h.worker.Enqueue(models.AnalysisRequest{
		ID:       uuid.NewString(),
		UserID:   userID,
		GoalID:   req.GoalID,
		GoalDate: req.GoalDate,
	})
	if errors.Is(err, analysis.ErrQueueFull) {
		respondError(w, http.StatusServiceUnavailable, "analysis queue is full, try again later")
		return
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"user_id": userID,
		"goal_id": req.GoalID,
	})
}

// BudgetAnalysisResult returns the cached result for a goal, if any
func (h *Handler) BudgetAnalysisResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	goalID := mux.Vars(r)["goal_id"]

	if _, err := h.svc.GetGoal(userID, goalID); err != nil {
		h.serviceError(w, err)
		return
	}

	result, found := h.cache.Get(goalID)
	if !found {
		respondJSON(w, http.StatusNotFound, map[string]string{
			"error":   "no analysis result found for this goal",
			"message": "analysis may still be processing or has not been requested yet",
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// KeyRate returns the current central-bank key rate
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.GetKeyRate()
	if err != nil {
		h.log.Errorf("failed to fetch key rate: %v", err)
		respondError(w, http.StatusBadGateway, "rate service unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"key_rate": rate})
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return def
}
