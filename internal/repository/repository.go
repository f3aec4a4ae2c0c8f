package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound marks lookups and mutations that matched no row for the user.
var ErrNotFound = errors.New("not found")

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	user.ID = uuid.NewString()
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRow(query, user.ID, user.Username, user.Email, user.PasswordHash).
		Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(id string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateTransaction creates a new transaction
func (r *Repository) CreateTransaction(tx *models.Transaction) error {
	tx.ID = uuid.NewString()
	query := `
		INSERT INTO transactions (id, user_id, amount, category_id, description, date, type, linked_goal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`
	_, err := r.db.Exec(query, tx.ID, tx.UserID, tx.Amount, tx.CategoryID, tx.Description, tx.Date, tx.Type, tx.LinkedGoalID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// TransactionsByUser returns the full transaction history of a user, oldest first
func (r *Repository) TransactionsByUser(userID string) ([]models.Transaction, error) {
	query := `
		SELECT id, user_id, amount, category_id, description, date, type, COALESCE(linked_goal_id, '')
		FROM transactions
		WHERE user_id = $1
		ORDER BY date ASC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.CategoryID, &tx.Description, &tx.Date, &tx.Type, &tx.LinkedGoalID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// UpdateTransaction updates a transaction owned by the user
func (r *Repository) UpdateTransaction(tx *models.Transaction) error {
	query := `
		UPDATE transactions
		SET amount = $1, category_id = $2, description = $3, date = $4, type = $5, linked_goal_id = NULLIF($6, '')
		WHERE id = $7 AND user_id = $8`
	res, err := r.db.Exec(query, tx.Amount, tx.CategoryID, tx.Description, tx.Date, tx.Type, tx.LinkedGoalID, tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

// DeleteTransaction removes a transaction owned by the user
func (r *Repository) DeleteTransaction(id, userID string) error {
	res, err := r.db.Exec(`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

// CountUserRecords returns transactions + recurring transactions for a user.
// Used by the analysis worker to decide whether retraining is due.
func (r *Repository) CountUserRecords(userID string) (int, error) {
	var txCount, recCount int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&txCount); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM recurring_transactions WHERE user_id = $1`, userID).Scan(&recCount); err != nil {
		return 0, fmt.Errorf("failed to count recurring transactions: %w", err)
	}
	return txCount + recCount, nil
}

// CreateGoal creates a new savings goal
func (r *Repository) CreateGoal(goal *models.Goal) error {
	goal.ID = uuid.NewString()
	query := `
		INSERT INTO goals (id, user_id, name, target_amount, current_amount)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(query, goal.ID, goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// GoalByID returns the goal if it exists and belongs to the user
func (r *Repository) GoalByID(goalID, userID string) (*models.Goal, error) {
	goal := &models.Goal{}
	query := `
		SELECT id, user_id, name, target_amount, current_amount
		FROM goals
		WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRow(query, goalID, userID).
		Scan(&goal.ID, &goal.UserID, &goal.Name, &goal.TargetAmount, &goal.CurrentAmount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find goal: %w", err)
	}
	return goal, nil
}

// GoalsByUser lists all goals of a user
func (r *Repository) GoalsByUser(userID string) ([]models.Goal, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, target_amount, current_amount
		FROM goals WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// UpdateGoal updates a goal owned by the user
func (r *Repository) UpdateGoal(goal *models.Goal) error {
	query := `
		UPDATE goals SET name = $1, target_amount = $2, current_amount = $3
		WHERE id = $4 AND user_id = $5`
	res, err := r.db.Exec(query, goal.Name, goal.TargetAmount, goal.CurrentAmount, goal.ID, goal.UserID)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	return requireAffected(res, "goal")
}

// DeleteGoal removes a goal and its dates
func (r *Repository) DeleteGoal(id, userID string) error {
	res, err := r.db.Exec(`DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return requireAffected(res, "goal")
}

// CreateGoalDate adds a candidate target date to a goal
func (r *Repository) CreateGoalDate(gd *models.GoalDate) error {
	gd.ID = uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO goal_dates (id, goal_id, date) VALUES ($1, $2, $3)`,
		gd.ID, gd.GoalID, gd.Date)
	if err != nil {
		return fmt.Errorf("failed to create goal date: %w", err)
	}
	return nil
}

// GoalDates lists target-date candidates of a goal, newest first
func (r *Repository) GoalDates(goalID string) ([]models.GoalDate, error) {
	rows, err := r.db.Query(`
		SELECT id, goal_id, date FROM goal_dates
		WHERE goal_id = $1 ORDER BY date DESC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal dates: %w", err)
	}
	defer rows.Close()

	var dates []models.GoalDate
	for rows.Next() {
		var gd models.GoalDate
		if err := rows.Scan(&gd.ID, &gd.GoalID, &gd.Date); err != nil {
			return nil, fmt.Errorf("failed to scan goal date: %w", err)
		}
		dates = append(dates, gd)
	}
	return dates, rows.Err()
}

// CreateRecurring creates a recurring transaction
func (r *Repository) CreateRecurring(rt *models.RecurringTransaction) error {
	rt.ID = uuid.NewString()
	query := `
		INSERT INTO recurring_transactions (id, user_id, amount, category_id, description, type, start_date, end_date, frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(query, rt.ID, rt.UserID, rt.Amount, rt.CategoryID, rt.Description, rt.Type, rt.StartDate, rt.EndDate, rt.Frequency)
	if err != nil {
		return fmt.Errorf("failed to create recurring transaction: %w", err)
	}
	return nil
}

// RecurringByUser lists all recurring transactions of a user
func (r *Repository) RecurringByUser(userID string) ([]models.RecurringTransaction, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, amount, category_id, description, type, start_date, end_date, frequency
		FROM recurring_transactions WHERE user_id = $1 ORDER BY start_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring transactions: %w", err)
	}
	defer rows.Close()

	var rts []models.RecurringTransaction
	for rows.Next() {
		var rt models.RecurringTransaction
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Amount, &rt.CategoryID, &rt.Description, &rt.Type, &rt.StartDate, &rt.EndDate, &rt.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction: %w", err)
		}
		rts = append(rts, rt)
	}
	return rts, rows.Err()
}

// AllActiveRecurring lists recurring transactions across all users for the
// daily materialization job.
func (r *Repository) AllActiveRecurring(now time.Time) ([]models.RecurringTransaction, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, amount, category_id, description, type, start_date, end_date, frequency
		FROM recurring_transactions
		WHERE start_date <= $1 AND (end_date IS NULL OR end_date >= $1)`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active recurring transactions: %w", err)
	}
	defer rows.Close()

	var rts []models.RecurringTransaction
	for rows.Next() {
		var rt models.RecurringTransaction
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Amount, &rt.CategoryID, &rt.Description, &rt.Type, &rt.StartDate, &rt.EndDate, &rt.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan recurring transaction: %w", err)
		}
		rts = append(rts, rt)
	}
	return rts, rows.Err()
}

// UpdateRecurring updates a recurring transaction owned by the user
func (r *Repository) UpdateRecurring(rt *models.RecurringTransaction) error {
	query := `
		UPDATE recurring_transactions
		SET amount = $1, category_id = $2, description = $3, type = $4, start_date = $5, end_date = $6, frequency = $7
		WHERE id = $8 AND user_id = $9`
	res, err := r.db.Exec(query, rt.Amount, rt.CategoryID, rt.Description, rt.Type, rt.StartDate, rt.EndDate, rt.Frequency, rt.ID, rt.UserID)
	if err != nil {
		return fmt.Errorf("failed to update recurring transaction: %w", err)
	}
	return requireAffected(res, "recurring transaction")
}

// DeleteRecurring removes a recurring transaction owned by the user
func (r *Repository) DeleteRecurring(id, userID string) error {
	res, err := r.db.Exec(`DELETE FROM recurring_transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recurring transaction: %w", err)
	}
	return requireAffected(res, "recurring transaction")
}

// CreateBill creates a bill
func (r *Repository) CreateBill(bill *models.Bill) error {
	bill.ID = uuid.NewString()
	query := `
		INSERT INTO bills (id, user_id, name, amount, due_day, category, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRow(query, bill.ID, bill.UserID, bill.Name, bill.Amount, bill.DueDay, bill.Category, bill.Active).
		Scan(&bill.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

// BillsByUser lists all active bills of a user
func (r *Repository) BillsByUser(userID string) ([]models.Bill, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, name, amount, due_day, category, active, created_at
		FROM bills WHERE user_id = $1 AND active ORDER BY due_day`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var b models.Bill
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Amount, &b.DueDay, &b.Category, &b.Active, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// DeleteBill deactivates a bill owned by the user
func (r *Repository) DeleteBill(id, userID string) error {
	res, err := r.db.Exec(`UPDATE bills SET active = FALSE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return requireAffected(res, "bill")
}

// CreateBillPayment records a payment of a bill for one period
func (r *Repository) CreateBillPayment(p *models.BillPayment) error {
	p.ID = uuid.NewString()
	query := `
		INSERT INTO bill_payments (id, bill_id, period, paid_amount, payment_date)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(query, p.ID, p.BillID, p.Period, p.PaidAmount, p.PaymentDate)
	if err != nil {
		return fmt.Errorf("failed to create bill payment: %w", err)
	}
	return nil
}

// PaidBillIDs returns the ids of bills already paid in the given period
func (r *Repository) PaidBillIDs(userID, period string) (map[string]bool, error) {
	rows, err := r.db.Query(`
		SELECT p.bill_id FROM bill_payments p
		JOIN bills b ON b.id = p.bill_id
		WHERE b.user_id = $1 AND p.period = $2`, userID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid bills: %w", err)
	}
	defer rows.Close()

	paid := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bill payment: %w", err)
		}
		paid[id] = true
	}
	return paid, rows.Err()
}

// UsersWithActiveBills returns users that have at least one active bill
func (r *Repository) UsersWithActiveBills() ([]models.User, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT u.id, u.username, u.email, u.password_hash, u.created_at
		FROM users u JOIN bills b ON b.user_id = u.id
		WHERE b.active`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with bills: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateCategory creates a category
func (r *Repository) CreateCategory(c *models.Category) error {
	c.ID = uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO categories (id, name, is_income) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.IsIncome)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// Categories lists all categories
func (r *Repository) Categories() ([]models.Category, error) {
	rows, err := r.db.Query(`SELECT id, name, is_income FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.IsIncome); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func requireAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	return nil
}
