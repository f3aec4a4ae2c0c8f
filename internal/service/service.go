package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/androcoderr/finance-app/internal/anomaly"
	"github.com/androcoderr/finance-app/internal/config"
	"github.com/androcoderr/finance-app/internal/models"
	"github.com/androcoderr/finance-app/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound marks entities that are absent or not owned by the caller.
var ErrNotFound = errors.New("not found")

// Service handles business logic
type Service struct {
	repo     *repository.Repository
	detector *anomaly.Detector
	log      *logrus.Logger
	config   *config.Config
}

// NewService initializes a new service
func NewService(repo *repository.Repository, detector *anomaly.Detector, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, detector: detector, log: log, config: cfg}
}

// Register creates a new user with hashed password
func (s *Service) Register(username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// CreateTransaction stores a transaction and runs the anomaly check against
// the history that existed before it.
func (s *Service) CreateTransaction(userID string, tx *models.Transaction) (bool, string, error) {
	history, err := s.repo.TransactionsByUser(userID)
	if err != nil {
		return false, "", err
	}

	tx.UserID = userID
	if err := s.repo.CreateTransaction(tx); err != nil {
		return false, "", err
	}

	isAnomaly, message := s.detector.Check(history, *tx)
	if isAnomaly {
		s.log.Warnf("anomalous transaction %s for user %s: %s", tx.ID, userID, message)
	}
	return isAnomaly, message, nil
}

// ListTransactions returns the user's full history, oldest first
func (s *Service) ListTransactions(userID string) ([]models.Transaction, error) {
	return s.repo.TransactionsByUser(userID)
}

// UpdateTransaction updates a transaction owned by the user
func (s *Service) UpdateTransaction(userID string, tx *models.Transaction) error {
	tx.UserID = userID
	return mapNotFound(s.repo.UpdateTransaction(tx))
}

// DeleteTransaction removes a transaction owned by the user
func (s *Service) DeleteTransaction(userID, id string) error {
	return mapNotFound(s.repo.DeleteTransaction(id, userID))
}

// CheckTransaction runs the anomaly detector without persisting anything.
func (s *Service) CheckTransaction(userID string, tx *models.Transaction) (bool, string, error) {
	history, err := s.repo.TransactionsByUser(userID)
	if err != nil {
		return false, "", err
	}
	isAnomaly, message := s.detector.Check(history, *tx)
	return isAnomaly, message, nil
}

// CreateGoal creates a savings goal
func (s *Service) CreateGoal(userID string, goal *models.Goal) error {
	goal.UserID = userID
	return s.repo.CreateGoal(goal)
}

// ListGoals lists the user's goals
func (s *Service) ListGoals(userID string) ([]models.Goal, error) {
	return s.repo.GoalsByUser(userID)
}

// GetGoal returns a goal owned by the user
func (s *Service) GetGoal(userID, goalID string) (*models.Goal, error) {
	goal, err := s.repo.GoalByID(goalID, userID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, ErrNotFound
	}
	return goal, nil
}

// UpdateGoal updates a goal owned by the user
func (s *Service) UpdateGoal(userID string, goal *models.Goal) error {
	goal.UserID = userID
	return mapNotFound(s.repo.UpdateGoal(goal))
}

// DeleteGoal removes a goal owned by the user
func (s *Service) DeleteGoal(userID, goalID string) error {
	return mapNotFound(s.repo.DeleteGoal(goalID, userID))
}

// AddGoalDate adds a candidate target date to a goal owned by the user
func (s *Service) AddGoalDate(userID, goalID string, date time.Time) (*models.GoalDate, error) {
	if _, err := s.GetGoal(userID, goalID); err != nil {
		return nil, err
	}
	gd := &models.GoalDate{GoalID: goalID, Date: date}
	if err := s.repo.CreateGoalDate(gd); err != nil {
		return nil, err
	}
	return gd, nil
}

// CreateRecurring creates a recurring transaction
func (s *Service) CreateRecurring(userID string, rt *models.RecurringTransaction) error {
	rt.UserID = userID
	return s.repo.CreateRecurring(rt)
}

// ListRecurring lists the user's recurring transactions
func (s *Service) ListRecurring(userID string) ([]models.RecurringTransaction, error) {
	return s.repo.RecurringByUser(userID)
}

// UpdateRecurring updates a recurring transaction owned by the user
func (s *Service) UpdateRecurring(userID string, rt *models.RecurringTransaction) error {
	rt.UserID = userID
	return mapNotFound(s.repo.UpdateRecurring(rt))
}

// DeleteRecurring removes a recurring transaction owned by the user
func (s *Service) DeleteRecurring(userID, id string) error {
	return mapNotFound(s.repo.DeleteRecurring(id, userID))
}

// CreateBill creates a bill
func (s *Service) CreateBill(userID string, bill *models.Bill) error {
	bill.UserID = userID
	bill.Active = true
	return s.repo.CreateBill(bill)
}

// BillsWithStatus splits the user's unpaid bills for the current period into
// upcoming and overdue, upcoming sorted by proximity of the due day.
func (s *Service) BillsWithStatus(userID string, now time.Time) (upcoming, overdue []models.BillStatus, err error) {
	bills, err := s.repo.BillsByUser(userID)
	if err != nil {
		return nil, nil, err
	}
	paid, err := s.repo.PaidBillIDs(userID, now.Format("2006-01"))
	if err != nil {
		return nil, nil, err
	}

	for _, bill := range bills {
		if paid[bill.ID] {
			continue
		}
		due := dueDateInMonth(now, bill.DueDay)
		daysDiff := int(due.Sub(now).Hours() / 24)
		status := models.BillStatus{Bill: bill, DaysDiff: daysDiff}
		if daysDiff < 0 {
			status.Status = "overdue"
			overdue = append(overdue, status)
		} else {
			status.Status = "upcoming"
			upcoming = append(upcoming, status)
		}
	}

	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].DaysDiff < upcoming[j].DaysDiff })
	return upcoming, overdue, nil
}

// DeleteBill deactivates a bill owned by the user
func (s *Service) DeleteBill(userID, billID string) error {
	return mapNotFound(s.repo.DeleteBill(billID, userID))
}

// PayBill records a payment of the bill for the current period
func (s *Service) PayBill(userID, billID string, payment *models.BillPayment) error {
	bills, err := s.repo.BillsByUser(userID)
	if err != nil {
		return err
	}
	owned := false
	for _, b := range bills {
		if b.ID == billID {
			owned = true
			break
		}
	}
	if !owned {
		return ErrNotFound
	}

	payment.BillID = billID
	if payment.Period == "" {
		payment.Period = payment.PaymentDate.Format("2006-01")
	}
	return s.repo.CreateBillPayment(payment)
}

// ListCategories lists all categories
func (s *Service) ListCategories() ([]models.Category, error) {
	return s.repo.Categories()
}

// CreateCategory creates a category
func (s *Service) CreateCategory(c *models.Category) error {
	return s.repo.CreateCategory(c)
}

// dueDateInMonth clamps the due day into the month containing now.
func dueDateInMonth(now time.Time, dueDay int) time.Time {
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	if dueDay < 1 {
		dueDay = 1
	}
	return time.Date(now.Year(), now.Month(), dueDay, 0, 0, 0, 0, now.Location())
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
