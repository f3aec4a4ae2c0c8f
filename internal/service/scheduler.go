package service

import (
	"time"

	"github.com/androcoderr/finance-app/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reminders are sent for unpaid bills due within this many days.
const reminderWindowDays = 3

// ReminderSender delivers bill reminders. *email.Sender satisfies it.
type ReminderSender interface {
	SendBillReminder(to, username, billName string, amount float64, dueDate time.Time, overdue bool) error
}

// Scheduler runs the daily background jobs: materializing due recurring
// transactions and sending bill reminders.
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
	mail ReminderSender
	log  *logrus.Logger
}

// NewScheduler creates a scheduler over the service and mail sender.
func NewScheduler(svc *Service, mail ReminderSender, log *logrus.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), svc: svc, mail: mail, log: log}
}

// Start registers the cron entries and launches the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("30 0 * * *", func() { s.MaterializeRecurring(time.Now()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 8 * * *", func() { s.SendBillReminders(time.Now()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started")
	return nil
}

// Stop halts the scheduler; running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// MaterializeRecurring inserts a concrete transaction for every recurring
// transaction that falls due on the given day.
func (s *Scheduler) MaterializeRecurring(now time.Time) {
	rts, err := s.svc.repo.AllActiveRecurring(now)
	if err != nil {
		s.log.Errorf("recurring materialization failed: %v", err)
		return
	}

	created := 0
	for i := range rts {
		rt := &rts[i]
		if !occursOn(rt, now) {
			continue
		}
		tx := &models.Transaction{
			UserID:      rt.UserID,
			Amount:      rt.Amount,
			CategoryID:  rt.CategoryID,
			Description: rt.Description,
			Date:        now,
			Type:        rt.Type,
		}
		if err := s.svc.repo.CreateTransaction(tx); err != nil {
			s.log.Errorf("failed to materialize recurring transaction %s: %v", rt.ID, err)
			continue
		}
		created++
	}
	if created > 0 {
		s.log.Infof("materialized %d recurring transactions", created)
	}
}

// SendBillReminders emails every user about unpaid bills that are overdue or
// due within the reminder window.
func (s *Scheduler) SendBillReminders(now time.Time) {
	users, err := s.svc.repo.UsersWithActiveBills()
	if err != nil {
		s.log.Errorf("bill reminder sweep failed: %v", err)
		return
	}

	for _, user := range users {
		upcoming, overdue, err := s.svc.BillsWithStatus(user.ID, now)
		if err != nil {
			s.log.Errorf("failed to load bills for user %s: %v", user.ID, err)
			continue
		}
		for _, b := range upcoming {
			if b.DaysDiff > reminderWindowDays {
				continue
			}
			s.remind(&user, &b, now, false)
		}
		for _, b := range overdue {
			s.remind(&user, &b, now, true)
		}
	}
}

func (s *Scheduler) remind(user *models.User, b *models.BillStatus, now time.Time, overdue bool) {
	due := dueDateInMonth(now, b.DueDay)
	err := s.mail.SendBillReminder(user.Email, user.Username, b.Name, b.Amount.InexactFloat64(), due, overdue)
	if err != nil {
		s.log.Errorf("failed to send reminder for bill %s: %v", b.ID, err)
	}
}

// occursOn reports whether a recurring transaction falls due on the given
// day. Monthly recurrences on days a month lacks fall due on its last day.
func occursOn(rt *models.RecurringTransaction, now time.Time) bool {
	if !rt.ActiveAt(now) {
		return false
	}
	switch rt.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		return now.Weekday() == rt.StartDate.Weekday()
	case models.FrequencyMonthly:
		day := rt.StartDate.Day()
		lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
		if day > lastDay {
			day = lastDay
		}
		return now.Day() == day
	}
	return false
}
