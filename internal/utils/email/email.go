package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/androcoderr/finance-app/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendBillReminder sends an upcoming or overdue bill reminder email
func (s *Sender) SendBillReminder(to, username, billName string, amount float64, dueDate time.Time, overdue bool) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if overdue {
		e.Subject = fmt.Sprintf("Overdue bill: %s", billName)
	} else {
		e.Subject = fmt.Sprintf("Upcoming bill: %s", billName)
	}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	if overdue {
		body += fmt.Sprintf(
			"Your bill %q was due on %s and has not been paid yet.\n"+
				"Please settle it as soon as possible.\n",
			billName, dueDate.Format("2006-01-02"),
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that your bill %q is due on %s.\n",
			billName, dueDate.Format("2006-01-02"),
		)
	}
	if amount > 0 {
		body += fmt.Sprintf("Amount due: %.2f\n", amount)
	}
	body += "\nBest regards,\nFinance App"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
