package mailer

import (
	"github.com/libtrack/libtrack-server/internal/config"
	"github.com/libtrack/libtrack-server/internal/utils"
	"gopkg.in/gomail.v2"
)

// Mailer sends notification emails. Implementations must be safe for
// concurrent use.
type Mailer interface {
	SendAccountApproved(to, name string) error
	SendAccountRejected(to, name string) error
	SendOverdueNotice(to string, data OverdueNoticeData) error
	SendPaymentReceipt(to string, data ReceiptData) error
}

// SMTPMailer sends mail through an SMTP relay using gomail
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *utils.Logger
}

// NewSMTPMailer creates a mailer from the SMTP configuration
func NewSMTPMailer(cfg config.SMTPConfig, logger *utils.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *SMTPMailer) send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Error("Failed to send mail to %s: %v", to, err)
		return err
	}

	return nil
}

// SendAccountApproved notifies a user that their registration was approved
func (m *SMTPMailer) SendAccountApproved(to, name string) error {
	body, err := renderAccountApproved(name)
	if err != nil {
		return err
	}
	return m.send(to, "Your Lib-Track account has been approved", body)
}

// SendAccountRejected notifies a user that their registration was rejected
func (m *SMTPMailer) SendAccountRejected(to, name string) error {
	body, err := renderAccountRejected(name)
	if err != nil {
		return err
	}
	return m.send(to, "Your Lib-Track registration", body)
}

// SendOverdueNotice warns a borrower about an overdue item and its running fine
func (m *SMTPMailer) SendOverdueNotice(to string, data OverdueNoticeData) error {
	body, err := renderOverdueNotice(data)
	if err != nil {
		return err
	}
	return m.send(to, "Overdue item notice", body)
}

// SendPaymentReceipt confirms a penalty payment
func (m *SMTPMailer) SendPaymentReceipt(to string, data ReceiptData) error {
	body, err := renderPaymentReceipt(data)
	if err != nil {
		return err
	}
	return m.send(to, "Penalty payment receipt", body)
}

// NoopMailer discards all mail. Used when SMTP is disabled and in tests.
type NoopMailer struct{}

func (NoopMailer) SendAccountApproved(to, name string) error               { return nil }
func (NoopMailer) SendAccountRejected(to, name string) error               { return nil }
func (NoopMailer) SendOverdueNotice(to string, data OverdueNoticeData) error { return nil }
func (NoopMailer) SendPaymentReceipt(to string, data ReceiptData) error    { return nil }
