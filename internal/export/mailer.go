package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/config"
)

// ErrEmailDisabled is returned when no SMTP relay is configured.
var ErrEmailDisabled = errors.New("email delivery is not configured")

const pdfContentType mail.ContentType = "application/pdf"

// Sender delivers composed messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer emails report PDFs.
type Mailer struct {
	cfg    config.EmailConfig
	sender Sender
	logger *zap.Logger
	now    func() time.Time
}

// NewMailer creates an SMTP-backed mailer from cfg.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) (*Mailer, error) {
	if !cfg.Enabled() {
		return nil, ErrEmailDisabled
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return NewMailerWithSender(cfg, client, logger), nil
}

// NewMailerWithSender creates a mailer that delivers through sender.
func NewMailerWithSender(cfg config.EmailConfig, sender Sender, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		sender: sender,
		logger: logger.Named("mailer"),
		now:    time.Now,
	}
}

// Compose builds the message carrying pdf for report.
func (m *Mailer) Compose(to string, report schemas.Report, pdf []byte) (*mail.Msg, error) {
	body, err := RenderEmail(report)
	if err != nil {
		return nil, err
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Accessibility Report PDF: " + report.URL)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, body)
	msg.AttachReadSeeker(
		fmt.Sprintf("Accessibility-Report-%d.pdf", m.now().UnixMilli()),
		bytes.NewReader(pdf),
		mail.WithFileContentType(pdfContentType))
	return msg, nil
}

// SendReport emails pdf to the given address.
func (m *Mailer) SendReport(ctx context.Context, to string, report schemas.Report, pdf []byte) error {
	msg, err := m.Compose(to, report, pdf)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("Failed to send report email.", zap.String("url", report.URL), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.Info("Report email sent.", zap.String("url", report.URL))
	return nil
}
