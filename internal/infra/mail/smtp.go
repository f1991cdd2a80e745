package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/config"
	"github.com/arklim/account-auth/internal/infra/logger"
)

const defaultTimeout = 10 * time.Second

// ErrNoRecipient is returned when Send is called with an empty address.
var ErrNoRecipient = errors.New("mail: recipient is required")

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer delivers plain-text mail through an SMTP relay.
type SMTPMailer struct {
	client sender
	from   string
	logger *zap.Logger
}

// NewSMTPMailer builds a mailer from SMTP settings. The connection is opened
// per message.
func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) (*SMTPMailer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.From, logger: log}, nil
}

func tlsPolicy(name string) gomail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mandatory":
		return gomail.TLSMandatory
	case "none", "notls":
		return gomail.NoTLS
	default:
		return gomail.TLSOpportunistic
	}
}

func (m *SMTPMailer) message(to, subject, body string) (*gomail.Msg, error) {
	if strings.TrimSpace(to) == "" {
		return nil, ErrNoRecipient
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := m.message(to, subject, body)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Warn("smtp delivery failed",
			zap.String("to", logger.MaskEmail(to)),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Debug("mail sent", zap.String("to", logger.MaskEmail(to)), zap.String("subject", subject))
	return nil
}

var _ port.Mailer = (*SMTPMailer)(nil)
