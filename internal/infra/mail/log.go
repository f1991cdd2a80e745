package mail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/logger"
)

// LogMailer records messages in the log instead of sending them. Used when
// smtp.enabled is false. Bodies carry tickets, so only their size is logged.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}

	m.logger.Info("mail suppressed",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
