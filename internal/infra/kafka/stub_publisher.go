package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when
// kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

// PublishUserRegistered logs auth.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.Bool("ticket_gated", event.TicketGated),
		zap.Bool("email_delivered", event.EmailDelivered),
	)
	return nil
}

// PublishUserValidated logs auth.user.validated events.
func (p *StubPublisher) PublishUserValidated(_ context.Context, event domain.UserValidatedEvent) error {
	p.logEvent(EventUserValidated, event.UserID, event.ValidatedAt)
	return nil
}

// PublishPasswordChanged logs auth.user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.UserID, event.ChangedAt, zap.Bool("old_password_checked", event.Checked))
	return nil
}

// PublishRecoveryIssued logs auth.user.recovery.issued events.
func (p *StubPublisher) PublishRecoveryIssued(_ context.Context, event domain.RecoveryIssuedEvent) error {
	p.logEvent(EventRecoveryIssued, event.UserID, event.IssuedAt,
		zap.Time("expires_at", event.ExpiresAt),
		zap.String("email", event.MaskedEmail),
		zap.Bool("email_delivered", event.EmailDelivered),
	)
	return nil
}

// PublishUserStatusChanged logs auth.user.status.changed events.
func (p *StubPublisher) PublishUserStatusChanged(_ context.Context, event domain.UserStatusChangedEvent) error {
	p.logEvent(EventUserStatusChanged, event.UserID, event.ChangedAt, zap.String("change", event.Change))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
