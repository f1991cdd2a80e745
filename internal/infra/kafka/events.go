package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic suffixes.
const (
	EventUserRegistered    = "auth.user.registered"
	EventUserValidated     = "auth.user.validated"
	EventPasswordChanged   = "auth.user.password.changed"
	EventRecoveryIssued    = "auth.user.recovery.issued"
	EventUserStatusChanged = "auth.user.status.changed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID         string    `json:"user_id"`
		Username       string    `json:"username"`
		Email          string    `json:"email"`
		RegisteredAt   time.Time `json:"registered_at"`
		TicketGated    bool      `json:"ticket_gated"`
		EmailDelivered bool      `json:"email_delivered"`
	}{
		UserID:         event.UserID,
		Username:       event.Username,
		Email:          event.Email,
		RegisteredAt:   event.RegisteredAt.UTC(),
		TicketGated:    event.TicketGated,
		EmailDelivered: event.EmailDelivered,
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserValidated publishes auth.user.validated events.
func (p *EventPublisher) PublishUserValidated(ctx context.Context, event domain.UserValidatedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		ValidatedAt time.Time `json:"validated_at"`
	}{
		UserID:      event.UserID,
		ValidatedAt: event.ValidatedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserValidated, event.UserID, event.ValidatedAt, payload)
}

// PublishPasswordChanged publishes auth.user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		ChangedAt time.Time `json:"changed_at"`
		Checked   bool      `json:"old_password_checked"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		Checked:   event.Checked,
	}

	return p.publish(ctx, event.EventID, EventPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishRecoveryIssued publishes auth.user.recovery.issued events.
func (p *EventPublisher) PublishRecoveryIssued(ctx context.Context, event domain.RecoveryIssuedEvent) error {
	payload := struct {
		UserID         string    `json:"user_id"`
		IssuedAt       time.Time `json:"issued_at"`
		ExpiresAt      time.Time `json:"expires_at"`
		MaskedEmail    string    `json:"masked_email,omitempty"`
		EmailDelivered bool      `json:"email_delivered"`
	}{
		UserID:         event.UserID,
		IssuedAt:       event.IssuedAt.UTC(),
		ExpiresAt:      event.ExpiresAt.UTC(),
		MaskedEmail:    event.MaskedEmail,
		EmailDelivered: event.EmailDelivered,
	}

	return p.publish(ctx, event.EventID, EventRecoveryIssued, event.UserID, event.IssuedAt, payload)
}

// PublishUserStatusChanged publishes auth.user.status.changed events.
func (p *EventPublisher) PublishUserStatusChanged(ctx context.Context, event domain.UserStatusChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Change    string    `json:"change"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Change:    event.Change,
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserStatusChanged, event.UserID, event.ChangedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
