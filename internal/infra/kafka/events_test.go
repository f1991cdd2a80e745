package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer(buffer int) *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, buffer),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, async sarama.AsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: async,
		logger:   zaptest.NewLogger(t),
		cfg:      config.KafkaSettings{TopicPrefix: "acct"},
		errChan:  make(chan error, 1),
		done:     make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "account-auth",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func receiveEnvelope(t *testing.T, async *fakeAsyncProducer, wantTopic string) (map[string]any, map[string]any) {
	t.Helper()

	select {
	case msg := <-async.input:
		if msg.Topic != wantTopic {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}
		return envelope, payload
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil, nil
}

func TestPublishUserRegistered(t *testing.T) {
	async := newFakeAsyncProducer(1)
	publisher := newTestPublisher(t, async)

	registeredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.UserRegisteredEvent{
		EventID:        "evt-1",
		UserID:         "user-1",
		Username:       "alice",
		Email:          "alice@example.com",
		RegisteredAt:   registeredAt,
		TicketGated:    true,
		EmailDelivered: false,
	}

	if err := publisher.PublishUserRegistered(context.Background(), event); err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	envelope, payload := receiveEnvelope(t, async, "acct.auth.user.registered")

	if got := envelope["event_id"]; got != "evt-1" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["event_type"]; got != EventUserRegistered {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["user_id"]; got != "user-1" {
		t.Fatalf("unexpected user_id: %v", got)
	}
	if got := envelope["version"]; got != schemaVersion {
		t.Fatalf("unexpected version: %v", got)
	}
	if got := envelope["timestamp"]; got != registeredAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	if payload["username"] != "alice" || payload["email"] != "alice@example.com" {
		t.Fatalf("unexpected payload identity: %v", payload)
	}
	if payload["ticket_gated"] != true || payload["email_delivered"] != false {
		t.Fatalf("unexpected payload flags: %v", payload)
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if metadata["service"] != "account-auth" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
}

func TestPublishRecoveryIssued(t *testing.T) {
	async := newFakeAsyncProducer(1)
	publisher := newTestPublisher(t, async)

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := domain.RecoveryIssuedEvent{
		UserID:         "user-2",
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(5 * time.Hour),
		MaskedEmail:    "bob***@example.com",
		EmailDelivered: true,
	}

	if err := publisher.PublishRecoveryIssued(context.Background(), event); err != nil {
		t.Fatalf("PublishRecoveryIssued returned error: %v", err)
	}

	envelope, payload := receiveEnvelope(t, async, "acct.auth.user.recovery.issued")

	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatal("expected generated event_id")
	}
	if got := payload["expires_at"]; got != event.ExpiresAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected expires_at: %v", got)
	}
	if got := payload["masked_email"]; got != "bob***@example.com" {
		t.Fatalf("unexpected masked_email: %v", got)
	}
}

func TestPublishStatusAndPasswordEvents(t *testing.T) {
	async := newFakeAsyncProducer(3)
	publisher := newTestPublisher(t, async)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := publisher.PublishUserStatusChanged(ctx, domain.UserStatusChangedEvent{UserID: "u", Change: "promoted", ChangedAt: at}); err != nil {
		t.Fatalf("PublishUserStatusChanged returned error: %v", err)
	}
	if err := publisher.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{UserID: "u", ChangedAt: at, Checked: true}); err != nil {
		t.Fatalf("PublishPasswordChanged returned error: %v", err)
	}
	if err := publisher.PublishUserValidated(ctx, domain.UserValidatedEvent{UserID: "u", ValidatedAt: at}); err != nil {
		t.Fatalf("PublishUserValidated returned error: %v", err)
	}

	_, status := receiveEnvelope(t, async, "acct.auth.user.status.changed")
	if status["change"] != "promoted" {
		t.Fatalf("unexpected change: %v", status["change"])
	}
	_, changed := receiveEnvelope(t, async, "acct.auth.user.password.changed")
	if changed["old_password_checked"] != true {
		t.Fatalf("unexpected old_password_checked: %v", changed["old_password_checked"])
	}
	_, validated := receiveEnvelope(t, async, "acct.auth.user.validated")
	if validated["validated_at"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected validated_at: %v", validated["validated_at"])
	}
}

func TestPublishRespectsContextCancellation(t *testing.T) {
	// Unbuffered input with no reader blocks until the context ends.
	async := newFakeAsyncProducer(0)
	publisher := newTestPublisher(t, async)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishUserValidated(ctx, domain.UserValidatedEvent{UserID: "u"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	cases := []struct {
		prefix string
		in     string
		want   string
	}{
		{"", EventUserRegistered, "auth.user.registered"},
		{"acct", EventUserRegistered, "acct.auth.user.registered"},
		{"acct", "acct.auth.user.registered", "acct.auth.user.registered"},
	}

	for _, tc := range cases {
		p := &Producer{cfg: config.KafkaSettings{TopicPrefix: tc.prefix}}
		if got := p.TopicName(tc.in); got != tc.want {
			t.Fatalf("TopicName(%q) with prefix %q = %q, want %q", tc.in, tc.prefix, got, tc.want)
		}
	}
}
