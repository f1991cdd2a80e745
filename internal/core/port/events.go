package port

import (
	"context"

	"github.com/arklim/account-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserValidated(ctx context.Context, event domain.UserValidatedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishRecoveryIssued(ctx context.Context, event domain.RecoveryIssuedEvent) error
	PublishUserStatusChanged(ctx context.Context, event domain.UserStatusChangedEvent) error
}
