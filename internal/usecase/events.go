package usecase

import (
	"context"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
)

// Status change labels carried by UserStatusChangedEvent.
const (
	ChangeActivated   = "activated"
	ChangeDeactivated = "deactivated"
	ChangePromoted    = "promoted"
	ChangeDemoted     = "demoted"
	ChangeDeleted     = "deleted"
)

// publish delivers an event on a best-effort basis. Failures are logged and
// never change the outcome of the committed operation.
func (s *AuthService) publish(ctx context.Context, event string, fn func(port.EventPublisher) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}

func (s *AuthService) publishStatusChange(ctx context.Context, userID, change string, at time.Time) {
	s.publish(ctx, "user_status_changed", func(events port.EventPublisher) error {
		return events.PublishUserStatusChanged(ctx, domain.UserStatusChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    userID,
			Change:    change,
			ChangedAt: at,
		})
	})
}
