package usecase

import (
	"context"
	"errors"
	"fmt"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

// ValidateAccount consumes the user's emailed validation ticket and marks the
// account validated. The ticket is burned even when it turns out expired.
func (s *AuthService) ValidateAccount(ctx context.Context, user *domain.User, ticket string) (err error) {
	domain.MustBePersisted(user, "validate account")

	ctx, done := s.begin(ctx, OpValidate)
	defer func() { done(err) }()

	var v violations
	v.ticket(ticket)
	if err := v.err(); err != nil {
		return err
	}

	method, err := s.store.Repositories().Methods.FindActive(ctx, port.MethodQuery{
		UserID: user.ID,
		Kind:   domain.MethodValidationTicket,
		Ticket: ticket,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NewUserError(domain.CodeInvalidToken)
	}
	if err != nil {
		return fmt.Errorf("lookup validation method: %w", err)
	}

	now := s.now().UTC()
	expired := false
	var validated domain.User

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		won, err := repos.Methods.DeactivateIfActive(ctx, method.ID, now)
		if err != nil {
			return fmt.Errorf("consume validation ticket: %w", err)
		}
		if !won {
			return domain.NewUserError(domain.CodeInvalidToken)
		}
		if method.Expired(now) {
			expired = true
			return nil
		}

		isValidated := true
		current, err := patchUser(ctx, repos, user.ID, port.UserPatch{Validated: &isValidated, Modified: now})
		if err != nil {
			return err
		}
		validated = *current
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return domain.NewUserError(domain.CodeTokenExpired)
	}

	*user = validated
	s.logger.Info("account validated", zap.String("user_id", user.ID))

	s.publish(ctx, "user_validated", func(events port.EventPublisher) error {
		return events.PublishUserValidated(ctx, domain.UserValidatedEvent{
			EventID:     uuid.NewString(),
			UserID:      user.ID,
			ValidatedAt: now,
		})
	})
	return nil
}
