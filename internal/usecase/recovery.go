package usecase

import (
	"context"
	"fmt"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/logger"
	"github.com/arklim/account-auth/internal/infra/security"
)

const (
	recoverySubject    = "Recovery Token"
	recoveryBodyPrefix = "Your account recovery token is: "
)

// IssueRecovery replaces any outstanding recovery tickets of the user with a
// fresh one and emails it. A send failure leaves the new ticket in place and
// is reported as a *domain.DeliveryError.
func (s *AuthService) IssueRecovery(ctx context.Context, user *domain.User) (err error) {
	domain.MustBePersisted(user, "issue recovery")

	ctx, done := s.begin(ctx, OpIssueRecovery)
	defer func() { done(err) }()

	now := s.now().UTC()
	expiresAt := now.Add(s.recoveryTTL)
	ticket := security.NewEmailTicket(user.Email)

	var revoked int
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		n, err := repos.Methods.DeactivateAll(ctx, user.ID, domain.MethodRecoveryTicket, now)
		if err != nil {
			return fmt.Errorf("deactivate recovery tickets: %w", err)
		}
		revoked = n

		method := newMethod(user.ID, domain.MethodRecoveryTicket, domain.StepNone, now)
		method.Ticket = ticket
		method.Expiration = &expiresAt
		if err := repos.Methods.Create(ctx, method); err != nil {
			return fmt.Errorf("create recovery method: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	masked := logger.MaskEmail(user.Email)
	s.logger.Info("recovery ticket issued",
		zap.String("user_id", user.ID),
		zap.String("email", masked),
		zap.Int("revoked", revoked),
		zap.Time("expires_at", expiresAt),
	)

	sendErr := s.mailer.Send(ctx, user.Email, recoverySubject, recoveryBodyPrefix+ticket)

	s.publish(ctx, "recovery_issued", func(events port.EventPublisher) error {
		return events.PublishRecoveryIssued(ctx, domain.RecoveryIssuedEvent{
			EventID:        uuid.NewString(),
			UserID:         user.ID,
			IssuedAt:       now,
			ExpiresAt:      expiresAt,
			MaskedEmail:    masked,
			EmailDelivered: sendErr == nil,
		})
	})

	if sendErr != nil {
		s.logger.Warn("recovery email not delivered", zap.String("user_id", user.ID), zap.Error(sendErr))
		return &domain.DeliveryError{Code: domain.CodeRecoveryEmailFailure, User: user, Err: sendErr}
	}
	return nil
}
