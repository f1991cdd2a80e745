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

// PasswordChange describes a password replacement. When Check is set the
// current password must be supplied in Old and must verify.
type PasswordChange struct {
	New   string
	Old   string
	Check bool
}

// ChangePassword replaces the user's password hash. Every violation is
// reported together.
func (s *AuthService) ChangePassword(ctx context.Context, user *domain.User, change PasswordChange) (err error) {
	domain.MustBePersisted(user, "change password")

	ctx, done := s.begin(ctx, OpChangePassword)
	defer func() { done(err) }()

	var v violations
	s.checkPassword(&v, change.New, domain.PasswordContext{Username: user.Username, Email: user.Email},
		domain.CodeNewPasswordRequired, domain.CodeInvalidNewPassword)

	if change.Check {
		if change.Old == "" {
			v.add(domain.CodeOldPasswordRequired)
		} else {
			ok, err := s.verifyCurrentPassword(ctx, user.ID, change.Old)
			if err != nil {
				return err
			}
			if !ok {
				v.add(domain.CodeInvalidOldPassword)
			}
		}
	}
	if err := v.err(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(change.New)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		method, err := repos.Methods.FindActive(ctx, port.MethodQuery{
			UserID: user.ID,
			Kind:   domain.MethodPassword,
			Step:   stepPtr(domain.StepFirst),
		})
		if errors.Is(err, repository.ErrNotFound) {
			// Deactivation deletes every method; a later change re-creates it.
			created := newMethod(user.ID, domain.MethodPassword, domain.StepFirst, now)
			created.PasswordHash = hash
			if err := repos.Methods.Create(ctx, created); err != nil {
				return fmt.Errorf("create password method: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup password method: %w", err)
		}

		if err := repos.Methods.SetPasswordHash(ctx, method.ID, hash, now); err != nil {
			return fmt.Errorf("update password method: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", user.ID), zap.Bool("checked", change.Check))

	s.publish(ctx, "password_changed", func(events port.EventPublisher) error {
		return events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    user.ID,
			ChangedAt: now,
			Checked:   change.Check,
		})
	})
	return nil
}

func (s *AuthService) verifyCurrentPassword(ctx context.Context, userID, password string) (bool, error) {
	method, err := s.store.Repositories().Methods.FindActive(ctx, port.MethodQuery{
		UserID: userID,
		Kind:   domain.MethodPassword,
		Step:   stepPtr(domain.StepFirst),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup password method: %w", err)
	}

	ok, err := s.hasher.Verify(password, method.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}
