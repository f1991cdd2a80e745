package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
)

// AdminView returns the same engine scoped to administrators. Lookups,
// logins and listings through it only see users of type admin.
func (s *AuthService) AdminView() *AuthService {
	view := *s
	view.filter = s.filter.Merge(port.AdminsOnly())
	return &view
}

// ListUsers returns the users matching filter within the service's view,
// ordered by username.
func (s *AuthService) ListUsers(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	// The view's own constraints win over the caller's.
	users, err := s.store.Repositories().Users.List(ctx, filter.Merge(s.filter))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Promote grants the admin type.
func (s *AuthService) Promote(ctx context.Context, user *domain.User) error {
	return s.setUserType(ctx, user, domain.UserTypeAdmin, ChangePromoted)
}

// Demote returns the user to the standard type.
func (s *AuthService) Demote(ctx context.Context, user *domain.User) error {
	return s.setUserType(ctx, user, domain.UserTypeStandard, ChangeDemoted)
}

func (s *AuthService) setUserType(ctx context.Context, user *domain.User, userType domain.UserType, change string) (err error) {
	domain.MustBePersisted(user, change)

	ctx, done := s.begin(ctx, OpSetUserType)
	defer func() { done(err) }()

	now := s.now().UTC()
	var updated *domain.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		updated, err = patchUser(ctx, repos, user.ID, port.UserPatch{Type: &userType, Modified: now})
		return err
	})
	if err != nil {
		return err
	}
	*user = *updated

	s.logger.Info("user type changed", zap.String("user_id", user.ID), zap.Stringer("type", userType))
	s.publishStatusChange(ctx, user.ID, change, now)
	return nil
}
