package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

// ErrUserNotFound indicates no user with the identifier is visible to the service.
var ErrUserNotFound = errors.New("user not found")

// UserExists reports whether a user with username exists, ignoring case.
func (s *AuthService) UserExists(ctx context.Context, username string) (bool, error) {
	exists, err := s.store.Repositories().Users.UsernameExists(ctx, strings.TrimSpace(username), s.filter)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether a user with email exists, ignoring case.
func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.store.Repositories().Users.EmailExists(ctx, strings.TrimSpace(email), s.filter)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.Repositories().Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.filter.Matches(*user) {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FindUser loads a user by case-insensitive username.
func (s *AuthService) FindUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.store.Repositories().Users.GetByUsername(ctx, strings.TrimSpace(username), s.filter)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Activate re-enables a deactivated account.
func (s *AuthService) Activate(ctx context.Context, user *domain.User) (err error) {
	domain.MustBePersisted(user, "activate")

	ctx, done := s.begin(ctx, OpSetActive)
	defer func() { done(err) }()

	now := s.now().UTC()
	active := true
	var updated *domain.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		updated, err = patchUser(ctx, repos, user.ID, port.UserPatch{Active: &active, Modified: now})
		return err
	})
	if err != nil {
		return err
	}
	*user = *updated

	s.logger.Info("user activated", zap.String("user_id", user.ID))
	s.publishStatusChange(ctx, user.ID, ChangeActivated, now)
	return nil
}

// Deactivate disables the account and deletes every authentication method it
// owns, so no credential survives a later reactivation.
func (s *AuthService) Deactivate(ctx context.Context, user *domain.User) (err error) {
	domain.MustBePersisted(user, "deactivate")

	ctx, done := s.begin(ctx, OpSetActive)
	defer func() { done(err) }()

	now := s.now().UTC()
	active := false
	var (
		updated *domain.User
		removed int
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		updated, err = patchUser(ctx, repos, user.ID, port.UserPatch{Active: &active, Modified: now})
		if err != nil {
			return err
		}
		removed, err = repos.Methods.DeleteAllForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete user methods: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*user = *updated

	s.logger.Info("user deactivated", zap.String("user_id", user.ID), zap.Int("methods_removed", removed))
	s.publishStatusChange(ctx, user.ID, ChangeDeactivated, now)
	return nil
}

// ModifyInfo updates the profile fields present in fields. Absent keys are
// left unchanged; an empty first or last name clears it.
func (s *AuthService) ModifyInfo(ctx context.Context, user *domain.User, fields map[string]string) (err error) {
	domain.MustBePersisted(user, "modify info")

	ctx, done := s.begin(ctx, OpModifyInfo)
	defer func() { done(err) }()

	var (
		v     violations
		patch port.UserPatch
	)
	if value, ok := field(fields, FieldUsername); ok {
		v.username(value)
		patch.Username = &value
	}
	if value, ok := field(fields, FieldFirstName); ok {
		v.name(value, domain.CodeInvalidFirstName)
		patch.FirstName = &value
	}
	if value, ok := field(fields, FieldLastName); ok {
		v.name(value, domain.CodeInvalidLastName)
		patch.LastName = &value
	}
	if value, ok := field(fields, FieldEmail); ok {
		v.email(value)
		patch.Email = &value
	}
	if err := v.err(); err != nil {
		return err
	}

	repos := s.store.Repositories()
	if patch.Username != nil && !strings.EqualFold(*patch.Username, user.Username) {
		taken, err := repos.Users.UsernameExists(ctx, *patch.Username, port.UserFilter{})
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			v.add(domain.CodeUserExists)
		}
	}
	if patch.Email != nil && !strings.EqualFold(*patch.Email, user.Email) {
		taken, err := repos.Users.EmailExists(ctx, *patch.Email, port.UserFilter{})
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			v.add(domain.CodeEmailExists)
		}
	}
	if err := v.err(); err != nil {
		return err
	}

	// Only the named profile columns are written.
	patch.Modified = s.now().UTC()
	var updated *domain.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		updated, err = patchUser(ctx, repos, user.ID, patch)
		return err
	})
	if err != nil {
		return err
	}

	*user = *updated
	return nil
}

// DeleteUser removes the account and its methods. Any other record that
// still references the user blocks the delete with associated-data-present.
func (s *AuthService) DeleteUser(ctx context.Context, user *domain.User) (err error) {
	domain.MustBePersisted(user, "delete user")

	ctx, done := s.begin(ctx, OpDeleteUser)
	defer func() { done(err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Users.Delete(ctx, user.ID); err != nil {
			switch {
			case errors.Is(err, repository.ErrAssociatedData):
				return domain.NewUserError(domain.CodeAssociatedDataPresent)
			case errors.Is(err, repository.ErrNotFound):
				return ErrUserNotFound
			}
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted", zap.String("user_id", user.ID))
	s.publishStatusChange(ctx, user.ID, ChangeDeleted, s.now().UTC())
	user.ID = ""
	return nil
}

// patchUser writes only the columns named by patch and returns the stored row.
func patchUser(ctx context.Context, repos port.Repositories, id string, patch port.UserPatch) (*domain.User, error) {
	updated, err := repos.Users.Patch(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, repository.ErrDuplicateUsername):
		return nil, domain.NewUserError(domain.CodeUserExists)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, domain.NewUserError(domain.CodeEmailExists)
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}
