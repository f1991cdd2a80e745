package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/repository"
)

// LoginInput carries password credentials.
type LoginInput struct {
	Username string
	Password string
}

// RecoveryInput carries a username and an emailed recovery ticket.
type RecoveryInput struct {
	Username string
	Ticket   string
}

func invalidLogin() error {
	return domain.NewUserError(domain.CodeInvalidLogin)
}

func invalidRecovery() error {
	return domain.NewUserError(domain.CodeInvalidRecovery)
}

// LoginPassword authenticates with a username and password. Unknown users,
// inactive users and wrong passwords all yield invalid-login.
func (s *AuthService) LoginPassword(ctx context.Context, input LoginInput, updateAccess bool) (_ *domain.User, err error) {
	ctx, done := s.begin(ctx, OpLoginPassword)
	defer func() { done(err) }()

	return s.loginPassword(ctx, input, updateAccess)
}

func (s *AuthService) loginPassword(ctx context.Context, input LoginInput, updateAccess bool) (*domain.User, error) {
	enabled, err := s.loginEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, domain.NewUserError(domain.CodeLoginDisabled)
	}

	username := strings.TrimSpace(input.Username)

	var v violations
	if username == "" {
		v.add(domain.CodeUsernameRequired)
	}
	if input.Password == "" {
		v.add(domain.CodePasswordRequired)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()

	user, err := s.activeUser(ctx, repos, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidLogin()
	}

	method, err := repos.Methods.FindActive(ctx, port.MethodQuery{
		UserID: user.ID,
		Kind:   domain.MethodPassword,
		Step:   stepPtr(domain.StepFirst),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidLogin()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup password method: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, method.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Debug("password mismatch", zap.String("user_id", user.ID))
		return nil, invalidLogin()
	}

	now := s.now().UTC()
	if err := s.stampUse(ctx, user, method, now, updateAccess); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginOath authenticates with a password and the current TOTP code of the
// user's enrolled second factor.
func (s *AuthService) LoginOath(ctx context.Context, input LoginInput, code string) (_ *domain.User, err error) {
	ctx, done := s.begin(ctx, OpLoginOath)
	defer func() { done(err) }()

	user, err := s.loginPassword(ctx, input, false)
	if err != nil {
		return nil, err
	}

	method, err := s.store.Repositories().Methods.FindActive(ctx, port.MethodQuery{
		UserID: user.ID,
		Kind:   domain.MethodOathKey,
		Step:   stepPtr(domain.StepSecond),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidLogin()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup oath method: %w", err)
	}

	now := s.now().UTC()
	expected, err := s.otp.Code(method.Ticket, now)
	if err != nil {
		return nil, fmt.Errorf("derive totp code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(code))) != 1 {
		return nil, invalidLogin()
	}

	if err := s.stampUse(ctx, user, method, now, true); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginRecovery authenticates with an emailed recovery ticket. The ticket is
// consumed before its expiry is checked, so an expired ticket is burned too.
func (s *AuthService) LoginRecovery(ctx context.Context, input RecoveryInput) (_ *domain.User, err error) {
	ctx, done := s.begin(ctx, OpLoginRecovery)
	defer func() { done(err) }()

	username := strings.TrimSpace(input.Username)
	ticket := input.Ticket

	var v violations
	if username == "" {
		v.add(domain.CodeUsernameRequired)
	}
	v.ticket(ticket)
	if err := v.err(); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()

	user, err := s.activeUser(ctx, repos, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalidRecovery()
	}

	method, err := repos.Methods.FindActive(ctx, port.MethodQuery{
		UserID: user.ID,
		Kind:   domain.MethodRecoveryTicket,
		Ticket: ticket,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidRecovery()
	}
	if err != nil {
		return nil, fmt.Errorf("lookup recovery method: %w", err)
	}

	now := s.now().UTC()
	expired := false

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		won, err := repos.Methods.DeactivateIfActive(ctx, method.ID, now)
		if err != nil {
			return fmt.Errorf("consume recovery ticket: %w", err)
		}
		if !won {
			return invalidRecovery()
		}
		if method.Expired(now) {
			// Commit the burn, reject afterwards.
			expired = true
			return nil
		}
		touched, err := patchUser(ctx, repos, user.ID, port.UserPatch{LastAccess: &now, Modified: now})
		if err != nil {
			return err
		}
		*user = *touched
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		s.logger.Info("expired recovery ticket consumed", zap.String("user_id", user.ID))
		return nil, invalidRecovery()
	}

	return user, nil
}

// activeUser resolves an active user inside the service's view. A missing
// user is reported as nil without error.
func (s *AuthService) activeUser(ctx context.Context, repos port.Repositories, username string) (*domain.User, error) {
	user, err := repos.Users.GetByUsername(ctx, username, s.filter.Merge(port.UserFilter{ActiveOnly: true}))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// stampUse records a successful use of method and, when touchUser is set,
// the user's last access. Only the usage columns are written, so a password
// or type change committed since the lookup survives.
func (s *AuthService) stampUse(ctx context.Context, user *domain.User, method *domain.Method, at time.Time, touchUser bool) error {
	var touched *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Methods.MarkUsed(ctx, method.ID, at); err != nil {
			return fmt.Errorf("update method usage: %w", err)
		}
		if !touchUser {
			return nil
		}
		var err error
		touched, err = patchUser(ctx, repos, user.ID, port.UserPatch{LastAccess: &at, Modified: at})
		return err
	})
	if err != nil {
		return err
	}

	method.MarkUsed(at)
	if touched != nil {
		*user = *touched
	}
	return nil
}
