package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/logger"
	"github.com/arklim/account-auth/internal/infra/security"
	"github.com/arklim/account-auth/internal/repository"
)

const (
	validationSubject    = "Account Validation"
	validationBodyPrefix = "Your validation token is:\n"
)

// RegistrationInput is the raw, untrusted field map submitted for registration.
// Recognised keys are the Field* constants.
type RegistrationInput map[string]string

type registrationForm struct {
	username  string
	firstName string
	lastName  string
	email     string
	password  string
	ticket    string
}

func newRegistrationForm(input RegistrationInput) registrationForm {
	form := registrationForm{password: input[FieldPassword]}
	form.username, _ = field(input, FieldUsername)
	form.firstName, _ = field(input, FieldFirstName)
	form.lastName, _ = field(input, FieldLastName)
	form.email, _ = field(input, FieldEmail)
	form.ticket, _ = field(input, FieldTicket)
	return form
}

// Register creates a user with a password and a pending validation ticket,
// then emails the ticket. Field violations are reported together; duplicate
// username and email are reported together.
//
// When the email cannot be sent the records stay committed and the returned
// error is a *domain.DeliveryError carrying the new user.
func (s *AuthService) Register(ctx context.Context, input RegistrationInput) (_ *domain.User, err error) {
	ctx, done := s.begin(ctx, OpRegister)
	defer func() { done(err) }()

	mode, err := s.registrationMode(ctx)
	if err != nil {
		return nil, err
	}
	if mode == domain.RegistrationDisabled {
		return nil, domain.NewUserError(domain.CodeRegistrationDisabled)
	}
	gated := mode == domain.RegistrationTicketGated

	form := newRegistrationForm(input)

	var v violations
	v.username(form.username)
	v.name(form.firstName, domain.CodeInvalidFirstName)
	v.name(form.lastName, domain.CodeInvalidLastName)
	v.email(form.email)
	s.checkPassword(&v, form.password, domain.PasswordContext{Username: form.username, Email: form.email},
		domain.CodePasswordRequired, domain.CodeInvalidPassword)
	if gated {
		v.ticket(form.ticket)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()

	// Uniqueness is global, so these checks ignore the view filter.
	taken, err := repos.Users.UsernameExists(ctx, form.username, port.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		v.add(domain.CodeUserExists)
	}
	taken, err = repos.Users.EmailExists(ctx, form.email, port.UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		v.add(domain.CodeEmailExists)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()

	var admission *domain.SystemTicket
	if gated {
		admission, err = repos.Tickets.GetByValue(ctx, domain.TicketPurposeNewUser, form.ticket)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewUserError(domain.CodeNoSuchTicket)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup system ticket: %w", err)
		}
		if admission.Exhausted {
			v.add(domain.CodeTokenExhausted)
		}
		if admission.Expired(now) {
			v.add(domain.CodeTokenExpired)
		}
		if err := v.err(); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(form.password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Username:  form.username,
		FirstName: form.firstName,
		LastName:  form.lastName,
		Email:     form.email,
		Type:      domain.UserTypeStandard,
		Active:    true,
		Created:   now,
		Modified:  now,
	}
	validationTicket := security.NewEmailTicket(form.email)

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		if admission != nil {
			won, err := repos.Tickets.MarkExhausted(ctx, admission.ID)
			if err != nil {
				return fmt.Errorf("exhaust system ticket: %w", err)
			}
			if !won {
				return domain.NewUserError(domain.CodeTokenExhausted)
			}
		}

		if err := repos.Users.Create(ctx, user); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicateUsername):
				return domain.NewUserError(domain.CodeUserExists)
			case errors.Is(err, repository.ErrDuplicateEmail):
				return domain.NewUserError(domain.CodeEmailExists)
			}
			return fmt.Errorf("create user: %w", err)
		}

		password := newMethod(user.ID, domain.MethodPassword, domain.StepFirst, now)
		password.PasswordHash = hash
		if err := repos.Methods.Create(ctx, password); err != nil {
			return fmt.Errorf("create password method: %w", err)
		}

		validation := newMethod(user.ID, domain.MethodValidationTicket, domain.StepNone, now)
		validation.Ticket = validationTicket
		if err := repos.Methods.Create(ctx, validation); err != nil {
			return fmt.Errorf("create validation method: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Bool("ticket_gated", gated),
	)

	sendErr := s.mailer.Send(ctx, user.Email, validationSubject, validationBodyPrefix+validationTicket)

	s.publish(ctx, "user_registered", func(events port.EventPublisher) error {
		return events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			EventID:        uuid.NewString(),
			UserID:         user.ID,
			Username:       user.Username,
			Email:          user.Email,
			RegisteredAt:   now,
			TicketGated:    gated,
			EmailDelivered: sendErr == nil,
		})
	})

	if sendErr != nil {
		s.logger.Warn("validation email not delivered",
			zap.String("user_id", user.ID),
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(sendErr),
		)
		return nil, &domain.DeliveryError{Code: domain.CodeValidationEmailFailure, User: &user, Err: sendErr}
	}

	return &user, nil
}

// checkPassword records required when password is empty and invalid when it
// fails the strength policy.
func (s *AuthService) checkPassword(v *violations, password string, pc domain.PasswordContext, required, invalid string) {
	if strings.TrimSpace(password) == "" {
		v.add(required)
		return
	}
	if err := s.policy.Validate(password, pc); err != nil {
		v.add(invalid)
	}
}
