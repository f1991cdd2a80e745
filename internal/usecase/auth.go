package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/core/port"
	"github.com/arklim/account-auth/internal/infra/security"
)

const (
	tracerName = "github.com/arklim/account-auth/internal/usecase"

	defaultRecoveryTTL     = 5 * time.Hour
	defaultSystemTicketTTL = 30 * 24 * time.Hour
)

// Operation labels used for spans and metrics.
const (
	OpRegister       = "register"
	OpLoginPassword  = "login_password"
	OpLoginOath      = "login_oath"
	OpLoginRecovery  = "login_recovery"
	OpValidate       = "validate_account"
	OpChangePassword = "change_password"
	OpIssueRecovery  = "issue_recovery"
	OpGenerateOath   = "generate_oath"
	OpSetUserType    = "set_user_type"
	OpSetActive      = "set_active"
	OpModifyInfo     = "modify_info"
	OpDeleteUser     = "delete_user"
	OpGenerateTicket = "generate_system_ticket"
)

const (
	resultSuccess     = "success"
	resultRejected    = "rejected"
	resultUndelivered = "undelivered"
	resultError       = "error"
)

// OperationMetrics records the outcome of engine operations.
type OperationMetrics interface {
	ObserveOperation(operation, result string)
}

// AuthService is the authentication engine. It owns the credential state
// machine; every record it touches goes through the store.
type AuthService struct {
	store   port.Store
	flags   port.FlagSource
	hasher  port.PasswordHasher
	otp     port.OTPGenerator
	mailer  port.Mailer
	policy  port.PasswordPolicyValidator
	events  port.EventPublisher
	metrics OperationMetrics
	tracer  trace.Tracer
	logger  *zap.Logger
	now     func() time.Time

	recoveryTTL     time.Duration
	systemTicketTTL time.Duration

	// filter scopes every user lookup; the zero value sees all users.
	filter port.UserFilter
}

// NewAuthService constructs the engine. flags may be nil, in which case
// registration and login stay enabled.
func NewAuthService(store port.Store, flags port.FlagSource, hasher port.PasswordHasher, otp port.OTPGenerator, mailer port.Mailer) *AuthService {
	return &AuthService{
		store:           store,
		flags:           flags,
		hasher:          hasher,
		otp:             otp,
		mailer:          mailer,
		policy:          security.NewPasswordPolicy(),
		tracer:          otel.Tracer(tracerName),
		logger:          zap.NewNop(),
		now:             time.Now,
		recoveryTTL:     defaultRecoveryTTL,
		systemTicketTTL: defaultSystemTicketTTL,
	}
}

// WithLogger attaches a structured logger.
func (s *AuthService) WithLogger(logger *zap.Logger) *AuthService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the clock, primarily for deterministic testing.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithEvents wires a domain event publisher.
func (s *AuthService) WithEvents(events port.EventPublisher) *AuthService {
	s.events = events
	return s
}

// WithMetrics wires an operation outcome recorder.
func (s *AuthService) WithMetrics(metrics OperationMetrics) *AuthService {
	s.metrics = metrics
	return s
}

// WithTracer replaces the global tracer.
func (s *AuthService) WithTracer(tracer trace.Tracer) *AuthService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithPasswordPolicy replaces the password strength policy.
func (s *AuthService) WithPasswordPolicy(policy port.PasswordPolicyValidator) *AuthService {
	if policy != nil {
		s.policy = policy
	}
	return s
}

// WithRecoveryTTL sets how long an issued recovery ticket stays valid.
func (s *AuthService) WithRecoveryTTL(ttl time.Duration) *AuthService {
	if ttl > 0 {
		s.recoveryTTL = ttl
	}
	return s
}

// WithSystemTicketTTL sets the default validity of generated system tickets.
func (s *AuthService) WithSystemTicketTTL(ttl time.Duration) *AuthService {
	if ttl > 0 {
		s.systemTicketTTL = ttl
	}
	return s
}

// begin opens a span for operation and returns the function that closes it
// and records the outcome.
func (s *AuthService) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+operation,
		trace.WithAttributes(attribute.Bool("auth.admin_view", s.filter.Type != nil)),
	)
	return ctx, func(err error) {
		result := resultOf(err)
		span.SetAttributes(attribute.String("auth.result", result))
		if result == resultError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(operation, result)
		}
	}
}

func resultOf(err error) string {
	var userErr *domain.UserError
	var deliveryErr *domain.DeliveryError
	switch {
	case err == nil:
		return resultSuccess
	case errors.As(err, &userErr):
		return resultRejected
	case errors.As(err, &deliveryErr):
		return resultUndelivered
	default:
		return resultError
	}
}

func (s *AuthService) registrationMode(ctx context.Context) (domain.RegistrationMode, error) {
	if s.flags == nil {
		return domain.RegistrationEnabled, nil
	}
	flag, err := s.flags.GetFlag(ctx, domain.FlagNewUsers)
	if err != nil {
		return 0, fmt.Errorf("read %s flag: %w", domain.FlagNewUsers, err)
	}
	return flag.RegistrationMode(), nil
}

func (s *AuthService) loginEnabled(ctx context.Context) (bool, error) {
	if s.flags == nil {
		return true, nil
	}
	flag, err := s.flags.GetFlag(ctx, domain.FlagUserLogin)
	if err != nil {
		return false, fmt.Errorf("read %s flag: %w", domain.FlagUserLogin, err)
	}
	return flag.LoginEnabled(), nil
}

func newMethod(userID string, kind domain.MethodKind, step int, at time.Time) domain.Method {
	return domain.Method{
		ID:      uuid.NewString(),
		UserID:  userID,
		Kind:    kind,
		Step:    step,
		Status:  domain.MethodActive,
		Created: at,
		Updated: at,
	}
}

func stepPtr(step int) *int {
	return &step
}
