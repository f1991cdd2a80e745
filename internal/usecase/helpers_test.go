package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/infra/security"
	"github.com/arklim/account-auth/internal/repository/memory"
)

const strongPassword = "Sup3r!SecurePass#7890"

var errSMTPDown = errors.New("smtp: connection refused")

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

type recordingEvents struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	validated  []domain.UserValidatedEvent
	changed    []domain.PasswordChangedEvent
	recovery   []domain.RecoveryIssuedEvent
	status     []domain.UserStatusChangedEvent
	err        error
}

func (e *recordingEvents) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = append(e.registered, event)
	return e.err
}

func (e *recordingEvents) PublishUserValidated(_ context.Context, event domain.UserValidatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validated = append(e.validated, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changed = append(e.changed, event)
	return e.err
}

func (e *recordingEvents) PublishRecoveryIssued(_ context.Context, event domain.RecoveryIssuedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recovery = append(e.recovery, event)
	return e.err
}

func (e *recordingEvents) PublishUserStatusChanged(_ context.Context, event domain.UserStatusChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = append(e.status, event)
	return e.err
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls map[string]int
}

func (m *recordingMetrics) ObserveOperation(operation, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[operation+"/"+result]++
}

func (m *recordingMetrics) count(operation, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation+"/"+result]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc     *AuthService
	store   *memory.Store
	flags   *memory.FlagStore
	mailer  *fakeMailer
	events  *recordingEvents
	metrics *recordingMetrics
	clock   *fakeClock
	otp     *security.TOTP
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		flags:   memory.NewFlagStore(),
		mailer:  &fakeMailer{},
		events:  &recordingEvents{},
		metrics: &recordingMetrics{},
		clock:   &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)},
		otp:     security.NewTOTP("account-auth-test"),
	}
	f.svc = NewAuthService(f.store, f.flags, security.NewBcryptHasher(bcrypt.MinCost), f.otp, f.mailer).
		WithLogger(zaptest.NewLogger(t)).
		WithClock(f.clock.Now).
		WithEvents(f.events).
		WithMetrics(f.metrics)
	return f
}

func registrationInput(username, email string) RegistrationInput {
	return RegistrationInput{
		FieldUsername:  username,
		FieldFirstName: "Ada",
		FieldLastName:  "Lovelace",
		FieldEmail:     email,
		FieldPassword:  strongPassword,
	}
}

func (f *fixture) register(t *testing.T, username, email string) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), registrationInput(username, email))
	require.NoError(t, err)
	return user
}

func (f *fixture) setFlag(t *testing.T, tag string, setting int, data string) {
	t.Helper()
	require.NoError(t, f.flags.SetFlag(context.Background(), domain.Flag{Tag: tag, Setting: setting, Data: data}))
}

// mailedTicket extracts the ticket from the last mail sent.
func (f *fixture) mailedTicket(t *testing.T, prefix string) string {
	t.Helper()
	mail := f.mailer.last(t)
	require.True(t, strings.HasPrefix(mail.body, prefix), "unexpected body %q", mail.body)
	return strings.TrimPrefix(mail.body, prefix)
}

func requireCodes(t *testing.T, err error, codes ...string) {
	t.Helper()
	require.Error(t, err)
	require.ElementsMatch(t, codes, domain.ErrorCodes(err), "error: %v", err)
}
