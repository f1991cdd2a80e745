package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/account-auth/internal/core/domain"
	"github.com/arklim/account-auth/internal/infra/config"
	"github.com/arklim/account-auth/internal/infra/security"
	"github.com/arklim/account-auth/internal/repository/memory"
	"github.com/arklim/account-auth/internal/transport/http/handlers"
	"github.com/arklim/account-auth/internal/transport/http/middleware"
	httproutes "github.com/arklim/account-auth/internal/transport/http/routes"
	"github.com/arklim/account-auth/internal/usecase"
)

const password = "Sup3r!SecurePass#7890"

type captureMailer struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *captureMailer) lastTicket(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies)
	body := m.bodies[len(m.bodies)-1]
	return strings.TrimSpace(body[strings.LastIndexAny(body, " \n")+1:])
}

type testServer struct {
	engine *gin.Engine
	flags  *memory.FlagStore
	mailer *captureMailer
}

func newTestServer(t *testing.T, readiness map[string]func(context.Context) error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	flags := memory.NewFlagStore()
	mailer := &captureMailer{}
	log := zaptest.NewLogger(t)

	auth := usecase.NewAuthService(memory.NewStore(), flags, security.NewBcryptHasher(bcrypt.MinCost), security.NewTOTP("test"), mailer).
		WithLogger(log)

	registry := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	require.NoError(t, err)

	engine := httproutes.Register(httproutes.Dependencies{
		Config:    &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:    log,
		Auth:      auth,
		Metrics:   metrics,
		Gatherer:  registry,
		Readiness: readiness,
	})
	return &testServer{engine: engine, flags: flags, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *testServer) register(t *testing.T, username string) handlers.UserSummary {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/users/register", handlers.RegistrationRequest{
		Username:  username,
		FirstName: "Ada",
		Email:     username + "@example.com",
		Password:  password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[handlers.RegistrationResponse](t, rr).User
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", decode[handlers.HealthResponse](t, rr).Status)
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	s := newTestServer(t, map[string]func(context.Context) error{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	})

	rr := s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decode[handlers.ReadyResponse](t, rr)
	require.Equal(t, "ok", resp.Checks["database"])
	require.Contains(t, resp.Checks["redis"], "refused")
}

func TestRegisterValidateAndLogin(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.register(t, "alice")
	require.False(t, user.Validated)

	rr := s.do(t, http.MethodPost, "/api/v1/users/"+user.ID+"/validate", handlers.ValidateRequest{Ticket: s.mailer.lastTicket(t)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, decode[handlers.LoginResponse](t, rr).User.Validated)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{Username: "ALICE", Password: password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	logged := decode[handlers.LoginResponse](t, rr).User
	require.Equal(t, user.ID, logged.ID)
	require.NotNil(t, logged.LastAccess)
}

func TestRegistrationErrorsListEveryCode(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/users/register", handlers.RegistrationRequest{
		Username: "-bad",
		Email:    "nope",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode[handlers.ErrorResponse](t, rr)
	require.ElementsMatch(t, []string{domain.CodeInvalidUsername, domain.CodeInvalidEmail, domain.CodePasswordRequired}, resp.Codes)
	require.NotEmpty(t, resp.TraceID)
}

func TestRegistrationDisabledIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.flags.SetFlag(context.Background(), domain.Flag{Tag: domain.FlagNewUsers, Setting: 0}))

	rr := s.do(t, http.MethodPost, "/api/v1/users/register", handlers.RegistrationRequest{
		Username: "alice", Email: "alice@example.com", Password: password,
	})
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, []string{domain.CodeRegistrationDisabled}, decode[handlers.ErrorResponse](t, rr).Codes)
}

func TestRegistrationDeliveryFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, nil)
	s.mailer.err = errors.New("smtp down")

	rr := s.do(t, http.MethodPost, "/api/v1/users/register", handlers.RegistrationRequest{
		Username: "alice", Email: "alice@example.com", Password: password,
	})
	require.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode[handlers.ErrorResponse](t, rr)
	require.Equal(t, []string{domain.CodeValidationEmailFailure}, resp.Codes)
	require.NotEmpty(t, resp.UserID)

	// The account was committed, so the username is now taken.
	s.mailer.err = nil
	rr = s.do(t, http.MethodPost, "/api/v1/users/register", handlers.RegistrationRequest{
		Username: "alice", Email: "other@example.com", Password: password,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, []string{domain.CodeUserExists}, decode[handlers.ErrorResponse](t, rr).Codes)
}

func TestLoginAlwaysStampsAccess(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"username":      "alice",
		"password":      password,
		"update_access": false,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, decode[handlers.LoginResponse](t, rr).User.LastAccess)
}

func TestLoginFailuresAreUnauthorized(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	for _, req := range []handlers.LoginRequest{
		{Username: "alice", Password: "wrong-password"},
		{Username: "mallory", Password: password},
	} {
		rr := s.do(t, http.MethodPost, "/api/v1/auth/login", req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Equal(t, []string{domain.CodeInvalidLogin}, decode[handlers.ErrorResponse](t, rr).Codes)
	}

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login/oath", handlers.OathLoginRequest{Username: "alice", Password: password, Code: "123456"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginDisabledIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")
	require.NoError(t, s.flags.SetFlag(context.Background(), domain.Flag{Tag: domain.FlagUserLogin, Setting: 0}))

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login", handlers.LoginRequest{Username: "alice", Password: password})
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRecoveryFlow(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.register(t, "alice")

	rr := s.do(t, http.MethodPost, "/api/v1/users/"+user.ID+"/recovery", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	ticket := s.mailer.lastTicket(t)

	rr = s.do(t, http.MethodPost, "/api/v1/auth/login/recovery", handlers.RecoveryLoginRequest{Username: "alice", Ticket: ticket})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/api/v1/auth/login/recovery", handlers.RecoveryLoginRequest{Username: "alice", Ticket: ticket})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, []string{domain.CodeInvalidRecovery}, decode[handlers.ErrorResponse](t, rr).Codes)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/users/does-not-exist/recovery", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/validator/password", handlers.PasswordStrengthRequest{Password: "alice123", Username: "alice"})
	require.Equal(t, http.StatusOK, rr.Code)
	weak := decode[handlers.PasswordStrengthResponse](t, rr)
	require.False(t, weak.Valid)
	require.Less(t, weak.Score, 3)
	require.NotEmpty(t, weak.Violations)

	rr = s.do(t, http.MethodPost, "/api/v1/validator/password", handlers.PasswordStrengthRequest{Password: password})
	require.Equal(t, http.StatusOK, rr.Code)
	strong := decode[handlers.PasswordStrengthResponse](t, rr)
	require.True(t, strong.Valid, "%+v", strong.Violations)
	require.GreaterOrEqual(t, strong.Score, 3)
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/healthz", nil)

	rr := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "auth_http_requests_total")
}
