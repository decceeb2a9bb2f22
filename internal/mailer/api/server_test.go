package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/account"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/auth"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/infrastructure/provider"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/ipledger"
	"github.com/burhanmukhtar/Molly-Pro/internal/mailer/server"
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/internal/shared/logger"
	pkgapi "github.com/burhanmukhtar/Molly-Pro/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "api-test-secret-0123456789abcdefghij"
	testAdminKey = "admin-key"
)

type stubOrchestrator struct {
	createErr error
	created   *server.Server
	views     []server.View
	statusErr error
	rotateErr error
	termErr   error
	usedIPs   []*ipledger.UsedIP
	panicOn   string

	gotUserID   string
	gotServerID string
	gotClass    server.Class
}

func (o *stubOrchestrator) Create(_ context.Context, userID string, class server.Class) (*server.Server, error) {
	if o.panicOn == "create" {
		panic("boom")
	}
	o.gotUserID, o.gotClass = userID, class
	if o.createErr != nil {
		return nil, o.createErr
	}
	return o.created, nil
}

func (o *stubOrchestrator) GetActive(_ context.Context, userID string) ([]server.View, error) {
	o.gotUserID = userID
	return o.views, nil
}

func (o *stubOrchestrator) CheckStatus(_ context.Context, serverID, userID string) (server.View, error) {
	o.gotUserID, o.gotServerID = userID, serverID
	if o.statusErr != nil {
		return server.View{}, o.statusErr
	}
	return o.views[0], nil
}

func (o *stubOrchestrator) RotateIP(_ context.Context, serverID, userID string) (server.View, error) {
	o.gotUserID, o.gotServerID = userID, serverID
	if o.rotateErr != nil {
		return server.View{}, o.rotateErr
	}
	v := o.views[0]
	v.Status = server.StatusRotatingIP
	return v, nil
}

func (o *stubOrchestrator) Terminate(_ context.Context, serverID, userID string) error {
	o.gotUserID, o.gotServerID = userID, serverID
	return o.termErr
}

func (o *stubOrchestrator) ListUsedIPs(_ context.Context, role account.Role) ([]*ipledger.UsedIP, error) {
	if role != account.RoleAdmin {
		return nil, apperrors.DomainErrForbidden
	}
	return o.usedIPs, nil
}

type stubAccounts struct {
	accounts map[string]*account.Account
	password string
	created  *account.Account
}

func (a *stubAccounts) FindByCredentials(_ context.Context, username, password string) (*account.Account, error) {
	acc, ok := a.accounts[username]
	if !ok || password != a.password {
		return nil, account.ErrInvalidCredentials
	}
	return acc, nil
}

func (a *stubAccounts) GetBalance(_ context.Context, id string) (int64, error) {
	for _, acc := range a.accounts {
		if acc.ID == id {
			return acc.Points, nil
		}
	}
	return 0, account.ErrAccountNotFound
}

func (a *stubAccounts) CreateUser(_ context.Context, username, _ string, points int64, role account.Role) (*account.Account, error) {
	if role == "" {
		role = account.RoleUser
	}
	a.created = &account.Account{ID: "u-new", Username: username, Points: points, Role: role, CreatedAt: time.Now()}
	return a.created, nil
}

type stubHealth struct{ err error }

func (h stubHealth) Ping(context.Context) error { return h.err }

type stubMonitor struct{ state provider.CircuitState }

func (m *stubMonitor) Name() string                    { return "gcp" }
func (m *stubMonitor) GetState() provider.CircuitState { return m.state }
func (m *stubMonitor) GetMetrics() map[string]interface{} {
	return map[string]interface{}{"state": string(m.state), "failure_count": 3}
}

type testEnv struct {
	handler  http.Handler
	orch     *stubOrchestrator
	accounts *stubAccounts
	issuer   *auth.Issuer
	health   *stubHealth
	monitor  *stubMonitor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer, err := auth.NewIssuer(testSecret, time.Hour, "mailer-test")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orch := &stubOrchestrator{
		created: &server.Server{
			ID: "srv-1", UserID: "u-1", IP: "203.0.113.7", Region: "us-central1", Zone: "us-central1-a",
			Class: server.ClassEphemeral, Status: server.StatusStarting,
			CreatedAt: now, ExpiresAt: now.Add(2 * time.Hour), UpdatedAt: now,
		},
	}
	orch.views = []server.View{server.NewView(orch.created, server.ProviderRunning)}

	accounts := &stubAccounts{
		password: "correct-horse",
		accounts: map[string]*account.Account{
			"alice": {ID: "u-1", Username: "alice", Points: 900, Role: account.RoleUser},
			"root":  {ID: "u-admin", Username: "root", Points: 0, Role: account.RoleAdmin},
		},
	}
	health := &stubHealth{}

	srv := NewServer(ServerConfig{
		Address:     "127.0.0.1:0",
		CORSOrigins: []string{"https://app.example.com"},
		AdminKey:    testAdminKey,
		Version:     "test",
	}, orch, accounts, issuer, health, logger.Discard())
	monitor := &stubMonitor{state: provider.CircuitStateClosed}
	srv.SetProviderMonitor(monitor)

	return &testEnv{handler: srv.Handler(), orch: orch, accounts: accounts, issuer: issuer, health: health, monitor: monitor}
}

func (e *testEnv) token(t *testing.T, userID string, role account.Role) string {
	t.Helper()
	tok, err := e.issuer.Issue(userID, role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) pkgapi.Response[T] {
	t.Helper()
	var resp pkgapi.Response[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthcheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/healthcheck", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[pkgapi.HealthResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "ok", resp.Data.Database)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env.health.err = errors.New("database is locked")
	rec = env.do(t, http.MethodGet, "/api/healthcheck", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp = decode[pkgapi.HealthResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "unreachable", resp.Data.Database)
}

func TestHealthcheck_ProviderCircuit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/healthcheck", "", nil)
	resp := decode[pkgapi.HealthResponse](t, rec)
	require.NotNil(t, resp.Data.Provider)
	assert.Equal(t, "gcp", resp.Data.Provider.Name)
	assert.Equal(t, "healthy", resp.Data.Provider.HealthIndicator)
	assert.Nil(t, resp.Data.Provider.Metrics)

	env.monitor.state = provider.CircuitStateHalfOpen
	rec = env.do(t, http.MethodGet, "/api/healthcheck", "", nil)
	resp = decode[pkgapi.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "recovering", resp.Data.Provider.HealthIndicator)

	env.monitor.state = provider.CircuitStateOpen
	rec = env.do(t, http.MethodGet, "/api/healthcheck", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[pkgapi.HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Data.Status)
	assert.Equal(t, "open", resp.Data.Provider.State)
	assert.Equal(t, "unhealthy", resp.Data.Provider.HealthIndicator)
}

func TestProviderStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/admin/provider", env.token(t, "u-1", account.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/provider", env.token(t, "u-admin", account.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[pkgapi.ProviderCircuitInfo](t, rec)
	assert.Equal(t, "closed", resp.Data.State)
	assert.Equal(t, "healthy", resp.Data.HealthIndicator)
	assert.EqualValues(t, 3, resp.Data.Metrics["failure_count"])
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid credentials", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/login", "", pkgapi.LoginRequest{Username: "alice", Password: "correct-horse"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[pkgapi.LoginResponse](t, rec)
		claims, err := env.issuer.Verify(resp.Data.Token)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.UserID)
		assert.Equal(t, account.RoleUser, claims.Role)
		assert.Equal(t, "user", resp.Data.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/login", "", pkgapi.LoginRequest{Username: "alice", Password: "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decode[any](t, rec)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, resp.Error.Code)
	})

	t.Run("missing password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "alice"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[any](t, rec)
		assert.Equal(t, apperrors.ErrCodeValidation, resp.Error.Code)
		fields, ok := resp.Error.Metadata["fields"].(map[string]any)
		require.True(t, ok, "fields metadata: %v", resp.Error.Metadata)
		assert.Contains(t, fields, "password")
	})

	t.Run("not json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("username=alice"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/login", "", map[string]string{
			"username": "alice", "password": "correct-horse", "admin": "true",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic YWxpY2U6cHc="},
		{"garbage token", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user/points", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/user/points", env.token(t, "u-1", account.RoleUser), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[pkgapi.PointsResponse](t, rec)
		assert.Equal(t, int64(900), resp.Data.Points)
	})
}

func TestCreateServer(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u-1", account.RoleUser)

	rec := env.do(t, http.MethodPost, "/api/servers", tok, pkgapi.CreateServerRequest{ServerClass: "ephemeral"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[pkgapi.ServerInfo](t, rec)
	assert.Equal(t, "srv-1", resp.Data.ID)
	assert.Equal(t, "starting", resp.Data.Status)
	assert.Equal(t, "203.0.113.7", resp.Data.IP)
	assert.Equal(t, "u-1", env.orch.gotUserID)
	assert.Equal(t, server.ClassEphemeral, env.orch.gotClass)

	rec = env.do(t, http.MethodPost, "/api/servers", tok, pkgapi.CreateServerRequest{ServerClass: "huge"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name: "insufficient balance",
			err: apperrors.DomainErrInsufficientBalance.
				WithMetadata("balance", 50).WithMetadata("required", 100),
			wantStatus: http.StatusPaymentRequired,
			wantCode:   apperrors.ErrCodeInsufficientBalance,
		},
		{
			name:       "server exists",
			err:        server.NewAlreadyExistsError("srv-0"),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.ErrCodeServerExists,
		},
		{
			name:       "capacity exhausted",
			err:        apperrors.DomainErrCapacityExhausted,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.ErrCodeCapacityExhausted,
		},
		{
			name: "provisioning failed",
			err: apperrors.NewProviderError(apperrors.ErrCodeProvisioningFailed, "server provisioning failed", true,
				errors.New("googleapi: quota exceeded for project secret-project")),
			wantStatus: http.StatusBadGateway,
			wantCode:   apperrors.ErrCodeProvisioningFailed,
		},
		{
			name:       "plain error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.orch.createErr = tt.err

			rec := env.do(t, http.MethodPost, "/api/servers", env.token(t, "u-1", account.RoleUser),
				pkgapi.CreateServerRequest{ServerClass: "persistent"})
			require.Equal(t, tt.wantStatus, rec.Code)

			resp := decode[any](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			assert.NotContains(t, rec.Body.String(), "secret-project")
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestCreateServer_Metadata(t *testing.T) {
	env := newTestEnv(t)
	env.orch.createErr = server.NewAlreadyExistsError("srv-0")

	rec := env.do(t, http.MethodPost, "/api/servers", env.token(t, "u-1", account.RoleUser),
		pkgapi.CreateServerRequest{ServerClass: "ephemeral"})
	resp := decode[any](t, rec)
	assert.Equal(t, "srv-0", resp.Error.Metadata["server_id"])
}

func TestRetryAfterOnCapacity(t *testing.T) {
	env := newTestEnv(t)
	env.orch.createErr = apperrors.DomainErrCapacityExhausted

	rec := env.do(t, http.MethodPost, "/api/servers", env.token(t, "u-1", account.RoleUser),
		pkgapi.CreateServerRequest{ServerClass: "ephemeral"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	env.orch.createErr = apperrors.DomainErrIPExhausted.WithMetadata("retry_after_sec", "120")
	rec = env.do(t, http.MethodPost, "/api/servers", env.token(t, "u-1", account.RoleUser),
		pkgapi.CreateServerRequest{ServerClass: "ephemeral"})
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
}

func TestServerRoutes(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u-1", account.RoleUser)

	rec := env.do(t, http.MethodGet, "/api/servers", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[pkgapi.ServersListResponse](t, rec)
	assert.Equal(t, 1, list.Data.Count)
	assert.Equal(t, "running", list.Data.Servers[0].ProviderState)

	rec = env.do(t, http.MethodGet, "/api/servers/srv-1/status", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "srv-1", env.orch.gotServerID)

	rec = env.do(t, http.MethodPost, "/api/servers/srv-1/rotate-ip", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[pkgapi.ServerInfo](t, rec)
	assert.Equal(t, "rotating_ip", rotated.Data.Status)

	rec = env.do(t, http.MethodDelete, "/api/servers/srv-1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	term := decode[pkgapi.TerminateResponse](t, rec)
	assert.Equal(t, "srv-1", term.Data.ServerID)

	env.orch.statusErr = server.ErrServerNotFound
	rec = env.do(t, http.MethodGet, "/api/servers/other/status", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.orch.rotateErr = server.NewInvalidOperationError("ip rotation is only available for persistent servers")
	rec = env.do(t, http.MethodPost, "/api/servers/srv-1/rotate-ip", tok, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[any](t, rec)
	assert.Contains(t, resp.Error.Message, "persistent")
}

func TestUsedIPs(t *testing.T) {
	env := newTestEnv(t)
	env.orch.usedIPs = []*ipledger.UsedIP{
		{Address: "198.51.100.1", UserID: "u-1", UsageCount: 1},
		{Address: "198.51.100.2", UserID: "u-2", UsageCount: 1},
	}

	rec := env.do(t, http.MethodGet, "/api/admin/used-ips", env.token(t, "u-1", account.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/used-ips", env.token(t, "u-admin", account.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[pkgapi.UsedIPsResponse](t, rec)
	assert.Equal(t, 2, resp.Data.Count)
	assert.Equal(t, "198.51.100.2", resp.Data.IPs[1].Address)
}

func TestCreateUser_AdminKey(t *testing.T) {
	env := newTestEnv(t)
	body := pkgapi.CreateUserRequest{Username: "bob", Password: "long-enough-pw", Points: 500}

	send := func(key string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/api/admin/users", &buf)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(AdminKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, send("").Code)
	assert.Equal(t, http.StatusUnauthorized, send("wrong-key").Code)
	assert.Nil(t, env.accounts.created)

	rec := send(testAdminKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[pkgapi.UserInfo](t, rec)
	assert.Equal(t, "bob", resp.Data.Username)
	assert.Equal(t, int64(500), resp.Data.Points)
	assert.Equal(t, "user", resp.Data.Role)
	assert.NotContains(t, rec.Body.String(), "long-enough-pw")
}

func TestCreateUser_DisabledWithoutKey(t *testing.T) {
	issuer, err := auth.NewIssuer(testSecret, time.Hour, "")
	require.NoError(t, err)
	srv := NewServer(ServerConfig{}, &stubOrchestrator{}, &stubAccounts{}, issuer, nil, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AdminKeyHeader, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t)
	env.orch.panicOn = "create"

	rec := env.do(t, http.MethodPost, "/api/servers", env.token(t, "u-1", account.RoleUser),
		pkgapi.CreateServerRequest{ServerClass: "ephemeral"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[any](t, rec)
	assert.Equal(t, apperrors.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/healthcheck", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodOptions, "/api/servers", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/healthcheck", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMapErrorCodeToHTTP(t *testing.T) {
	tests := map[string]int{
		apperrors.ErrCodeInsufficientBalance: http.StatusPaymentRequired,
		apperrors.ErrCodeServerExists:        http.StatusConflict,
		apperrors.ErrCodeNotFound:            http.StatusNotFound,
		apperrors.ErrCodeInvalidOperation:    http.StatusBadRequest,
		apperrors.ErrCodeForbidden:           http.StatusForbidden,
		apperrors.ErrCodeUnauthorized:        http.StatusUnauthorized,
		apperrors.ErrCodeCapacityExhausted:   http.StatusServiceUnavailable,
		apperrors.ErrCodeIPExhausted:         http.StatusServiceUnavailable,
		apperrors.ErrCodeProviderUnavailable: http.StatusServiceUnavailable,
		apperrors.ErrCodeProvisioningFailed:  http.StatusBadGateway,
		apperrors.ErrCodeRotationFailed:      http.StatusBadGateway,
		apperrors.ErrCodeValidation:          http.StatusBadRequest,
		apperrors.ErrCodeConcurrentUpdate:    http.StatusConflict,
		apperrors.ErrCodeDatabase:            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, mapErrorCodeToHTTP(code), code)
	}
}
