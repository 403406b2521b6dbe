package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
	"github.com/soyeahso/chatpool/internal/pool"
	"github.com/soyeahso/chatpool/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent", "json")
}

func testAccount(id string) domain.AccountConfig {
	return domain.AccountConfig{
		ID:         id,
		SecureCSes: "ses-" + id,
		CSesIdx:    "idx-" + id,
		ConfigID:   "cfg-" + id,
	}
}

// testServer builds a gateway over an in-memory pool.
func testServer(t *testing.T, accounts []domain.AccountConfig, opts ...ServerOption) (*Server, *pool.Manager, *routing.Router) {
	t.Helper()

	log := testLogger()
	p, err := pool.New(accounts, domain.DefaultHealthPolicy(), log.Sub("pool"))
	require.NoError(t, err)

	mgr := pool.NewManager(p, log)
	router := routing.NewRouter(0, log)

	cfg := config.Defaults()
	cfg.Gateway.AdminKey = testAdminKey

	return New(cfg, log, mgr, router, opts...), mgr, router
}

func TestResolveBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.GatewayConfig
		want string
	}{
		{"loopback", config.GatewayConfig{Bind: "loopback", Port: 18790}, "127.0.0.1:18790"},
		{"lan", config.GatewayConfig{Bind: "lan", Port: 18790}, "0.0.0.0:18790"},
		{"custom with host", config.GatewayConfig{Bind: "custom", CustomBindHost: "10.0.0.5", Port: 9000}, "10.0.0.5:9000"},
		{"custom without host", config.GatewayConfig{Bind: "custom", Port: 9000}, "0.0.0.0:9000"},
		{"unknown defaults to loopback", config.GatewayConfig{Bind: "", Port: 1234}, "127.0.0.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveBindAddr(tt.cfg))
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// No Authorization header on purpose
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/nope")
}

func TestWebSocketRejectsMissingKey(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWSAuthorized(t *testing.T) {
	s, _, _ := testServer(t, []domain.AccountConfig{testAccount("a1")})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, s.wsAuthorized(req))

	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	assert.True(t, s.wsAuthorized(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?key="+testAdminKey, nil)
	assert.True(t, s.wsAuthorized(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?key=wrong", nil)
	assert.False(t, s.wsAuthorized(req))
}
