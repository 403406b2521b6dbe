// Package gateway is the chatpool HTTP server: the admin account surface,
// the chat entrypoint, and the operator event stream.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/chatpool/internal/config"
	"github.com/soyeahso/chatpool/internal/domain"
	"github.com/soyeahso/chatpool/internal/logging"
	"github.com/soyeahso/chatpool/internal/pool"
	"github.com/soyeahso/chatpool/internal/routing"
	"github.com/soyeahso/chatpool/internal/store"
)

// Server is the chatpool gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	mgr      *pool.Manager
	router   *routing.Router
	accounts *store.AccountStore
	upstream Upstream

	// adminMu serializes account mutations so concurrent admin calls
	// cannot interleave their read-modify-install cycles.
	adminMu sync.Mutex

	httpServer *http.Server
	upgrader   websocket.Upgrader
	httpClient *http.Client
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithAccountStore sets the persistent account mirror.
func WithAccountStore(as *store.AccountStore) ServerOption {
	return func(s *Server) { s.accounts = as }
}

// WithUpstream sets the upstream chat client.
func WithUpstream(u Upstream) ServerOption {
	return func(s *Server) { s.upstream = u }
}

// WithHTTPClient overrides the client used for attachment downloads.
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *Server) { s.httpClient = c }
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, mgr *pool.Manager, router *routing.Router, opts ...ServerOption) *Server {
	allowedOrigins := cfg.Gateway.AllowedOrigins
	s := &Server{
		cfg:        cfg,
		log:        log.Sub("gateway"),
		mgr:        mgr,
		router:     router,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. No Origin header means same-origin or a non-browser client.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// routes builds the full handler including middleware. Split out so tests
// can drive it through httptest without a listener.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("GET /external/accounts/count", s.handleAccountsCount)
	mux.HandleFunc("POST /external/accounts/upload", s.handleAccountsUpload)
	mux.HandleFunc("GET /external/accounts/expired", s.handleAccountsExpired)
	mux.HandleFunc("POST /external/accounts/refresh-token", s.handleAccountsRefreshToken)
	mux.HandleFunc("POST /external/accounts/disable", s.handleAccountsDisable)

	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)

	mux.HandleFunc("/", handleNotFound)

	return withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // chat calls wait on the upstream
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.Gateway.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.Gateway.TLS.CertPath, s.cfg.Gateway.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		ln = tls.NewListener(ln, tlsCfg)
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Gateway.Bind != "loopback" {
		s.log.Warn().Msg("TLS is not enabled, admin keys will be transmitted in cleartext")
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Int("accounts", s.mgr.Current().Len()).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// installList builds a pool from the list, swaps it in, and mirrors it to
// the store. Callers hold adminMu. Validation errors leave the live pool
// untouched.
func (s *Server) installList(list []domain.AccountConfig) (*pool.Pool, error) {
	p, err := pool.Reload(list, s.mgr.Current())
	if err != nil {
		return nil, err
	}
	s.mgr.Install(p)

	if s.accounts != nil {
		if err := s.accounts.Save(list); err != nil {
			// Live pool already swapped; the mirror catches up on the
			// next successful mutation.
			s.log.Error().Err(err).Msg("account mirror save failed")
		}
	}
	return p, nil
}

// --- Shared response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HealthResponse is returned by the public health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
