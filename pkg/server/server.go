// Package server exposes voice and password sign-in over JSON/HTTP.
//
// Routes:
//
//	POST   /voice/enroll
//	POST   /voice/verify
//	GET    /voice/profiles/{user_id}
//	DELETE /voice/profiles/{user_id}
//	POST   /voice/profiles/{user_id}/refine
//	POST   /auth/register
//	POST   /auth/login
//	GET    /auth/session
//	GET    /healthz
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/emora/voiceauth/pkg/accounts"
	"github.com/emora/voiceauth/pkg/voiceauth"
)

// DefaultMaxBodyBytes bounds request bodies. It leaves room for a 16 MiB
// recording after base64 expansion.
const DefaultMaxBodyBytes = 22 << 20

// Config configures a Server.
type Config struct {
	// Voice is required.
	Voice *voiceauth.Service
	// Accounts enables the /auth routes and password registration during
	// enrollment.
	Accounts *accounts.Store
	// Tokens, when set, issues a session token on successful sign-in.
	Tokens *accounts.Tokens
	// Limiter throttles failed sign-in attempts. Nil means the default
	// limits.
	Limiter *accounts.AttemptLimiter

	MaxBodyBytes int64
	Logger       *slog.Logger
	Now          func() time.Time
}

// Server is the HTTP front end of the voice authentication service.
type Server struct {
	voice    *voiceauth.Service
	accounts *accounts.Store
	tokens   *accounts.Tokens
	limiter  *accounts.AttemptLimiter
	maxBody  int64
	log      *slog.Logger
	now      func() time.Time

	handler http.Handler
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Voice == nil {
		return nil, errors.New("server: voice service is required")
	}
	s := &Server{
		voice:    cfg.Voice,
		accounts: cfg.Accounts,
		tokens:   cfg.Tokens,
		limiter:  cfg.Limiter,
		maxBody:  cfg.MaxBodyBytes,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if s.limiter == nil {
		s.limiter = accounts.NewAttemptLimiter(0, 0)
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /voice/enroll", s.handleEnroll)
	mux.HandleFunc("POST /voice/verify", s.handleVerify)
	mux.HandleFunc("GET /voice/profiles/{user_id}", s.handleProfileInfo)
	mux.HandleFunc("DELETE /voice/profiles/{user_id}", s.handleDeleteProfile)
	mux.HandleFunc("POST /voice/profiles/{user_id}/refine", s.handleRefine)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/session", s.handleSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.handler = s.withRequestLog(s.withRecover(mux))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("voice auth server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.log.Info("voice auth server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
