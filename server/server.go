// Package server provides the HTTP plumbing shared by all demo servers: an
// Application creates one AgentSession per conversation, and the server
// routes every inbound NLIP message through the PII interceptor around that
// session's Execute. Sessions are resolved by the correlator token carried in
// the message envelope; a fresh correlator is minted when absent.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/nlip-soln/nlipmesh/interceptor"
	"github.com/nlip-soln/nlipmesh/logging"
	"github.com/nlip-soln/nlipmesh/nlip"
	"github.com/nlip-soln/nlipmesh/session"
)

// Application is implemented by each demo server. Startup and Shutdown frame
// the process lifecycle; CreateSession is called once per new correlator.
type Application interface {
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	CreateSession(ctx context.Context) (AgentSession, error)
}

// AgentSession handles the requests of one conversation. Execute receives
// masked text when PII protection is enabled; it never sees the raw values.
type AgentSession interface {
	Start(ctx context.Context) error
	Execute(ctx context.Context, text string) (string, error)
	Stop(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	Logger logging.Logger
	// IdleTimeout is how long an untouched conversation survives before the
	// purge loop discards its session and stops its agent.
	IdleTimeout time.Duration
	// SentryDSN enables error reporting for handler failures when non-empty.
	// PII detection degradation is never reported here; it stays invisible
	// to end users and to error tracking.
	SentryDSN string
	// MaxBodyBytes bounds the request body size.
	MaxBodyBytes int64
}

// Server hosts one Application behind POST /nlip/.
type Server struct {
	app      Application
	icept    *interceptor.Interceptor
	store    *session.InMemoryStore
	logger   logging.Logger
	idle     time.Duration
	maxBody  int64
	sentryOn bool

	mu     sync.Mutex
	agents map[string]AgentSession
}

// New creates a Server wiring the interceptor around the application.
func New(app Application, icept *interceptor.Interceptor, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		IdleTimeout:  time.Hour,
		MaxBodyBytes: 1 << 20,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	sentryOn := false
	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: opts.SentryDSN}); err != nil {
			return nil, fmt.Errorf("init sentry: %w", err)
		}
		sentryOn = true
	}

	return &Server{
		app:      app,
		icept:    icept,
		store:    session.NewInMemoryStore(),
		logger:   logging.OrNoOp(opts.Logger),
		idle:     opts.IdleTimeout,
		maxBody:  opts.MaxBodyBytes,
		sentryOn: sentryOn,
		agents:   make(map[string]AgentSession),
	}, nil
}

// Handler returns the HTTP handler serving the NLIP endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /nlip/", s.handleMessage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody))
	if err != nil {
		http.Error(w, "read request", http.StatusBadRequest)
		return
	}
	msg, err := nlip.Decode(body)
	if err != nil {
		http.Error(w, "invalid nlip message", http.StatusBadRequest)
		return
	}

	correlator, ok := msg.Correlator()
	if !ok {
		correlator = uuid.NewString()
	}
	logger := logging.WithSession(s.logger, correlator)

	agent, err := s.agentFor(r.Context(), correlator)
	if err != nil {
		s.reportError(err)
		logger.Error("session start failed", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	sess := s.store.Get(correlator)
	reply, err := s.icept.Intercept(r.Context(), sess, msg.ExtractText(), agent.Execute)
	if err != nil {
		s.reportError(err)
		logger.Error("request failed", "error", err)
		http.Error(w, "request failed", http.StatusInternalServerError)
		return
	}

	out, err := nlip.NewText(reply).WithCorrelator(correlator).Encode()
	if err != nil {
		s.reportError(err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

// agentFor returns the conversation's agent session, creating and starting
// one on first use.
func (s *Server) agentFor(ctx context.Context, correlator string) (AgentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent, ok := s.agents[correlator]; ok {
		return agent, nil
	}
	agent, err := s.app.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := agent.Start(ctx); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.agents[correlator] = agent
	return agent, nil
}

func (s *Server) reportError(err error) {
	if s.sentryOn {
		sentry.CaptureException(err)
	}
}

// purgeIdle discards sessions untouched for longer than the idle timeout and
// stops their agents.
func (s *Server) purgeIdle(ctx context.Context) {
	cutoff := time.Now().Add(-s.idle)

	s.mu.Lock()
	var stale []string
	for correlator := range s.agents {
		// Peek, not Get: resolving through Get would refresh the idle
		// timestamp and keep every session alive forever.
		sess, ok := s.store.Peek(correlator)
		if !ok || sess.LastTouched().Before(cutoff) {
			stale = append(stale, correlator)
		}
	}
	stopped := make([]AgentSession, 0, len(stale))
	for _, correlator := range stale {
		stopped = append(stopped, s.agents[correlator])
		delete(s.agents, correlator)
		s.store.Delete(correlator)
	}
	s.mu.Unlock()

	for _, agent := range stopped {
		if err := agent.Stop(ctx); err != nil {
			s.logger.Warn("session stop failed during purge", "error", err)
		}
	}
	if len(stopped) > 0 {
		s.logger.Info("purged idle sessions", "count", len(stopped))
	}
}

// Run starts the application, serves the NLIP endpoint on addr and blocks
// until ctx is canceled, then shuts everything down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.app.Startup(ctx); err != nil {
		return fmt.Errorf("application startup: %w", err)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.purgeIdle(ctx)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("nlip server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown failed", "error", err)
	}
	if s.sentryOn {
		sentry.Flush(2 * time.Second)
	}
	return s.app.Shutdown(shutdownCtx)
}
