// Package adminapi is the minimal HTTP admin surface: JWT-bearer-authenticated
// endpoints for listing/approving/denying pending approvals and managing
// scheduled tasks, plus a websocket event stream for a live dashboard. This
// is the concrete realization of the spec's "Approval surface" and
// "Scheduler callback contract" binding points, which the core itself
// leaves unprescribed.
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/auth"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/scheduler"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ApprovalGate is the subset of *agent.ApprovalGate the admin surface needs.
type ApprovalGate interface {
	ListPending() []*models.PendingApproval
	Get(id string) *models.PendingApproval
	Approve(id string) bool
	Deny(id string) bool
}

// TaskScheduler is the subset of *scheduler.Scheduler the admin surface needs.
type TaskScheduler interface {
	List() []*models.ScheduledTask
	Get(id string) (*models.ScheduledTask, bool)
	Add(t *models.ScheduledTask) (*models.ScheduledTask, error)
	Remove(id string) error
}

var (
	_ ApprovalGate  = (*agent.ApprovalGate)(nil)
	_ TaskScheduler = (*scheduler.Scheduler)(nil)
)

// Config wires the admin surface's dependencies.
type Config struct {
	Host      string
	Port      int
	Approvals ApprovalGate
	Tasks     TaskScheduler
	Auth      *auth.JWTService
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Events    *EventHub
}

// Server is the admin HTTP surface.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	events   *EventHub
	server   *http.Server
	listener net.Listener
}

// NewServer builds a Server and registers its routes. Call Start to begin
// serving.
func NewServer(cfg Config) *Server {
	if cfg.Events == nil {
		cfg.Events = NewEventHub()
	}
	s := &Server{cfg: cfg, mux: http.NewServeMux(), events: cfg.Events}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/healthz", s.handleHealthz)

	s.mux.Handle("/approvals", s.instrumented(s.authenticated(http.HandlerFunc(s.handleListApprovals))))
	s.mux.Handle("/approvals/", s.instrumented(s.authenticated(http.HandlerFunc(s.handleApprovalAction))))
	s.mux.Handle("/tasks", s.instrumented(s.authenticated(http.HandlerFunc(s.handleTasksCollection))))
	s.mux.Handle("/tasks/", s.instrumented(s.authenticated(http.HandlerFunc(s.handleTaskItem))))
	s.mux.Handle("/events", s.instrumented(s.authenticated(http.HandlerFunc(s.handleEvents))))
}

// statusRecorder captures the status code a handler wrote, defaulting to 200
// since http.ResponseWriter never reports it if WriteHeader is never called.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrumented wraps next with the metrics/tracing pair TraceHTTPRequest and
// RecordHTTPRequest, so every admin surface route produces one span and one
// latency observation. Both are no-ops if Metrics/Tracer are unset.
func (s *Server) instrumented(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var span trace.Span
		if s.cfg.Tracer != nil {
			ctx, span = s.cfg.Tracer.TraceHTTPRequest(ctx, r.Method, r.URL.Path)
			r = r.WithContext(ctx)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		if span != nil {
			span.End()
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status), duration.Seconds())
		}
	})
}

// Start begins serving on Host:Port in a background goroutine.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("adminapi: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Error(context.Background(), "admin http server error", "error", err)
			}
		}
	}()
	if s.cfg.Logger != nil {
		s.cfg.Logger.Info(context.Background(), "admin http server listening", "addr", addr)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux directly, for tests that want httptest.NewServer
// without a real listener.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticated requires a valid "Bearer <jwt>" Authorization header. If no
// JWTService is configured, auth is disabled and every request passes
// through — an explicit, documented dev-mode escape hatch, not a fallback
// to ambient trust.
func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		user, err := s.cfg.Auth.Validate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), userContextKey{}, user))
		next.ServeHTTP(w, r)
	})
}

type userContextKey struct{}

func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey{}).(*models.User)
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
