// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/fmind/slides-translator-agent/auth"
	"github.com/fmind/slides-translator-agent/orchestrator/agent"
	"github.com/fmind/slides-translator-agent/orchestrator/history"
	"github.com/fmind/slides-translator-agent/orchestrator/translator"
	"github.com/fmind/slides-translator-agent/shared/logger"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "slides-translator"

	// AnonymousUser is used when a request names no user.
	AnonymousUser = "anonymous"

	maxBodyBytes = 1 << 20
	maxListLimit = 100
)

// Version is set at build time.
var Version = "dev"

// Conversation runs agent turns on sessions.
type Conversation interface {
	Run(ctx context.Context, s *agent.Session, message string) (*agent.Turn, error)
	Resume(ctx context.Context, s *agent.Session, authCode string) (*agent.Turn, error)
}

// OAuthCompleter finishes the authorization code flow and forgets
// cached credentials.
type OAuthCompleter interface {
	Complete(ctx context.Context, state, code string) (*auth.StateClaims, error)
	Revoke(ctx context.Context, userID string) error
}

// UserVerifier resolves the user named by a bearer token.
type UserVerifier interface {
	Verify(token string) (string, error)
}

type userKey struct{}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server holds the HTTP handlers of the service.
type Server struct {
	agent    Conversation
	sessions agent.SessionStore
	tool     agent.ToolRunner
	oauth    OAuthCompleter
	history  history.Repository
	checks   map[string]HealthCheck
	users    UserVerifier
	origins  []string
	log      *logger.Logger
}

// ServerDeps are the collaborators of a Server.
type ServerDeps struct {
	Agent          Conversation
	Sessions       agent.SessionStore
	Tool           agent.ToolRunner
	OAuth          OAuthCompleter
	History        history.Repository
	HealthChecks   map[string]HealthCheck
	AllowedOrigins []string
	Logger         *logger.Logger

	// Users authenticates API callers. When nil the X-User-ID header names
	// the caller and the service must run behind an authenticating proxy.
	Users UserVerifier
}

// NewServer creates a Server.
func NewServer(deps ServerDeps) *Server {
	if deps.Sessions == nil {
		deps.Sessions = agent.NewMemorySessionStore()
	}
	if deps.History == nil {
		deps.History = history.NewMemoryRepository()
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("orchestrator")
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}
	return &Server{
		agent:    deps.Agent,
		sessions: deps.Sessions,
		tool:     deps.Tool,
		oauth:    deps.OAuth,
		history:  deps.History,
		checks:   deps.HealthChecks,
		users:    deps.Users,
		origins:  deps.AllowedOrigins,
		log:      deps.Logger,
	}
}

// Router returns the HTTP handler with every route, CORS and request metrics.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/messages", s.handleMessage).Methods("POST")
	api.HandleFunc("/sessions/{id}/resume", s.handleResume).Methods("POST")

	api.HandleFunc("/translate", s.handleTranslate).Methods("POST")
	api.HandleFunc("/translations", s.handleListTranslations).Methods("GET")
	api.HandleFunc("/translations/{id}", s.handleGetTranslation).Methods("GET")

	r.HandleFunc("/oauth/callback", s.handleOAuthCallback).Methods("GET")
	r.Handle("/oauth/token", s.authenticate(http.HandlerFunc(s.handleRevokeToken))).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records its Prometheus metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := float64(time.Since(start).Milliseconds())
		promRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		promRequestDuration.WithLabelValues(route).Observe(elapsed)
		if route != "/health" && route != "/prometheus" {
			s.log.InfoWithDuration(s.userID(r), requestID, "HTTP request", elapsed, map[string]interface{}{
				"method": r.Method,
				"route":  route,
				"status": rec.status,
			})
		}
	})
}

// authenticate resolves the caller from the bearer token when a verifier
// is configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.users == nil {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		user, err := s.users.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if err != nil {
			writeJSONError(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

// userID returns the authenticated caller, or the X-User-ID header when no
// verifier is configured.
func (s *Server) userID(r *http.Request) string {
	if user, ok := r.Context().Value(userKey{}).(string); ok {
		return user
	}
	if s.users != nil {
		return AnonymousUser
	}
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return AnonymousUser
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	status := "healthy"
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}
	writeJSONResponse(w, map[string]interface{}{
		"status":     status,
		"service":    ServiceName,
		"version":    Version,
		"timestamp":  time.Now().UTC(),
		"components": components,
	}, code)
}

// session loads the session named in the route and checks it belongs to the caller.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*agent.Session, bool) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil || sess.UserID != s.userID(r) {
		writeJSONError(w, agent.ErrSessionNotFound.Error(), http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create(s.userID(r))
	s.log.Info(sess.UserID, sess.ID, "Session created", nil)
	writeJSONResponse(w, sess.Info(), http.StatusCreated)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, sess.Info(), http.StatusOK)
}

type messageRequest struct {
	Message string `json:"message"`
}

type resumeRequest struct {
	AuthCode string `json:"auth_code"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	*agent.Turn
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeJSONError(w, "agent is not configured", http.StatusServiceUnavailable)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	turn, err := s.agent.Run(r.Context(), sess, req.Message)
	if err != nil {
		s.writeAgentError(w, sess, err)
		return
	}
	writeJSONResponse(w, turnResponse{SessionID: sess.ID, Turn: turn}, http.StatusOK)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeJSONError(w, "agent is not configured", http.StatusServiceUnavailable)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req resumeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	turn, err := s.agent.Resume(r.Context(), sess, req.AuthCode)
	if err != nil {
		s.writeAgentError(w, sess, err)
		return
	}
	writeJSONResponse(w, turnResponse{SessionID: sess.ID, Turn: turn}, http.StatusOK)
}

func (s *Server) writeAgentError(w http.ResponseWriter, sess *agent.Session, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, agent.ErrNothingToResume):
		writeJSONError(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error(sess.UserID, sess.ID, "Agent turn failed", map[string]interface{}{"error": err.Error()})
		writeJSONError(w, "agent turn failed", http.StatusBadGateway)
	}
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.tool == nil {
		writeJSONError(w, "translation tool is not configured", http.StatusServiceUnavailable)
		return
	}
	var req translator.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tc := translator.ToolContext{
		UserID:       s.userID(r),
		SessionID:    r.Header.Get("X-Session-ID"),
		InvocationID: w.Header().Get("X-Request-ID"),
	}
	resp, err := s.tool.TranslatePresentation(r.Context(), tc, req)
	if err != nil {
		if translator.FailedStep(err) == translator.StepValidate {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if resp.Pending {
		writeJSONResponse(w, resp, http.StatusUnauthorized)
		return
	}
	writeJSONResponse(w, resp, http.StatusOK)
}

func (s *Server) handleListTranslations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > maxListLimit {
		limit = maxListLimit
	}
	runs, err := s.history.ListByUser(r.Context(), s.userID(r), limit)
	if err != nil {
		s.log.Error(s.userID(r), "", "Failed to list translations", map[string]interface{}{"error": err.Error()})
		writeJSONError(w, "failed to list translations", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, map[string]interface{}{"translations": runs, "count": len(runs)}, http.StatusOK)
}

func (s *Server) handleGetTranslation(w http.ResponseWriter, r *http.Request) {
	run, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) || (err == nil && run.UserID != s.userID(r)) {
		writeJSONError(w, history.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to get translation", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, run, http.StatusOK)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeJSONError(w, "authorization denied: "+e, http.StatusBadRequest)
		return
	}
	if s.oauth == nil {
		writeJSONError(w, "oauth is not configured", http.StatusServiceUnavailable)
		return
	}
	claims, err := s.oauth.Complete(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrInvalidState) {
			status = http.StatusUnauthorized
		} else if q.Get("code") == "" {
			status = http.StatusBadRequest
		}
		writeJSONError(w, err.Error(), status)
		return
	}
	writeJSONResponse(w, map[string]interface{}{
		"status":     "authenticated",
		"user_id":    claims.UserID,
		"session_id": claims.SessionID,
		"message":    "Authentication completed. You can return to the conversation.",
	}, http.StatusOK)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeJSONError(w, "oauth is not configured", http.StatusServiceUnavailable)
		return
	}
	user := s.userID(r)
	if err := s.oauth.Revoke(r.Context(), user); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info(user, w.Header().Get("X-Request-ID"), "Cached credentials revoked", nil)
	writeJSONResponse(w, map[string]interface{}{
		"status":  "revoked",
		"user_id": user,
	}, http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}
