// Package http serves the authentication pipeline over HTTP: request
// decoding, routing to the orchestrator, and response serialization.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockpass/omega/pkg/api"
	"github.com/blockpass/omega/pkg/debug"
	"github.com/blockpass/omega/pkg/observability"
	"github.com/blockpass/omega/pkg/orchestrator"
	"github.com/blockpass/omega/pkg/transport"
)

// defaultLogsLimit caps GET /logs results when no limit is given.
const defaultLogsLimit = 50

// Adapter serves the authentication API over HTTP. It routes requests to
// the orchestrator and serializes responses.
type Adapter struct {
	orch   *orchestrator.Orchestrator
	mux    *http.ServeMux
	config Config
	logger *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize    int64
	MetricsEnabled bool
	MetricsPath    string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:    1 << 20, // 1 MB
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// NewAdapter creates an HTTP adapter for the given orchestrator.
func NewAdapter(orch *orchestrator.Orchestrator, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		orch:   orch,
		mux:    http.NewServeMux(),
		config: cfg,
		logger: logger,
	}

	a.mux.HandleFunc("POST /register", a.handleRegister)
	a.mux.HandleFunc("POST /login", a.handleLogin)
	a.mux.HandleFunc("GET /verify", a.handleVerify)
	a.mux.HandleFunc("POST /logout", a.handleLogout)
	a.mux.HandleFunc("GET /logs", a.handleLogs)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		a.mux.Handle("GET "+path, promhttp.Handler())
	}

	return a
}

// Handler returns the http.Handler for this adapter with the default
// middleware chain applied: recovery outermost, then request ID, request
// logging, and metrics.
func (a *Adapter) Handler() http.Handler {
	mw := transport.Chain(
		transport.Recovery(a.logger),
		transport.RequestID(),
		transport.Logging(a.logger),
	)
	return mw(observability.MetricsMiddleware(a.mux))
}

// handleRegister handles POST /register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	resp, err := a.orch.Register(r.Context(), req, clientOf(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, resp)
}

// handleLogin handles POST /login.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	resp, err := a.orch.Login(r.Context(), req, clientOf(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleVerify handles GET /verify. Invalidity is reported in the body,
// not the status code; only a missing token is a request error.
func (a *Adapter) handleVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		transport.WriteAPIError(w, api.NewUnauthorizedError("missing bearer token"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, a.orch.Verify(r.Context(), token))
}

// handleLogout handles POST /logout.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		transport.WriteAPIError(w, api.NewUnauthorizedError("missing bearer token"))
		return
	}

	resp, err := a.orch.Logout(r.Context(), token)
	if err != nil {
		a.writeError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleLogs handles GET /logs?apiKey=&limit=.
func (a *Adapter) handleLogs(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		transport.WriteAPIError(w, api.NewUnauthorizedError("missing bearer token"))
		return
	}

	apiKey := r.URL.Query().Get("apiKey")
	if apiKey == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("apiKey", "apiKey query parameter is required"))
		return
	}

	limit := defaultLogsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			transport.WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	resp, err := a.orch.UserLogs(r.Context(), token, apiKey, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleHealthz handles GET /healthz.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeJSON enforces content type and body size and decodes the request
// body. Returns false after writing an error response.
func (a *Adapter) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}

	if debug.TraceIsEnabled("transport") {
		raw, err := json.Marshal(v)
		if err == nil {
			debug.Raw("transport", fmt.Sprintf("%s %s body: %s", r.Method, r.URL.Path, raw))
		}
	}
	return true
}

// writeError serializes an orchestrator error.
func (a *Adapter) writeError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		debug.Log("transport", "request rejected", "type", apiErr.Type, "message", apiErr.Message)
		transport.WriteAPIError(w, apiErr)
		return
	}
	transport.WriteAPIError(w, api.NewServerError(err.Error()))
}

// clientOf extracts the device context from a request.
func clientOf(r *http.Request) orchestrator.Client {
	return orchestrator.Client{
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
	}
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}
