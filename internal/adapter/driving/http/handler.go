// Package httphandler provides the JSON API consumed by the embedded web
// shell. Every endpoint returns JSON; navigation is expressed as redirect
// intents the shell follows, never as server-side state.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/aliuygur/instol-panel/internal/application"
	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// Handler holds the dependencies for the HTTP API handlers.
type Handler struct {
	session   *application.SessionManager
	instances *application.InstanceService
	poll      *application.PollService
	loginURL  string
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewHandler creates a Handler with the given services. loginURL is the
// provisioning backend's sign-in page; the OAuth flow itself happens there
// and lands back on /auth/callback. Server-originated messages pass through
// a strict sanitizer before they reach the shell.
func NewHandler(session *application.SessionManager, instances *application.InstanceService, poll *application.PollService, loginURL string, logger *slog.Logger) *Handler {
	return &Handler{
		session:   session,
		instances: instances,
		poll:      poll,
		loginURL:  loginURL,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// NewServeMux creates an http.ServeMux with all API routes registered and
// wrapped in logging and recovery middleware.
func NewServeMux(h *Handler, static http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /auth/login", h.AuthLogin)
	mux.HandleFunc("GET /auth/callback", h.AuthCallback)
	mux.HandleFunc("GET /api/v1/session", h.Session)
	mux.HandleFunc("POST /api/v1/logout", h.Logout)

	mux.Handle("GET /api/v1/instances", h.requireSession(h.ListInstances))
	mux.Handle("POST /api/v1/instances/refresh", h.requireSession(h.RefreshInstances))
	mux.Handle("POST /api/v1/create/subdomain", h.requireSession(h.SetSubdomain))
	mux.Handle("GET /api/v1/create", h.requireSession(h.Availability))
	mux.Handle("POST /api/v1/create", h.requireSession(h.CreateInstance))
	mux.Handle("POST /api/v1/instances/{id}/confirm", h.requireSession(h.OpenConfirmation))
	mux.Handle("PUT /api/v1/confirmation", h.requireSession(h.SetConfirmationText))
	mux.Handle("DELETE /api/v1/confirmation", h.requireSession(h.CancelConfirmation))
	mux.Handle("POST /api/v1/confirmation/execute", h.requireSession(h.ExecuteDelete))

	if static != nil {
		mux.Handle("GET /", static)
	}

	// Recovery wraps innermost so panics in the logging middleware are
	// caught too.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger, handler)
	handler = recoveryMiddleware(logger, handler)
	return handler
}

// requireSession rejects requests with no persisted credential. The check is
// a pure store read; token validity is only ever decided by the backend's
// 401.
func (h *Handler) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.session.IsAuthenticated(r.Context()) {
			writeRedirect(w, http.StatusUnauthorized, model.RouteLogin)
			return
		}
		next(w, r)
	})
}

// Health returns a liveness response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// AuthLogin hands the browser off to the provisioning backend's sign-in
// page.
func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.loginURL, http.StatusFound)
}

// AuthCallback terminates the OAuth redirect from the provisioning backend.
// The browser lands here directly, so the response is a real HTTP redirect
// rather than a JSON intent.
func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	errCode := r.URL.Query().Get("error")

	route, err := h.session.Capture(r.Context(), token, errCode)
	if err != nil {
		h.logger.Warn("auth callback rejected", "error", err)
	}
	http.Redirect(w, r, string(route), http.StatusSeeOther)
}

// Session reports whether a credential is present.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: h.session.IsAuthenticated(r.Context()),
	})
}

// Logout ends the session and tells the shell where to go next.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	route := h.session.Invalidate(r.Context())
	writeRedirect(w, http.StatusOK, route)
}

// ListInstances re-fetches the listing from the backend and returns it.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	route, err := h.instances.Refresh(r.Context())
	if err != nil {
		h.writeServiceError(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(h.instances.Instances()))
}

// RefreshInstances forces a listing refresh through the poll service, which
// retries transient failures with backoff, and returns the fresh listing.
func (h *Handler) RefreshInstances(w http.ResponseWriter, r *http.Request) {
	if err := h.poll.Refresh(r.Context()); err != nil {
		h.writeServiceError(w, model.RouteNone, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(h.instances.Instances()))
}

// SetSubdomain feeds the typed candidate to the debounced availability
// prober and returns the immediate (pre-probe) state.
func (h *Handler) SetSubdomain(w http.ResponseWriter, r *http.Request) {
	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.instances.SetCandidate(r.Context(), req.Subdomain)
	writeJSON(w, http.StatusOK, h.availabilityResponse())
}

// Availability returns the current probing state. The shell polls this while
// a check is pending.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.availabilityResponse())
}

// CreateInstance submits a creation request for the current candidate.
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	route, err := h.instances.Create(r.Context(), req.Region)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrNoSubdomain),
			errors.Is(err, application.ErrSubdomainUnavailable):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, application.ErrCreateInFlight):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeServiceError(w, route, err)
		}
		return
	}
	writeRedirect(w, http.StatusOK, route)
}

// OpenConfirmation opens the type-to-confirm delete dialog for an instance.
func (h *Handler) OpenConfirmation(w http.ResponseWriter, r *http.Request) {
	state, err := h.instances.OpenDeleteConfirmation(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConfirmationResponse(state))
}

// SetConfirmationText records the operator's typed confirmation text and
// returns the armed state.
func (h *Handler) SetConfirmationText(w http.ResponseWriter, r *http.Request) {
	var req confirmationTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.instances.SetConfirmationText(req.Text)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConfirmationResponse(state))
}

// CancelConfirmation closes the delete confirmation without deleting.
func (h *Handler) CancelConfirmation(w http.ResponseWriter, r *http.Request) {
	h.instances.CancelDeleteConfirmation()
	writeJSON(w, http.StatusOK, confirmationResponse{})
}

// ExecuteDelete performs the confirmed deletion and returns the refreshed
// listing.
func (h *Handler) ExecuteDelete(w http.ResponseWriter, r *http.Request) {
	route, err := h.instances.ExecuteDelete(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, application.ErrNoConfirmation):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, application.ErrConfirmationMismatch):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.writeServiceError(w, route, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(h.instances.Instances()))
}

// availabilityResponse snapshots the prober state with the server-originated
// message sanitized.
func (h *Handler) availabilityResponse() availabilityResponse {
	check := h.instances.Availability()
	return availabilityResponse{
		Subdomain: check.Candidate,
		State:     string(check.State),
		Message:   h.sanitizer.Sanitize(check.Message),
		Checking:  check.Checking,
	}
}

// writeServiceError maps backend failures to HTTP responses. A rejected
// credential becomes a 401 with the login route the session manager already
// chose; a validation failure carries the server's sanitized message; any
// other failure is a generic retryable error.
func (h *Handler) writeServiceError(w http.ResponseWriter, route model.Route, err error) {
	if errors.Is(err, driven.ErrUnauthorized) {
		if route == model.RouteNone {
			route = model.RouteLogin
		}
		writeRedirect(w, http.StatusUnauthorized, route)
		return
	}

	var verr *driven.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, h.sanitizer.Sanitize(verr.Message))
		return
	}

	h.logger.Error("provisioning request failed", "error", err)
	writeError(w, http.StatusBadGateway, "provisioning service unavailable, please try again")
}
