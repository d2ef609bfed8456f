// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// ErrMissingCredential is returned by Capture when the OAuth redirect
// carried neither a token nor an error code.
var ErrMissingCredential = errors.New("callback carried neither token nor error")

// Compile-time interface satisfaction check.
var _ driven.TokenSource = (*SessionManager)(nil)

// SessionManager is the single source of truth for the session credential:
// acquisition from the OAuth redirect, persistence, attachment to outbound
// requests (via the TokenSource interface), and invalidation. All credential
// access anywhere in the panel goes through this type; nothing else reads
// the store.
type SessionManager struct {
	mu     sync.Mutex
	store  driven.CredentialStore
	api    driven.ProvisioningClient
	logger *slog.Logger
}

// NewSessionManager creates a SessionManager backed by the given store.
// The provisioning API is attached later via BindAPI: the API client needs
// the manager as its TokenSource, so the two cannot be constructed in one
// step.
func NewSessionManager(store driven.CredentialStore, logger *slog.Logger) *SessionManager {
	return &SessionManager{store: store, logger: logger}
}

// BindAPI attaches the provisioning client used for the best-effort logout
// call. Until bound, Invalidate skips the network step.
func (m *SessionManager) BindAPI(api driven.ProvisioningClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.api = api
}

// Capture processes an incoming OAuth redirect. An error code routes back to
// login carrying the reason; a token is persisted and routes to the
// dashboard; neither is ErrMissingCredential with a generic login route.
func (m *SessionManager) Capture(ctx context.Context, token, errCode string) (model.Route, error) {
	if errCode != "" {
		m.logger.Warn("oauth callback returned error", "reason", errCode)
		return model.LoginWithError(errCode), nil
	}
	if token == "" {
		return model.LoginWithError("missing_token"), ErrMissingCredential
	}

	if err := m.store.Set(ctx, driven.CredentialSlotSession, token); err != nil {
		// Persistence failure means the session cannot survive; fail safe
		// to logged-out rather than pretending to be authenticated.
		m.logger.Error("persist credential failed", "error", err)
		return model.LoginWithError("session_storage_failed"), nil
	}

	return model.RouteDashboard, nil
}

// Current returns the persisted credential, or "" when absent. Pure read
// with no network side effect; safe to call from route guards before any
// request goes out. Store failures are reported as absent.
func (m *SessionManager) Current(ctx context.Context) string {
	token, err := m.store.Get(ctx, driven.CredentialSlotSession)
	if err != nil {
		m.logger.Warn("read credential failed, treating as absent", "error", err)
		return ""
	}
	return token
}

// IsAuthenticated reports whether a credential is currently present. It
// performs no validity check: the backend's 401 is the only authority on
// whether the token is still good.
func (m *SessionManager) IsAuthenticated(ctx context.Context) bool {
	return m.Current(ctx) != ""
}

// Token implements driven.TokenSource. The outbound client calls this on
// every request; an empty token means the request goes out without an
// Authorization header.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	return m.Current(ctx), nil
}

// Invalidate ends the session: a fire-and-forget logout call carrying the
// still-current credential (failures swallowed), then an unconditional
// clear of the persisted credential, then a login route. Idempotent: with
// no credential the network step is skipped but state is still cleared.
func (m *SessionManager) Invalidate(ctx context.Context) model.Route {
	m.mu.Lock()
	api := m.api
	m.mu.Unlock()

	if api != nil && m.Current(ctx) != "" {
		if err := api.Logout(ctx); err != nil {
			m.logger.Warn("server logout failed, clearing session anyway", "error", err)
		}
	}

	m.clear(ctx)
	return model.RouteLogin
}

// HandleUnauthorized is the shared reaction to a 401/403 from any protected
// call: clear the known-bad credential and route to login. No logout
// round-trip; the backend has already rejected the token.
func (m *SessionManager) HandleUnauthorized(ctx context.Context) model.Route {
	m.logger.Info("credential rejected by backend, clearing session")
	m.clear(ctx)
	return model.RouteLogin
}

func (m *SessionManager) clear(ctx context.Context) {
	if err := m.store.Delete(ctx, driven.CredentialSlotSession); err != nil {
		// The read path treats store errors as absent, so a failed delete
		// still leaves the client logged out.
		m.logger.Error("clear credential failed", "error", err)
	}
}
