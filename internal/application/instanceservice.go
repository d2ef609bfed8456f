package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aliuygur/instol-panel/internal/domain/model"
	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

var (
	// ErrNoSubdomain rejects a creation attempt with an empty candidate.
	ErrNoSubdomain = errors.New("no subdomain entered")

	// ErrSubdomainUnavailable rejects a creation attempt while the candidate
	// is known-bad. Unknown availability is allowed through; the server is
	// the final arbiter.
	ErrSubdomainUnavailable = errors.New("subdomain is not available")

	// ErrCreateInFlight rejects a duplicate submission while a creation
	// request is pending.
	ErrCreateInFlight = errors.New("instance creation already in progress")

	// ErrNoConfirmation means a confirmation-scoped operation was invoked
	// with no delete confirmation open.
	ErrNoConfirmation = errors.New("no delete confirmation open")

	// ErrConfirmationMismatch means the typed confirmation text does not
	// exactly match the instance's subdomain, so the destructive action
	// stays disabled.
	ErrConfirmationMismatch = errors.New("confirmation text does not match subdomain")

	// ErrUnknownInstance means the referenced instance is not in the
	// current listing.
	ErrUnknownInstance = errors.New("unknown instance")
)

// ConfirmationState describes the single open delete confirmation, if any.
// Armed is true only when the typed text equals the instance's derived
// subdomain byte-for-byte: no trimming, no case folding.
type ConfirmationState struct {
	Open     bool
	Instance model.Instance
	Typed    string
	Armed    bool
}

// deleteConfirmation scopes a pending deletion to exactly one instance.
type deleteConfirmation struct {
	instance model.Instance
	typed    string
}

func (c *deleteConfirmation) armed() bool {
	return c.typed == c.instance.Subdomain()
}

// InstanceService reconciles the panel's visible instance state with the
// provisioning backend across three flows: debounced availability probing,
// non-reentrant creation, and listing with guarded deletion. The service
// never decides instance status on its own; listing is always a full
// replace from the server, and every 401 funnels through the session
// manager's invalidate path.
type InstanceService struct {
	api     driven.ProvisioningClient
	session *SessionManager
	prober  *subdomainProber
	logger  *slog.Logger

	mu        sync.Mutex
	instances []model.Instance
	creating  bool
	confirm   *deleteConfirmation
}

// NewInstanceService creates an InstanceService with the default probe
// quiet period.
func NewInstanceService(api driven.ProvisioningClient, session *SessionManager, logger *slog.Logger) *InstanceService {
	return NewInstanceServiceWithQuietPeriod(api, session, DefaultProbeQuietPeriod, logger)
}

// NewInstanceServiceWithQuietPeriod creates an InstanceService with an
// explicit debounce quiet period. Tests use a short period to avoid
// wall-clock waits.
func NewInstanceServiceWithQuietPeriod(api driven.ProvisioningClient, session *SessionManager, quiet time.Duration, logger *slog.Logger) *InstanceService {
	prober := newSubdomainProber(api, quiet, logger)
	prober.onUnauthorized = func(ctx context.Context) {
		session.HandleUnauthorized(ctx)
	}
	return &InstanceService{
		api:     api,
		session: session,
		prober:  prober,
		logger:  logger,
	}
}

// SetCandidate feeds a keystroke's worth of subdomain input to the
// debounced prober.
func (s *InstanceService) SetCandidate(ctx context.Context, candidate string) {
	s.prober.SetCandidate(ctx, candidate)
}

// Availability returns the probing state for the current candidate.
func (s *InstanceService) Availability() model.AvailabilityCheck {
	return s.prober.Snapshot()
}

// Create submits a creation request for the current candidate subdomain in
// the given region. Preconditions are enforced without a network call: a
// candidate must be present and must not be known-unavailable. Submission
// is exactly-once per user action; a second call while one is pending
// returns ErrCreateInFlight. On success the returned route points at the
// dashboard, whose re-fetch is the authoritative view of the new instance
// set.
func (s *InstanceService) Create(ctx context.Context, region string) (model.Route, error) {
	check := s.prober.Snapshot()
	if check.Candidate == "" {
		return model.RouteNone, ErrNoSubdomain
	}
	if check.State == model.AvailabilityUnavailable {
		return model.RouteNone, ErrSubdomainUnavailable
	}

	s.mu.Lock()
	if s.creating {
		s.mu.Unlock()
		return model.RouteNone, ErrCreateInFlight
	}
	s.creating = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.creating = false
		s.mu.Unlock()
	}()

	if _, err := s.api.CreateInstance(ctx, check.Candidate, region); err != nil {
		if errors.Is(err, driven.ErrUnauthorized) {
			return s.session.HandleUnauthorized(ctx), err
		}
		// ValidationError carries the server's message verbatim; anything
		// else surfaces as a generic, retryable failure. The form stays
		// editable either way.
		return model.RouteNone, err
	}

	s.logger.Info("instance creation accepted", "subdomain", check.Candidate, "region", region)
	s.prober.Reset()
	return model.RouteDashboard, nil
}

// Refresh replaces the cached instance set with the server's listing. A 401
// clears the credential and routes to login; any other failure leaves the
// prior state untouched.
func (s *InstanceService) Refresh(ctx context.Context) (model.Route, error) {
	instances, err := s.api.ListInstances(ctx)
	if err != nil {
		if errors.Is(err, driven.ErrUnauthorized) {
			return s.session.HandleUnauthorized(ctx), err
		}
		return model.RouteNone, err
	}

	s.mu.Lock()
	s.instances = instances
	s.mu.Unlock()
	return model.RouteNone, nil
}

// Instances returns a copy of the last fetched instance set.
func (s *InstanceService) Instances() []model.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// OpenDeleteConfirmation opens the delete confirmation for the given
// instance. Only one confirmation exists at a time: opening for a different
// instance replaces the pending one and clears the typed text. Any delete
// call already in flight for the abandoned confirmation is not cancelled;
// its eventual listing refresh is a full replace and therefore safe.
func (s *InstanceService) OpenDeleteConfirmation(id string) (ConfirmationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range s.instances {
		if inst.ID == id {
			s.confirm = &deleteConfirmation{instance: inst}
			return s.confirmationLocked(), nil
		}
	}
	return ConfirmationState{}, ErrUnknownInstance
}

// SetConfirmationText records the operator's typed confirmation text.
func (s *InstanceService) SetConfirmationText(text string) (ConfirmationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.confirm == nil {
		return ConfirmationState{}, ErrNoConfirmation
	}
	s.confirm.typed = text
	return s.confirmationLocked(), nil
}

// Confirmation returns the current confirmation state.
func (s *InstanceService) Confirmation() ConfirmationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmationLocked()
}

// CancelDeleteConfirmation closes the confirmation without deleting.
func (s *InstanceService) CancelDeleteConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = nil
}

// ExecuteDelete performs the confirmed deletion. It refuses unless the
// confirmation is armed. On success the confirmation closes, the typed text
// is discarded, and the listing is re-fetched so the server's truth
// replaces any local guess; on failure the confirmation stays open for a
// retry.
func (s *InstanceService) ExecuteDelete(ctx context.Context) (model.Route, error) {
	s.mu.Lock()
	if s.confirm == nil {
		s.mu.Unlock()
		return model.RouteNone, ErrNoConfirmation
	}
	if !s.confirm.armed() {
		s.mu.Unlock()
		return model.RouteNone, ErrConfirmationMismatch
	}
	target := s.confirm.instance
	s.mu.Unlock()

	if err := s.api.DeleteInstance(ctx, target.ID); err != nil {
		if errors.Is(err, driven.ErrUnauthorized) {
			return s.session.HandleUnauthorized(ctx), err
		}
		return model.RouteNone, err
	}

	s.logger.Info("instance deleted", "id", target.ID, "subdomain", target.Subdomain())

	s.mu.Lock()
	// Close only if this confirmation is still the open one; a newer
	// confirmation for another instance must not be clobbered.
	if s.confirm != nil && s.confirm.instance.ID == target.ID {
		s.confirm = nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

func (s *InstanceService) confirmationLocked() ConfirmationState {
	if s.confirm == nil {
		return ConfirmationState{}
	}
	return ConfirmationState{
		Open:     true,
		Instance: s.confirm.instance,
		Typed:    s.confirm.typed,
		Armed:    s.confirm.armed(),
	}
}
