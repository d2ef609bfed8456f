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

// DefaultProbeQuietPeriod is how long the candidate subdomain must stay
// unchanged before a probe is issued.
const DefaultProbeQuietPeriod = 500 * time.Millisecond

// subdomainProber owns the debounced availability probing for the candidate
// subdomain being typed. At most one probe is pending at a time: every edit
// cancels the previous schedule, and a response is applied only if it still
// belongs to the current candidate, so a slow response for an abandoned
// string can never overwrite the state of a newer one.
type subdomainProber struct {
	api    driven.ProvisioningClient
	logger *slog.Logger
	quiet  time.Duration

	// onUnauthorized fires when a probe's credential is rejected; even an
	// advisory call's 401 must clear the session.
	onUnauthorized func(context.Context)

	mu        sync.Mutex
	candidate string
	state     model.Availability
	message   string
	checking  bool
	timer     *time.Timer
}

func newSubdomainProber(api driven.ProvisioningClient, quiet time.Duration, logger *slog.Logger) *subdomainProber {
	return &subdomainProber{
		api:    api,
		logger: logger,
		quiet:  quiet,
		state:  model.AvailabilityUnknown,
	}
}

// SetCandidate records a new candidate subdomain. Candidates below the
// minimum length reset availability to unknown with no probe; candidates
// that fail local format validation get an advisory unavailable verdict
// with the validation message, also without a probe. Anything else is
// probed after the quiet period.
func (p *subdomainProber) SetCandidate(ctx context.Context, candidate string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelScheduledLocked()
	p.candidate = candidate
	p.checking = false

	if len(candidate) < model.MinSubdomainLength {
		p.state = model.AvailabilityUnknown
		p.message = ""
		return
	}

	if err := model.ValidateSubdomain(candidate); err != nil {
		// Local advisory only; the server re-validates on creation.
		p.state = model.AvailabilityUnavailable
		p.message = err.Error()
		return
	}

	p.state = model.AvailabilityUnknown
	p.message = ""
	// The probe outlives the request that delivered the keystroke, so it
	// must not die with that request's context.
	probeCtx := context.WithoutCancel(ctx)
	p.timer = time.AfterFunc(p.quiet, func() {
		p.probe(probeCtx, candidate)
	})
}

// Snapshot returns the probing state for the current candidate.
func (p *subdomainProber) Snapshot() model.AvailabilityCheck {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.AvailabilityCheck{
		Candidate: p.candidate,
		State:     p.state,
		Message:   p.message,
		Checking:  p.checking,
	}
}

// Reset clears the candidate and all derived state, cancelling any pending
// probe. Used after a successful creation, when the form is abandoned.
func (p *subdomainProber) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelScheduledLocked()
	p.candidate = ""
	p.state = model.AvailabilityUnknown
	p.message = ""
	p.checking = false
}

// probe issues the availability call for the candidate the timer was
// scheduled for. The candidate is re-checked both before the call (the
// timer may have lost the race with Stop) and after, so stale responses are
// discarded instead of applied.
func (p *subdomainProber) probe(ctx context.Context, candidate string) {
	p.mu.Lock()
	if candidate != p.candidate {
		p.mu.Unlock()
		return
	}
	p.checking = true
	p.mu.Unlock()

	check, err := p.api.CheckSubdomain(ctx, candidate)

	if errors.Is(err, driven.ErrUnauthorized) && p.onUnauthorized != nil {
		p.onUnauthorized(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if candidate != p.candidate {
		// A newer candidate superseded this probe while it was in flight.
		return
	}
	p.checking = false

	if err != nil {
		// Probing is advisory: failures leave availability unknown and are
		// never surfaced as blocking errors.
		p.logger.Warn("subdomain availability probe failed", "subdomain", candidate, "error", err)
		p.state = model.AvailabilityUnknown
		p.message = ""
		return
	}

	if check.Available {
		p.state = model.AvailabilityAvailable
	} else {
		p.state = model.AvailabilityUnavailable
	}
	p.message = check.Message
}

func (p *subdomainProber) cancelScheduledLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
