// Package driven defines the outbound port interfaces implemented by driven
// adapters.
package driven

import (
	"context"
	"errors"

	"github.com/aliuygur/instol-panel/internal/domain/model"
)

// ErrUnauthorized is returned by any protected ProvisioningClient call that
// the backend rejects with 401 or 403. Callers must treat the current
// credential as known-bad: clear it and route to login.
var ErrUnauthorized = errors.New("provisioning api rejected credential")

// ValidationError carries a user-facing rejection message from the
// provisioning API (e.g. "subdomain already taken"). It is shown inline,
// never fatal.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SubdomainCheck is the provisioning API's verdict on a candidate subdomain.
type SubdomainCheck struct {
	Available bool
	Message   string
}

// TokenSource supplies the current bearer credential for outbound requests.
// An empty token with a nil error means "no credential": the request goes
// out unauthenticated and the backend decides.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProvisioningClient is the port to the hosted provisioning API. Every
// method issues a single HTTP call; implementations attach the bearer
// credential from a TokenSource and map 401/403 to ErrUnauthorized.
type ProvisioningClient interface {
	// CheckSubdomain probes availability of a candidate subdomain.
	CheckSubdomain(ctx context.Context, subdomain string) (SubdomainCheck, error)

	// CreateInstance requests a new hosted instance. Server-side rejections
	// with a user-facing message are returned as *ValidationError.
	CreateInstance(ctx context.Context, subdomain, region string) (model.Instance, error)

	// ListInstances returns the full instance set for the current session.
	ListInstances(ctx context.Context) ([]model.Instance, error)

	// DeleteInstance tears down the instance with the given id.
	DeleteInstance(ctx context.Context, id string) error

	// Logout notifies the backend that the current session is ending.
	// Best-effort; callers ignore failures.
	Logout(ctx context.Context) error
}
