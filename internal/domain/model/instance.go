package model

import (
	"strings"
	"time"
)

// Instance is one provisioned workflow-automation deployment as reported by
// the provisioning API. The panel never invents or mutates instance state
// locally; every field is server-assigned and refreshed by re-fetching.
type Instance struct {
	ID        string
	URL       string
	Status    string
	CreatedAt time.Time
}

// DisplayState classifies the server-reported status for rendering.
// The status string itself is opaque; only "running" is recognized as
// healthy, everything else (provisioning, unknown, future values) renders
// as pending.
type DisplayState string

const (
	DisplayHealthy DisplayState = "healthy"
	DisplayPending DisplayState = "pending"
)

// Subdomain returns the user-chosen label of the instance URL: the left-most
// host segment with the scheme stripped, e.g. "myapp" for
// "https://myapp.instol.cloud". Returns "" when the URL has no host part.
func (i Instance) Subdomain() string {
	host := i.URL
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	host, _, _ = strings.Cut(host, "/")
	label, _, _ := strings.Cut(host, ".")
	return label
}

// DisplayState maps the opaque status string to a display classification.
func (i Instance) DisplayState() DisplayState {
	if i.Status == "running" {
		return DisplayHealthy
	}
	return DisplayPending
}
