package model

// Availability is the client's current belief about a candidate subdomain.
// It is advisory: only the server's response to a creation request is
// authoritative, and an Unknown state never blocks submission.
type Availability string

const (
	AvailabilityUnknown     Availability = "unknown"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// AvailabilityCheck is the transient probing state for the candidate
// subdomain currently being typed. It is recomputed per candidate and never
// persisted.
type AvailabilityCheck struct {
	Candidate string
	State     Availability
	Message   string
	Checking  bool
}
