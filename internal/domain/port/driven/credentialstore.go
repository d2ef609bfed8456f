package driven

import "context"

// CredentialSlotSession is the fixed slot name under which the session
// bearer token is persisted. The panel uses exactly one persistence channel
// for the credential.
const CredentialSlotSession = "session_token"

// CredentialStore persists opaque credential values in named slots.
// Read failures are not fatal to callers: the session manager treats any
// error as "no credential present" and fails safe to logged-out.
type CredentialStore interface {
	// Get returns the value stored in the slot, or ("", nil) when the slot
	// is empty.
	Get(ctx context.Context, slot string) (string, error)

	// Set stores or replaces the value in the slot.
	Set(ctx context.Context, slot, value string) error

	// Delete clears the slot. Deleting an empty slot is a no-op.
	Delete(ctx context.Context, slot string) error
}
