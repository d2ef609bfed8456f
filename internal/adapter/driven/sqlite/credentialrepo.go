package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// It stores the opaque session token as-is: the token is an ephemeral
// bearer credential the backend can revoke at any time, and the session
// manager must be able to fail safe to logged-out on any storage problem,
// so there is no key-management layer in front of it.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a CredentialRepo backed by the given database.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Get retrieves the value stored in the slot. Returns ("", nil) when the
// slot is empty.
func (r *CredentialRepo) Get(ctx context.Context, slot string) (string, error) {
	const query = `SELECT value FROM credentials WHERE slot = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", slot, err)
	}
	return value, nil
}

// Set stores or replaces the value in the slot.
func (r *CredentialRepo) Set(ctx context.Context, slot, value string) error {
	const query = `INSERT OR REPLACE INTO credentials (slot, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`

	if _, err := r.db.Writer.ExecContext(ctx, query, slot, value); err != nil {
		return fmt.Errorf("set credential %q: %w", slot, err)
	}
	return nil
}

// Delete clears the slot. Deleting an empty slot is a no-op.
func (r *CredentialRepo) Delete(ctx context.Context, slot string) error {
	const query = `DELETE FROM credentials WHERE slot = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("delete credential %q: %w", slot, err)
	}
	return nil
}
