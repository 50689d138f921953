package journal

import "context"

// Repository is the port for persisting journal entries. The checkout
// machine depends on this abstraction, not on SQLite directly, so tests can
// swap in an in-memory recorder.
type Repository interface {
	// Save appends a new entry. The journal is append-only; entries are
	// never updated or deleted.
	Save(ctx context.Context, entry *Entry) error
}
