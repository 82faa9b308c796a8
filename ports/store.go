package ports

import "context"

// Store is the key-value persistence used by the session ledger.
type Store interface {
	// Set writes a value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Get retrieves a value by key. A missing key yields an empty string
	// and a nil error.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
