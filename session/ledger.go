package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
)

const (
	keyAccessToken  = "seedkey_access_token"
	keyRefreshToken = "seedkey_refresh_token"
	keyExpiresAt    = "seedkey_expires_at"
	keyUserID       = "seedkey_user_id"

	// expiryBuffer is the fixed safety margin before the recorded expiry at
	// which a session already reports expired.
	expiryBuffer = 5 * time.Minute
)

// Session is the locally persisted token material plus derived expiry
// status, computed fresh on every read.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	IsExpired    bool
}

// Ledger persists and retrieves session token material over a key-value
// store. It performs no network or custodian interaction.
type Ledger struct {
	store ports.Store
	now   func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(store ports.Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// Save writes the token material and an absolute expiry computed once, as
// now plus ExpiresIn seconds. userID is written only when provided.
func (l *Ledger) Save(ctx context.Context, tokens core.TokenInfo, userID string) error {
	if err := l.store.Set(ctx, keyAccessToken, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if err := l.store.Set(ctx, keyRefreshToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	expiresAt := l.now().UnixMilli() + tokens.ExpiresIn*1000
	if err := l.store.Set(ctx, keyExpiresAt, strconv.FormatInt(expiresAt, 10)); err != nil {
		return fmt.Errorf("failed to save expiry: %w", err)
	}

	if userID != "" {
		if err := l.store.Set(ctx, keyUserID, userID); err != nil {
			return fmt.Errorf("failed to save user id: %w", err)
		}
	}

	return nil
}

// IsExpired reports whether the stored session is expired. A session with no
// recorded expiry is expired, as is one whose expiry is within the fixed
// safety buffer of the current time.
func (l *Ledger) IsExpired(ctx context.Context) (bool, error) {
	raw, err := l.store.Get(ctx, keyExpiresAt)
	if err != nil {
		return true, fmt.Errorf("failed to read expiry: %w", err)
	}
	if raw == "" {
		return true, nil
	}

	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, nil
	}

	return l.now().UnixMilli() > expiresAt-expiryBuffer.Milliseconds(), nil
}

// AccessToken returns the stored access token, or an empty string.
func (l *Ledger) AccessToken(ctx context.Context) (string, error) {
	return l.store.Get(ctx, keyAccessToken)
}

// RefreshToken returns the stored refresh token, or an empty string.
func (l *Ledger) RefreshToken(ctx context.Context) (string, error) {
	return l.store.Get(ctx, keyRefreshToken)
}

// Session returns all stored fields with expiry derived at read time.
func (l *Ledger) Session(ctx context.Context) (Session, error) {
	access, err := l.store.Get(ctx, keyAccessToken)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := l.store.Get(ctx, keyRefreshToken)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	userID, err := l.store.Get(ctx, keyUserID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read user id: %w", err)
	}
	expired, err := l.IsExpired(ctx)
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:  access,
		RefreshToken: refresh,
		UserID:       userID,
		IsExpired:    expired,
	}, nil
}

// Clear removes exactly the managed keys, leaving unrelated stored data
// untouched.
func (l *Ledger) Clear(ctx context.Context) error {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyExpiresAt, keyUserID} {
		if err := l.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}
