package ports

import (
	"context"

	"github.com/mbessarab/seedkey-client-sdk/core"
)

// Backend is the client-side view of the remote verification service.
type Backend interface {
	// RequestChallenge asks the backend to issue a challenge for the given
	// public key and flow.
	RequestChallenge(ctx context.Context, publicKey string, action core.ChallengeAction) (*core.ChallengeGrant, error)

	// Register submits a signed registration challenge.
	Register(ctx context.Context, req core.RegisterRequest) (*core.AuthResult, error)

	// Verify submits a signed authentication challenge.
	Verify(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error)

	// User fetches the profile for the bearer token. A success response
	// without a user resolves to nil, not an error.
	User(ctx context.Context, accessToken string) (*core.UserProfile, error)

	// Logout invalidates the bearer token server-side.
	Logout(ctx context.Context, accessToken string) error

	// Refresh exchanges a refresh token for fresh token material.
	Refresh(ctx context.Context, refreshToken string) (*core.TokenInfo, error)
}
