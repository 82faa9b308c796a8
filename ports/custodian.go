package ports

import (
	"context"

	"github.com/mbessarab/seedkey-client-sdk/core"
)

// Custodian is the client-side view of the key custodian reached over the
// local channel. Signing and key storage happen entirely inside the
// custodian; this interface only carries requests to it.
type Custodian interface {
	// GetPublicKey returns the custodian's public key for the given domain.
	GetPublicKey(ctx context.Context, domain string) (string, error)

	// SignChallenge asks the custodian to sign a backend-issued challenge.
	SignChallenge(ctx context.Context, challenge core.Challenge) (string, error)

	// SignMessage asks the custodian to sign an arbitrary message.
	SignMessage(ctx context.Context, msg string) (string, error)

	// IsAvailable probes whether the custodian answers at all. It swallows
	// every failure and degrades to false.
	IsAvailable(ctx context.Context) bool

	// IsInitialized probes whether the custodian holds an identity. It
	// swallows every failure and degrades to false.
	IsInitialized(ctx context.Context) bool

	// CheckExtension requires both probes to succeed, surfacing the
	// not-found or not-configured taxonomy error otherwise.
	CheckExtension(ctx context.Context) error

	// Destroy rejects all pending requests and detaches from the channel.
	Destroy()
}
