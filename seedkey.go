// Package seedkey is the client SDK for the SeedKey passwordless
// authentication protocol. It bridges the browser-resident key custodian,
// reached over a broadcast pub/sub channel, with the verification backend,
// reached over REST, and exposes the composite register / authenticate /
// smart-auth flows.
package seedkey

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/mbessarab/seedkey-client-sdk/adapters/channel"
	"github.com/mbessarab/seedkey-client-sdk/adapters/store"
	"github.com/mbessarab/seedkey-client-sdk/api"
	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
	"github.com/mbessarab/seedkey-client-sdk/service"
	"github.com/mbessarab/seedkey-client-sdk/session"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian"
)

// Version is reported to the backend in registration metadata.
const Version = "1.0.0"

// Config wires an SDK instance.
type Config struct {
	// Domain is the origin the keypair is scoped to. Required.
	Domain string

	// APIBaseURL is the verification backend origin. Required.
	APIBaseURL string

	// UserAgent feeds best-effort device naming. Optional.
	UserAgent string

	// DownloadURL is attached to extension-not-found errors. Optional.
	DownloadURL string

	// DefaultTimeout and ProbeTimeout tune the custodian transport.
	DefaultTimeout time.Duration
	ProbeTimeout   time.Duration

	// Channel overrides the custodian channel. An in-process channel is
	// created (and owned) when nil.
	Channel ports.Channel

	// Store overrides the session backing. In-memory when nil.
	Store ports.Store

	// HTTPClient overrides the backend HTTP client.
	HTTPClient *http.Client

	// Logger receives transport diagnostics. NopLogger when nil.
	Logger watermill.LoggerAdapter
}

// SDK bundles the custodian transport, backend client, session ledger and
// flow orchestrator with a shared lifecycle.
type SDK struct {
	Custodian *custodian.Client
	Backend   *api.Client
	Ledger    *session.Ledger
	Flows     *service.AuthService

	channel     ports.Channel
	ownsChannel bool
}

// New constructs an SDK. Instances are independent; the package-level
// registry below is optional.
func New(cfg Config) (*SDK, error) {
	if cfg.Domain == "" {
		return nil, errors.New("seedkey: Domain is required")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("seedkey: APIBaseURL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	ch := cfg.Channel
	ownsChannel := false
	if ch == nil {
		ch = channel.NewGoChannel(logger)
		ownsChannel = true
	}

	custodianClient, err := custodian.NewClient(ch, custodian.Config{
		Origin:         cfg.Domain,
		DownloadURL:    cfg.DownloadURL,
		DefaultTimeout: cfg.DefaultTimeout,
		ProbeTimeout:   cfg.ProbeTimeout,
	}, logger)
	if err != nil {
		if ownsChannel {
			_ = ch.Close()
		}
		return nil, err
	}

	backing := cfg.Store
	if backing == nil {
		backing = store.NewMemoryStore()
	}
	ledger := session.NewLedger(backing)

	backend := api.NewClient(api.Config{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: cfg.HTTPClient,
	})

	flows := service.NewAuthService(custodianClient, backend, ledger, service.Config{
		Domain:     cfg.Domain,
		SDKVersion: Version,
		UserAgent:  cfg.UserAgent,
	})

	return &SDK{
		Custodian:   custodianClient,
		Backend:     backend,
		Ledger:      ledger,
		Flows:       flows,
		channel:     ch,
		ownsChannel: ownsChannel,
	}, nil
}

// Register runs the registration flow.
func (s *SDK) Register(ctx context.Context, opts *service.AuthOptions) (*core.AuthResult, error) {
	return s.Flows.Register(ctx, opts)
}

// Authenticate runs the login flow.
func (s *SDK) Authenticate(ctx context.Context) (*core.AuthResult, error) {
	return s.Flows.Authenticate(ctx)
}

// Auth runs the smart flow: authenticate with a register fallback on
// USER_NOT_FOUND.
func (s *SDK) Auth(ctx context.Context, opts *service.AuthOptions) (*core.AuthResult, error) {
	return s.Flows.Auth(ctx, opts)
}

// CheckExtension verifies the custodian is installed and configured.
func (s *SDK) CheckExtension(ctx context.Context) error {
	return s.Custodian.CheckExtension(ctx)
}

// Close destroys the custodian transport, rejecting all pending requests,
// and closes the channel if the SDK created it. Idempotent.
func (s *SDK) Close() error {
	s.Custodian.Destroy()
	if s.ownsChannel {
		return s.channel.Close()
	}
	return nil
}
