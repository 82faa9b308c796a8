// Package service implements the composite authentication flows. It is the
// protocol state machine of the SDK: fixed sequences over the custodian and
// the backend with defined short-circuit points.
package service

import (
	"context"
	"fmt"

	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
	"github.com/mbessarab/seedkey-client-sdk/session"
)

// Config holds the orchestrator's environment.
type Config struct {
	// Domain is the origin the keypair is scoped to.
	Domain string

	// SDKVersion is reported in registration metadata.
	SDKVersion string

	// UserAgent is the runtime's user-agent string, used for best-effort
	// device naming when the caller supplies none.
	UserAgent string
}

// AuthOptions are the caller-tunable parts of a flow.
type AuthOptions struct {
	// DeviceName overrides the user-agent-derived device name.
	DeviceName string
}

// AuthService composes the custodian and the backend into the three public
// flows. Callers observe either a complete AuthResult or an error; no
// partial state is ever surfaced.
type AuthService struct {
	custodian ports.Custodian
	backend   ports.Backend
	ledger    *session.Ledger
	cfg       Config
}

// NewAuthService creates a flow orchestrator.
func NewAuthService(custodian ports.Custodian, backend ports.Backend, ledger *session.Ledger, cfg Config) *AuthService {
	return &AuthService{
		custodian: custodian,
		backend:   backend,
		ledger:    ledger,
		cfg:       cfg,
	}
}

// Register runs the registration flow: public key from the custodian, a
// register challenge from the backend, a signature from the custodian, and
// the registration submission. Any step failing aborts the whole flow with
// that step's error. The result's Action is always "register", whatever the
// backend reports.
func (s *AuthService) Register(ctx context.Context, opts *AuthOptions) (*core.AuthResult, error) {
	publicKey, err := s.custodian.GetPublicKey(ctx, s.cfg.Domain)
	if err != nil {
		return nil, err
	}

	grant, err := s.backend.RequestChallenge(ctx, publicKey, core.ActionRegister)
	if err != nil {
		return nil, err
	}

	signature, err := s.custodian.SignChallenge(ctx, grant.Challenge)
	if err != nil {
		return nil, err
	}

	result, err := s.backend.Register(ctx, core.RegisterRequest{
		PublicKey: publicKey,
		Challenge: grant.Challenge,
		Signature: signature,
		Metadata: &core.DeviceMetadata{
			DeviceName: s.deviceName(opts),
			SDKVersion: s.cfg.SDKVersion,
		},
	})
	if err != nil {
		return nil, err
	}

	result.Action = core.ResultRegister
	return result, nil
}

// Authenticate runs the login flow, identical in shape to Register but
// submitting to the verification endpoint. The result's Action is always
// "login".
func (s *AuthService) Authenticate(ctx context.Context) (*core.AuthResult, error) {
	publicKey, err := s.custodian.GetPublicKey(ctx, s.cfg.Domain)
	if err != nil {
		return nil, err
	}

	grant, err := s.backend.RequestChallenge(ctx, publicKey, core.ActionAuthenticate)
	if err != nil {
		return nil, err
	}

	signature, err := s.custodian.SignChallenge(ctx, grant.Challenge)
	if err != nil {
		return nil, err
	}

	result, err := s.backend.Verify(ctx, core.VerifyRequest{
		ChallengeID: grant.ChallengeID,
		Challenge:   grant.Challenge,
		Signature:   signature,
		PublicKey:   publicKey,
	})
	if err != nil {
		return nil, err
	}

	result.Action = core.ResultLogin
	return result, nil
}

// Auth is the smart flow: authenticate, falling back to a single full
// register run if and only if authentication failed with USER_NOT_FOUND.
// Every other failure, including one from the nested register attempt,
// propagates unchanged. The fallback is a fully independent re-run; nothing
// from the failed authenticate attempt is reused.
func (s *AuthService) Auth(ctx context.Context, opts *AuthOptions) (*core.AuthResult, error) {
	result, err := s.Authenticate(ctx)
	if err == nil {
		return result, nil
	}
	if core.CodeOf(err) != core.CodeUserNotFound {
		return nil, err
	}

	return s.Register(ctx, opts)
}

// Logout invalidates the stored session: the backend is notified with the
// stored access token, and the ledger is cleared even when that call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	accessToken, err := s.ledger.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	var apiErr error
	if accessToken != "" {
		apiErr = s.backend.Logout(ctx, accessToken)
	}

	if err := s.ledger.Clear(ctx); err != nil {
		return err
	}
	return apiErr
}

// RefreshSession exchanges the stored refresh token for fresh token
// material and persists it.
func (s *AuthService) RefreshSession(ctx context.Context) (*core.TokenInfo, error) {
	refreshToken, err := s.ledger.RefreshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if refreshToken == "" {
		return nil, core.NewError(core.CodeInvalidToken, "no refresh token stored")
	}

	tokens, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Save(ctx, *tokens, ""); err != nil {
		return nil, err
	}
	return tokens, nil
}

// CurrentUser fetches the profile for the stored access token.
func (s *AuthService) CurrentUser(ctx context.Context) (*core.UserProfile, error) {
	accessToken, err := s.ledger.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if accessToken == "" {
		return nil, core.NewError(core.CodeInvalidToken, "no access token stored")
	}

	return s.backend.User(ctx, accessToken)
}

func (s *AuthService) deviceName(opts *AuthOptions) string {
	if opts != nil && opts.DeviceName != "" {
		return opts.DeviceName
	}
	return deviceNameFromUserAgent(s.cfg.UserAgent)
}
