package seedkey_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seedkey "github.com/mbessarab/seedkey-client-sdk"
	"github.com/mbessarab/seedkey-client-sdk/adapters/channel"
	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/stubserver"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian/custodiantest"
)

// newSDK wires a full stack: stub backend over HTTP, fake custodian over an
// in-process channel, SDK on top.
func newSDK(t *testing.T, custodianCfg custodiantest.Config) *seedkey.SDK {
	t.Helper()

	backend := stubserver.New(stubserver.Config{Domain: "test.localhost"})
	server := httptest.NewServer(backend.Router())
	t.Cleanup(server.Close)

	ch := channel.NewGoChannel(nil)
	t.Cleanup(func() { _ = ch.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := custodiantest.Start(ctx, ch, custodianCfg)
	require.NoError(t, err)

	sdk, err := seedkey.New(seedkey.Config{
		Domain:     "test.localhost",
		APIBaseURL: server.URL,
		Channel:    ch,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Close() })

	return sdk
}

func readyCustodian() custodiantest.Config {
	return custodiantest.Config{
		Available:   true,
		Initialized: true,
		PublicKey:   "k1",
		Signature:   "s1",
	}
}

func TestSmartAuthRegistersThenLogsIn(t *testing.T) {
	ctx := context.Background()
	sdk := newSDK(t, readyCustodian())

	require.NoError(t, sdk.CheckExtension(ctx))

	first, err := sdk.Auth(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ResultRegister, first.Action)
	require.NotNil(t, first.User)
	require.NotNil(t, first.Token)

	second, err := sdk.Auth(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, core.ResultLogin, second.Action)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestAuthenticateEndToEnd(t *testing.T) {
	ctx := context.Background()
	sdk := newSDK(t, readyCustodian())

	registered, err := sdk.Register(ctx, nil)
	require.NoError(t, err)

	result, err := sdk.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ResultLogin, result.Action)
	assert.Equal(t, registered.User.ID, result.User.ID)
	assert.Equal(t, "k1", result.User.PublicKey)
	assert.NotEmpty(t, result.Token.AccessToken)
}

func TestAuthenticateUnknownUserFailsWithUserNotFound(t *testing.T) {
	sdk := newSDK(t, readyCustodian())

	_, err := sdk.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.CodeUserNotFound, core.CodeOf(err))
}

func TestRegisterTwiceFailsWithUserExists(t *testing.T) {
	ctx := context.Background()
	sdk := newSDK(t, readyCustodian())

	_, err := sdk.Register(ctx, nil)
	require.NoError(t, err)

	_, err = sdk.Register(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, core.CodeUserExists, core.CodeOf(err))
}

func TestUserRejectionPropagates(t *testing.T) {
	cfg := readyCustodian()
	cfg.SignError = &custodian.ResponseError{Code: "USER_REJECTED", Message: "declined"}
	sdk := newSDK(t, cfg)

	_, err := sdk.Register(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, core.CodeUserRejected, core.CodeOf(err))
}

func TestSessionLifecycleAgainstStubBackend(t *testing.T) {
	ctx := context.Background()
	sdk := newSDK(t, readyCustodian())

	result, err := sdk.Auth(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, sdk.Ledger.Save(ctx, *result.Token, result.User.ID))

	user, err := sdk.Flows.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	oldRefresh := result.Token.RefreshToken
	tokens, err := sdk.Flows.RefreshSession(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, oldRefresh, tokens.RefreshToken)

	// A rotated refresh token is single use.
	_, err = sdk.Backend.Refresh(ctx, oldRefresh)
	require.Error(t, err)
	assert.Equal(t, core.CodeInvalidToken, core.CodeOf(err))

	require.NoError(t, sdk.Flows.Logout(ctx))
	sess, err := sdk.Ledger.Session(ctx)
	require.NoError(t, err)
	assert.Empty(t, sess.AccessToken)
	assert.True(t, sess.IsExpired)
}

func TestDefaultRegistryLifecycle(t *testing.T) {
	t.Cleanup(seedkey.Reset)

	backend := stubserver.New(stubserver.Config{})
	server := httptest.NewServer(backend.Router())
	t.Cleanup(server.Close)

	assert.Nil(t, seedkey.Default())

	sdk, err := seedkey.Init(seedkey.Config{
		Domain:     "test.localhost",
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
	assert.Same(t, sdk, seedkey.Default())

	_, err = seedkey.Init(seedkey.Config{
		Domain:     "test.localhost",
		APIBaseURL: server.URL,
	})
	assert.ErrorIs(t, err, seedkey.ErrAlreadyInitialized)

	seedkey.Reset()
	assert.Nil(t, seedkey.Default())

	_, err = seedkey.Init(seedkey.Config{
		Domain:     "test.localhost",
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := seedkey.New(seedkey.Config{APIBaseURL: "http://localhost"})
	assert.Error(t, err)

	_, err = seedkey.New(seedkey.Config{Domain: "test.localhost"})
	assert.Error(t, err)
}
