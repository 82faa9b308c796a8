package custodian_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbessarab/seedkey-client-sdk/adapters/channel"
	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian/custodiantest"
)

const testDownloadURL = "https://example.com/extension"

// newRig wires a client and a fake custodian over an in-process channel.
// A nil responder config attaches no custodian at all.
func newRig(t *testing.T, responderCfg *custodiantest.Config, clientCfg custodian.Config) (*custodian.Client, *custodiantest.Responder, ports.Channel) {
	t.Helper()

	ch := channel.NewGoChannel(nil)
	t.Cleanup(func() { _ = ch.Close() })

	var responder *custodiantest.Responder
	if responderCfg != nil {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)

		var err error
		responder, err = custodiantest.Start(ctx, ch, *responderCfg)
		require.NoError(t, err)
	}

	if clientCfg.DownloadURL == "" {
		clientCfg.DownloadURL = testDownloadURL
	}
	clientCfg.Origin = "test.localhost"

	client, err := custodian.NewClient(ch, clientCfg, nil)
	require.NoError(t, err)
	t.Cleanup(client.Destroy)

	return client, responder, ch
}

func TestGetPublicKey(t *testing.T) {
	client, _, _ := newRig(t, &custodiantest.Config{PublicKey: "k1"}, custodian.Config{})

	key, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}

func TestConcurrentRequestIDsAreUnique(t *testing.T) {
	const n = 25

	client, responder, _ := newRig(t, &custodiantest.Config{PublicKey: "k1"}, custodian.Config{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetPublicKey(context.Background(), "test.localhost")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, req := range responder.Requests() {
		assert.False(t, seen[req.RequestID], "request id %s reused", req.RequestID)
		seen[req.RequestID] = true
	}
	assert.Len(t, seen, n)
}

func TestTimeoutReportsExtensionNotFound(t *testing.T) {
	client, _, _ := newRig(t,
		&custodiantest.Config{Mute: []custodian.Action{custodian.ActionGetPublicKey}},
		custodian.Config{DefaultTimeout: 80 * time.Millisecond},
	)

	start := time.Now()
	_, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.Error(t, err)

	assert.Equal(t, core.CodeExtensionNotFound, core.CodeOf(err))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	var se *core.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, testDownloadURL, se.DownloadURL)
	assert.NotEmpty(t, se.Hint)
}

func TestNoCustodianAttachedTimesOut(t *testing.T) {
	client, _, _ := newRig(t, nil, custodian.Config{DefaultTimeout: 50 * time.Millisecond})

	_, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.Error(t, err)
	assert.Equal(t, core.CodeExtensionNotFound, core.CodeOf(err))
}

func TestLateResponseAfterTimeoutIsIgnored(t *testing.T) {
	client, responder, ch := newRig(t,
		&custodiantest.Config{
			PublicKey: "k1",
			Mute:      []custodian.Action{custodian.ActionSignChallenge},
		},
		custodian.Config{DefaultTimeout: 60 * time.Millisecond},
	)

	_, err := client.SignChallenge(context.Background(), core.Challenge{Nonce: "n1"})
	require.Error(t, err)
	assert.Equal(t, core.CodeExtensionNotFound, core.CodeOf(err))

	// Deliver the response for the already-timed-out request; the timeout
	// rejection must stay final and the client must stay usable.
	requests := responder.Requests()
	require.NotEmpty(t, requests)
	stale := custodian.ResponseEnvelope{
		Type:      custodian.TypeResponse,
		Version:   custodian.ProtocolVersion,
		RequestID: requests[len(requests)-1].RequestID,
		Success:   true,
		Result:    json.RawMessage(`{"signature":"stale"}`),
	}
	raw, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, ch.Publish(custodian.DefaultResponseTopic, message.NewMessage("stale", raw)))

	key, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}

func TestMalformedAndForeignResponsesAreIgnored(t *testing.T) {
	client, _, ch := newRig(t, &custodiantest.Config{PublicKey: "k1"}, custodian.Config{})

	publish := func(payload string) {
		require.NoError(t, ch.Publish(custodian.DefaultResponseTopic, message.NewMessage("junk", []byte(payload))))
	}
	publish(`not json at all`)
	publish(`{"type":"SOMETHING_ELSE","requestId":"x"}`)
	publish(`{"type":"SEEDKEY_RESPONSE","requestId":"unknown-id","success":true}`)
	publish(`{"type":"SEEDKEY_RESPONSE","success":true}`)

	key, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}

func TestCustodianErrorIsTranslated(t *testing.T) {
	client, _, _ := newRig(t,
		&custodiantest.Config{
			SignError: &custodian.ResponseError{Code: "USER_REJECTED", Message: "user declined the request"},
		},
		custodian.Config{},
	)

	_, err := client.SignChallenge(context.Background(), core.Challenge{Nonce: "n1"})
	require.Error(t, err)
	assert.Equal(t, core.CodeUserRejected, core.CodeOf(err))
	assert.Contains(t, err.Error(), "user declined the request")
}

func TestDestroyRejectsPendingRequests(t *testing.T) {
	client, _, _ := newRig(t,
		&custodiantest.Config{Mute: []custodian.Action{custodian.ActionGetPublicKey}},
		custodian.Config{DefaultTimeout: 5 * time.Second},
	)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.GetPublicKey(context.Background(), "test.localhost")
		errCh <- err
	}()

	time.Sleep(30 * time.Millisecond)
	client.Destroy()

	select {
	case err := <-errCh:
		assert.Equal(t, core.CodeDestroyed, core.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("pending request was not rejected by destroy")
	}
}

func TestSendAfterDestroyFailsFast(t *testing.T) {
	client, _, _ := newRig(t, &custodiantest.Config{PublicKey: "k1"}, custodian.Config{})

	client.Destroy()

	start := time.Now()
	_, err := client.GetPublicKey(context.Background(), "test.localhost")
	require.Error(t, err)
	assert.Equal(t, core.CodeDestroyed, core.CodeOf(err))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDestroyIsIdempotent(t *testing.T) {
	client, _, _ := newRig(t, &custodiantest.Config{PublicKey: "k1"}, custodian.Config{})

	client.Destroy()
	client.Destroy()
	client.Destroy()
}

func TestCallerCancellationSettlesRequest(t *testing.T) {
	client, _, _ := newRig(t,
		&custodiantest.Config{Mute: []custodian.Action{custodian.ActionGetPublicKey}},
		custodian.Config{DefaultTimeout: 5 * time.Second},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_, err := client.GetPublicKey(ctx, "test.localhost")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProbesSwallowFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no custodian", func(t *testing.T) {
		client, _, _ := newRig(t, nil, custodian.Config{ProbeTimeout: 50 * time.Millisecond})
		assert.False(t, client.IsAvailable(ctx))
		assert.False(t, client.IsInitialized(ctx))
	})

	t.Run("custodian reports unavailable", func(t *testing.T) {
		client, _, _ := newRig(t, &custodiantest.Config{Available: false}, custodian.Config{})
		assert.False(t, client.IsAvailable(ctx))
	})

	t.Run("custodian reports available", func(t *testing.T) {
		client, _, _ := newRig(t, &custodiantest.Config{Available: true, Initialized: true}, custodian.Config{})
		assert.True(t, client.IsAvailable(ctx))
		assert.True(t, client.IsInitialized(ctx))
	})
}

func TestCheckExtension(t *testing.T) {
	ctx := context.Background()

	t.Run("not installed", func(t *testing.T) {
		client, _, _ := newRig(t, nil, custodian.Config{ProbeTimeout: 50 * time.Millisecond})

		err := client.CheckExtension(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeExtensionNotFound, core.CodeOf(err))

		var se *core.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, testDownloadURL, se.DownloadURL)
	})

	t.Run("not configured", func(t *testing.T) {
		client, _, _ := newRig(t, &custodiantest.Config{Available: true, Initialized: false}, custodian.Config{})

		err := client.CheckExtension(ctx)
		require.Error(t, err)
		assert.Equal(t, core.CodeExtensionNotInitialized, core.CodeOf(err))

		var se *core.Error
		require.ErrorAs(t, err, &se)
		assert.NotEmpty(t, se.Hint)
	})

	t.Run("ready", func(t *testing.T) {
		client, _, _ := newRig(t, &custodiantest.Config{Available: true, Initialized: true}, custodian.Config{})
		assert.NoError(t, client.CheckExtension(ctx))
	})
}
