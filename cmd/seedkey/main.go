// Command seedkey runs the SDK end to end against the in-memory stub
// backend and a fake custodian: a first smart-auth that falls back to
// registration, a second that logs in, then a session refresh and logout.
//
// Set REDIS_URL to carry the custodian channel over Redis Streams instead
// of the in-process channel.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"

	seedkey "github.com/mbessarab/seedkey-client-sdk"
	"github.com/mbessarab/seedkey-client-sdk/adapters/channel"
	"github.com/mbessarab/seedkey-client-sdk/ports"
	"github.com/mbessarab/seedkey-client-sdk/stubserver"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian/custodiantest"
)

func main() {
	logger := watermill.NewStdLogger(false, false)
	ctx := context.Background()

	// Custodian channel: Redis Streams when configured, in-process otherwise.
	var ch ports.Channel
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		ch, err = channel.NewRedisStream(redis.NewClient(opts), logger)
		if err != nil {
			log.Fatalf("Failed to create Redis channel: %v", err)
		}
	} else {
		ch = channel.NewGoChannel(logger)
	}

	// Stub backend on a loopback port.
	backend := stubserver.New(stubserver.Config{Domain: "demo.localhost"})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	go func() {
		if err := http.Serve(listener, backend.Router()); err != nil {
			log.Printf("stub backend stopped: %v", err)
		}
	}()

	// Fake custodian answering on the channel.
	if _, err := custodiantest.Start(ctx, ch, custodiantest.Config{
		Available:   true,
		Initialized: true,
		PublicKey:   "demo-public-key",
		Signature:   "demo-signature",
	}); err != nil {
		log.Fatalf("Failed to start custodian: %v", err)
	}

	sdk, err := seedkey.New(seedkey.Config{
		Domain:     "demo.localhost",
		APIBaseURL: "http://" + listener.Addr().String(),
		Channel:    ch,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create SDK: %v", err)
	}
	defer sdk.Close()

	if err := sdk.CheckExtension(ctx); err != nil {
		log.Fatalf("Extension check failed: %v", err)
	}

	// First smart-auth: no account yet, falls back to registration.
	result, err := sdk.Auth(ctx, nil)
	if err != nil {
		log.Fatalf("First auth failed: %v", err)
	}
	log.Printf("First auth: action=%s user=%s", result.Action, result.User.ID)

	if err := sdk.Ledger.Save(ctx, *result.Token, result.User.ID); err != nil {
		log.Fatalf("Failed to save session: %v", err)
	}

	// Second smart-auth: account exists, plain login.
	result, err = sdk.Auth(ctx, nil)
	if err != nil {
		log.Fatalf("Second auth failed: %v", err)
	}
	log.Printf("Second auth: action=%s user=%s", result.Action, result.User.ID)

	tokens, err := sdk.Flows.RefreshSession(ctx)
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}
	log.Printf("Refreshed session, expires in %ds", tokens.ExpiresIn)

	if err := sdk.Flows.Logout(ctx); err != nil {
		log.Fatalf("Logout failed: %v", err)
	}
	session, err := sdk.Ledger.Session(ctx)
	if err != nil {
		log.Fatalf("Failed to read session: %v", err)
	}
	log.Printf("Logged out, session expired=%v", session.IsExpired)
}
