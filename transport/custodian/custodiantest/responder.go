// Package custodiantest provides an in-process fake custodian that answers
// the channel protocol, for tests and demos. It performs no real signing.
package custodiantest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mbessarab/seedkey-client-sdk/ports"
	"github.com/mbessarab/seedkey-client-sdk/transport/custodian"
)

// Config controls how the fake custodian answers each action.
type Config struct {
	// Available and Initialized are the probe answers.
	Available   bool
	Initialized bool

	// PublicKey is returned for get_public_key requests.
	PublicKey string

	// Signature is returned for sign_challenge and sign_message requests.
	Signature string

	// SignError, when set, fails signing requests with this error instead.
	SignError *custodian.ResponseError

	// Delay is applied before every response.
	Delay time.Duration

	// Mute lists actions the custodian silently ignores, for timeout tests.
	Mute []custodian.Action

	// RequestTopic and ResponseTopic default to the protocol topics.
	RequestTopic  string
	ResponseTopic string
}

// Responder is a fake custodian attached to a channel.
type Responder struct {
	channel ports.Channel
	cfg     Config

	mu       sync.Mutex
	requests []custodian.RequestEnvelope
}

// Start attaches a responder to the channel and begins answering requests.
// It stops when ctx is cancelled.
func Start(ctx context.Context, channel ports.Channel, cfg Config) (*Responder, error) {
	if cfg.RequestTopic == "" {
		cfg.RequestTopic = custodian.DefaultRequestTopic
	}
	if cfg.ResponseTopic == "" {
		cfg.ResponseTopic = custodian.DefaultResponseTopic
	}

	r := &Responder{
		channel: channel,
		cfg:     cfg,
	}

	messages, err := channel.Subscribe(ctx, cfg.RequestTopic)
	if err != nil {
		return nil, err
	}

	go r.serve(messages)

	return r, nil
}

// Requests returns a copy of every request envelope received so far.
func (r *Responder) Requests() []custodian.RequestEnvelope {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]custodian.RequestEnvelope, len(r.requests))
	copy(out, r.requests)
	return out
}

func (r *Responder) serve(messages <-chan *message.Message) {
	for msg := range messages {
		msg.Ack()

		var env custodian.RequestEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			continue
		}
		if env.Type != custodian.TypeRequest {
			continue
		}

		r.mu.Lock()
		r.requests = append(r.requests, env)
		r.mu.Unlock()

		if r.muted(env.Action) {
			continue
		}

		if r.cfg.Delay > 0 {
			time.Sleep(r.cfg.Delay)
		}

		r.respond(env)
	}
}

func (r *Responder) muted(action custodian.Action) bool {
	for _, muted := range r.cfg.Mute {
		if muted == action {
			return true
		}
	}
	return false
}

func (r *Responder) respond(env custodian.RequestEnvelope) {
	resp := custodian.ResponseEnvelope{
		Type:      custodian.TypeResponse,
		Version:   custodian.ProtocolVersion,
		RequestID: env.RequestID,
		Success:   true,
	}

	switch env.Action {
	case custodian.ActionCheckAvailable:
		resp.Result = mustMarshal(map[string]bool{"available": r.cfg.Available})
	case custodian.ActionIsInitialized:
		resp.Result = mustMarshal(map[string]bool{"initialized": r.cfg.Initialized})
	case custodian.ActionGetPublicKey:
		resp.Result = mustMarshal(map[string]string{"publicKey": r.cfg.PublicKey})
	case custodian.ActionSignChallenge, custodian.ActionSignMessage:
		if r.cfg.SignError != nil {
			resp.Success = false
			resp.Error = r.cfg.SignError
		} else {
			resp.Result = mustMarshal(map[string]string{"signature": r.cfg.Signature})
		}
	default:
		resp.Success = false
		resp.Error = &custodian.ResponseError{
			Code:    "INVALID_CHALLENGE",
			Message: "unknown action " + string(env.Action),
		}
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = r.channel.Publish(r.cfg.ResponseTopic, message.NewMessage(env.RequestID, raw))
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
