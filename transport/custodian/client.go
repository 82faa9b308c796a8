package custodian

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
)

const (
	// DefaultTimeout is the per-request budget for user-facing signing
	// operations.
	DefaultTimeout = 60 * time.Second

	// DefaultProbeTimeout is the short budget for availability probes.
	DefaultProbeTimeout = 3 * time.Second
)

// Config holds the wiring options of the correlated transport.
type Config struct {
	// Origin identifies the requesting site; carried in every envelope.
	Origin string

	// DownloadURL is attached to not-found errors for UI remediation.
	DownloadURL string

	// DefaultTimeout overrides the per-request budget. Zero means
	// DefaultTimeout.
	DefaultTimeout time.Duration

	// ProbeTimeout overrides the availability-probe budget. Zero means
	// DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// RequestTopic and ResponseTopic override the channel topic names.
	RequestTopic  string
	ResponseTopic string
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.RequestTopic == "" {
		c.RequestTopic = DefaultRequestTopic
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = DefaultResponseTopic
	}
	return c
}

// settlement is the terminal outcome of one correlated request. Exactly one
// settlement is ever delivered per request.
type settlement struct {
	result json.RawMessage
	err    error
}

type pendingRequest struct {
	timer *time.Timer
	done  chan settlement // buffered; receives exactly one settlement
}

// Client turns the broadcast custodian channel into awaitable,
// individually-addressable, timeout-bounded request/response pairs.
//
// The pending table is the arbiter of settlement: whichever path (matching
// response, timeout, destroy) removes an entry is the one that settles it,
// so late responses and racing timeouts become no-ops.
type Client struct {
	channel ports.Channel
	cfg     Config
	logger  watermill.LoggerAdapter

	mu        sync.Mutex
	pending   map[string]*pendingRequest
	destroyed bool

	stop context.CancelFunc
}

var _ ports.Custodian = (*Client)(nil)

// NewClient creates a correlated transport over the given channel and
// starts its inbound demultiplexer.
func NewClient(channel ports.Channel, cfg Config, logger watermill.LoggerAdapter) (*Client, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	c := &Client{
		channel: channel,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		pending: make(map[string]*pendingRequest),
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel

	messages, err := channel.Subscribe(ctx, c.cfg.ResponseTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to response topic: %w", err)
	}

	go c.demux(messages)

	return c, nil
}

// Send emits one correlated request and waits for its settlement. A zero
// timeout uses the configured default.
func (c *Client) Send(ctx context.Context, action Action, payload *RequestPayload, timeout time.Duration) (json.RawMessage, error) {
	if timeout == 0 {
		timeout = c.cfg.DefaultTimeout
	}

	var rawPayload json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		rawPayload = raw
	}

	requestID := uuid.New().String()

	// Register before publishing so a same-tick response always finds its
	// entry.
	p := &pendingRequest{
		done: make(chan settlement, 1),
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, core.NewError(core.CodeDestroyed, "custodian client has been destroyed")
	}
	c.pending[requestID] = p
	p.timer = time.AfterFunc(timeout, func() {
		c.settle(requestID, settlement{err: c.timeoutError(action, timeout)})
	})
	c.mu.Unlock()

	env := RequestEnvelope{
		Type:      TypeRequest,
		Version:   ProtocolVersion,
		Action:    action,
		RequestID: requestID,
		Origin:    c.cfg.Origin,
		Payload:   rawPayload,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		c.settle(requestID, settlement{err: fmt.Errorf("failed to marshal envelope: %w", err)})
		return c.await(ctx, requestID, p)
	}

	c.logger.Trace("Sending custodian request", watermill.LogFields{
		"action":     string(action),
		"request_id": requestID,
	})

	if err := c.channel.Publish(c.cfg.RequestTopic, message.NewMessage(requestID, raw)); err != nil {
		c.settle(requestID, settlement{
			err: core.ExtensionNotFound(
				fmt.Sprintf("failed to reach SeedKey extension: %v", err),
				c.cfg.DownloadURL,
			),
		})
	}

	return c.await(ctx, requestID, p)
}

// await blocks until the request settles. Caller cancellation settles the
// entry itself, then drains whichever settlement won the race.
func (c *Client) await(ctx context.Context, requestID string, p *pendingRequest) (json.RawMessage, error) {
	select {
	case s := <-p.done:
		return s.result, s.err
	case <-ctx.Done():
		c.settle(requestID, settlement{err: fmt.Errorf("custodian request cancelled: %w", ctx.Err())})
		s := <-p.done
		return s.result, s.err
	}
}

// settle removes the entry and delivers the outcome. Removal from the
// pending table is the exactly-once arbiter: only the goroutine that finds
// the entry delivers, every later path is a no-op.
func (c *Client) settle(requestID string, s settlement) {
	c.mu.Lock()
	p, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	c.logger.Trace("Settled custodian request", watermill.LogFields{
		"request_id": requestID,
		"failed":     s.err != nil,
	})

	p.done <- s
}

// demux is the single inbound listener. It ignores messages that are not of
// the response shape or correlate to no known request.
func (c *Client) demux(messages <-chan *message.Message) {
	for msg := range messages {
		msg.Ack()

		var env ResponseEnvelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			c.logger.Debug("Ignoring malformed channel message", watermill.LogFields{
				"error": err.Error(),
			})
			continue
		}
		if env.Type != TypeResponse || env.RequestID == "" {
			continue
		}

		if env.Success {
			c.settle(env.RequestID, settlement{result: env.Result})
			continue
		}

		c.settle(env.RequestID, settlement{err: responseError(env.Error)})
	}
}

func responseError(re *ResponseError) error {
	if re == nil {
		return core.NewError(core.CodeServerError, "custodian reported an unspecified error")
	}
	code := core.ErrorCode(re.Code)
	if code == "" {
		code = core.CodeServerError
	}
	message := re.Message
	if message == "" {
		message = "custodian rejected the request"
	}
	return core.NewError(code, message)
}

// timeoutError maps a local-channel timeout to the not-found variant: the
// client cannot distinguish an absent custodian from a silent one, and
// absence is by far the more likely cause.
func (c *Client) timeoutError(action Action, timeout time.Duration) error {
	return core.ExtensionNotFound(
		fmt.Sprintf("no response from SeedKey extension for %s after %s", action, timeout),
		c.cfg.DownloadURL,
	)
}

// GetPublicKey returns the custodian's public key for the given domain.
func (c *Client) GetPublicKey(ctx context.Context, domain string) (string, error) {
	result, err := c.Send(ctx, ActionGetPublicKey, &RequestPayload{Domain: domain}, 0)
	if err != nil {
		return "", err
	}

	var res publicKeyResult
	if err := json.Unmarshal(result, &res); err != nil {
		return "", fmt.Errorf("failed to decode public key result: %w", err)
	}
	return res.PublicKey, nil
}

// SignChallenge asks the custodian to sign a backend-issued challenge.
func (c *Client) SignChallenge(ctx context.Context, challenge core.Challenge) (string, error) {
	result, err := c.Send(ctx, ActionSignChallenge, &RequestPayload{Challenge: &challenge}, 0)
	if err != nil {
		return "", err
	}

	var res signatureResult
	if err := json.Unmarshal(result, &res); err != nil {
		return "", fmt.Errorf("failed to decode signature result: %w", err)
	}
	return res.Signature, nil
}

// SignMessage asks the custodian to sign an arbitrary message.
func (c *Client) SignMessage(ctx context.Context, msg string) (string, error) {
	result, err := c.Send(ctx, ActionSignMessage, &RequestPayload{Message: msg}, 0)
	if err != nil {
		return "", err
	}

	var res signatureResult
	if err := json.Unmarshal(result, &res); err != nil {
		return "", fmt.Errorf("failed to decode signature result: %w", err)
	}
	return res.Signature, nil
}

// IsAvailable probes whether the custodian answers at all. Probes are
// existence checks, so every failure degrades to false instead of
// propagating.
func (c *Client) IsAvailable(ctx context.Context) bool {
	result, err := c.Send(ctx, ActionCheckAvailable, nil, c.cfg.ProbeTimeout)
	if err != nil {
		return false
	}

	var res availableResult
	if err := json.Unmarshal(result, &res); err != nil {
		return false
	}
	return res.Available
}

// IsInitialized probes whether the custodian holds an identity, degrading
// every failure to false.
func (c *Client) IsInitialized(ctx context.Context) bool {
	result, err := c.Send(ctx, ActionIsInitialized, nil, c.cfg.ProbeTimeout)
	if err != nil {
		return false
	}

	var res initializedResult
	if err := json.Unmarshal(result, &res); err != nil {
		return false
	}
	return res.Initialized
}

// CheckExtension sequences the availability probe, authoritative for "not
// installed", then the initialization probe, authoritative for "not
// configured". Success requires both.
func (c *Client) CheckExtension(ctx context.Context) error {
	if !c.IsAvailable(ctx) {
		return core.ExtensionNotFound("SeedKey extension not detected", c.cfg.DownloadURL)
	}
	if !c.IsInitialized(ctx) {
		return core.ExtensionNotInitialized("SeedKey extension has no identity configured")
	}
	return nil
}

// Destroy rejects every pending request, stops the inbound listener and
// makes subsequent sends fail fast. It is idempotent and safe to call from
// within a pending request's own continuation.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	c.stop()

	for requestID, p := range pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		c.logger.Trace("Rejecting pending request on destroy", watermill.LogFields{
			"request_id": requestID,
		})
		p.done <- settlement{err: core.NewError(core.CodeDestroyed, "custodian client destroyed while request was pending")}
	}
}
