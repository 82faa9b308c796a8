// Package api is the stateless request/response binding to the SeedKey
// verification backend. It translates HTTP outcomes into the taxonomy and
// nothing else: no retries, no caching, no token storage.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mbessarab/seedkey-client-sdk/core"
	"github.com/mbessarab/seedkey-client-sdk/ports"
)

const basePath = "/api/v1/seedkey"

// Config holds the wiring options of the API client.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is optional; http.DefaultClient is used when nil.
	HTTPClient *http.Client
}

// Client calls the six backend endpoints. Inputs are fully-formed domain
// values; every request carries Content-Type: application/json and, where
// required, a caller-supplied bearer token.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.Backend = (*Client)(nil)

// NewClient creates an API client for the given backend.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

type challengeRequest struct {
	PublicKey string               `json:"publicKey"`
	Action    core.ChallengeAction `json:"action"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	User *core.UserProfile `json:"user"`
}

// errorResponse is the error body of a non-2xx response. All fields are
// optional; absent ones fall back per operation.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

// RequestChallenge asks the backend to issue a challenge.
func (c *Client) RequestChallenge(ctx context.Context, publicKey string, action core.ChallengeAction) (*core.ChallengeGrant, error) {
	var out core.ChallengeGrant
	req := challengeRequest{PublicKey: publicKey, Action: action}
	if err := c.call(ctx, http.MethodPost, "/challenge", req, "", &out, "failed to request challenge"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register submits a signed registration challenge.
func (c *Client) Register(ctx context.Context, req core.RegisterRequest) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := c.call(ctx, http.MethodPost, "/register", req, "", &out, "registration failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify submits a signed authentication challenge.
func (c *Client) Verify(ctx context.Context, req core.VerifyRequest) (*core.AuthResult, error) {
	var out core.AuthResult
	if err := c.call(ctx, http.MethodPost, "/verify", req, "", &out, "verification failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

// User fetches the profile for the bearer token. An empty success body
// resolves to a nil profile, not an error.
func (c *Client) User(ctx context.Context, accessToken string) (*core.UserProfile, error) {
	var out userResponse
	if err := c.call(ctx, http.MethodGet, "/user", nil, accessToken, &out, "failed to fetch user"); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout invalidates the bearer token server-side.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, http.MethodPost, "/logout", nil, accessToken, nil, "logout failed")
}

// Refresh exchanges a refresh token for fresh token material.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*core.TokenInfo, error) {
	var out core.TokenInfo
	req := refreshRequest{RefreshToken: refreshToken}
	if err := c.call(ctx, http.MethodPost, "/refresh", req, "", &out, "token refresh failed"); err != nil {
		return nil, err
	}
	return &out, nil
}

// call performs one JSON round-trip. The network call failing outright is a
// NETWORK_ERROR; a structured non-success response is translated with
// defaultMessage and SERVER_ERROR as fallbacks.
func (c *Client) call(ctx context.Context, method, path string, body any, bearer string, out any, defaultMessage string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.NewError(core.CodeNetworkError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return translateError(resp.Body, defaultMessage)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// An empty success body resolves to the zero value.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return core.NewError(core.CodeServerError, "failed to decode response: "+err.Error())
	}
	return nil
}

func translateError(body io.Reader, defaultMessage string) error {
	var er errorResponse
	// A body that is empty or not JSON falls through to the defaults.
	_ = json.NewDecoder(body).Decode(&er)

	code := core.ErrorCode(er.Error)
	if code == "" {
		code = core.CodeServerError
	}
	message := er.Message
	if message == "" {
		message = defaultMessage
	}

	return &core.Error{
		Code:    code,
		Message: message,
		Hint:    er.Hint,
	}
}
