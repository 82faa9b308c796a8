package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbessarab/seedkey-client-sdk/api"
	"github.com/mbessarab/seedkey-client-sdk/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return api.NewClient(api.Config{BaseURL: server.URL})
}

func TestRequestChallenge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/seedkey/challenge", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "k1", body["publicKey"])
		assert.Equal(t, "authenticate", body["action"])

		_ = json.NewEncoder(w).Encode(core.ChallengeGrant{
			Challenge: core.Challenge{
				Nonce:  "n1",
				Domain: "test.localhost",
				Action: core.ActionAuthenticate,
			},
			ChallengeID: "c1",
		})
	})

	grant, err := client.RequestChallenge(context.Background(), "k1", core.ActionAuthenticate)
	require.NoError(t, err)
	assert.Equal(t, "c1", grant.ChallengeID)
	assert.Equal(t, "n1", grant.Challenge.Nonce)
}

func TestBearerTokenIsCarried(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": core.UserProfile{ID: "u1", PublicKey: "k1"},
		})
	})

	user, err := client.User(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
}

func TestAbsentUserResolvesToNil(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty object", "{}"},
		{"null user", `{"user":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			user, err := client.User(context.Background(), "tok-1")
			require.NoError(t, err)
			assert.Nil(t, user)
		})
	}
}

func TestErrorFallbackDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.User(context.Background(), "tok-1")
	require.Error(t, err)

	var se *core.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, core.CodeServerError, se.Code)
	assert.Equal(t, "failed to fetch user", se.Message)
}

func TestStructuredErrorPassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "USER_NOT_FOUND",
			"message": "no account for this key",
			"hint":    "register first",
		})
	})

	_, err := client.Verify(context.Background(), core.VerifyRequest{})
	require.Error(t, err)

	var se *core.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, core.CodeUserNotFound, se.Code)
	assert.Equal(t, "no account for this key", se.Message)
	assert.Equal(t, "register first", se.Hint)
}

func TestNetworkFailureIsTranslated(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := api.NewClient(api.Config{BaseURL: url})

	_, err := client.RequestChallenge(context.Background(), "k1", core.ActionRegister)
	require.Error(t, err)
	assert.Equal(t, core.CodeNetworkError, core.CodeOf(err))
}

func TestRefreshDecodesTokenInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/seedkey/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refreshToken"])

		_ = json.NewEncoder(w).Encode(core.TokenInfo{
			AccessToken:  "a2",
			RefreshToken: "r2",
			ExpiresIn:    900,
		})
	})

	tokens, err := client.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, "r2", tokens.RefreshToken)
	assert.EqualValues(t, 900, tokens.ExpiresIn)
}

func TestLogout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/seedkey/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	assert.NoError(t, client.Logout(context.Background(), "tok-1"))
}
