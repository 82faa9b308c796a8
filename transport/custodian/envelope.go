package custodian

import (
	"encoding/json"

	"github.com/mbessarab/seedkey-client-sdk/core"
)

// Message envelope types shared with the custodian.
const (
	TypeRequest  = "SEEDKEY_REQUEST"
	TypeResponse = "SEEDKEY_RESPONSE"

	// ProtocolVersion is the envelope version this client speaks.
	ProtocolVersion = "1.0"

	// DefaultRequestTopic and DefaultResponseTopic are the two broadcast
	// topics of the custodian channel. They must stay distinct so a
	// component never receives its own request as a response.
	DefaultRequestTopic  = "seedkey.requests"
	DefaultResponseTopic = "seedkey.responses"
)

// Action names a custodian operation.
type Action string

const (
	// ActionCheckAvailable probes whether the custodian answers at all.
	ActionCheckAvailable Action = "check_available"

	// ActionIsInitialized probes whether the custodian holds an identity.
	ActionIsInitialized Action = "is_initialized"

	// ActionGetPublicKey requests the public key for a domain.
	ActionGetPublicKey Action = "get_public_key"

	// ActionSignChallenge requests a signature over a backend challenge.
	ActionSignChallenge Action = "sign_challenge"

	// ActionSignMessage requests a signature over an arbitrary message.
	ActionSignMessage Action = "sign_message"
)

// RequestEnvelope is the outbound message carried on the request topic.
type RequestEnvelope struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	Action    Action          `json:"action"`
	RequestID string          `json:"requestId"`
	Origin    string          `json:"origin"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RequestPayload carries the action-specific request data.
type RequestPayload struct {
	Domain    string          `json:"domain,omitempty"`
	Challenge *core.Challenge `json:"challenge,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// ResponseError is the error shape the custodian embeds in failed responses.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseEnvelope is the inbound message carried on the response topic.
type ResponseEnvelope struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ResponseError  `json:"error,omitempty"`
}

// Result shapes returned by the custodian.

type availableResult struct {
	Available bool `json:"available"`
}

type initializedResult struct {
	Initialized bool `json:"initialized"`
}

type publicKeyResult struct {
	PublicKey string `json:"publicKey"`
}

type signatureResult struct {
	Signature string `json:"signature"`
}
