package core

import "errors"

// ErrorCode identifies a failure class in the SeedKey taxonomy. Codes are
// shared verbatim between the custodian channel, the backend API and this
// SDK, so callers can dispatch on them uniformly.
type ErrorCode string

const (
	// CodeExtensionNotFound means the custodian channel is unreachable,
	// most likely because the extension is not installed or not running.
	CodeExtensionNotFound ErrorCode = "EXTENSION_NOT_FOUND"

	// CodeExtensionNotInitialized means the custodian is reachable but
	// holds no identity yet.
	CodeExtensionNotInitialized ErrorCode = "EXTENSION_NOT_INITIALIZED"

	// CodeExtensionLocked means the custodian refused to sign while locked.
	CodeExtensionLocked ErrorCode = "EXTENSION_LOCKED"

	// CodeTimeout is a custodian-reported timeout.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeUserRejected means the user declined the operation in the custodian.
	CodeUserRejected ErrorCode = "USER_REJECTED"

	// CodeBiometricFailed means the custodian's biometric check failed.
	CodeBiometricFailed ErrorCode = "BIOMETRIC_FAILED"

	// CodeDomainMismatch is a custodian-side protocol validation failure.
	CodeDomainMismatch ErrorCode = "DOMAIN_MISMATCH"

	// CodeInvalidChallenge is a custodian-side challenge validation failure.
	CodeInvalidChallenge ErrorCode = "INVALID_CHALLENGE"

	// CodeNetworkError means the backend call could not complete.
	CodeNetworkError ErrorCode = "NETWORK_ERROR"

	// CodeServerError is the generic backend failure code.
	CodeServerError ErrorCode = "SERVER_ERROR"

	// CodeChallengeExpired means the backend rejected an expired challenge.
	CodeChallengeExpired ErrorCode = "CHALLENGE_EXPIRED"

	// CodeNonceReused means the backend saw the challenge nonce twice.
	CodeNonceReused ErrorCode = "NONCE_REUSED"

	// CodeUserNotFound means no account exists for the presented public key.
	CodeUserNotFound ErrorCode = "USER_NOT_FOUND"

	// CodeUserExists means an account already exists for the public key.
	CodeUserExists ErrorCode = "USER_EXISTS"

	// CodeInvalidSignature means the backend rejected the challenge signature.
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// CodeInvalidToken means the backend rejected the presented token.
	CodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// CodeDestroyed means the correlated transport was torn down while the
	// request was pending.
	CodeDestroyed ErrorCode = "DESTROYED"
)

// Error is the single structured error shape surfaced by every component.
// It is a terminal value: lower-level failures are replaced, not chained.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Hint carries a suggested next action for direct UI prompting.
	Hint string `json:"hint,omitempty"`

	// DownloadURL is set on the not-found variant so callers can point the
	// user at the extension install page.
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// NewError creates a taxonomy error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ExtensionNotFound builds the not-found variant with remediation metadata.
func ExtensionNotFound(message, downloadURL string) *Error {
	return &Error{
		Code:        CodeExtensionNotFound,
		Message:     message,
		Hint:        "Install the SeedKey extension and reload the page",
		DownloadURL: downloadURL,
	}
}

// ExtensionNotInitialized builds the not-configured variant.
func ExtensionNotInitialized(message string) *Error {
	return &Error{
		Code:    CodeExtensionNotInitialized,
		Message: message,
		Hint:    "Open the SeedKey extension and create or import an identity",
	}
}

// CodeOf extracts the taxonomy code from err, unwrapping as needed.
// It returns an empty code when err carries no *Error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
