package core

// ChallengeAction names the flow a challenge was issued for.
type ChallengeAction string

const (
	// ActionRegister marks a challenge issued for account registration.
	ActionRegister ChallengeAction = "register"

	// ActionAuthenticate marks a challenge issued for login.
	ActionAuthenticate ChallengeAction = "authenticate"
)

// Challenge is a backend-issued, time-bounded, single-use nonce structure.
// The client treats it as opaque: it is passed to the custodian for signing
// and back to the backend for verification, never mutated or re-validated
// locally (expiry and single-use are enforced by the backend).
type Challenge struct {
	Nonce     string          `json:"nonce"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
	Domain    string          `json:"domain"`
	Action    ChallengeAction `json:"action"`
	ExpiresAt int64           `json:"expiresAt"` // ms since epoch
}

// ChallengeGrant pairs an issued challenge with its backend-side identifier.
type ChallengeGrant struct {
	Challenge   Challenge `json:"challenge"`
	ChallengeID string    `json:"challengeId"`
}

// TokenInfo is the token material issued by the backend on a successful
// registration, verification or refresh.
type TokenInfo struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

// UserProfile describes the account an authentication flow resolved to.
type UserProfile struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	CreatedAt string `json:"createdAt,omitempty"`
	LastLogin string `json:"lastLogin,omitempty"`
}

// ResultAction names which flow produced an AuthResult. The orchestrator is
// authoritative for this field regardless of what the backend reports.
type ResultAction string

const (
	// ResultLogin is set on results produced by the authenticate flow.
	ResultLogin ResultAction = "login"

	// ResultRegister is set on results produced by the register flow.
	ResultRegister ResultAction = "register"
)

// AuthResult is the unified outcome of a completed flow. It is produced once
// per successful invocation, returned to the caller and not retained.
type AuthResult struct {
	Success bool         `json:"success"`
	Action  ResultAction `json:"action"`
	User    *UserProfile `json:"user,omitempty"`
	Token   *TokenInfo   `json:"token,omitempty"`
}

// DeviceMetadata accompanies a registration request.
type DeviceMetadata struct {
	DeviceName string `json:"deviceName,omitempty"`
	SDKVersion string `json:"sdkVersion,omitempty"`
}

// RegisterRequest is the payload of the registration endpoint.
type RegisterRequest struct {
	PublicKey string          `json:"publicKey"`
	Challenge Challenge       `json:"challenge"`
	Signature string          `json:"signature"`
	Metadata  *DeviceMetadata `json:"metadata,omitempty"`
}

// VerifyRequest is the payload of the verification endpoint.
type VerifyRequest struct {
	ChallengeID string    `json:"challengeId"`
	Challenge   Challenge `json:"challenge"`
	Signature   string    `json:"signature"`
	PublicKey   string    `json:"publicKey"`
}
