package seedkey

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialized is returned by Init when a default instance exists.
var ErrAlreadyInitialized = errors.New("seedkey: default instance already initialized")

// The default-instance registry gives applications a process-wide SDK with
// an explicit construct-once / reset lifecycle. Every type remains
// independently constructible via New for callers that want their own
// instances.
var (
	defaultMu  sync.Mutex
	defaultSDK *SDK
)

// Init constructs the process-wide default instance. It fails if one
// already exists; call Reset first to reconstruct.
func Init(cfg Config) (*SDK, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSDK != nil {
		return nil, ErrAlreadyInitialized
	}

	sdk, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defaultSDK = sdk
	return sdk, nil
}

// Default returns the process-wide instance, or nil before Init.
func Default() *SDK {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	return defaultSDK
}

// Reset tears down the default instance, rejecting its pending custodian
// requests, and allows a subsequent Init. Safe to call when no instance
// exists.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSDK != nil {
		_ = defaultSDK.Close()
		defaultSDK = nil
	}
}
