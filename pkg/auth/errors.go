package auth

import "errors"

// Provider flow errors
var (
	ErrUnsupportedProvider = errors.New("unsupported authentication provider")
	ErrTokenExchange       = errors.New("failed to exchange authorization code")
	ErrProfileFetch        = errors.New("failed to fetch provider profile")
	ErrMissingEmail        = errors.New("no usable email from provider")
)

// Credential errors. Signature failures, malformed payloads, and expiry all
// collapse to ErrInvalidCredential; callers never learn which one it was.
var (
	ErrInvalidCredential = errors.New("invalid or expired credential")
	ErrCredentialUsed    = errors.New("credential already used")
)

// Linking decision errors
var (
	ErrInvalidAction = errors.New("invalid action, must be \"link\" or \"separate\"")
)

// Storage errors. Implementations of IdentityStorage return these sentinels;
// any other storage failure is opaque to the core.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("email already in use by another account")
)
