// Package credential implements the signed, time-limited token format shared
// by session and linking credentials: a compact HS256 JWT with temporal
// claim validation.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JWT header constants required by RFC 7519
const (
	HeaderType      = "JWT"
	HeaderAlgorithm = "HS256"
)

var (
	ErrMissingSigningKey       = errors.New("credential: missing signing key")
	ErrMissingClaims           = errors.New("credential: missing claims")
	ErrInvalidToken            = errors.New("credential: invalid token")
	ErrExpiredToken            = errors.New("credential: token expired")
	ErrInvalidSignature        = errors.New("credential: invalid signature")
	ErrUnexpectedSigningMethod = errors.New("credential: unexpected signing method")
)

// Header represents the JWT header as defined in RFC 7515
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// StandardClaims represents the registered JWT claims defined in RFC 7519.
// Temporal claims use Unix timestamps for consistent validation.
type StandardClaims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid validates the temporal claims against current time.
// Zero values are treated as unset (per RFC 7519) and are ignored.
func (c StandardClaims) Valid() error {
	now := time.Now().Unix()

	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return ErrExpiredToken
	}

	if c.NotBefore > 0 && now < c.NotBefore {
		return ErrInvalidToken
	}

	return nil
}

// Signer handles token generation and validation using HMAC-SHA256.
// The signing key is kept in memory only and should be at least 32 bytes.
type Signer struct {
	signingKey []byte
}

// NewSigner creates a new signer with the provided key.
func NewSigner(signingKey []byte) (*Signer, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	return &Signer{signingKey: signingKey}, nil
}

// NewSignerFromString is a convenience wrapper around NewSigner for
// string-based configuration.
func NewSignerFromString(signingKey string) (*Signer, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}

	return &Signer{signingKey: []byte(signingKey)}, nil
}

// Generate creates a signed token with the given claims.
// Accepts any JSON-serializable claims structure.
func (s *Signer) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	header := Header{
		Type:      HeaderType,
		Algorithm: HeaderAlgorithm,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	payload := base64URLEncode(headerJSON) + "." + base64URLEncode(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse validates a token and unmarshals its claims into the provided
// structure. Performs signature verification, algorithm pinning, and temporal
// claim checks when the claims type implements Valid() error.
func (s *Signer) Parse(tokenString string, claims any) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	headerEncoded := parts[0]
	claimsEncoded := parts[1]
	signatureEncoded := parts[2]

	// Constant-time comparison prevents timing attacks on the signature.
	payload := headerEncoded + "." + claimsEncoded
	expectedSignature := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(signatureEncoded), []byte(expectedSignature)) != 1 {
		return ErrInvalidSignature
	}

	headerJSON, err := base64URLDecode(headerEncoded)
	if err != nil {
		return fmt.Errorf("failed to decode header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return fmt.Errorf("failed to unmarshal header: %w", err)
	}

	// Reject unexpected algorithms to prevent algorithm confusion attacks.
	if header.Algorithm != HeaderAlgorithm {
		return ErrUnexpectedSigningMethod
	}

	claimsJSON, err := base64URLDecode(claimsEncoded)
	if err != nil {
		return fmt.Errorf("failed to decode claims: %w", err)
	}

	if err := json.Unmarshal(claimsJSON, claims); err != nil {
		return fmt.Errorf("failed to unmarshal claims: %w", err)
	}

	if validator, ok := claims.(interface{ Valid() error }); ok {
		if err := validator.Valid(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Signer) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return base64URLEncode(h.Sum(nil))
}

// base64URLEncode encodes without padding, as required by RFC 7515.
func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// base64URLDecode tolerates padded input for robustness.
func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
