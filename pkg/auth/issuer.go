package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/credential"
)

// Credential purposes embedded in token claims so one credential kind can
// never be replayed as the other.
const (
	purposeSession = "session"
	purposeLinking = "link_accounts"
)

type sessionClaims struct {
	credential.StandardClaims
	Purpose string `json:"purpose"`
}

type linkingClaims struct {
	credential.StandardClaims
	Purpose string         `json:"purpose"`
	Context LinkingContext `json:"ctx"`
}

// Issuer creates and verifies the two credential kinds: the long-lived
// session credential and the short-lived linking credential. Both are
// stateless; expiry is the only built-in revocation.
type Issuer struct {
	signer     *credential.Signer
	sessionTTL time.Duration
	linkingTTL time.Duration
}

// IssuerOption configures an Issuer during construction.
type IssuerOption func(*Issuer)

// WithSessionTTL overrides the session credential validity window.
func WithSessionTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.sessionTTL = ttl
	}
}

// WithLinkingTTL overrides the linking credential validity window.
func WithLinkingTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.linkingTTL = ttl
	}
}

// NewIssuer constructs an Issuer signing with the given shared secret.
// Defaults: 7-day sessions, 10-minute linking windows.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	signer, err := credential.NewSignerFromString(secret)
	if err != nil {
		return nil, err
	}

	i := &Issuer{
		signer:     signer,
		sessionTTL: 7 * 24 * time.Hour,
		linkingTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SessionTTL returns the configured session validity window, used to align
// cookie max-age with credential expiry.
func (i *Issuer) SessionTTL() time.Duration { return i.sessionTTL }

// LinkingTTL returns the configured linking validity window.
func (i *Issuer) LinkingTTL() time.Duration { return i.linkingTTL }

// IssueSession signs a session credential for the given account.
func (i *Issuer) IssueSession(accountID uuid.UUID) (string, error) {
	now := time.Now()
	return i.signer.Generate(sessionClaims{
		StandardClaims: credential.StandardClaims{
			Subject:   accountID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.sessionTTL).Unix(),
		},
		Purpose: purposeSession,
	})
}

// VerifySession checks signature and expiry and returns the bound account id.
// Every failure mode collapses to ErrInvalidCredential.
func (i *Issuer) VerifySession(token string) (uuid.UUID, error) {
	var claims sessionClaims
	if err := i.signer.Parse(token, &claims); err != nil {
		return uuid.Nil, ErrInvalidCredential
	}
	if claims.Purpose != purposeSession {
		return uuid.Nil, ErrInvalidCredential
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidCredential
	}
	return accountID, nil
}

// IssueLinking signs a linking credential carrying the collision context. A
// fresh token id is assigned for single-use tracking.
func (i *Issuer) IssueLinking(lc LinkingContext) (string, error) {
	lc.TokenID = uuid.NewString()

	now := time.Now()
	return i.signer.Generate(linkingClaims{
		StandardClaims: credential.StandardClaims{
			ID:        lc.TokenID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.linkingTTL).Unix(),
		},
		Purpose: purposeLinking,
		Context: lc,
	})
}

// VerifyLinking checks signature and expiry and returns the carried collision
// context. Every failure mode collapses to ErrInvalidCredential.
func (i *Issuer) VerifyLinking(token string) (LinkingContext, error) {
	var claims linkingClaims
	if err := i.signer.Parse(token, &claims); err != nil {
		return LinkingContext{}, ErrInvalidCredential
	}
	if claims.Purpose != purposeLinking {
		return LinkingContext{}, ErrInvalidCredential
	}
	return claims.Context, nil
}
