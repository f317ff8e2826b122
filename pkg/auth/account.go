package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account is the durable identity record consolidating one or more provider
// identities under a single email. Email is the sole collision key across
// providers; LinkedProviders always contains PrimaryProvider.
type Account struct {
	ID              uuid.UUID
	Email           string
	DisplayName     string
	AvatarURL       string
	PrimaryProvider Provider
	LinkedProviders []Provider

	// Per-provider external ids. Empty when the provider is not linked.
	GoogleID  string
	GithubID  string
	DiscordID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked reports whether the given provider is already attached to the
// account.
func (a *Account) Linked(p Provider) bool {
	for _, lp := range a.LinkedProviders {
		if lp == p {
			return true
		}
	}
	return false
}

// ProviderUserID returns the external id recorded for the given provider, or
// empty when the provider is not linked.
func (a *Account) ProviderUserID(p Provider) string {
	switch p {
	case ProviderGoogle:
		return a.GoogleID
	case ProviderGithub:
		return a.GithubID
	case ProviderDiscord:
		return a.DiscordID
	default:
		return ""
	}
}
