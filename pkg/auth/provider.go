package auth

import "context"

// Provider identifies an external identity provider speaking the OAuth
// authorization-code flow.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderGithub  Provider = "github"
	ProviderDiscord Provider = "discord"
)

// ParseProvider maps a route/request value to a known provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderGithub, ProviderDiscord:
		return Provider(s), nil
	default:
		return "", ErrUnsupportedProvider
	}
}

func (p Provider) String() string { return string(p) }

// ProviderIdentity is the normalized profile produced by an adapter on every
// callback, regardless of provider. It is ephemeral and never persisted
// directly; accounts are mutated only through IdentityStorage.
type ProviderIdentity struct {
	Provider       Provider `json:"provider"`
	ProviderUserID string   `json:"provider_user_id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"display_name"`
	AvatarURL      string   `json:"avatar_url"`
}

// ProviderAdapter abstracts provider-specific OAuth behavior behind a
// minimal, provider-agnostic interface. Implementations encapsulate all
// protocol details (oauth2.Config, token exchange, API calls) and expose only
// the primitives the orchestrator needs. The orchestrator selects adapters by
// Provider value, never by inspecting response shapes.
type ProviderAdapter interface {
	// ProviderID returns the stable provider identifier used for storage and
	// logging.
	ProviderID() Provider

	// AuthCodeURL builds the provider authorization URL, embedding client id,
	// redirect URI, requested scopes, response_type=code, and any
	// provider-specific extras.
	AuthCodeURL() string

	// ResolveIdentity performs the end-to-end flow for an authorization code:
	// exchanges the code for an access token, calls the provider's profile
	// endpoint(s), and returns a normalized ProviderIdentity.
	//
	// Token exchange failures return ErrTokenExchange. Profile endpoint
	// failures return errors wrapping ErrProfileFetch. A provider asserting
	// no usable email returns ErrMissingEmail.
	ResolveIdentity(ctx context.Context, code string) (ProviderIdentity, error)
}
