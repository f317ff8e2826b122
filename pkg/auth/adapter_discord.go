package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// discordEndpoint is Discord's OAuth2 endpoint; x/oauth2 does not ship one.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// DiscordOAuthConfig holds configuration for the Discord OAuth provider.
type DiscordOAuthConfig struct {
	ClientID     string   `env:"DISCORD_CLIENT_ID,required"`
	ClientSecret string   `env:"DISCORD_CLIENT_SECRET,required"`
	RedirectURL  string   `env:"DISCORD_REDIRECT_URL,required"`
	Scopes       []string `env:"DISCORD_SCOPES" envSeparator:"," envDefault:"identify,email"`
}

type discordAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewDiscordAdapter creates a new Discord OAuth provider adapter.
func NewDiscordAdapter(cfg DiscordOAuthConfig) ProviderAdapter {
	return &discordAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     discordEndpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *discordAdapter) ProviderID() Provider {
	return ProviderDiscord
}

func (a *discordAdapter) AuthCodeURL() string {
	return a.conf.AuthCodeURL("")
}

// ResolveIdentity exchanges the authorization code and fetches the user from
// Discord's /users/@me endpoint. Display name prefers the global display name
// over the username; the avatar URL is synthesized from the CDN path, falling
// back to a default avatar indexed by discriminator modulo 5.
func (a *discordAdapter) ResolveIdentity(ctx context.Context, code string) (ProviderIdentity, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderIdentity{}, ErrTokenExchange
	}

	u, err := a.fetchDiscordUser(ctx, tok.AccessToken)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("%w: discord: %w", ErrProfileFetch, err)
	}
	if u.Email == "" {
		return ProviderIdentity{}, ErrMissingEmail
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	if name == "" {
		name = "Discord User"
	}

	return ProviderIdentity{
		Provider:       ProviderDiscord,
		ProviderUserID: u.ID,
		Email:          u.Email,
		DisplayName:    name,
		AvatarURL:      discordAvatarURL(u),
	}, nil
}

// discordAvatarURL builds the CDN avatar path for the user. Users without a
// custom avatar get one of Discord's five default avatars, selected by
// discriminator modulo 5.
func discordAvatarURL(u *dUser) string {
	if u.Avatar != "" {
		return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png?size=256", u.ID, u.Avatar)
	}

	disc, err := strconv.Atoi(u.Discriminator)
	if err != nil {
		disc = 0
	}
	return fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", disc%5)
}

func (a *discordAdapter) fetchDiscordUser(ctx context.Context, accessToken string) (*dUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://discord.com/api/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord api returned status %d", resp.StatusCode)
	}

	var user dUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

type dUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
}

// Compile-time interface assertion
var _ ProviderAdapter = (*discordAdapter)(nil)
