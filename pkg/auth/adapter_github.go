package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubOAuthConfig holds configuration for the GitHub OAuth provider.
type GitHubOAuthConfig struct {
	ClientID     string   `env:"GITHUB_CLIENT_ID,required"`
	ClientSecret string   `env:"GITHUB_CLIENT_SECRET,required"`
	RedirectURL  string   `env:"GITHUB_REDIRECT_URL,required"`
	Scopes       []string `env:"GITHUB_SCOPES" envSeparator:"," envDefault:"user:email"`
}

type githubAdapter struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

// NewGitHubAdapter creates a new GitHub OAuth provider adapter.
func NewGitHubAdapter(cfg GitHubOAuthConfig) ProviderAdapter {
	return &githubAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *githubAdapter) ProviderID() Provider {
	return ProviderGithub
}

func (a *githubAdapter) AuthCodeURL() string {
	return a.conf.AuthCodeURL("")
}

// ResolveIdentity exchanges the authorization code and fetches the user
// profile from GitHub. When the profile omits the email (private email
// setting), a secondary request to /user/emails selects the address flagged
// primary.
func (a *githubAdapter) ResolveIdentity(ctx context.Context, code string) (ProviderIdentity, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return ProviderIdentity{}, ErrTokenExchange
	}

	u, err := a.fetchGitHubUser(ctx, tok.AccessToken)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("%w: github: %w", ErrProfileFetch, err)
	}

	email := u.Email
	if email == "" {
		emails, err := a.fetchGitHubEmails(ctx, tok.AccessToken)
		if err != nil {
			return ProviderIdentity{}, fmt.Errorf("%w: github emails: %w", ErrProfileFetch, err)
		}
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return ProviderIdentity{}, ErrMissingEmail
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return ProviderIdentity{
		Provider:       ProviderGithub,
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		DisplayName:    name,
		AvatarURL:      u.AvatarURL,
	}, nil
}

func (a *githubAdapter) fetchGitHubUser(ctx context.Context, accessToken string) (*ghUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var user ghUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (a *githubAdapter) fetchGitHubEmails(ctx context.Context, accessToken string) ([]ghEmail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user/emails", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var emails []ghEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return nil, err
	}

	return emails, nil
}

type ghUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Compile-time interface assertion
var _ ProviderAdapter = (*githubAdapter)(nil)
