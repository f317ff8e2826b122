// Package auth exposes the social sign-in flows over HTTP: sign-in
// initiation, provider callbacks, the account-linking decision endpoint, and
// session introspection.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/cookie"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

const sessionCookie = "session"

// Redirect targets relative to the app base URL.
const (
	dashboardPath   = "/dashboard"
	homePath        = "/"
	linkAccountPath = "/auth/link-account"
)

// Coarse error codes carried on failure redirects. Internal error text never
// reaches the browser.
const (
	errCodeOAuth      = "oauth_error"
	errCodeNoCode     = "missing_code"
	errCodeNoEmail    = "no_email"
	errCodeAuthFailed = "authentication_failed"
)

// Authenticator is the orchestration surface the HTTP handlers drive.
// Implemented by pkg/auth.Service.
type Authenticator interface {
	AuthCodeURL(provider auth.Provider) (string, error)
	HandleCallback(ctx context.Context, provider auth.Provider, code string) (*auth.CallbackResult, error)
	ResolveCollision(ctx context.Context, token, action string) (*auth.LinkResult, error)
	CurrentAccount(ctx context.Context, sessionToken string) (*auth.Account, error)
	SessionTTL() time.Duration
}

// Config holds the module's environment-provided settings.
type Config struct {
	// AppURL is the base application URL used to build redirect targets.
	AppURL string `env:"APP_URL,required"`
	// SecureCookies toggles the Secure attribute on the session cookie;
	// enabled in production where the app is served over TLS.
	SecureCookies bool `env:"SECURE_COOKIES" envDefault:"false"`
}

// Handler serves the authentication endpoints.
type Handler struct {
	svc     Authenticator
	cookies *cookie.Manager
	appURL  string
	secure  bool
	logger  *slog.Logger
}

// HandlerOption configures a Handler during construction.
type HandlerOption func(*Handler)

// WithLogger configures the logger for the handler.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler constructs the HTTP handler for the auth module.
func NewHandler(svc Authenticator, cookies *cookie.Manager, cfg Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:     svc,
		cookies: cookies,
		appURL:  strings.TrimRight(cfg.AppURL, "/"),
		secure:  cfg.SecureCookies,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SignIn redirects the browser to the selected provider's authorization URL.
// The provider defaults to Google when the selector is absent.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	selector := r.URL.Query().Get("provider")
	if selector == "" {
		selector = auth.ProviderGoogle.String()
	}

	provider, err := auth.ParseProvider(selector)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unsupported authentication provider"})
		return
	}

	authURL, err := h.svc.AuthCodeURL(provider)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unsupported authentication provider"})
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the provider redirect carrying the authorization code. An
// explicit provider error or a missing code short-circuits before any
// provider call; downstream failures collapse to coarse error codes on the
// failure redirect. No partial state is committed on failure paths.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, err := auth.ParseProvider(providerParam(r))
	if err != nil {
		h.redirectError(w, r, errCodeAuthFailed)
		return
	}

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Warn("provider reported authorization error",
			logger.Provider(provider.String()),
			logger.Handler("callback"),
			slog.String("provider_error", providerErr),
		)
		h.redirectError(w, r, errCodeOAuth)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirectError(w, r, errCodeNoCode)
		return
	}

	result, err := h.svc.HandleCallback(r.Context(), provider, code)
	if err != nil {
		h.logger.Error("callback failed",
			logger.Provider(provider.String()),
			logger.Handler("callback"),
			logger.Error(err),
		)
		if errors.Is(err, auth.ErrMissingEmail) {
			h.redirectError(w, r, errCodeNoEmail)
			return
		}
		h.redirectError(w, r, errCodeAuthFailed)
		return
	}

	if result.Collision() {
		http.Redirect(w, r, h.appURL+linkAccountPath+"?token="+result.LinkingToken, http.StatusFound)
		return
	}

	h.setSessionCookie(w, result.SessionToken)
	http.Redirect(w, r, h.appURL+dashboardPath, http.StatusFound)
}

type linkRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

type linkResponse struct {
	Success     bool   `json:"success"`
	Action      string `json:"action"`
	RedirectURL string `json:"redirectUrl"`
}

// LinkAccounts handles the user's link-vs-separate decision for a suspended
// sign-in. Unlike the callback flow this is a JSON API: failures return
// structured error bodies instead of redirects.
func (h *Handler) LinkAccounts(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing token or action parameter"})
		return
	}

	result, err := h.svc.ResolveCollision(r.Context(), req.Token, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredential), errors.Is(err, auth.ErrCredentialUsed):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid or expired linking token"})
		case errors.Is(err, auth.ErrInvalidAction):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: `Invalid action. Must be "link" or "separate"`})
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeJSON(w, http.StatusConflict, errorResponse{Error: "Email already in use"})
		default:
			h.logger.Error("account linking failed",
				logger.Handler("link_accounts"),
				logger.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process account linking"})
		}
		return
	}

	h.setSessionCookie(w, result.SessionToken)
	writeJSON(w, http.StatusOK, linkResponse{
		Success:     true,
		Action:      result.Action,
		RedirectURL: dashboardPath,
	})
}

type accountResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type meResponse struct {
	User *accountResponse `json:"user"`
}

// Me returns the current account's public fields, or a null user when the
// session cookie is absent, invalid, or expired. Always 200.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	token, err := h.cookies.Get(r, sessionCookie)
	if err != nil {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}

	account, err := h.svc.CurrentAccount(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: &accountResponse{
		ID:          account.ID.String(),
		Email:       account.Email,
		DisplayName: account.DisplayName,
		AvatarURL:   account.AvatarURL,
	}})
}

type successResponse struct {
	Success bool `json:"success"`
}

// SignOut clears the session cookie. Stateless credentials cannot be revoked
// server-side; the cookie removal ends the browser session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.cookies.Delete(w, sessionCookie)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	h.cookies.Set(w, sessionCookie, token,
		cookie.WithMaxAge(int(h.svc.SessionTTL().Seconds())),
		cookie.WithSecure(h.secure),
	)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.appURL+homePath+"?error="+code, http.StatusFound)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
