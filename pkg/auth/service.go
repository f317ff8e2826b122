package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/sanitizer"
)

// CallbackResult is the outcome of a provider callback. Exactly one of
// SessionToken or LinkingToken is set: a session token on the terminal
// create/update paths, a linking token when the email collides with an
// existing account that has not linked the incoming provider.
type CallbackResult struct {
	SessionToken string
	Account      *Account
	LinkingToken string
}

// Collision reports whether the callback suspended for a user decision.
func (r *CallbackResult) Collision() bool { return r.LinkingToken != "" }

// LinkResult is the outcome of the linking decision step.
type LinkResult struct {
	Action       string
	Account      *Account
	SessionToken string
}

// Service orchestrates the sign-in flow: provider adapter, linking decision
// engine, and credential issuer, in that order. Adapters are selected by
// Provider value carried in the request, never by inspecting responses.
type Service struct {
	storage  IdentityStorage
	adapters map[Provider]ProviderAdapter
	issuer   *Issuer
	guard    ReplayGuard
	logger   *slog.Logger
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger configures the logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithReplayGuard overrides the single-use tracker for linking credentials.
func WithReplayGuard(g ReplayGuard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

// NewService constructs the orchestrator. Defaults: in-memory replay guard,
// discarding logger.
func NewService(storage IdentityStorage, issuer *Issuer, adapters []ProviderAdapter, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		adapters: make(map[Provider]ProviderAdapter, len(adapters)),
		issuer:   issuer,
		guard:    NewMemoryReplayGuard(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, a := range adapters {
		s.adapters[a.ProviderID()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthCodeURL returns the authorization URL for the given provider.
func (s *Service) AuthCodeURL(provider Provider) (string, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return "", ErrUnsupportedProvider
	}
	return adapter.AuthCodeURL(), nil
}

// HandleCallback drives a provider callback end to end: code exchange and
// profile fetch through the adapter, the linking decision against the stored
// account for the email, then credential issuance. On the collision path the
// store is left untouched and a linking credential is returned instead of a
// session.
func (s *Service) HandleCallback(ctx context.Context, provider Provider, code string) (*CallbackResult, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	identity, err := adapter.ResolveIdentity(ctx, code)
	if err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, ErrMissingEmail
	}
	identity.Email = sanitizer.NormalizeEmail(identity.Email)

	existing, err := s.storage.FindByEmail(ctx, identity.Email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}

	switch Decide(existing, provider) {
	case DecisionCollision:
		token, err := s.issuer.IssueLinking(LinkingContext{
			Email:                   identity.Email,
			Provider:                provider,
			Identity:                identity,
			ExistingAccountID:       existing.ID,
			ExistingPrimaryProvider: existing.PrimaryProvider,
			ExistingLinkedProviders: existing.LinkedProviders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue linking credential: %w", err)
		}

		s.logger.Info("sign-in suspended on provider collision",
			logger.Provider(provider.String()),
			logger.AccountID(existing.ID.String()),
			logger.Component("auth"),
			slog.String("email", sanitizer.MaskEmail(identity.Email)),
		)
		return &CallbackResult{LinkingToken: token}, nil

	default: // DecisionCreate, DecisionUpdate
		account, err := s.storage.UpsertByProvider(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert account: %w", err)
		}
		return s.sessionResult(account)
	}
}

// ResolveCollision consumes a linking credential and the user's decision.
// "link" attaches the incoming provider to the existing account; "separate"
// creates/updates an account for the incoming identity as if no collision had
// occurred, which surfaces ErrDuplicateEmail when the store enforces email
// uniqueness by rejection rather than upsert.
func (s *Service) ResolveCollision(ctx context.Context, token, action string) (*LinkResult, error) {
	lc, err := s.issuer.VerifyLinking(token)
	if err != nil {
		return nil, err
	}

	if action != ActionLink && action != ActionSeparate {
		return nil, ErrInvalidAction
	}

	// Single-use: consume the token id before any store mutation so a
	// replayed credential cannot attach or create twice.
	if err := s.guard.Consume(ctx, lc.TokenID, s.issuer.LinkingTTL()); err != nil {
		if errors.Is(err, ErrCredentialUsed) {
			return nil, ErrCredentialUsed
		}
		return nil, fmt.Errorf("failed to consume linking credential: %w", err)
	}

	var account *Account
	switch action {
	case ActionLink:
		account, err = s.storage.AttachProvider(ctx, lc.ExistingAccountID, lc.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s provider: %w", lc.Provider, err)
		}
	case ActionSeparate:
		account, err = s.storage.UpsertByProvider(ctx, lc.Identity)
		if err != nil {
			return nil, fmt.Errorf("failed to create separate account: %w", err)
		}
	}

	sessionToken, err := s.issuer.IssueSession(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session credential: %w", err)
	}

	s.logger.Info("provider collision resolved",
		slog.String("action", action),
		logger.Provider(lc.Provider.String()),
		logger.AccountID(account.ID.String()),
		logger.Component("auth"),
	)

	return &LinkResult{
		Action:       action,
		Account:      account,
		SessionToken: sessionToken,
	}, nil
}

// CurrentAccount verifies a session credential and loads the bound account.
func (s *Service) CurrentAccount(ctx context.Context, sessionToken string) (*Account, error) {
	accountID, err := s.issuer.VerifySession(sessionToken)
	if err != nil {
		return nil, err
	}

	account, err := s.storage.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Service) sessionResult(account *Account) (*CallbackResult, error) {
	token, err := s.issuer.IssueSession(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session credential: %w", err)
	}
	return &CallbackResult{
		SessionToken: token,
		Account:      account,
	}, nil
}

// SessionTTL exposes the issuer's session window for cookie alignment.
func (s *Service) SessionTTL() time.Duration { return s.issuer.SessionTTL() }
