package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, opts ...IssuerOption) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSigningSecret, opts...)
	require.NoError(t, err)
	return issuer
}

func TestService_AuthCodeURL(t *testing.T) {
	t.Parallel()

	adapter := &MockProviderAdapter{provider: ProviderGoogle}
	adapter.On("AuthCodeURL").Return("https://accounts.google.com/o/oauth2/auth?client_id=abc")

	svc := NewService(new(MockIdentityStorage), newTestIssuer(t), []ProviderAdapter{adapter})

	url, err := svc.AuthCodeURL(ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?client_id=abc", url)

	_, err = svc.AuthCodeURL(ProviderDiscord)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestService_HandleCallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	identity := ProviderIdentity{
		Provider:       ProviderGoogle,
		ProviderUserID: "g-123",
		Email:          "user@example.com",
		DisplayName:    "User",
		AvatarURL:      "https://example.com/a.png",
	}

	t.Run("creates account and session when email is unknown", func(t *testing.T) {
		t.Parallel()

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(identity, nil)

		account := &Account{
			ID:              uuid.New(),
			Email:           identity.Email,
			PrimaryProvider: ProviderGoogle,
			LinkedProviders: []Provider{ProviderGoogle},
			GoogleID:        "g-123",
		}

		storage := new(MockIdentityStorage)
		storage.On("FindByEmail", ctx, "user@example.com").Return(nil, ErrAccountNotFound)
		storage.On("UpsertByProvider", ctx, identity).Return(account, nil)

		issuer := newTestIssuer(t)
		svc := NewService(storage, issuer, []ProviderAdapter{adapter})

		result, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		require.NoError(t, err)

		assert.False(t, result.Collision())
		assert.Equal(t, account, result.Account)
		assert.Empty(t, result.LinkingToken)

		accountID, err := issuer.VerifySession(result.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, account.ID, accountID)

		storage.AssertExpectations(t)
	})

	t.Run("refreshes account when provider already linked", func(t *testing.T) {
		t.Parallel()

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(identity, nil)

		account := &Account{
			ID:              uuid.New(),
			Email:           identity.Email,
			PrimaryProvider: ProviderGoogle,
			LinkedProviders: []Provider{ProviderGoogle},
			GoogleID:        "g-123",
		}

		storage := new(MockIdentityStorage)
		storage.On("FindByEmail", ctx, "user@example.com").Return(account, nil)
		storage.On("UpsertByProvider", ctx, identity).Return(account, nil)

		svc := NewService(storage, newTestIssuer(t), []ProviderAdapter{adapter})

		result, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		require.NoError(t, err)

		assert.False(t, result.Collision())
		assert.NotEmpty(t, result.SessionToken)
		storage.AssertExpectations(t)
	})

	t.Run("collision suspends without touching storage", func(t *testing.T) {
		t.Parallel()

		ghIdentity := ProviderIdentity{
			Provider:       ProviderGithub,
			ProviderUserID: "gh-456",
			Email:          "user@example.com",
			DisplayName:    "User",
		}

		adapter := &MockProviderAdapter{provider: ProviderGithub}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(ghIdentity, nil)

		existing := &Account{
			ID:              uuid.New(),
			Email:           "user@example.com",
			PrimaryProvider: ProviderGoogle,
			LinkedProviders: []Provider{ProviderGoogle},
			GoogleID:        "g-123",
		}

		storage := new(MockIdentityStorage)
		storage.On("FindByEmail", ctx, "user@example.com").Return(existing, nil)

		issuer := newTestIssuer(t)
		svc := NewService(storage, issuer, []ProviderAdapter{adapter})

		result, err := svc.HandleCallback(ctx, ProviderGithub, "authcode")
		require.NoError(t, err)

		assert.True(t, result.Collision())
		assert.Empty(t, result.SessionToken)
		assert.Nil(t, result.Account)

		lc, err := issuer.VerifyLinking(result.LinkingToken)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", lc.Email)
		assert.Equal(t, ProviderGithub, lc.Provider)
		assert.Equal(t, ghIdentity, lc.Identity)
		assert.Equal(t, existing.ID, lc.ExistingAccountID)
		assert.Equal(t, ProviderGoogle, lc.ExistingPrimaryProvider)

		storage.AssertNotCalled(t, "UpsertByProvider", mock.Anything, mock.Anything)
		storage.AssertNotCalled(t, "AttachProvider", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("normalizes email before lookup", func(t *testing.T) {
		t.Parallel()

		raw := identity
		raw.Email = "  User@Example.COM "
		normalized := identity

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(raw, nil)

		account := &Account{ID: uuid.New(), Email: "user@example.com"}

		storage := new(MockIdentityStorage)
		storage.On("FindByEmail", ctx, "user@example.com").Return(nil, ErrAccountNotFound)
		storage.On("UpsertByProvider", ctx, normalized).Return(account, nil)

		svc := NewService(storage, newTestIssuer(t), []ProviderAdapter{adapter})

		_, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		require.NoError(t, err)
		storage.AssertExpectations(t)
	})

	t.Run("rejects identity without email", func(t *testing.T) {
		t.Parallel()

		noEmail := identity
		noEmail.Email = ""

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(noEmail, nil)

		storage := new(MockIdentityStorage)
		svc := NewService(storage, newTestIssuer(t), []ProviderAdapter{adapter})

		_, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		assert.ErrorIs(t, err, ErrMissingEmail)
		storage.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})

	t.Run("propagates adapter failure", func(t *testing.T) {
		t.Parallel()

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "badcode").Return(ProviderIdentity{}, ErrTokenExchange)

		svc := NewService(new(MockIdentityStorage), newTestIssuer(t), []ProviderAdapter{adapter})

		_, err := svc.HandleCallback(ctx, ProviderGoogle, "badcode")
		assert.ErrorIs(t, err, ErrTokenExchange)
	})

	t.Run("propagates storage lookup failure", func(t *testing.T) {
		t.Parallel()

		adapter := &MockProviderAdapter{provider: ProviderGoogle}
		adapter.On("ResolveIdentity", ctx, "authcode").Return(identity, nil)

		storage := new(MockIdentityStorage)
		storage.On("FindByEmail", ctx, "user@example.com").Return(nil, errors.New("connection refused"))

		svc := NewService(storage, newTestIssuer(t), []ProviderAdapter{adapter})

		_, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		assert.Error(t, err)
		storage.AssertNotCalled(t, "UpsertByProvider", mock.Anything, mock.Anything)
	})

	t.Run("rejects unconfigured provider", func(t *testing.T) {
		t.Parallel()

		svc := NewService(new(MockIdentityStorage), newTestIssuer(t), nil)

		_, err := svc.HandleCallback(ctx, ProviderGoogle, "authcode")
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}

func TestService_ResolveCollision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ghIdentity := ProviderIdentity{
		Provider:       ProviderGithub,
		ProviderUserID: "gh-456",
		Email:          "user@example.com",
		DisplayName:    "User",
	}

	existingID := uuid.New()

	issueToken := func(t *testing.T, issuer *Issuer) string {
		t.Helper()
		token, err := issuer.IssueLinking(LinkingContext{
			Email:                   "user@example.com",
			Provider:                ProviderGithub,
			Identity:                ghIdentity,
			ExistingAccountID:       existingID,
			ExistingPrimaryProvider: ProviderGoogle,
			ExistingLinkedProviders: []Provider{ProviderGoogle},
		})
		require.NoError(t, err)
		return token
	}

	t.Run("link attaches provider to existing account", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		linked := &Account{
			ID:              existingID,
			Email:           "user@example.com",
			PrimaryProvider: ProviderGoogle,
			LinkedProviders: []Provider{ProviderGoogle, ProviderGithub},
			GoogleID:        "g-123",
			GithubID:        "gh-456",
		}

		storage := new(MockIdentityStorage)
		storage.On("AttachProvider", ctx, existingID, ghIdentity).Return(linked, nil)

		svc := NewService(storage, issuer, nil)

		result, err := svc.ResolveCollision(ctx, token, ActionLink)
		require.NoError(t, err)

		assert.Equal(t, ActionLink, result.Action)
		assert.Equal(t, linked, result.Account)

		accountID, err := issuer.VerifySession(result.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, existingID, accountID)

		storage.AssertNotCalled(t, "UpsertByProvider", mock.Anything, mock.Anything)
	})

	t.Run("separate upserts the incoming identity", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		separate := &Account{
			ID:              uuid.New(),
			Email:           "user@example.com",
			PrimaryProvider: ProviderGithub,
			LinkedProviders: []Provider{ProviderGithub},
			GithubID:        "gh-456",
		}

		storage := new(MockIdentityStorage)
		storage.On("UpsertByProvider", ctx, ghIdentity).Return(separate, nil)

		svc := NewService(storage, issuer, nil)

		result, err := svc.ResolveCollision(ctx, token, ActionSeparate)
		require.NoError(t, err)

		assert.Equal(t, ActionSeparate, result.Action)
		assert.NotEmpty(t, result.SessionToken)
		storage.AssertNotCalled(t, "AttachProvider", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("separate surfaces duplicate email from storage", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		storage := new(MockIdentityStorage)
		storage.On("UpsertByProvider", ctx, ghIdentity).Return(nil, ErrDuplicateEmail)

		svc := NewService(storage, issuer, nil)

		_, err := svc.ResolveCollision(ctx, token, ActionSeparate)
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("rejects unknown action before consuming", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		guard := new(MockReplayGuard)
		storage := new(MockIdentityStorage)
		svc := NewService(storage, issuer, nil, WithReplayGuard(guard))

		_, err := svc.ResolveCollision(ctx, token, "merge")
		assert.ErrorIs(t, err, ErrInvalidAction)

		guard.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
		storage.AssertNotCalled(t, "AttachProvider", mock.Anything, mock.Anything, mock.Anything)
		storage.AssertNotCalled(t, "UpsertByProvider", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		t.Parallel()

		storage := new(MockIdentityStorage)
		svc := NewService(storage, newTestIssuer(t), nil)

		_, err := svc.ResolveCollision(ctx, "garbage", ActionLink)
		assert.ErrorIs(t, err, ErrInvalidCredential)
		storage.AssertNotCalled(t, "AttachProvider", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("second use of a token is rejected", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		linked := &Account{ID: existingID, Email: "user@example.com"}

		storage := new(MockIdentityStorage)
		storage.On("AttachProvider", ctx, existingID, ghIdentity).Return(linked, nil).Once()

		svc := NewService(storage, issuer, nil)

		_, err := svc.ResolveCollision(ctx, token, ActionLink)
		require.NoError(t, err)

		_, err = svc.ResolveCollision(ctx, token, ActionLink)
		assert.ErrorIs(t, err, ErrCredentialUsed)
		storage.AssertExpectations(t)
	})

	t.Run("consumed guard blocks before mutation", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		token := issueToken(t, issuer)

		guard := new(MockReplayGuard)
		guard.On("Consume", ctx, mock.AnythingOfType("string"), issuer.LinkingTTL()).Return(ErrCredentialUsed)

		storage := new(MockIdentityStorage)
		svc := NewService(storage, issuer, nil, WithReplayGuard(guard))

		_, err := svc.ResolveCollision(ctx, token, ActionLink)
		assert.ErrorIs(t, err, ErrCredentialUsed)
		storage.AssertNotCalled(t, "AttachProvider", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_CurrentAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("loads account bound to session", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		account := &Account{ID: uuid.New(), Email: "user@example.com"}

		token, err := issuer.IssueSession(account.ID)
		require.NoError(t, err)

		storage := new(MockIdentityStorage)
		storage.On("FindByID", ctx, account.ID).Return(account, nil)

		svc := NewService(storage, issuer, nil)

		got, err := svc.CurrentAccount(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, account, got)
	})

	t.Run("rejects invalid session", func(t *testing.T) {
		t.Parallel()

		storage := new(MockIdentityStorage)
		svc := NewService(storage, newTestIssuer(t), nil)

		_, err := svc.CurrentAccount(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidCredential)
		storage.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("surfaces missing account", func(t *testing.T) {
		t.Parallel()

		issuer := newTestIssuer(t)
		accountID := uuid.New()

		token, err := issuer.IssueSession(accountID)
		require.NoError(t, err)

		storage := new(MockIdentityStorage)
		storage.On("FindByID", ctx, accountID).Return(nil, ErrAccountNotFound)

		svc := NewService(storage, issuer, nil)

		_, err = svc.CurrentAccount(ctx, token)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestService_SessionTTL(t *testing.T) {
	t.Parallel()

	svc := NewService(new(MockIdentityStorage), newTestIssuer(t, WithSessionTTL(time.Hour)), nil)
	assert.Equal(t, time.Hour, svc.SessionTTL())
}
