package auth

import (
	"context"

	"github.com/google/uuid"
)

// IdentityStorage is the narrow gateway the core uses to look up and mutate
// account records. Implementations must make UpsertByProvider atomic on the
// email key (single conditional write) so concurrent callbacks for the same
// email resolve to last-writer-wins instead of duplicate accounts.
type IdentityStorage interface {
	// FindByEmail returns the account for the given (normalized) email, or
	// ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID returns the account with the given id, or ErrAccountNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// UpsertByProvider creates an account for the identity's email when none
	// exists (primary provider = identity.Provider, linked = {provider}), or
	// refreshes display name, avatar, and the provider external id on the
	// existing account, ensuring the provider is present in LinkedProviders.
	UpsertByProvider(ctx context.Context, identity ProviderIdentity) (*Account, error)

	// AttachProvider adds the identity's provider to an existing account's
	// linked set (no-op when already present) and refreshes display name and
	// avatar from the newly linked profile.
	AttachProvider(ctx context.Context, accountID uuid.UUID, identity ProviderIdentity) (*Account, error)
}
