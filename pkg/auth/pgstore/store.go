// Package pgstore implements the identity storage gateway on PostgreSQL via
// pgx. Upserts are single conditional writes keyed on email, so concurrent
// callbacks for the same address resolve last-writer-wins instead of creating
// duplicate accounts.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authkit/pkg/auth"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, surfaced as auth.ErrDuplicateEmail.
const uniqueViolation = "23505"

const accountColumns = `id, email, display_name, avatar_url, primary_provider, linked_providers,
	google_id, github_id, discord_id, created_at, updated_at`

// Store is a pgx-backed auth.IdentityStorage.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *Store) UpsertByProvider(ctx context.Context, identity auth.ProviderIdentity) (*auth.Account, error) {
	col, err := providerIDColumn(identity.Provider)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		INSERT INTO accounts (id, email, display_name, avatar_url, primary_provider, linked_providers, %[1]s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			%[1]s = EXCLUDED.%[1]s,
			linked_providers = CASE
				WHEN $5 = ANY (accounts.linked_providers) THEN accounts.linked_providers
				ELSE array_append(accounts.linked_providers, $5)
			END,
			updated_at = now()
		RETURNING `+accountColumns, col)

	row := s.pool.QueryRow(ctx, query,
		uuid.New(),
		identity.Email,
		identity.DisplayName,
		identity.AvatarURL,
		string(identity.Provider),
		[]string{string(identity.Provider)},
		identity.ProviderUserID,
	)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, err
	}
	return account, nil
}

func (s *Store) AttachProvider(ctx context.Context, accountID uuid.UUID, identity auth.ProviderIdentity) (*auth.Account, error) {
	col, err := providerIDColumn(identity.Provider)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		UPDATE accounts SET
			display_name = $2,
			avatar_url = $3,
			%[1]s = $4,
			linked_providers = CASE
				WHEN $5 = ANY (linked_providers) THEN linked_providers
				ELSE array_append(linked_providers, $5)
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, col)

	row := s.pool.QueryRow(ctx, query,
		accountID,
		identity.DisplayName,
		identity.AvatarURL,
		identity.ProviderUserID,
		string(identity.Provider),
	)
	return scanAccount(row)
}

func providerIDColumn(p auth.Provider) (string, error) {
	// Column name is selected from a fixed set, never interpolated from input.
	switch p {
	case auth.ProviderGoogle:
		return "google_id", nil
	case auth.ProviderGithub:
		return "github_id", nil
	case auth.ProviderDiscord:
		return "discord_id", nil
	default:
		return "", auth.ErrUnsupportedProvider
	}
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a         auth.Account
		primary   string
		linked    []string
		googleID  *string
		githubID  *string
		discordID *string
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.DisplayName, &a.AvatarURL, &primary, &linked,
		&googleID, &githubID, &discordID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.PrimaryProvider = auth.Provider(primary)
	a.LinkedProviders = make([]auth.Provider, 0, len(linked))
	for _, p := range linked {
		a.LinkedProviders = append(a.LinkedProviders, auth.Provider(p))
	}
	if googleID != nil {
		a.GoogleID = *googleID
	}
	if githubID != nil {
		a.GithubID = *githubID
	}
	if discordID != nil {
		a.DiscordID = *discordID
	}

	return &a, nil
}

// Compile-time interface assertion
var _ auth.IdentityStorage = (*Store)(nil)
