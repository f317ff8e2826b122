package auth

import "github.com/google/uuid"

// Decision is the outcome of evaluating a fresh provider identity against the
// stored account for its email.
type Decision int

const (
	// DecisionCreate means no account exists for the email; proceed straight
	// to an upsert.
	DecisionCreate Decision = iota
	// DecisionUpdate means the account already has this provider linked;
	// re-signing in is not a collision, refresh profile fields.
	DecisionUpdate
	// DecisionCollision means an account exists but has not linked this
	// provider; suspend and ask the user to link or keep separate. The store
	// must not be touched on this path.
	DecisionCollision
)

func (d Decision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	case DecisionCollision:
		return "collision"
	default:
		return "unknown"
	}
}

// Decide evaluates the linking state machine for an incoming provider against
// the account found for its email (nil when the lookup came back empty).
// Pure function: it performs no storage calls.
func Decide(account *Account, provider Provider) Decision {
	if account == nil {
		return DecisionCreate
	}
	if account.Linked(provider) || account.ProviderUserID(provider) != "" {
		return DecisionUpdate
	}
	return DecisionCollision
}

// LinkingContext carries the full collision state across the user's
// confirm/decline round trip, so the decision step is stateless. It is
// embedded in the linking credential and never persisted.
type LinkingContext struct {
	// TokenID uniquely identifies the issued credential for single-use
	// tracking through the replay guard.
	TokenID string `json:"token_id"`

	Email    string           `json:"email"`
	Provider Provider         `json:"provider"`
	Identity ProviderIdentity `json:"identity"`

	ExistingAccountID       uuid.UUID  `json:"existing_account_id"`
	ExistingPrimaryProvider Provider   `json:"existing_primary_provider"`
	ExistingLinkedProviders []Provider `json:"existing_linked_providers"`
}

// Linking decision actions accepted by the decision step.
const (
	ActionLink     = "link"
	ActionSeparate = "separate"
)
