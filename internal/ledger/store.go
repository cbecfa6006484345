// Package ledger maintains per-friend, per-group running balances from
// expense and settlement events. It owns the sign conventions, the snapshot
// hydration from history and the mirror invariant between the two directional
// records of a pair; persistence and delivery are behind the interfaces below.
package ledger

import (
	"balancestudio/internal/models"
)

// GroupEntry is one per-group balance with its display label, signed from
// the record owner's point of view.
type GroupEntry struct {
	Slug    string
	Label   string
	Balance float64
}

// FriendshipStore is the persistence contract the engine needs. All numeric
// mutations must be atomic at the row level; the engine never reads a balance
// and writes the sum back.
type FriendshipStore interface {
	// EnsureOrdered inserts the (owner, friend) record if absent and leaves
	// an existing record untouched. New records start hydrated and empty.
	EnsureOrdered(ownerID, friendID uint) error

	// Get returns the (owner, friend) record with its group entries loaded,
	// or (nil, nil) when no record exists.
	Get(ownerID, friendID uint) (*models.Friendship, error)

	// ApplyDelta atomically adds delta to the aggregate balance and to the
	// group entry for slug, creating the entry at delta when absent. The
	// label is overwritten with the latest value either way.
	ApplyDelta(friendshipID uint, slug, label string, delta float64) error

	// WriteSnapshot replaces the group entries and marks the record
	// hydrated. The aggregate balance is set to total only when entries
	// exist; an empty snapshot leaves it untouched.
	WriteSnapshot(friendshipID uint, entries []GroupEntry, total float64) error

	// MarkHydrated flips the snapshot version on a legacy record whose
	// group entries predate the version flag.
	MarkHydrated(friendshipID uint) error

	// ReplaceMirror overwrites the record's group entries, aggregate
	// balance and snapshot version in one step.
	ReplaceMirror(friendshipID uint, entries []GroupEntry, balance float64, version int) error

	// PruneGroups deletes the named group entries wherever their balance is
	// within a cent of zero.
	PruneGroups(friendshipID uint, slugs []string) error
}

// ExpenseHistory supplies the raw material for cold snapshot reconstruction.
type ExpenseHistory interface {
	// ListBetween returns every expense where one of the two users paid and
	// the other appears as a participant.
	ListBetween(userID, friendID uint) ([]models.Expense, error)
}

// SettlementHistory reads and appends immutable settlement records.
type SettlementHistory interface {
	// ListBetween returns every settlement where either user initiated
	// against the other.
	ListBetween(userID, friendID uint) ([]models.FriendSettlement, error)
	Create(rec *models.FriendSettlement) error
}

// Notifier delivers a settlement notice to the counterparty. Best effort:
// implementations log failures and never abort a settlement.
type Notifier interface {
	SettlementRecorded(target, actor *models.User, groupLabel string, amount float64)
}

// Mailer sends the settlement email and reports delivery. Failures stay
// inside the implementation; the flag is surfaced to the caller out-of-band.
type Mailer interface {
	SettlementEmail(rec *models.FriendSettlement, initiator, counterparty *models.User) bool
}
