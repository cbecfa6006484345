package ledger

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"balancestudio/internal/models"
)

type snapshotState int

const (
	snapshotUninitialized snapshotState = iota
	snapshotLegacy
	snapshotHydrated
)

// Engine applies expense and settlement events to friendship ledgers. One
// instance is shared by every handler; all state lives behind the stores.
type Engine struct {
	friendships FriendshipStore
	expenses    ExpenseHistory
	settlements SettlementHistory
	notifier    Notifier
	mailer      Mailer
	log         *slog.Logger
}

func NewEngine(friendships FriendshipStore, expenses ExpenseHistory, settlements SettlementHistory, notifier Notifier, mailer Mailer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		friendships: friendships,
		expenses:    expenses,
		settlements: settlements,
		notifier:    notifier,
		mailer:      mailer,
		log:         log,
	}
}

// EnsureFriendship creates both directional records of a pair if they do not
// exist yet. Existing balances are never touched; equal ids are a no-op.
func (e *Engine) EnsureFriendship(userID, friendID uint) error {
	if userID == friendID || userID == 0 || friendID == 0 {
		return nil
	}
	if err := e.friendships.EnsureOrdered(userID, friendID); err != nil {
		return fmt.Errorf("ensure friendship %d->%d: %w", userID, friendID, err)
	}
	if err := e.friendships.EnsureOrdered(friendID, userID); err != nil {
		return fmt.Errorf("ensure friendship %d->%d: %w", friendID, userID, err)
	}
	return nil
}

// ApplyBalanceChange adds a signed owner-relative delta to one side of a
// pair, under the group named by label. The record is hydrated first so the
// delta lands on a complete snapshot. Callers apply the mirrored delta to the
// other side themselves; SyncViews repairs any divergence afterwards.
func (e *Engine) ApplyBalanceChange(ownerID, friendID uint, delta OwnerAmount, label string) error {
	if ownerID == friendID {
		return nil
	}
	d := Round(float64(delta))
	if d == 0 {
		return nil
	}
	if err := e.EnsureFriendship(ownerID, friendID); err != nil {
		return err
	}
	f, err := e.friendships.Get(ownerID, friendID)
	if err != nil {
		return err
	}
	if f == nil {
		return ErrFriendshipNotFound
	}
	if _, err := e.hydrate(f); err != nil {
		return err
	}
	slug := SlugifyGroupLabel(label)
	return e.friendships.ApplyDelta(f.ID, slug, NormalizeGroupLabel(label), d)
}

func resolveSnapshotState(f *models.Friendship) snapshotState {
	switch {
	case f.SnapshotVersion >= 1:
		return snapshotHydrated
	case len(f.Groups) > 0:
		return snapshotLegacy
	default:
		return snapshotUninitialized
	}
}

// hydrate makes sure the record's per-group snapshot exists, reconstructing
// it from expense and settlement history when it does not. The returned
// record is reloaded whenever the store was written.
func (e *Engine) hydrate(f *models.Friendship) (*models.Friendship, error) {
	switch resolveSnapshotState(f) {
	case snapshotHydrated:
		return f, nil
	case snapshotLegacy:
		// Group rows written before the version flag existed are trusted
		// as-is; only the flag is repaired.
		if err := e.friendships.MarkHydrated(f.ID); err != nil {
			return nil, err
		}
		return e.reload(f)
	}

	balances, labels, err := e.computeGroupSnapshot(f.UserID, f.FriendID)
	if err != nil {
		return nil, err
	}
	if err := e.applySettlementOffsets(f.UserID, f.FriendID, balances, labels); err != nil {
		return nil, err
	}

	entries := make([]GroupEntry, 0, len(balances))
	total := 0.0
	for slug, bal := range balances {
		bal = Round(bal)
		total += bal
		label := labels[slug]
		if label == "" {
			label = labelFromSlug(slug)
		}
		entries = append(entries, GroupEntry{Slug: slug, Label: label, Balance: bal})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slug < entries[j].Slug })

	if err := e.friendships.WriteSnapshot(f.ID, entries, Round(total)); err != nil {
		return nil, err
	}
	return e.reload(f)
}

func (e *Engine) reload(f *models.Friendship) (*models.Friendship, error) {
	fresh, err := e.friendships.Get(f.UserID, f.FriendID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrFriendshipNotFound
	}
	return fresh, nil
}

// computeGroupSnapshot replays the shared expense history into per-group
// owner-relative balances. Shares where the owner paid add what the friend
// owes; shares where the friend paid subtract what the owner owes.
func (e *Engine) computeGroupSnapshot(ownerID, friendID uint) (map[string]float64, map[string]string, error) {
	expenses, err := e.expenses.ListBetween(ownerID, friendID)
	if err != nil {
		return nil, nil, err
	}
	balances := make(map[string]float64)
	labels := make(map[string]string)
	for _, exp := range expenses {
		rawLabel := exp.GroupName
		if rawLabel == "" {
			rawLabel = exp.Note
		}
		label := NormalizeGroupLabel(rawLabel)
		slug := SlugifyGroupLabel(rawLabel)
		for _, part := range exp.Participants {
			var delta float64
			switch {
			case exp.PayerID == ownerID && part.UserID == friendID:
				delta = Round(part.Amount)
			case exp.PayerID == friendID && part.UserID == ownerID:
				delta = -Round(part.Amount)
			default:
				continue
			}
			if delta == 0 {
				continue
			}
			balances[slug] += delta
			labels[slug] = label
		}
	}
	return balances, labels, nil
}

// applySettlementOffsets folds recorded settlements into a reconstructed
// snapshot. A settlement can introduce a group the expense history never
// produced; the resulting negative entry is kept, not clamped.
func (e *Engine) applySettlementOffsets(ownerID, friendID uint, balances map[string]float64, labels map[string]string) error {
	recs, err := e.settlements.ListBetween(ownerID, friendID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		slug := rec.GroupSlug
		if slug == "" {
			slug = SlugifyGroupLabel(rec.GroupLabel)
		}
		amt := initiatorAmount(Direction(rec.Direction), rec.Amount)
		balances[slug] += float64(amt.ForOwner(rec.InitiatorID == ownerID))
		if labels[slug] == "" && rec.GroupLabel != "" {
			labels[slug] = rec.GroupLabel
		}
	}
	return nil
}

// SyncViews repairs the mirror invariant between the two records of a pair.
// The (userID, friendID) record is the source of truth; the reverse record's
// groups and balance are overwritten with its negation.
func (e *Engine) SyncViews(userID, friendID uint) error {
	if userID == friendID {
		return nil
	}
	if err := e.EnsureFriendship(userID, friendID); err != nil {
		return err
	}
	source, err := e.friendships.Get(userID, friendID)
	if err != nil {
		return err
	}
	if source == nil {
		return ErrFriendshipNotFound
	}
	source, err = e.hydrate(source)
	if err != nil {
		return err
	}
	mirror, err := e.friendships.Get(friendID, userID)
	if err != nil {
		return err
	}
	if mirror == nil {
		return ErrFriendshipNotFound
	}

	entries := make([]GroupEntry, 0, len(source.Groups))
	for _, g := range source.Groups {
		bal := Round(-g.Balance)
		if math.Abs(bal) < nearZero {
			continue
		}
		entries = append(entries, GroupEntry{Slug: g.Slug, Label: g.Label, Balance: bal})
	}
	version := source.SnapshotVersion
	if mirror.SnapshotVersion > version {
		version = mirror.SnapshotVersion
	}
	if version < 1 {
		version = 1
	}
	return e.friendships.ReplaceMirror(mirror.ID, entries, Round(-source.Balance), version)
}

// BreakdownGroup is one outstanding group as presented to the viewer.
type BreakdownGroup struct {
	Slug      string  `json:"slug"`
	Label     string  `json:"label"`
	Amount    float64 `json:"amount"`
	Direction string  `json:"direction"` // owes_you | you_owe
}

// Breakdown is the per-group view of one friendship from the owner's side.
type Breakdown struct {
	FriendID     uint             `json:"friend_id"`
	Balance      float64          `json:"balance"`
	TotalOwedYou float64          `json:"total_owed_to_you"`
	TotalYouOwe  float64          `json:"total_you_owe"`
	Groups       []BreakdownGroup `json:"groups"`
}

// Breakdown reports the outstanding groups between userID and friendID from
// userID's point of view, hydrating and mirror-syncing along the way.
// Near-zero groups are omitted; groups are ordered largest amount first.
func (e *Engine) Breakdown(userID, friendID uint) (*Breakdown, error) {
	f, err := e.friendships.Get(userID, friendID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFriendshipNotFound
	}
	f, err = e.hydrate(f)
	if err != nil {
		return nil, err
	}
	if err := e.SyncViews(userID, friendID); err != nil {
		return nil, err
	}

	out := &Breakdown{FriendID: friendID, Balance: Round(f.Balance)}
	for _, g := range f.Groups {
		bal := Round(g.Balance)
		if math.Abs(bal) < nearZero {
			continue
		}
		label := g.Label
		if label == "" {
			label = labelFromSlug(g.Slug)
		}
		grp := BreakdownGroup{Slug: g.Slug, Label: label, Amount: math.Abs(bal)}
		if bal > 0 {
			grp.Direction = string(DirectionOwesYou)
			out.TotalOwedYou += grp.Amount
		} else {
			grp.Direction = string(DirectionYouOwe)
			out.TotalYouOwe += grp.Amount
		}
		out.Groups = append(out.Groups, grp)
	}
	sort.SliceStable(out.Groups, func(i, j int) bool {
		return out.Groups[i].Amount > out.Groups[j].Amount
	})
	out.TotalOwedYou = Round(out.TotalOwedYou)
	out.TotalYouOwe = Round(out.TotalYouOwe)
	return out, nil
}

// SettleGroup settles amount (or the full outstanding value when amount is
// nil) of one group between the initiator and their friend. It returns the
// immutable settlement record and whether the notification email went out.
func (e *Engine) SettleGroup(userID, friendID uint, slug string, amount *float64, initiator, counterparty *models.User) (*models.FriendSettlement, bool, error) {
	f, err := e.friendships.Get(userID, friendID)
	if err != nil {
		return nil, false, err
	}
	if f == nil {
		return nil, false, ErrFriendshipNotFound
	}
	f, err = e.hydrate(f)
	if err != nil {
		return nil, false, err
	}

	var group *models.FriendshipGroup
	for i := range f.Groups {
		if f.Groups[i].Slug == slug {
			group = &f.Groups[i]
			break
		}
	}
	outstanding := 0.0
	label := labelFromSlug(slug)
	if group != nil {
		outstanding = Round(group.Balance)
		if group.Label != "" {
			label = group.Label
		}
	}
	if math.Abs(outstanding) < nearZero {
		return nil, false, ErrNothingToSettle
	}

	requested := math.Abs(outstanding)
	if amount != nil {
		requested = Round(*amount)
	}
	if requested <= 0 {
		return nil, false, ErrAmountNotPositive
	}
	if requested > math.Abs(outstanding)+nearZero {
		return nil, false, ErrAmountExceedsOwed
	}

	direction := DirectionOwesYou
	delta := -requested
	if outstanding < 0 {
		direction = DirectionYouOwe
		delta = requested
	}

	if err := e.ApplyBalanceChange(userID, friendID, OwnerAmount(delta), label); err != nil {
		return nil, false, err
	}
	if err := e.ApplyBalanceChange(friendID, userID, OwnerAmount(-delta), label); err != nil {
		return nil, false, err
	}

	rec := &models.FriendSettlement{
		InitiatorID:    userID,
		CounterpartyID: friendID,
		GroupSlug:      slug,
		GroupLabel:     label,
		Direction:      string(direction),
		Amount:         requested,
	}
	if err := e.settlements.Create(rec); err != nil {
		return nil, false, err
	}

	delivered := false
	if e.mailer != nil {
		delivered = e.mailer.SettlementEmail(rec, initiator, counterparty)
	}

	if err := e.friendships.PruneGroups(f.ID, []string{slug}); err != nil {
		e.log.Warn("prune settled group", "friendship_id", f.ID, "slug", slug, "error", err)
	}
	if mirror, err := e.friendships.Get(friendID, userID); err == nil && mirror != nil {
		if err := e.friendships.PruneGroups(mirror.ID, []string{slug}); err != nil {
			e.log.Warn("prune settled group", "friendship_id", mirror.ID, "slug", slug, "error", err)
		}
	}
	if err := e.SyncViews(userID, friendID); err != nil {
		e.log.Warn("sync views after settlement", "user_id", userID, "friend_id", friendID, "error", err)
	}

	if e.notifier != nil {
		e.notifier.SettlementRecorded(counterparty, initiator, label, requested)
	}
	return rec, delivered, nil
}

// SettlementResult pairs one recorded settlement with its email outcome.
type SettlementResult struct {
	Record    *models.FriendSettlement `json:"record"`
	Delivered bool                     `json:"email_delivered"`
}

// SettleAll fully settles every outstanding group between the two users, in
// slug order. Groups settled before a failure stay settled; the error is
// returned alongside whatever completed. The final breakdown reflects the
// state after the last successful settlement.
func (e *Engine) SettleAll(userID, friendID uint, initiator, counterparty *models.User) ([]SettlementResult, float64, *Breakdown, error) {
	f, err := e.friendships.Get(userID, friendID)
	if err != nil {
		return nil, 0, nil, err
	}
	if f == nil {
		return nil, 0, nil, ErrFriendshipNotFound
	}
	f, err = e.hydrate(f)
	if err != nil {
		return nil, 0, nil, err
	}

	var slugs []string
	for _, g := range f.Groups {
		if math.Abs(Round(g.Balance)) >= nearZero {
			slugs = append(slugs, g.Slug)
		}
	}
	if len(slugs) == 0 {
		return nil, 0, nil, ErrNoOutstandingGroups
	}
	sort.Strings(slugs)

	var results []SettlementResult
	total := 0.0
	for _, slug := range slugs {
		rec, delivered, err := e.SettleGroup(userID, friendID, slug, nil, initiator, counterparty)
		if err != nil {
			return results, Round(total), nil, err
		}
		results = append(results, SettlementResult{Record: rec, Delivered: delivered})
		total += rec.Amount
	}

	breakdown, err := e.Breakdown(userID, friendID)
	if err != nil {
		return results, Round(total), nil, err
	}
	return results, Round(total), breakdown, nil
}
