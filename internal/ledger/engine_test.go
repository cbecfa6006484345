package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"balancestudio/internal/models"
)

// memStore is an in-memory FriendshipStore for exercising the engine
// without a database.
type memStore struct {
	nextID uint
	recs   map[[2]uint]*memFriendship
}

type memFriendship struct {
	id       uint
	userID   uint
	friendID uint
	balance  float64
	version  int
	groups   map[string]*GroupEntry
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[[2]uint]*memFriendship)}
}

func (s *memStore) seed(userID, friendID uint, balance float64, version int, groups ...GroupEntry) {
	s.nextID++
	rec := &memFriendship{
		id:       s.nextID,
		userID:   userID,
		friendID: friendID,
		balance:  balance,
		version:  version,
		groups:   make(map[string]*GroupEntry),
	}
	for i := range groups {
		g := groups[i]
		rec.groups[g.Slug] = &g
	}
	s.recs[[2]uint{userID, friendID}] = rec
}

func (s *memStore) byID(id uint) *memFriendship {
	for _, rec := range s.recs {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

func (s *memStore) EnsureOrdered(ownerID, friendID uint) error {
	key := [2]uint{ownerID, friendID}
	if _, ok := s.recs[key]; ok {
		return nil
	}
	s.nextID++
	s.recs[key] = &memFriendship{
		id:       s.nextID,
		userID:   ownerID,
		friendID: friendID,
		version:  1,
		groups:   make(map[string]*GroupEntry),
	}
	return nil
}

func (s *memStore) Get(ownerID, friendID uint) (*models.Friendship, error) {
	rec, ok := s.recs[[2]uint{ownerID, friendID}]
	if !ok {
		return nil, nil
	}
	out := &models.Friendship{
		ID:              rec.id,
		UserID:          rec.userID,
		FriendID:        rec.friendID,
		Balance:         rec.balance,
		SnapshotVersion: rec.version,
	}
	for _, g := range rec.groups {
		out.Groups = append(out.Groups, models.FriendshipGroup{
			FriendshipID: rec.id,
			Slug:         g.Slug,
			Label:        g.Label,
			Balance:      g.Balance,
		})
	}
	sort.Slice(out.Groups, func(i, j int) bool { return out.Groups[i].Slug < out.Groups[j].Slug })
	return out, nil
}

func (s *memStore) ApplyDelta(friendshipID uint, slug, label string, delta float64) error {
	rec := s.byID(friendshipID)
	if rec == nil {
		return fmt.Errorf("no friendship %d", friendshipID)
	}
	rec.balance += delta
	if g, ok := rec.groups[slug]; ok {
		g.Balance += delta
		g.Label = label
	} else {
		rec.groups[slug] = &GroupEntry{Slug: slug, Label: label, Balance: delta}
	}
	return nil
}

func (s *memStore) WriteSnapshot(friendshipID uint, entries []GroupEntry, total float64) error {
	rec := s.byID(friendshipID)
	if rec == nil {
		return fmt.Errorf("no friendship %d", friendshipID)
	}
	rec.groups = make(map[string]*GroupEntry)
	for i := range entries {
		g := entries[i]
		rec.groups[g.Slug] = &g
	}
	if len(entries) > 0 {
		rec.balance = total
	}
	rec.version = 1
	return nil
}

func (s *memStore) MarkHydrated(friendshipID uint) error {
	rec := s.byID(friendshipID)
	if rec == nil {
		return fmt.Errorf("no friendship %d", friendshipID)
	}
	rec.version = 1
	return nil
}

func (s *memStore) ReplaceMirror(friendshipID uint, entries []GroupEntry, balance float64, version int) error {
	rec := s.byID(friendshipID)
	if rec == nil {
		return fmt.Errorf("no friendship %d", friendshipID)
	}
	rec.groups = make(map[string]*GroupEntry)
	for i := range entries {
		g := entries[i]
		rec.groups[g.Slug] = &g
	}
	rec.balance = balance
	rec.version = version
	return nil
}

func (s *memStore) PruneGroups(friendshipID uint, slugs []string) error {
	rec := s.byID(friendshipID)
	if rec == nil {
		return fmt.Errorf("no friendship %d", friendshipID)
	}
	for _, slug := range slugs {
		if g, ok := rec.groups[slug]; ok && math.Abs(g.Balance) < nearZero {
			delete(rec.groups, slug)
		}
	}
	return nil
}

type memExpenses struct {
	items []models.Expense
}

func (s *memExpenses) ListBetween(userID, friendID uint) ([]models.Expense, error) {
	var out []models.Expense
	for _, exp := range s.items {
		if exp.PayerID != userID && exp.PayerID != friendID {
			continue
		}
		for _, p := range exp.Participants {
			if (exp.PayerID == userID && p.UserID == friendID) || (exp.PayerID == friendID && p.UserID == userID) {
				out = append(out, exp)
				break
			}
		}
	}
	return out, nil
}

type memSettlements struct {
	items []models.FriendSettlement
}

func (s *memSettlements) ListBetween(userID, friendID uint) ([]models.FriendSettlement, error) {
	var out []models.FriendSettlement
	for _, rec := range s.items {
		if (rec.InitiatorID == userID && rec.CounterpartyID == friendID) ||
			(rec.InitiatorID == friendID && rec.CounterpartyID == userID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memSettlements) Create(rec *models.FriendSettlement) error {
	rec.ID = uint(len(s.items) + 1)
	rec.CreatedAt = time.Now()
	s.items = append(s.items, *rec)
	return nil
}

type recordingNotifier struct {
	calls int
}

func (n *recordingNotifier) SettlementRecorded(target, actor *models.User, groupLabel string, amount float64) {
	n.calls++
}

type stubMailer struct {
	delivered bool
	calls     int
}

func (m *stubMailer) SettlementEmail(rec *models.FriendSettlement, initiator, counterparty *models.User) bool {
	m.calls++
	return m.delivered
}

type fixture struct {
	engine      *Engine
	store       *memStore
	expenses    *memExpenses
	settlements *memSettlements
	notifier    *recordingNotifier
	mailer      *stubMailer
}

func newFixture() *fixture {
	f := &fixture{
		store:       newMemStore(),
		expenses:    &memExpenses{},
		settlements: &memSettlements{},
		notifier:    &recordingNotifier{},
		mailer:      &stubMailer{delivered: true},
	}
	f.engine = NewEngine(f.store, f.expenses, f.settlements, f.notifier, f.mailer, nil)
	return f
}

func ptr(v float64) *float64 { return &v }

var (
	alice = &models.User{ID: 1, Name: "Alice", Email: "alice@example.com"}
	bob   = &models.User{ID: 2, Name: "Bob", Email: "bob@example.com"}
)

func mustBreakdown(t *testing.T, e *Engine, userID, friendID uint) *Breakdown {
	t.Helper()
	b, err := e.Breakdown(userID, friendID)
	if err != nil {
		t.Fatalf("Breakdown(%d, %d): %v", userID, friendID, err)
	}
	return b
}

func TestEnsureFriendshipIdempotent(t *testing.T) {
	f := newFixture()
	if err := f.engine.EnsureFriendship(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.ApplyBalanceChange(1, 2, 40, "Trip"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.EnsureFriendship(1, 2); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.store.Get(1, 2)
	if rec.Balance != 40 {
		t.Errorf("balance after re-ensure = %v, want 40", rec.Balance)
	}
	if err := f.engine.EnsureFriendship(3, 3); err != nil {
		t.Errorf("self-ensure: %v", err)
	}
	if _, ok := f.store.recs[[2]uint{3, 3}]; ok {
		t.Error("self-friendship record created")
	}
}

func TestApplyBalanceChangeMirrors(t *testing.T) {
	f := newFixture()
	if err := f.engine.ApplyBalanceChange(1, 2, 40, "Road Trip"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.ApplyBalanceChange(2, 1, -40, "Road Trip"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SyncViews(1, 2); err != nil {
		t.Fatal(err)
	}
	a, _ := f.store.Get(1, 2)
	b, _ := f.store.Get(2, 1)
	if a.Balance != 40 || b.Balance != -40 {
		t.Errorf("balances = %v / %v, want 40 / -40", a.Balance, b.Balance)
	}
	if len(a.Groups) != 1 || a.Groups[0].Slug != "road-trip" || a.Groups[0].Balance != 40 {
		t.Errorf("owner groups = %+v", a.Groups)
	}
	if len(b.Groups) != 1 || b.Groups[0].Balance != -40 {
		t.Errorf("mirror groups = %+v", b.Groups)
	}
}

func TestApplyBalanceChangeZeroDeltaNoop(t *testing.T) {
	f := newFixture()
	if err := f.engine.ApplyBalanceChange(1, 2, 0.001, "Trip"); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.store.Get(1, 2)
	if rec != nil && len(rec.Groups) != 0 {
		t.Errorf("sub-cent delta created group rows: %+v", rec.Groups)
	}
}

func TestColdHydrationFromExpenseHistory(t *testing.T) {
	f := newFixture()
	f.store.seed(1, 2, 0, 0)
	f.expenses.items = []models.Expense{
		{
			PayerID:     1,
			GroupName:   "Road Trip",
			TotalAmount: 100,
			Participants: []models.ExpenseParticipant{
				{UserID: 1, Amount: 60, IsPayer: true},
				{UserID: 2, Amount: 40},
			},
		},
		{
			PayerID:     2,
			Note:        "Dinner",
			TotalAmount: 30,
			Participants: []models.ExpenseParticipant{
				{UserID: 2, Amount: 15, IsPayer: true},
				{UserID: 1, Amount: 15},
			},
		},
	}

	b := mustBreakdown(t, f.engine, 1, 2)
	if b.Balance != 25 {
		t.Errorf("reconstructed balance = %v, want 25", b.Balance)
	}
	if len(b.Groups) != 2 {
		t.Fatalf("groups = %+v, want 2 entries", b.Groups)
	}
	if b.Groups[0].Slug != "road-trip" || b.Groups[0].Amount != 40 || b.Groups[0].Direction != "owes_you" {
		t.Errorf("largest group = %+v", b.Groups[0])
	}
	if b.Groups[1].Slug != "dinner" || b.Groups[1].Amount != 15 || b.Groups[1].Direction != "you_owe" {
		t.Errorf("second group = %+v", b.Groups[1])
	}

	rec, _ := f.store.Get(1, 2)
	if rec.SnapshotVersion < 1 {
		t.Error("record not marked hydrated after reconstruction")
	}
	mirror, _ := f.store.Get(2, 1)
	if mirror == nil || mirror.Balance != -25 {
		t.Errorf("mirror balance = %+v, want -25", mirror)
	}
}

func TestColdHydrationSettlementOnly(t *testing.T) {
	f := newFixture()
	f.store.seed(1, 2, 0, 0)
	f.settlements.items = []models.FriendSettlement{
		{InitiatorID: 1, CounterpartyID: 2, GroupSlug: "dinner", GroupLabel: "Dinner", Direction: "you_owe", Amount: 15},
	}

	b := mustBreakdown(t, f.engine, 1, 2)
	if len(b.Groups) != 1 || b.Groups[0].Slug != "dinner" {
		t.Fatalf("groups = %+v", b.Groups)
	}
	if b.Groups[0].Amount != 15 || b.Groups[0].Direction != "owes_you" {
		t.Errorf("settlement-only entry = %+v, want 15 owed to owner", b.Groups[0])
	}
	if b.Balance != 15 {
		t.Errorf("balance = %v, want 15", b.Balance)
	}
}

func TestColdHydrationEmptyHistoryKeepsBalance(t *testing.T) {
	f := newFixture()
	f.store.seed(1, 2, 12.5, 0)

	if err := f.engine.SyncViews(1, 2); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.store.Get(1, 2)
	if rec.Balance != 12.5 {
		t.Errorf("empty hydration clobbered balance: %v", rec.Balance)
	}
	if rec.SnapshotVersion < 1 {
		t.Error("record not marked hydrated")
	}
}

func TestLegacyGroupRowsTrusted(t *testing.T) {
	f := newFixture()
	f.store.seed(1, 2, 20, 0, GroupEntry{Slug: "dinner", Label: "Dinner", Balance: 20})
	// Conflicting history that a reconstruction would have used instead.
	f.expenses.items = []models.Expense{
		{
			PayerID:     1,
			GroupName:   "Hotel",
			TotalAmount: 200,
			Participants: []models.ExpenseParticipant{
				{UserID: 1, Amount: 100, IsPayer: true},
				{UserID: 2, Amount: 100},
			},
		},
	}

	b := mustBreakdown(t, f.engine, 1, 2)
	if len(b.Groups) != 1 || b.Groups[0].Slug != "dinner" || b.Groups[0].Amount != 20 {
		t.Errorf("legacy rows were rebuilt instead of trusted: %+v", b.Groups)
	}
	rec, _ := f.store.Get(1, 2)
	if rec.SnapshotVersion < 1 {
		t.Error("legacy record not flagged hydrated")
	}
}

func TestReconstructionMatchesIncremental(t *testing.T) {
	// Same expenses applied live on one pair and replayed from history on
	// another must produce identical breakdowns.
	live := newFixture()
	shares := []struct {
		payer, debtor uint
		amount        float64
		label         string
	}{
		{1, 2, 33.34, "Groceries"},
		{2, 1, 12.5, "Groceries"},
		{1, 2, 60, "Rent"},
	}
	for _, s := range shares {
		if err := live.engine.ApplyBalanceChange(1, 2, OwnerAmount(sign(s.payer == 1)*s.amount), s.label); err != nil {
			t.Fatal(err)
		}
		if err := live.engine.ApplyBalanceChange(2, 1, OwnerAmount(sign(s.payer == 2)*s.amount), s.label); err != nil {
			t.Fatal(err)
		}
	}

	cold := newFixture()
	cold.store.seed(1, 2, 0, 0)
	for _, s := range shares {
		cold.expenses.items = append(cold.expenses.items, models.Expense{
			PayerID:   s.payer,
			GroupName: s.label,
			Participants: []models.ExpenseParticipant{
				{UserID: s.payer, Amount: 0, IsPayer: true},
				{UserID: s.debtor, Amount: s.amount},
			},
		})
	}

	got := mustBreakdown(t, cold.engine, 1, 2)
	want := mustBreakdown(t, live.engine, 1, 2)
	if got.Balance != want.Balance {
		t.Errorf("balance: cold %v, live %v", got.Balance, want.Balance)
	}
	if len(got.Groups) != len(want.Groups) {
		t.Fatalf("groups: cold %+v, live %+v", got.Groups, want.Groups)
	}
	for i := range got.Groups {
		if got.Groups[i] != want.Groups[i] {
			t.Errorf("group %d: cold %+v, live %+v", i, got.Groups[i], want.Groups[i])
		}
	}
}

func sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

func seedDebt(t *testing.T, f *fixture, amount float64, label string) {
	t.Helper()
	if err := f.engine.ApplyBalanceChange(1, 2, OwnerAmount(amount), label); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.ApplyBalanceChange(2, 1, OwnerAmount(-amount), label); err != nil {
		t.Fatal(err)
	}
}

func TestSettleGroupPartial(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, 50, "Trip")

	rec, delivered, err := f.engine.SettleGroup(1, 2, "trip", ptr(20), alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Direction != "owes_you" || rec.Amount != 20 || rec.GroupSlug != "trip" {
		t.Errorf("record = %+v", rec)
	}
	if !delivered {
		t.Error("email delivery flag not surfaced")
	}
	a, _ := f.store.Get(1, 2)
	if a.Balance != 30 || len(a.Groups) != 1 || a.Groups[0].Balance != 30 {
		t.Errorf("after partial settle: %+v groups %+v", a.Balance, a.Groups)
	}
	b, _ := f.store.Get(2, 1)
	if b.Balance != -30 {
		t.Errorf("mirror balance = %v, want -30", b.Balance)
	}
	if f.notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", f.notifier.calls)
	}
}

func TestSettleGroupFullPrunes(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, 50, "Trip")

	rec, _, err := f.engine.SettleGroup(1, 2, "trip", nil, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Amount != 50 {
		t.Errorf("full settle amount = %v, want 50", rec.Amount)
	}
	a, _ := f.store.Get(1, 2)
	if a.Balance != 0 || len(a.Groups) != 0 {
		t.Errorf("owner side not cleared: balance %v groups %+v", a.Balance, a.Groups)
	}
	b, _ := f.store.Get(2, 1)
	if b.Balance != 0 || len(b.Groups) != 0 {
		t.Errorf("mirror side not cleared: balance %v groups %+v", b.Balance, b.Groups)
	}
	if len(f.settlements.items) != 1 {
		t.Errorf("settlement records = %d, want 1", len(f.settlements.items))
	}
}

func TestSettleGroupOwedByInitiator(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, -25, "Dinner")

	rec, _, err := f.engine.SettleGroup(1, 2, "dinner", nil, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Direction != "you_owe" || rec.Amount != 25 {
		t.Errorf("record = %+v, want you_owe 25", rec)
	}
	a, _ := f.store.Get(1, 2)
	if a.Balance != 0 {
		t.Errorf("balance = %v, want 0", a.Balance)
	}
}

func TestSettleGroupPreconditions(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, 50, "Trip")

	if _, _, err := f.engine.SettleGroup(1, 2, "nope", nil, alice, bob); !errors.Is(err, ErrNothingToSettle) {
		t.Errorf("unknown group: err = %v", err)
	}
	if _, _, err := f.engine.SettleGroup(1, 2, "trip", ptr(0), alice, bob); !errors.Is(err, ErrAmountNotPositive) {
		t.Errorf("zero amount: err = %v", err)
	}
	if _, _, err := f.engine.SettleGroup(1, 2, "trip", ptr(-3), alice, bob); !errors.Is(err, ErrAmountNotPositive) {
		t.Errorf("negative amount: err = %v", err)
	}
	if _, _, err := f.engine.SettleGroup(1, 2, "trip", ptr(50.02), alice, bob); !errors.Is(err, ErrAmountExceedsOwed) {
		t.Errorf("over-settle: err = %v", err)
	}
	// A cent of slack is allowed.
	if _, _, err := f.engine.SettleGroup(1, 2, "trip", ptr(50.01), alice, bob); err != nil {
		t.Errorf("within tolerance: err = %v", err)
	}
	if _, _, err := f.engine.SettleGroup(9, 8, "trip", nil, alice, bob); !errors.Is(err, ErrFriendshipNotFound) {
		t.Errorf("missing friendship: err = %v", err)
	}
	if !IsSettlementError(ErrAmountExceedsOwed) {
		t.Error("IsSettlementError(ErrAmountExceedsOwed) = false")
	}
	if IsSettlementError(errors.New("boom")) {
		t.Error("IsSettlementError matched a plain error")
	}
}

func TestSettleAll(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, 50, "Trip")
	seedDebt(t, f, -20, "Dinner")

	results, total, breakdown, err := f.engine.SettleAll(1, 2, alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	// Slug order: dinner before trip.
	if results[0].Record.GroupSlug != "dinner" || results[0].Record.Direction != "you_owe" {
		t.Errorf("first result = %+v", results[0].Record)
	}
	if results[1].Record.GroupSlug != "trip" || results[1].Record.Direction != "owes_you" {
		t.Errorf("second result = %+v", results[1].Record)
	}
	if total != 70 {
		t.Errorf("total settled = %v, want 70", total)
	}
	if breakdown.Balance != 0 || len(breakdown.Groups) != 0 {
		t.Errorf("final breakdown = %+v, want clean slate", breakdown)
	}
	if f.mailer.calls != 2 {
		t.Errorf("mailer calls = %d, want 2", f.mailer.calls)
	}

	if _, _, _, err := f.engine.SettleAll(1, 2, alice, bob); !errors.Is(err, ErrNoOutstandingGroups) {
		t.Errorf("repeat settle-all: err = %v", err)
	}
}

func TestBreakdownOrderingAndFiltering(t *testing.T) {
	f := newFixture()
	seedDebt(t, f, 5, "Coffee")
	seedDebt(t, f, 30, "Rent")
	seedDebt(t, f, -10, "Taxi")
	seedDebt(t, f, 0.004, "Dust")

	b := mustBreakdown(t, f.engine, 1, 2)
	var slugs []string
	for _, g := range b.Groups {
		slugs = append(slugs, g.Slug)
	}
	want := []string{"rent", "taxi", "coffee"}
	if len(slugs) != len(want) {
		t.Fatalf("groups = %v, want %v", slugs, want)
	}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("group %d = %q, want %q", i, slugs[i], want[i])
		}
	}
	if b.TotalOwedYou != 35 || b.TotalYouOwe != 10 {
		t.Errorf("totals = %v / %v, want 35 / 10", b.TotalOwedYou, b.TotalYouOwe)
	}
	if b.Balance != 25 {
		t.Errorf("balance = %v, want 25", b.Balance)
	}
	if b.Groups[1].Amount != 10 {
		t.Errorf("you_owe amount = %v, want positive 10", b.Groups[1].Amount)
	}
}

func TestBreakdownMissingFriendship(t *testing.T) {
	f := newFixture()
	if _, err := f.engine.Breakdown(1, 2); !errors.Is(err, ErrFriendshipNotFound) {
		t.Errorf("err = %v, want ErrFriendshipNotFound", err)
	}
}
