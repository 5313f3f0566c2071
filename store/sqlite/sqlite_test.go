package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { store.Close() })
	return store
}

func saveAccount(t *testing.T, store *sqlite.Store, id, name string) ledger.Account {
	t.Helper()
	now := time.Now().UTC()
	account := ledger.Account{
		ID:        ledger.AccountID(id),
		Name:      name,
		Kind:      ledger.KindBank,
		Active:    true,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveAccount(context.Background(), account))
	return account
}

func day(t *testing.T, s string) ledger.Date {
	t.Helper()
	d, err := ledger.ParseDate(s)
	require.NoError(t, err)
	return d
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccountRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	loaded, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Checking", loaded.Name)
	assert.Equal(t, ledger.KindBank, loaded.Kind)
	assert.True(t, loaded.Active)
	assert.Equal(t, int64(0), loaded.Version)

	missing, err := store.GetAccount(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing, "a miss is nil, not an error")
}

func TestUpdateAccountBalance_VersionGuard(t *testing.T) {
	// GIVEN: An account at version 0
	// WHEN: Two writers update with the same expected version
	// THEN: The first wins and bumps the version; the second gets ErrVersionConflict

	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	require.NoError(t, store.UpdateAccountBalance(ctx, "a1", ledger.MustMoney("10.00"), 0))

	err := store.UpdateAccountBalance(ctx, "a1", ledger.MustMoney("20.00"), 0)
	assert.ErrorIs(t, err, ledger.ErrVersionConflict)

	loaded, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.True(t, loaded.Balance.Equal(ledger.MustMoney("10.00")), "the losing write must not land")

	require.NoError(t, store.UpdateAccountBalance(ctx, "a1", ledger.MustMoney("20.00"), 1))
}

// =============================================================================
// ENTRIES
// =============================================================================

func appendEntry(t *testing.T, store finance.Store, accountID, id, date string, dir ledger.Direction, amount, after string) ledger.Entry {
	t.Helper()
	entry, err := store.AppendEntry(context.Background(), ledger.Entry{
		ID:           ledger.EntryID(id),
		AccountID:    ledger.AccountID(accountID),
		Date:         day(t, date),
		Direction:    dir,
		Amount:       ledger.MustMoney(amount),
		BalanceAfter: ledger.MustMoney(after),
		Origin:       ledger.OriginManualTransaction,
	})
	require.NoError(t, err)
	return entry
}

func TestEntries_DateThenInsertionOrder(t *testing.T) {
	// GIVEN: Entries appended out of date order, including two on the same day
	// WHEN: Listing
	// THEN: (date, seq) order; ties resolved by insertion

	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	e3 := appendEntry(t, store, "a1", "e3", "2026-03-01", ledger.In, "30.00", "30.00")
	e1 := appendEntry(t, store, "a1", "e1", "2026-01-01", ledger.In, "10.00", "40.00")
	e2a := appendEntry(t, store, "a1", "e2a", "2026-02-01", ledger.In, "20.00", "60.00")
	e2b := appendEntry(t, store, "a1", "e2b", "2026-02-01", ledger.Out, "5.00", "55.00")

	assert.Greater(t, e1.Seq, e3.Seq, "seq reflects insertion order")

	entries, err := store.Entries(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, e1.ID, entries[0].ID)
	assert.Equal(t, e2a.ID, entries[1].ID)
	assert.Equal(t, e2b.ID, entries[2].ID)
	assert.Equal(t, e3.ID, entries[3].ID)
}

func TestEntries_RangeAndAnchors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	appendEntry(t, store, "a1", "e1", "2026-01-15", ledger.In, "100.00", "100.00")
	appendEntry(t, store, "a1", "e2", "2026-02-10", ledger.Out, "30.00", "70.00")
	appendEntry(t, store, "a1", "e3", "2026-03-05", ledger.In, "10.00", "80.00")

	inRange, err := store.EntriesInRange(ctx, "a1", day(t, "2026-02-01"), day(t, "2026-02-28"))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, ledger.EntryID("e2"), inRange[0].ID)

	before, err := store.LastEntryBefore(ctx, "a1", day(t, "2026-02-10"))
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Equal(t, ledger.EntryID("e1"), before.ID, "strictly before excludes the boundary date")

	through, err := store.LastEntryThrough(ctx, "a1", day(t, "2026-02-10"))
	require.NoError(t, err)
	require.NotNil(t, through)
	assert.Equal(t, ledger.EntryID("e2"), through.ID, "through includes the boundary date")

	none, err := store.LastEntryBefore(ctx, "a1", day(t, "2026-01-15"))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAppendEntry_DecimalFidelity(t *testing.T) {
	// Amounts survive storage exactly; no float drift.

	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	appendEntry(t, store, "a1", "e1", "2026-01-15", ledger.In, "0.10", "0.10")
	appendEntry(t, store, "a1", "e2", "2026-01-16", ledger.In, "0.20", "0.30")

	loaded, err := store.GetEntry(ctx, "e2")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.BalanceAfter.Equal(ledger.MustMoney("0.30")))
	assert.True(t, loaded.Amount.Equal(ledger.MustMoney("0.20")))
}

func TestAppendEntry_ReferenceRoundTrip(t *testing.T) {
	// The reference carries transaction, invoice, or transfer-group ids,
	// so it comes back as the plain string it went in as.

	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	_, err := store.AppendEntry(ctx, ledger.Entry{
		ID:           "e1",
		AccountID:    "a1",
		Date:         day(t, "2026-01-15"),
		Direction:    ledger.Out,
		Amount:       ledger.MustMoney("10.00"),
		BalanceAfter: ledger.MustMoney("-10.00"),
		Origin:       ledger.OriginReversal,
		ReferenceID:  "txn-42",
	})
	require.NoError(t, err)

	loaded, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "txn-42", loaded.ReferenceID)

	bare := appendEntry(t, store, "a1", "e2", "2026-01-16", ledger.In, "10.00", "0.00")
	loaded, err = store.GetEntry(ctx, bare.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.ReferenceID, "no reference stays empty")
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

func TestWithTx_RollsBackEverything(t *testing.T) {
	// GIVEN: A unit of work that appends an entry, updates a balance, and fails
	// WHEN: It returns an error
	// THEN: Neither write is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s finance.Store) error {
		if _, err := s.AppendEntry(ctx, ledger.Entry{
			ID:           "ghost",
			AccountID:    "a1",
			Date:         day(t, "2026-01-15"),
			Direction:    ledger.In,
			Amount:       ledger.MustMoney("10.00"),
			BalanceAfter: ledger.MustMoney("10.00"),
			Origin:       ledger.OriginManualTransaction,
		}); err != nil {
			return err
		}
		if err := s.UpdateAccountBalance(ctx, "a1", ledger.MustMoney("10.00"), 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entry, err := store.GetEntry(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, entry)

	account, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, int64(0), account.Version)
}

func TestWithTx_CommitsTogether(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")

	err := store.WithTx(ctx, func(s finance.Store) error {
		if _, err := s.AppendEntry(ctx, ledger.Entry{
			ID:           "e1",
			AccountID:    "a1",
			Date:         day(t, "2026-01-15"),
			Direction:    ledger.In,
			Amount:       ledger.MustMoney("10.00"),
			BalanceAfter: ledger.MustMoney("10.00"),
			Origin:       ledger.OriginManualTransaction,
		}); err != nil {
			return err
		}
		return s.UpdateAccountBalance(ctx, "a1", ledger.MustMoney("10.00"), 0)
	})
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(ledger.MustMoney("10.00")))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransactionGroupLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	base := finance.Transaction{
		Direction:     ledger.Out,
		Amount:        ledger.MustMoney("30.00"),
		Category:      "misc",
		PaymentMethod: finance.MethodCash,
		AccountID:     "a1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for i := 1; i <= 3; i++ {
		row := base
		row.ID = finance.TransactionID(string(rune('0' + i)))
		row.Date = day(t, "2026-01-10").AddMonths(i - 1)
		row.InstallmentGroupID = "grp"
		row.InstallmentIndex = i
		row.InstallmentCount = 3
		require.NoError(t, store.SaveTransaction(ctx, row))
	}

	siblings, err := store.TransactionsByInstallmentGroup(ctx, "grp")
	require.NoError(t, err)
	require.Len(t, siblings, 3)
	assert.Equal(t, 1, siblings[0].InstallmentIndex)
	assert.Equal(t, 3, siblings[2].InstallmentIndex)

	empty, err := store.TransactionsByInstallmentGroup(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)

	listed, err := store.ListTransactions(ctx, day(t, "2026-01-01"), day(t, "2026-02-28"))
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	require.NoError(t, store.DeleteTransaction(ctx, siblings[0].ID))
	gone, err := store.GetTransaction(ctx, siblings[0].ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

// =============================================================================
// CARDS AND INVOICES
// =============================================================================

func TestCardAndInvoiceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	card := finance.Card{
		ID:             "c1",
		Name:           "Visa",
		AccountID:      "a1",
		Limit:          ledger.MustMoney("3000.00"),
		AvailableLimit: ledger.MustMoney("3000.00"),
		ClosingDay:     5,
		DueDay:         12,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.SaveCard(ctx, card))

	inv := finance.Invoice{
		ID:        "i1",
		CardID:    "c1",
		Year:      2026,
		Month:     time.May,
		Period:    finance.PeriodFor(5, day(t, "2026-04-10")),
		Total:     ledger.MustMoney("305.40"),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.SaveInvoice(ctx, inv))

	found, err := store.FindInvoice(ctx, "c1", 2026, 5)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, finance.InvoiceID("i1"), found.ID)
	assert.True(t, found.Total.Equal(ledger.MustMoney("305.40")))
	assert.True(t, found.Period.Start.Equal(day(t, "2026-04-06")))
	assert.True(t, found.Period.End.Equal(day(t, "2026-05-05")))

	miss, err := store.FindInvoice(ctx, "c1", 2026, 6)
	require.NoError(t, err)
	assert.Nil(t, miss)

	paidAt := now
	found.Paid = true
	found.PaidAt = &paidAt
	found.LedgerEntryID = "entry-1"
	require.NoError(t, store.UpdateInvoice(ctx, *found))

	reloaded, err := store.GetInvoice(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.True(t, reloaded.Paid)
	require.NotNil(t, reloaded.PaidAt)
	assert.Equal(t, ledger.EntryID("entry-1"), reloaded.LedgerEntryID)
}

// =============================================================================
// RESET
// =============================================================================

func TestReset_ClearsAllTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	saveAccount(t, store, "a1", "Checking")
	appendEntry(t, store, "a1", "e1", "2026-01-15", ledger.In, "10.00", "10.00")

	require.NoError(t, store.Reset(ctx))

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	entry, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}
