package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestManager(t *testing.T) (*ledger.BalanceManager, ledger.TxStore) {
	t.Helper()
	store := finance.AsLedgerTx(memory.New())
	return ledger.NewBalanceManager(store), store
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

func TestCreateAccount_WithOpeningBalance(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: Creating an account with a 100.00 opening balance
	// THEN: Balance is 100.00 and exactly one ADJUSTMENT entry anchors it

	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("100.00"))
	require.NoError(t, err)

	assert.True(t, account.Balance.Equal(ledger.MustMoney("100.00")))
	assert.True(t, account.OpeningBalance.Equal(ledger.MustMoney("100.00")))

	entries, err := store.Entries(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.OriginAdjustment, entries[0].Origin)
	assert.Equal(t, ledger.In, entries[0].Direction)
	assert.True(t, entries[0].BalanceAfter.Equal(ledger.MustMoney("100.00")))
}

func TestCreateAccount_ZeroOpening_NoEntry(t *testing.T) {
	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Wallet", ledger.KindBank, decimal.Zero)
	require.NoError(t, err)

	entries, err := store.Entries(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "zero opening must not produce an entry")
}

func TestCreateAccount_Rejections(t *testing.T) {
	bm, _ := newTestManager(t)
	ctx := context.Background()

	_, err := bm.CreateAccount(ctx, "   ", ledger.KindBank, decimal.Zero)
	assert.ErrorIs(t, err, ledger.ErrInvalidName)

	_, err = bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("-10"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestDeactivateAccount_RejectsNewMutations(t *testing.T) {
	// GIVEN: A deactivated account
	// WHEN: Applying a balance change
	// THEN: ErrInactiveResource; history stays queryable

	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Old", ledger.KindBank, ledger.MustMoney("50.00"))
	require.NoError(t, err)
	require.NoError(t, bm.DeactivateAccount(ctx, account.ID))

	_, err = bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID: account.ID,
		Delta:     ledger.MustMoney("10.00"),
		Origin:    ledger.OriginManualTransaction,
		Date:      ledger.Today(),
	})
	assert.ErrorIs(t, err, ledger.ErrInactiveResource)

	entries, err := store.Entries(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "opening entry remains readable")
}

// =============================================================================
// BALANCE MUTATIONS
// =============================================================================

func TestApplyBalanceChange_EntryAndBalanceMoveTogether(t *testing.T) {
	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("100.00"))
	require.NoError(t, err)

	entry, err := bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID:   account.ID,
		Delta:       ledger.MustMoney("-30.00"),
		Origin:      ledger.OriginManualTransaction,
		Description: "Groceries",
		Date:        ledger.Today(),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.Out, entry.Direction)
	assert.True(t, entry.Amount.Equal(ledger.MustMoney("30.00")))
	assert.True(t, entry.BalanceAfter.Equal(ledger.MustMoney("70.00")))

	reloaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(entry.BalanceAfter),
		"account balance must equal the last entry's balance-after")
}

func TestApplyBalanceChange_InsufficientFunds(t *testing.T) {
	// GIVEN: Balance 100.00
	// WHEN: Debiting 100.01
	// THEN: InsufficientFundsError with the shortage details; nothing committed

	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("100.00"))
	require.NoError(t, err)

	_, err = bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID: account.ID,
		Delta:     ledger.MustMoney("-100.01"),
		Origin:    ledger.OriginManualTransaction,
		Date:      ledger.Today(),
	})
	require.Error(t, err)

	var fundsErr *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.True(t, fundsErr.Available.Equal(ledger.MustMoney("100.00")))
	assert.True(t, fundsErr.Requested.Equal(ledger.MustMoney("100.01")))

	entries, err := store.Entries(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed debit must not append an entry")

	reloaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(ledger.MustMoney("100.00")))
}

func TestApplyBalanceChange_ReversalBypassesFundsCheck(t *testing.T) {
	// A reversal un-does a previously valid debit and must never be blocked,
	// even if it temporarily drives the balance negative.

	bm, _ := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, decimal.Zero)
	require.NoError(t, err)

	entry, err := bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID: account.ID,
		Delta:     ledger.MustMoney("-25.00"),
		Origin:    ledger.OriginReversal,
		Date:      ledger.Today(),
	})
	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.Equal(ledger.MustMoney("-25.00")))
}

func TestApplyBalanceChange_Rejections(t *testing.T) {
	bm, _ := newTestManager(t)
	ctx := context.Background()

	_, err := bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID: "missing",
		Delta:     ledger.MustMoney("10.00"),
		Origin:    ledger.OriginManualTransaction,
		Date:      ledger.Today(),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, decimal.Zero)
	require.NoError(t, err)

	_, err = bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
		AccountID: account.ID,
		Delta:     decimal.Zero,
		Origin:    ledger.OriginManualTransaction,
		Date:      ledger.Today(),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// OPTIMISTIC RETRY
// =============================================================================

// conflictingStore fails WithTx with a version conflict a fixed number of
// times before delegating, simulating lost races.
type conflictingStore struct {
	ledger.TxStore
	failures int
	attempts int
}

func (c *conflictingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	c.attempts++
	if c.attempts <= c.failures {
		return ledger.ErrVersionConflict
	}
	return c.TxStore.WithTx(ctx, fn)
}

func TestRunInTx_RetriesVersionConflicts(t *testing.T) {
	// GIVEN: A store that loses the race twice before succeeding
	// WHEN: Running a unit of work
	// THEN: It is replayed and eventually commits

	inner := finance.AsLedgerTx(memory.New())
	store := &conflictingStore{TxStore: inner, failures: 2}

	err := ledger.RunInTx(context.Background(), store, func(s ledger.Store) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.attempts)
}

func TestRunInTx_SurfacesConcurrentModification(t *testing.T) {
	// GIVEN: A store that always conflicts
	// WHEN: Retries are exhausted
	// THEN: ErrConcurrentModification

	inner := finance.AsLedgerTx(memory.New())
	store := &conflictingStore{TxStore: inner, failures: 100}

	err := ledger.RunInTx(context.Background(), store, func(s ledger.Store) error {
		return nil
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.True(t, ledger.IsRetryable(err), "the caller may retry the whole unit")
}

// =============================================================================
// REPLAY VERIFICATION
// =============================================================================

func TestVerifyAccount_ConsistentLedger(t *testing.T) {
	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("100.00"))
	require.NoError(t, err)

	for _, delta := range []string{"-10.00", "25.00", "-42.13"} {
		_, err := bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
			AccountID: account.ID,
			Delta:     ledger.MustMoney(delta),
			Origin:    ledger.OriginManualTransaction,
			Date:      ledger.Today(),
		})
		require.NoError(t, err)
	}

	assert.NoError(t, ledger.VerifyAccount(ctx, store, account.ID))

	entries, err := store.Entries(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, ledger.Replay(entries).Equal(ledger.MustMoney("72.87")),
		"the bare fold lands on the current balance")
}

func TestVerifyAccount_DetectsCorruptedSnapshot(t *testing.T) {
	// GIVEN: An entry persisted with a wrong balance-after snapshot
	// WHEN: Verifying the account
	// THEN: ReplayMismatchError naming the bad entry

	bm, store := newTestManager(t)
	ctx := context.Background()

	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("100.00"))
	require.NoError(t, err)

	// Corrupt by appending directly, bypassing the balance manager.
	bad, err := store.AppendEntry(ctx, ledger.Entry{
		ID:           "bad-entry",
		AccountID:    account.ID,
		Date:         ledger.Today(),
		Direction:    ledger.Out,
		Amount:       ledger.MustMoney("10.00"),
		BalanceAfter: ledger.MustMoney("123.45"),
		Origin:       ledger.OriginManualTransaction,
	})
	require.NoError(t, err)

	err = ledger.VerifyAccount(ctx, store, account.ID)
	require.Error(t, err)

	var mismatch *ledger.ReplayMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, bad.ID, mismatch.EntryID)
	assert.True(t, mismatch.Computed.Equal(ledger.MustMoney("90.00")))
}
