package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func (e *testEnv) newCard(t *testing.T, account ledger.AccountID, limit string) finance.Card {
	t.Helper()
	card, err := e.invoices.CreateCard(context.Background(), "Visa", account, ledger.MustMoney(limit), 5, 12)
	require.NoError(t, err)
	return card
}

func (e *testEnv) availableLimit(t *testing.T, id finance.CardID) string {
	t.Helper()
	card, err := e.store.GetCard(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, card)
	return card.AvailableLimit.StringFixed(2)
}

// checkLimitCounter compares the materialized available-limit counter with
// the recomputed value; the two must never drift apart.
func (e *testEnv) checkLimitCounter(t *testing.T, id finance.CardID) {
	t.Helper()
	recomputed, err := finance.RecomputeAvailableLimit(context.Background(), e.store, id)
	require.NoError(t, err)
	card, err := e.store.GetCard(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, card.AvailableLimit.Equal(recomputed),
		"materialized limit %s drifted from recomputed %s", card.AvailableLimit, recomputed)
}

// =============================================================================
// CARD LIFECYCLE
// =============================================================================

func TestCreateCard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")

	card, err := env.invoices.CreateCard(ctx, "Visa Gold", account.ID, ledger.MustMoney("3000.00"), 5, 12)
	require.NoError(t, err)
	assert.True(t, card.AvailableLimit.Equal(card.Limit), "a fresh card has its full limit available")

	_, err = env.invoices.CreateCard(ctx, "Orphan", "missing", ledger.MustMoney("1000.00"), 5, 12)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = env.invoices.CreateCard(ctx, "Bad", account.ID, ledger.MustMoney("1000.00"), 0, 12)
	assert.Error(t, err, "closing day out of range")
}

// =============================================================================
// SPEND
// =============================================================================

func TestRecordCardSpend_AccumulatesIntoPeriodInvoice(t *testing.T) {
	// GIVEN: A card closing on day 5
	// WHEN: Two purchases land in the same billing period
	// THEN: One invoice carries their sum; the account balance is untouched

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, first, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("230.50"), md(t, "2026-04-10"), "Shoes", "clothing")
	require.NoError(t, err)
	_, second, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("74.90"), md(t, "2026-05-01"), "Books", "education")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "both purchases fall in the period closing May 5")
	assert.True(t, second.Total.Equal(ledger.MustMoney("305.40")))
	assert.Equal(t, "2694.60", env.availableLimit(t, card.ID))
	assert.True(t, env.balance(t, account.ID).Equal(ledger.MustMoney("1000.00")))
	env.checkLimitCounter(t, card.ID)
}

func TestRecordCardSpend_SplitsAcrossPeriodsByClosingDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, onClosing, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("10.00"), md(t, "2026-04-05"), "A", "misc")
	require.NoError(t, err)
	_, afterClosing, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("20.00"), md(t, "2026-04-06"), "B", "misc")
	require.NoError(t, err)

	assert.NotEqual(t, onClosing.ID, afterClosing.ID)
	assert.Equal(t, 4, int(onClosing.Month))
	assert.Equal(t, 5, int(afterClosing.Month))
	env.checkLimitCounter(t, card.ID)
}

func TestRecordCardSpend_TimestampsFollowInjectedClock(t *testing.T) {
	// Invoice and card timestamps come from the engine's clock, not the
	// wall clock.

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	pinned := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("50.00"), md(t, "2026-04-10"), "Shoes", "clothing")
	require.NoError(t, err)
	assert.True(t, invoice.CreatedAt.Equal(pinned))
	assert.True(t, invoice.UpdatedAt.Equal(pinned))

	reloaded, err := env.store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.True(t, reloaded.UpdatedAt.Equal(pinned))
}

func TestRecordCardSpend_LimitEnforced(t *testing.T) {
	// GIVEN: 300.00 of a 1000.00 limit already committed
	// WHEN: Spending 700.01 more
	// THEN: InsufficientCreditLimitError naming the shortfall; nothing recorded

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "1000.00")

	_, _, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("300.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)

	_, _, err = env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("700.01"), md(t, "2026-04-11"), "B", "misc")
	var limitErr *ledger.InsufficientCreditLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "700.00", limitErr.Available.StringFixed(2))
	assert.Equal(t, "700.01", limitErr.Requested.StringFixed(2))

	invoice, err := env.invoices.OpenInvoice(ctx, card.ID, md(t, "2026-04-10"))
	require.NoError(t, err)
	assert.True(t, invoice.Total.Equal(ledger.MustMoney("300.00")), "the failed purchase left no trace")
	env.checkLimitCounter(t, card.ID)
}

func TestRecordCardSpend_BackdatedIntoClosedUnpaidInvoice(t *testing.T) {
	// A period whose closing date has passed is CLOSED but still unpaid;
	// backdated purchases that map into it are accepted.

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("100.00"), md(t, "2026-02-10"), "Old purchase", "misc")
	require.NoError(t, err)

	assert.Equal(t, finance.InvoiceClosed, invoice.Status(md(t, "2026-04-01")))

	_, again, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("50.00"), md(t, "2026-02-15"), "Backdated", "misc")
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, again.ID)
	assert.True(t, again.Total.Equal(ledger.MustMoney("150.00")))
}

// =============================================================================
// PAYMENT
// =============================================================================

func TestPayInvoice_DebitsAccountAndFreesLimit(t *testing.T) {
	// GIVEN: 305.40 committed on the card
	// WHEN: Paying the invoice from checking
	// THEN: Balance drops by the total, limit returns to full, status is PAID

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("305.40"), md(t, "2026-04-10"), "Shoes", "clothing")
	require.NoError(t, err)

	paid, err := env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	require.NoError(t, err)

	assert.True(t, paid.Paid)
	assert.NotNil(t, paid.PaidAt)
	assert.NotEmpty(t, paid.LedgerEntryID)
	assert.Equal(t, finance.InvoicePaid, paid.Status(md(t, "2026-05-12")))

	assert.True(t, env.balance(t, account.ID).Equal(ledger.MustMoney("694.60")))
	assert.Equal(t, "3000.00", env.availableLimit(t, card.ID))

	entry, err := env.store.GetEntry(ctx, paid.LedgerEntryID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, ledger.OriginInvoicePayment, entry.Origin)

	env.verify(t, account.ID)
	env.checkLimitCounter(t, card.ID)
}

func TestPayInvoice_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	// Empty invoice: synthesize it via a spend that is then deleted.
	spendTx, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("50.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)
	require.NoError(t, env.transactions.Delete(ctx, spendTx.ID, finance.ScopeSingle))
	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	assert.ErrorIs(t, err, finance.ErrInvoiceEmpty)

	_, err = env.invoices.PayInvoice(ctx, "missing", account.ID, md(t, "2026-05-12"))
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
}

func TestPayInvoice_TwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("100.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)

	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	require.NoError(t, err)

	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-13"))
	assert.ErrorIs(t, err, ledger.ErrInvoiceAlreadyPaid)
	assert.True(t, env.balance(t, account.ID).Equal(ledger.MustMoney("900.00")), "no double debit")
}

func TestPaidInvoice_RejectsFurtherSpendAndEdits(t *testing.T) {
	// PAID is terminal: no new spend, no edits of rows on that invoice.

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	spendTx, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("100.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)
	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	require.NoError(t, err)

	_, _, err = env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("10.00"), md(t, "2026-04-20"), "Late", "misc")
	assert.ErrorIs(t, err, ledger.ErrInvoiceAlreadyPaid)

	err = env.transactions.Delete(ctx, spendTx.ID, finance.ScopeSingle)
	assert.ErrorIs(t, err, ledger.ErrInvoiceAlreadyPaid)

	amount := ledger.MustMoney("20.00")
	_, err = env.transactions.Update(ctx, spendTx.ID, finance.UpdateInput{Amount: &amount}, finance.ScopeSingle)
	assert.ErrorIs(t, err, ledger.ErrInvoiceAlreadyPaid)
}

func TestReverseInvoicePayment_ReopensAndReconsumesLimit(t *testing.T) {
	// GIVEN: A paid 100.00 invoice
	// WHEN: Reversing the payment
	// THEN: Account credited back, invoice unpaid, limit consumed again

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("100.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)
	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	require.NoError(t, err)

	reopened, err := env.invoices.ReverseInvoicePayment(ctx, invoice.ID)
	require.NoError(t, err)

	assert.False(t, reopened.Paid)
	assert.Nil(t, reopened.PaidAt)
	assert.True(t, env.balance(t, account.ID).Equal(ledger.MustMoney("1000.00")))
	assert.Equal(t, "2900.00", env.availableLimit(t, card.ID))

	env.verify(t, account.ID)
	env.checkLimitCounter(t, card.ID)

	_, err = env.invoices.ReverseInvoicePayment(ctx, invoice.ID)
	assert.ErrorIs(t, err, finance.ErrInvoiceNotPaid)
}

func TestReverseInvoicePayment_BlockedWhenLimitReSpent(t *testing.T) {
	// The freed limit was spent on a later invoice; the committed spend can
	// no longer fit back on the credit line.

	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "5000.00")
	card := env.newCard(t, account.ID, "1000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("900.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)
	_, err = env.invoices.PayInvoice(ctx, invoice.ID, account.ID, md(t, "2026-05-12"))
	require.NoError(t, err)

	_, _, err = env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("500.00"), md(t, "2026-05-20"), "B", "misc")
	require.NoError(t, err)

	_, err = env.invoices.ReverseInvoicePayment(ctx, invoice.ID)
	var limitErr *ledger.InsufficientCreditLimitError
	require.ErrorAs(t, err, &limitErr)
	env.checkLimitCounter(t, card.ID)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestOpenInvoice_SynthesizesEmptyInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	invoice, err := env.invoices.OpenInvoice(ctx, card.ID, md(t, "2026-04-10"))
	require.NoError(t, err)
	assert.True(t, invoice.Total.IsZero())
	assert.Equal(t, 2026, invoice.Year)
	assert.Equal(t, 5, int(invoice.Month))
	assert.Equal(t, finance.InvoiceOpen, invoice.Status(md(t, "2026-04-10")))

	persisted, err := env.invoices.ListInvoices(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, persisted, "a synthesized invoice is not stored")
}

func TestInvoiceStatus_Derivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.newAccount(t, "Checking", "1000.00")
	card := env.newCard(t, account.ID, "3000.00")

	_, invoice, err := env.invoices.RecordCardSpend(ctx, card.ID, ledger.MustMoney("100.00"), md(t, "2026-04-10"), "A", "misc")
	require.NoError(t, err)

	assert.Equal(t, finance.InvoiceOpen, invoice.Status(md(t, "2026-05-05")), "open through the closing date")
	assert.Equal(t, finance.InvoiceClosed, invoice.Status(md(t, "2026-05-06")), "closed the day after")
}
