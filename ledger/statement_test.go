package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seedStatementAccount builds an account with entries spanning three months:
//
//	2026-01-10  ADJUSTMENT  +500.00  (opening)
//	2026-02-03  IN          +200.00
//	2026-02-15  OUT          -80.00
//	2026-03-01  OUT          -20.00
func seedStatementAccount(t *testing.T) (*ledger.StatementReader, ledger.AccountID) {
	t.Helper()
	bm, store := newTestManager(t)
	ctx := context.Background()

	// Pin the clock so the opening entry lands on 2026-01-10.
	bm.Now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	account, err := bm.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("500.00"))
	require.NoError(t, err)

	post := func(date string, delta string) {
		t.Helper()
		d, err := ledger.ParseDate(date)
		require.NoError(t, err)
		_, err = bm.ApplyBalanceChange(ctx, ledger.ChangeInput{
			AccountID: account.ID,
			Delta:     ledger.MustMoney(delta),
			Origin:    ledger.OriginManualTransaction,
			Date:      d,
		})
		require.NoError(t, err)
	}
	post("2026-02-03", "200.00")
	post("2026-02-15", "-80.00")
	post("2026-03-01", "-20.00")

	return ledger.NewStatementReader(store), account.ID
}

// =============================================================================
// PERIOD SUMMARY
// =============================================================================

func TestGetStatement_FebruarySummary(t *testing.T) {
	// GIVEN: Entries across Jan-Mar
	// WHEN: Requesting the February statement
	// THEN: Opening anchors on January's close, totals cover February only

	reader, accountID := seedStatementAccount(t)

	stmt, err := reader.GetStatement(context.Background(), accountID,
		mustDate(t, "2026-02-01"), mustDate(t, "2026-02-28"), ledger.StatementFilter{})
	require.NoError(t, err)

	require.Len(t, stmt.Entries, 2)
	assert.True(t, stmt.Summary.OpeningBalance.Equal(ledger.MustMoney("500.00")))
	assert.True(t, stmt.Summary.ClosingBalance.Equal(ledger.MustMoney("620.00")))
	assert.True(t, stmt.Summary.TotalIn.Equal(ledger.MustMoney("200.00")))
	assert.True(t, stmt.Summary.TotalOut.Equal(ledger.MustMoney("80.00")))
}

func TestGetStatement_OpeningAnchorsAtZeroBeforeFirstEntry(t *testing.T) {
	// A window before any entry sees opening = 0: the account's opening
	// balance lives in its first ADJUSTMENT entry, not outside the ledger.

	reader, accountID := seedStatementAccount(t)

	stmt, err := reader.GetStatement(context.Background(), accountID,
		mustDate(t, "2025-12-01"), mustDate(t, "2025-12-31"), ledger.StatementFilter{})
	require.NoError(t, err)

	assert.Empty(t, stmt.Entries)
	assert.True(t, stmt.Summary.OpeningBalance.IsZero())
	assert.True(t, stmt.Summary.ClosingBalance.IsZero())
}

func TestGetStatement_EmptyPeriodCarriesBalanceForward(t *testing.T) {
	reader, accountID := seedStatementAccount(t)

	stmt, err := reader.GetStatement(context.Background(), accountID,
		mustDate(t, "2026-04-01"), mustDate(t, "2026-04-30"), ledger.StatementFilter{})
	require.NoError(t, err)

	assert.Empty(t, stmt.Entries)
	assert.True(t, stmt.Summary.OpeningBalance.Equal(ledger.MustMoney("600.00")))
	assert.True(t, stmt.Summary.ClosingBalance.Equal(ledger.MustMoney("600.00")))
	assert.True(t, stmt.Summary.TotalIn.IsZero())
	assert.True(t, stmt.Summary.TotalOut.IsZero())
}

// =============================================================================
// FILTERS
// =============================================================================

func TestGetStatement_FiltersNarrowListingNotBalances(t *testing.T) {
	// GIVEN: A February window with one IN and one OUT entry
	// WHEN: Filtering to OUT only
	// THEN: Listing and totals shrink; opening/closing stay unfiltered

	reader, accountID := seedStatementAccount(t)

	stmt, err := reader.GetStatement(context.Background(), accountID,
		mustDate(t, "2026-02-01"), mustDate(t, "2026-02-28"),
		ledger.StatementFilter{Direction: ledger.Out})
	require.NoError(t, err)

	require.Len(t, stmt.Entries, 1)
	assert.Equal(t, ledger.Out, stmt.Entries[0].Direction)
	assert.True(t, stmt.Summary.TotalIn.IsZero())
	assert.True(t, stmt.Summary.TotalOut.Equal(ledger.MustMoney("80.00")))
	assert.True(t, stmt.Summary.OpeningBalance.Equal(ledger.MustMoney("500.00")))
	assert.True(t, stmt.Summary.ClosingBalance.Equal(ledger.MustMoney("620.00")))
}

func TestGetStatement_OriginFilter(t *testing.T) {
	reader, accountID := seedStatementAccount(t)

	stmt, err := reader.GetStatement(context.Background(), accountID,
		mustDate(t, "2026-01-01"), mustDate(t, "2026-03-31"),
		ledger.StatementFilter{Origin: ledger.OriginAdjustment})
	require.NoError(t, err)

	require.Len(t, stmt.Entries, 1)
	assert.Equal(t, "Opening balance", stmt.Entries[0].Description)
}

func TestGetStatement_UnknownAccount(t *testing.T) {
	reader, _ := seedStatementAccount(t)

	_, err := reader.GetStatement(context.Background(), "missing",
		mustDate(t, "2026-02-01"), mustDate(t, "2026-02-28"), ledger.StatementFilter{})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func mustDate(t *testing.T, s string) ledger.Date {
	t.Helper()
	d, err := ledger.ParseDate(s)
	require.NoError(t, err)
	return d
}
