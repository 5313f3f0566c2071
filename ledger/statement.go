/*
statement.go - Read-only statement and period-summary projections

PURPOSE:
  Answers "what happened on this account between these dates?" from the
  entry store alone. Pure query logic: no write side effects, no invariants
  of its own. Correctness is entirely delegated to the balance manager that
  wrote the entries.

SUMMARY SEMANTICS:
  openingBalance: balance-after of the last entry strictly before the
                  period start, or the account's opening balance if none
  closingBalance: balance-after of the last entry at/before the period end,
                  or openingBalance if the period is empty
  totalIn/totalOut: sums of IN/OUT entries inside the period (after filters)

  An account with zero entries collapses to opening == closing == the
  account's opening balance.

READ CONSISTENCY:
  Reads are not required to be linearizable with in-flight writes, but an
  entry only becomes visible together with its balance update because both
  commit in one unit of work.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY TYPES
// =============================================================================

// StatementFilter narrows the entry listing. Zero values mean "no filter".
type StatementFilter struct {
	Direction Direction
	Origin    OriginTag
}

func (f StatementFilter) matches(e Entry) bool {
	if f.Direction != "" && e.Direction != f.Direction {
		return false
	}
	if f.Origin != "" && e.Origin != f.Origin {
		return false
	}
	return true
}

// PeriodSummary aggregates a statement period.
type PeriodSummary struct {
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	TotalIn        decimal.Decimal
	TotalOut       decimal.Decimal
}

// Statement is the full answer for one account and period.
type Statement struct {
	AccountID AccountID
	From, To  Date
	Entries   []Entry
	Summary   PeriodSummary
}

// =============================================================================
// READER
// =============================================================================

// StatementReader builds statements from the entry store.
type StatementReader struct {
	Store Store
}

func NewStatementReader(store Store) *StatementReader {
	return &StatementReader{Store: store}
}

// GetStatement returns the filtered entries in [from, to] plus the period
// summary. The summary's opening/closing balances are taken from the
// unfiltered ledger; filters only narrow the listing and the in/out totals.
func (r *StatementReader) GetStatement(ctx context.Context, accountID AccountID, from, to Date, filter StatementFilter) (Statement, error) {
	account, err := r.Store.GetAccount(ctx, accountID)
	if err != nil {
		return Statement{}, err
	}
	if account == nil {
		return Statement{}, ErrAccountNotFound
	}

	// The fold anchors at zero: a non-zero opening balance is itself the
	// account's first ADJUSTMENT entry, so an account with no entry before
	// the period start collapses to opening = 0 (which for a zero-entry
	// account equals its opening balance).
	opening := decimal.Zero
	if prev, err := r.Store.LastEntryBefore(ctx, accountID, from); err != nil {
		return Statement{}, err
	} else if prev != nil {
		opening = prev.BalanceAfter
	}

	closing := opening
	if last, err := r.Store.LastEntryThrough(ctx, accountID, to); err != nil {
		return Statement{}, err
	} else if last != nil {
		closing = last.BalanceAfter
	}

	entries, err := r.Store.EntriesInRange(ctx, accountID, from, to)
	if err != nil {
		return Statement{}, err
	}

	totalIn, totalOut := decimal.Zero, decimal.Zero
	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !filter.matches(e) {
			continue
		}
		filtered = append(filtered, e)
		if e.Direction == In {
			totalIn = totalIn.Add(e.Amount)
		} else {
			totalOut = totalOut.Add(e.Amount)
		}
	}

	return Statement{
		AccountID: accountID,
		From:      from,
		To:        to,
		Entries:   filtered,
		Summary: PeriodSummary{
			OpeningBalance: opening,
			ClosingBalance: closing,
			TotalIn:        totalIn,
			TotalOut:       totalOut,
		},
	}, nil
}
