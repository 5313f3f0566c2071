/*
replay.go - Ledger replay verification

PURPOSE:
  The engine's self-check. Folding an account's entries in INSERTION order
  from zero must reproduce every stored balance-after snapshot exactly, and
  land on the account's current balance. Tests run this after every
  scenario; an operator can run it against a live store to detect
  corruption.

ORDERING:
  Balance-after snapshots record the balance at the moment each entry was
  appended, so verification folds by seq, not by date. Statements sort by
  (date, seq) for presentation; a backdated correction is therefore dated
  into the past while its snapshot still chains onto the append history.
  The obvious alternative, folding in (date, seq) order against the opening
  balance, would flag every backdated REVERSAL as a mismatch: that ordering
  is presentation-only and must never drive verification.

A mismatch means history was tampered with or a write escaped the balance
manager. It is reported, never repaired.
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Replay folds entries in insertion order and returns the resulting balance.
func Replay(entries []Entry) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range bySeq(entries) {
		balance = balance.Add(e.Delta())
	}
	return balance
}

// bySeq returns the entries sorted by insertion order. Stores hand out
// (date, seq) order for statements; the fold needs append order.
func bySeq(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	return sorted
}

// VerifyAccount replays an account's full history and checks:
//  1. every stored balance-after equals the running fold at that entry
//  2. the final fold equals the account's current balance
//
// Returns nil when the ledger is consistent.
func VerifyAccount(ctx context.Context, s Store, id AccountID) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	entries, err := s.Entries(ctx, id)
	if err != nil {
		return err
	}

	balance := decimal.Zero
	for _, e := range bySeq(entries) {
		balance = balance.Add(e.Delta())
		if !balance.Equal(e.BalanceAfter) {
			return &ReplayMismatchError{
				AccountID: id,
				EntryID:   e.ID,
				Stored:    e.BalanceAfter,
				Computed:  balance,
			}
		}
	}

	if !balance.Equal(account.Balance) {
		return &ReplayMismatchError{
			AccountID: id,
			Stored:    account.Balance,
			Computed:  balance,
		}
	}
	return nil
}
