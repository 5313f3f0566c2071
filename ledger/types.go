/*
Package ledger provides the core balance consistency engine.

PURPOSE:
  This package contains the types and algorithms that keep an account's
  current balance and its append-only statement (the ledger) mutually
  consistent. Every balance-affecting event in the system - a manual
  transaction, an invoice payment, a transfer leg, an opening balance,
  a reversal - becomes exactly one Entry here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A named money container with an authoritative current balance
  - Entry: An immutable ledger row with a balance-after snapshot
  - Direction: Whether money flows IN or OUT of an account
  - OriginTag: What kind of event produced an entry

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing account/entry IDs
  4. Auditability: Every entry carries its origin and a reference back to
     the transaction or invoice that produced it

SEE ALSO:
  - balance.go: The only writer of balance mutations
  - statement.go: Read-only projections over entries
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point amounts
// =============================================================================

// MustMoney parses a decimal string, panicking on malformed input.
// For literals in tests and seed data only.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("ledger: bad money literal: " + s)
	}
	return d
}

// ParseMoney parses a decimal string.
func ParseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string

// =============================================================================
// DIRECTION - Money flowing in or out of an account
// =============================================================================

type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// SignedDelta converts a positive amount plus a direction into the signed
// delta applied to the account balance.
func SignedDelta(dir Direction, amount decimal.Decimal) decimal.Decimal {
	if dir == Out {
		return amount.Neg()
	}
	return amount
}

// DirectionOf returns the direction implied by a signed delta.
// A zero delta is treated as IN.
func DirectionOf(delta decimal.Decimal) Direction {
	if delta.IsNegative() {
		return Out
	}
	return In
}

// =============================================================================
// ORIGIN TAG - What kind of event produced a ledger entry
// =============================================================================

type OriginTag string

const (
	OriginManualTransaction OriginTag = "MANUAL_TRANSACTION" // ordinary income/expense
	OriginInvoicePayment    OriginTag = "INVOICE_PAYMENT"    // credit-card invoice debit
	OriginTransfer          OriginTag = "TRANSFER"           // one leg of an inter-account transfer
	OriginAdjustment        OriginTag = "ADJUSTMENT"         // opening balance; protected, never deleted
	OriginReversal          OriginTag = "REVERSAL"           // compensating entry undoing a prior one
)

// BypassesFundsCheck reports whether entries with this origin may drive the
// balance negative. Reversals un-do a previously valid debit and must never
// be blocked; adjustments record externally-decided opening balances.
func (o OriginTag) BypassesFundsCheck() bool {
	return o == OriginAdjustment || o == OriginReversal
}

// =============================================================================
// ENTRY - One immutable ledger row per balance-affecting event
// =============================================================================

// Entry is a single row of an account's statement.
//
// INVARIANTS:
//   - Append-only: entries are never updated or deleted
//   - BalanceAfter is the account balance immediately after this entry,
//     given the entry's position in (date, insertion) order
//   - Corrections are made via OriginReversal entries, never edits
type Entry struct {
	ID           EntryID
	AccountID    AccountID
	Date         Date
	Direction    Direction
	Amount       decimal.Decimal // always positive
	Description  string
	BalanceAfter decimal.Decimal
	Origin       OriginTag
	ReferenceID  string // transaction, invoice or transfer group that produced this entry

	// Assigned by the store on append
	Seq       int64 // insertion order within the account, strictly increasing
	CreatedAt time.Time
}

// Delta returns the signed balance change of this entry.
func (e Entry) Delta() decimal.Decimal {
	return SignedDelta(e.Direction, e.Amount)
}

// =============================================================================
// ACCOUNT - A named money container
// =============================================================================

type AccountKind string

const (
	KindBank          AccountKind = "BANK"
	KindCardContainer AccountKind = "CARD_CONTAINER"
)

// Account owns the authoritative current balance.
//
// INVARIANT: Balance == sum of all entry deltas, always. The opening
// balance is itself carried by the account's first ADJUSTMENT entry, so
// equivalently Balance == OpeningBalance + sum of non-adjustment deltas.
// Only the balance manager (balance.go) mutates Balance, and it does so in
// the same unit of work that appends the corresponding entry.
type Account struct {
	ID             AccountID
	Name           string
	Kind           AccountKind
	Active         bool
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal

	// Version is the optimistic-concurrency counter. Every balance mutation
	// increments it; a stale version aborts the unit of work.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
