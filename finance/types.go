/*
Package finance provides the domain managers built on top of the ledger
engine: transaction lifecycle, inter-account transfers, and the credit-card
invoice state machine.

PURPOSE:
  The ledger package knows nothing about installments, recurrences, cards
  or invoices - it only moves balances and appends entries. This package
  owns those domain concepts and decides, for every economic event, whether
  and when it touches an account balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: A single economic event (possibly one of a series)
  - Card: A credit card with a committed-spend limit counter
  - Invoice: One billing period of committed card spend
  - InvoiceStatus: Explicit OPEN -> CLOSED -> PAID state machine

SEE ALSO:
  - transaction.go: create/edit/delete with series scopes
  - transfer.go: paired debit+credit across two accounts
  - invoice.go: card spend and invoice payment
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type CardID string
type InvoiceID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash            PaymentMethod = "CASH"
	MethodInstantTransfer PaymentMethod = "INSTANT_TRANSFER"
	MethodCard            PaymentMethod = "CARD"
	MethodAccountTransfer PaymentMethod = "INTER_ACCOUNT_TRANSFER"
)

// =============================================================================
// TRANSACTION - A single economic event
// =============================================================================

// Transaction is one income or expense row. Installment and recurrence
// series are expanded at creation time into one Transaction per month,
// linked by a shared group id. Transfer legs carry a TransferGroupID and
// are only ever touched by the transfer orchestrator.
type Transaction struct {
	ID            TransactionID
	Direction     ledger.Direction
	Amount        decimal.Decimal // positive
	Date          ledger.Date
	Description   string
	Category      string // opaque label supplied by the category service
	PaymentMethod PaymentMethod

	// Optional links
	CardID    CardID           // set for CARD spend
	AccountID ledger.AccountID // set for balance-affecting rows

	// Installment series
	InstallmentGroupID string
	InstallmentIndex   int // 1-based
	InstallmentCount   int

	// Recurrence series
	RecurrenceGroupID string
	RecurrenceCount   int

	// Transfer pairing
	TransferGroupID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AffectsBalanceImmediately is the core decision rule: IN transactions
// always post to the ledger at creation; OUT transactions do too, unless
// paid by card - card spend defers balance impact to invoice payment.
func (t Transaction) AffectsBalanceImmediately() bool {
	if t.Direction == ledger.In {
		return true
	}
	return t.PaymentMethod != MethodCard
}

// IsTransferLeg reports whether this row was produced by the transfer
// orchestrator. Such rows are reversed as a unit, never edited or deleted
// individually.
func (t Transaction) IsTransferLeg() bool {
	return t.TransferGroupID != ""
}

// SignedDelta is the ledger delta this transaction posts when it affects
// balance: positive for IN, negative for OUT.
func (t Transaction) SignedDelta() decimal.Decimal {
	return ledger.SignedDelta(t.Direction, t.Amount)
}

// =============================================================================
// CARD - Credit card with a materialized available-limit counter
// =============================================================================

// Card references the bank account its invoices debit. AvailableLimit is
// redundant derived state (Limit minus unpaid invoice totals) kept as a
// transactionally-updated counter for read performance; the invoice totals
// remain the source of truth and tests recompute-and-compare.
type Card struct {
	ID             CardID
	Name           string
	AccountID      ledger.AccountID // linked bank account for invoice debit
	Limit          decimal.Decimal
	AvailableLimit decimal.Decimal
	ClosingDay     int // day-of-month the invoice closes
	DueDay         int // day-of-month the invoice is due
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// INVOICE - One billing period of committed card spend
// =============================================================================

// InvoiceStatus is the explicit state machine per (card, period):
//
//	OPEN   - accepting new committed spend
//	CLOSED - period boundary passed, unpaid, still accepting backdated
//	         spend that maps into the period, balance not yet affected
//	PAID   - terminal; a ledger entry exists on the linked account
//
// OPEN vs CLOSED is derived from the period end and the reference date;
// only PAID is a stored fact. This keeps "closing date passed" and "paid"
// from ever disagreeing.
type InvoiceStatus string

const (
	InvoiceOpen   InvoiceStatus = "OPEN"
	InvoiceClosed InvoiceStatus = "CLOSED"
	InvoicePaid   InvoiceStatus = "PAID"
)

// Invoice aggregates committed spend for one (card, year, month). Created
// lazily on the first card transaction of the period; immutable once paid.
type Invoice struct {
	ID     InvoiceID
	CardID CardID

	// Year/Month label the period by its closing date.
	Year  int
	Month time.Month

	Period BillingPeriod

	Total         decimal.Decimal
	Paid          bool
	PaidAt        *time.Time
	LedgerEntryID ledger.EntryID // set once paid

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status returns the explicit state as of a reference date.
func (inv Invoice) Status(asOf ledger.Date) InvoiceStatus {
	if inv.Paid {
		return InvoicePaid
	}
	if asOf.After(inv.Period.End) {
		return InvoiceClosed
	}
	return InvoiceOpen
}
