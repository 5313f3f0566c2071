/*
errors.go - Centralized error types for the engine

PURPOSE:
  The full error taxonomy in one place. Domain packages (finance) and the
  API layer use errors.Is/As against these; nothing is communicated through
  error strings.

ERROR CATEGORIES:
  1. Missing/disabled resources - not found, inactive
  2. Business rule violations - insufficient funds/limit, paid invoice,
     malformed transfer groups, protected entries
  3. Concurrency - optimistic version conflicts

PROPAGATION POLICY:
  Every error is returned synchronously from the failed unit of work.
  Nothing is retried automatically except version conflicts on the account
  row, which the balance manager retries a bounded number of times before
  surfacing ErrConcurrentModification. No partial state is ever committed
  on error.

SEE ALSO:
  - balance.go: Uses these errors
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCardNotFound is returned when a referenced card doesn't exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInactiveResource is returned when an operation targets a
	// deactivated account or card.
	ErrInactiveResource = errors.New("resource is inactive")

	// ErrInsufficientFunds is returned when a debit would drive an account
	// balance negative. Never applied to ADJUSTMENT or REVERSAL entries.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientCreditLimit is returned when card spend exceeds the
	// remaining available limit.
	ErrInsufficientCreditLimit = errors.New("insufficient credit limit")

	// ErrInvoiceAlreadyPaid is returned when spend or payment targets an
	// invoice that is already paid. Paid invoices are immutable.
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")

	// ErrInconsistentTransferGroup is returned when a transfer group does
	// not contain exactly one IN and one OUT leg of equal amount. This
	// indicates prior data corruption and is never silently repaired.
	ErrInconsistentTransferGroup = errors.New("inconsistent transfer group")

	// ErrTransferMustBeReversedAsUnit is returned when a single leg of a
	// transfer is deleted through the transaction lifecycle. Transfers are
	// only undone as a pair, through the orchestrator.
	ErrTransferMustBeReversedAsUnit = errors.New("transfer must be reversed as a unit")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidName is returned when an account name is blank.
	ErrInvalidName = errors.New("name must not be empty")

	// ErrSameAccountTransfer is returned when source and destination of a
	// transfer are the same account.
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")

	// ErrProtectedLedgerEntry is returned on attempts to delete an
	// ADJUSTMENT entry (the opening balance). That entry anchors the whole
	// replay invariant and is never removed or edited.
	ErrProtectedLedgerEntry = errors.New("ledger entry is protected")

	// ErrConcurrentModification is returned when optimistic locking on the
	// account version still conflicts after bounded retries.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrVersionConflict is the per-attempt version mismatch, retried by
	// RunInTx before it becomes ErrConcurrentModification.
	ErrVersionConflict = errors.New("account version conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available %s, requested %s",
		e.AccountID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// InsufficientCreditLimitError provides details about a limit shortage.
type InsufficientCreditLimitError struct {
	CardID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientCreditLimitError) Error() string {
	return fmt.Sprintf("insufficient credit limit on card %s: available %s, requested %s",
		e.CardID, e.Available, e.Requested)
}

func (e *InsufficientCreditLimitError) Unwrap() error {
	return ErrInsufficientCreditLimit
}

// ReplayMismatchError reports a divergence between a stored balance-after
// snapshot and the value obtained by folding the account's entries.
type ReplayMismatchError struct {
	AccountID AccountID
	EntryID   EntryID
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("ledger replay mismatch on account %s at entry %s: stored %s, computed %s",
		e.AccountID, e.EntryID, e.Stored, e.Computed)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or a violated business rule, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInactiveResource) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientCreditLimit) ||
		errors.Is(err, ErrInvoiceAlreadyPaid) ||
		errors.Is(err, ErrTransferMustBeReversedAsUnit) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrSameAccountTransfer) ||
		errors.Is(err, ErrProtectedLedgerEntry)
}

// IsRetryable returns true if the error might succeed on retry: a raw
// version conflict, or a unit of work that exhausted its conflict retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrConcurrentModification)
}
