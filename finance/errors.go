/*
errors.go - Domain-specific errors

The core taxonomy lives in ledger/errors.go; these are the violations that
only exist at the domain layer (series shapes, card/transfer preconditions,
invoice payment state).
*/
package finance

import "errors"

var (
	// ErrCategoryRequired is returned for an empty category label. The
	// label itself is opaque; non-empty is the only rule enforced here.
	ErrCategoryRequired = errors.New("category is required")

	// ErrCardSpendMustBeOutgoing is returned when a CARD transaction is
	// created with direction IN. Card spend is always an expense.
	ErrCardSpendMustBeOutgoing = errors.New("card transactions must be outgoing")

	// ErrConflictingSeries is returned when a creation asks for both an
	// installment series and a recurrence series.
	ErrConflictingSeries = errors.New("installments and recurrence are mutually exclusive")

	// ErrCardContainerTransfer is returned when a transfer endpoint is a
	// card container account. Only bank accounts move money directly.
	ErrCardContainerTransfer = errors.New("card container accounts cannot be transfer endpoints")

	// ErrInvoiceNotPaid is returned when reversing the payment of an
	// invoice that was never paid.
	ErrInvoiceNotPaid = errors.New("invoice is not paid")

	// ErrInvoiceEmpty is returned when paying an invoice with a zero total
	// and no attached transactions.
	ErrInvoiceEmpty = errors.New("invoice has no spend to pay")
)

// IsClientError reports whether the error is a domain rule violation the
// caller can fix, extending ledger.IsClientError for this package's errors.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCategoryRequired) ||
		errors.Is(err, ErrCardSpendMustBeOutgoing) ||
		errors.Is(err, ErrConflictingSeries) ||
		errors.Is(err, ErrCardContainerTransfer) ||
		errors.Is(err, ErrInvoiceNotPaid) ||
		errors.Is(err, ErrInvoiceEmpty)
}
