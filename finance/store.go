/*
store.go - Persistence interfaces for the domain layer

PURPOSE:
  Extends the ledger's Store with transaction, card and invoice
  persistence, so one unit of work can span a domain row and its ledger
  effect. The transaction table is the only mutable one: ledger entries
  stay append-only underneath.

SEE ALSO:
  - ledger/store.go: The embedded core interfaces and RunInTx
  - store/sqlite: Production implementation of both
*/
package finance

import (
	"context"
	"errors"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists the domain entities alongside the core ledger.
// Get* methods return nil (not an error) for missing rows.
type Store interface {
	ledger.Store

	// Transactions
	SaveTransaction(ctx context.Context, t Transaction) error
	UpdateTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id TransactionID) error
	TransactionsByInstallmentGroup(ctx context.Context, groupID string) ([]Transaction, error)
	TransactionsByRecurrenceGroup(ctx context.Context, groupID string) ([]Transaction, error)
	TransactionsByTransferGroup(ctx context.Context, groupID string) ([]Transaction, error)
	ListTransactions(ctx context.Context, from, to ledger.Date) ([]Transaction, error)

	// Cards
	GetCard(ctx context.Context, id CardID) (*Card, error)
	SaveCard(ctx context.Context, c Card) error
	UpdateCard(ctx context.Context, c Card) error
	ListCards(ctx context.Context) ([]Card, error)

	// Invoices
	GetInvoice(ctx context.Context, id InvoiceID) (*Invoice, error)
	FindInvoice(ctx context.Context, cardID CardID, year int, month int) (*Invoice, error)
	SaveInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error
	ListInvoices(ctx context.Context, cardID CardID) ([]Invoice, error)
}

// TxStore wraps Store with unit-of-work support.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// ADAPTER - finance.TxStore as ledger.TxStore
// =============================================================================

// AsLedgerTx narrows a TxStore to the core ledger's TxStore so the
// BalanceManager and replay verification can run over the same database.
func AsLedgerTx(ts TxStore) ledger.TxStore { return ledgerTxAdapter{ts} }

type ledgerTxAdapter struct {
	TxStore
}

func (a ledgerTxAdapter) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return a.TxStore.WithTx(ctx, func(s Store) error { return fn(s) })
}

// =============================================================================
// RETRY
// =============================================================================

const maxTxRetries = 3

// runInTx mirrors ledger.RunInTx for the extended store: the whole unit of
// work replays on an account version conflict, bounded, then surfaces
// ErrConcurrentModification.
func runInTx(ctx context.Context, ts TxStore, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = ts.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, ledger.ErrVersionConflict) {
			return err
		}
	}
	return ledger.ErrConcurrentModification
}
