/*
store.go - Persistence interfaces for accounts and ledger entries

PURPOSE:
  Defines the interface between the engine and the database. The Store
  handles persistence while maintaining append-only semantics on entries.
  Implementations exist for SQLite (store/sqlite) and in-memory testing
  (store/memory).

APPEND-ONLY CONTRACT:
  The entry side of the interface has exactly one write operation:
  AppendEntry. No update or delete methods exist for entries, and none
  ever will. Corrections are new REVERSAL entries.

OPTIMISTIC CONCURRENCY:
  UpdateAccountBalance carries the version the caller read. If the row has
  moved on, the store returns ErrVersionConflict and the whole unit of work
  is rolled back and retried by RunInTx. Two concurrent debits can never
  both observe the same starting balance and both commit.

UNIT OF WORK:
  TxStore.WithTx runs a function against a Store bound to one database
  transaction. Everything inside commits together or not at all: a transfer
  writes two entries and two balance updates in one WithTx; a crash between
  the legs leaves neither applied.

SEE ALSO:
  - balance.go: The only caller of UpdateAccountBalance
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/memory.go: In-memory implementation for tests
*/
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Accounts + append-only entries
// =============================================================================

// Store persists accounts and ledger entries.
// IMPORTANT: entries are APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// GetAccount returns the account or nil if it doesn't exist.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount inserts a new account.
	SaveAccount(ctx context.Context, a Account) error

	// UpdateAccountMeta updates name/kind/active. Balance and version are
	// untouched; only UpdateAccountBalance moves those.
	UpdateAccountMeta(ctx context.Context, a Account) error

	// UpdateAccountBalance sets the balance and bumps the version, guarded
	// by the version the caller read. Returns ErrVersionConflict when the
	// guard fails.
	UpdateAccountBalance(ctx context.Context, id AccountID, balance decimal.Decimal, expectedVersion int64) error

	// ListAccounts returns all accounts ordered by name.
	ListAccounts(ctx context.Context) ([]Account, error)

	// AppendEntry persists an entry and returns it with Seq and CreatedAt
	// assigned. This is the ONLY write operation on entries.
	AppendEntry(ctx context.Context, e Entry) (Entry, error)

	// Entries returns all entries for an account in (date, seq) order.
	Entries(ctx context.Context, accountID AccountID) ([]Entry, error)

	// EntriesInRange returns entries with from <= date <= to, (date, seq) order.
	EntriesInRange(ctx context.Context, accountID AccountID, from, to Date) ([]Entry, error)

	// LastEntryBefore returns the last entry in (date, seq) order with
	// date strictly before the given date, or nil if there is none.
	LastEntryBefore(ctx context.Context, accountID AccountID, before Date) (*Entry, error)

	// LastEntryThrough returns the last entry with date <= the given date,
	// or nil if there is none.
	LastEntryThrough(ctx context.Context, accountID AccountID, through Date) (*Entry, error)

	// GetEntry returns an entry by ID or nil.
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic unit of work
// =============================================================================

// TxStore wraps Store with transaction support. Every mutating operation of
// the engine runs inside WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a single database transaction.
	// If fn returns an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RETRY - Bounded retry of version-conflicted units of work
// =============================================================================

// maxTxRetries bounds how often a conflicted unit of work is replayed
// before ErrConcurrentModification surfaces to the caller.
const maxTxRetries = 3

// RunInTx executes fn inside a unit of work, retrying the WHOLE unit when
// it aborts with a version conflict. The function must be safe to replay:
// it re-reads every row it touches, so a retry observes the winner's state.
func RunInTx(ctx context.Context, ts TxStore, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = ts.WithTx(ctx, fn)
		if err == nil || !errors.Is(err, ErrVersionConflict) {
			return err
		}
	}
	return ErrConcurrentModification
}
