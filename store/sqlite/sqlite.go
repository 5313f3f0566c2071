/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements finance.TxStore (which embeds ledger.Store) on SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  The ledger_entries table has exactly one write path: an INSERT in
  appendEntry. No UPDATE or DELETE statement against it exists anywhere
  in this package. Corrections are new REVERSAL entries.

OPTIMISTIC CONCURRENCY:
  accounts carries a version column. updateAccountBalance guards its
  UPDATE with "AND version = ?" and maps zero affected rows to
  ledger.ErrVersionConflict, which RunInTx turns into a bounded retry.

KEY TABLES:
  accounts:       Balance + version counter per account
  ledger_entries: Immutable ledger with AUTOINCREMENT seq
  transactions:   Domain rows (installment/recurrence/transfer links)
  cards:          Credit cards with the available-limit counter
  invoices:       One row per (card, year, month), UNIQUE-constrained

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Core interface definitions
  - finance/store.go: Extended interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements finance.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and sidesteps
	// SQLITE_BUSY under the writer mutex.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (balance + version counter)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		opening_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Ledger entries (append-only; seq is global insertion order)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		direction TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		balance_after TEXT NOT NULL,
		origin TEXT NOT NULL,
		reference_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Composite index for statement and replay queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_account_date
		ON ledger_entries(account_id, date, seq);
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON ledger_entries(reference_id) WHERE reference_id IS NOT NULL;

	-- Domain transactions
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		card_id TEXT,
		account_id TEXT,
		installment_group_id TEXT,
		installment_index INTEGER DEFAULT 0,
		installment_count INTEGER DEFAULT 0,
		recurrence_group_id TEXT,
		recurrence_count INTEGER DEFAULT 0,
		transfer_group_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_installment_group
		ON transactions(installment_group_id) WHERE installment_group_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_recurrence_group
		ON transactions(recurrence_group_id) WHERE recurrence_group_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_transfer_group
		ON transactions(transfer_group_id) WHERE transfer_group_id IS NOT NULL;

	-- Cards
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		account_id TEXT NOT NULL,
		credit_limit TEXT NOT NULL,
		available_limit TEXT NOT NULL,
		closing_day INTEGER NOT NULL,
		due_day INTEGER NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Invoices: one row per card and billing period
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		card_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		total TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_at TEXT,
		ledger_entry_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(card_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_card
		ON invoices(card_id, year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so every
// operation runs identically inside and outside a unit of work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// UNIT OF WORK (finance.TxStore interface)
// =============================================================================

// WithTx executes a function within a single database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the Store bound to one open *sql.Tx. It holds no mutex: the
// parent's writer lock is held for the whole unit of work.
type txStore struct {
	tx *sql.Tx
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, name, kind, active, opening_balance, balance, version, created_at, updated_at`

func getAccount(ctx context.Context, db dbtx, id ledger.AccountID) (*ledger.Account, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func saveAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	query := `
		INSERT INTO accounts (id, name, kind, active, opening_balance, balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.Name, a.Kind, a.Active,
		a.OpeningBalance.String(), a.Balance.String(), a.Version,
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func updateAccountMeta(ctx context.Context, db dbtx, a ledger.Account) error {
	query := `
		UPDATE accounts SET name = ?, kind = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		a.Name, a.Kind, a.Active, time.Now().UTC().Format(time.RFC3339), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// updateAccountBalance is the single version-guarded write. Zero affected
// rows means another unit of work won the race (or the account vanished);
// the guard failure surfaces as ErrVersionConflict either way and the
// retried unit re-reads and re-decides.
func updateAccountBalance(ctx context.Context, db dbtx, id ledger.AccountID, balance decimal.Decimal, expectedVersion int64) error {
	query := `
		UPDATE accounts SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	res, err := db.ExecContext(ctx, query,
		balance.String(), time.Now().UTC().Format(time.RFC3339), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrVersionConflict
	}
	return nil
}

func listAccounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (ledger.Account, error) {
	var (
		a                    ledger.Account
		opening, balance     string
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Kind, &a.Active,
		&opening, &balance, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	a.OpeningBalance = parseDecimal(opening)
	a.Balance = parseDecimal(balance)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func (s *Store) UpdateAccountMeta(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccountMeta(ctx, s.db, a)
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccountBalance(ctx, s.db, id, balance, expectedVersion)
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAccountMeta(ctx context.Context, a ledger.Account) error {
	return updateAccountMeta(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAccountBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal, expectedVersion int64) error {
	return updateAccountBalance(ctx, ts.tx, id, balance, expectedVersion)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, ts.tx)
}

// =============================================================================
// LEDGER ENTRIES (append-only)
// =============================================================================

const entryColumns = `id, account_id, date, direction, amount, description, balance_after, origin, reference_id, seq, created_at`

// appendEntry is the ONLY statement that writes ledger_entries.
func appendEntry(ctx context.Context, db dbtx, e ledger.Entry) (ledger.Entry, error) {
	e.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ledger_entries
		(id, account_id, date, direction, amount, description, balance_after, origin, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.ExecContext(ctx, query,
		e.ID, e.AccountID, e.Date.String(), e.Direction,
		e.Amount.String(), e.Description, e.BalanceAfter.String(),
		e.Origin, nullString(e.ReferenceID),
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return e, fmt.Errorf("failed to append entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("failed to read entry seq: %w", err)
	}
	e.Seq = seq
	return e, nil
}

func queryEntries(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e                     ledger.Entry
		date, amount, balance string
		description           sql.NullString
		referenceID           sql.NullString
		createdAt             string
	)
	err := row.Scan(&e.ID, &e.AccountID, &date, &e.Direction, &amount,
		&description, &balance, &e.Origin, &referenceID, &e.Seq, &createdAt)
	if err != nil {
		return e, err
	}
	e.Date = parseDate(date)
	e.Amount = parseDecimal(amount)
	e.Description = description.String
	e.BalanceAfter = parseDecimal(balance)
	e.ReferenceID = referenceID.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return e, nil
}

func entries(ctx context.Context, db dbtx, accountID ledger.AccountID) ([]ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = ?
		ORDER BY date ASC, seq ASC
	`
	return queryEntries(ctx, db, query, accountID)
}

func entriesInRange(ctx context.Context, db dbtx, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, seq ASC
	`
	return queryEntries(ctx, db, query, accountID, from.String(), to.String())
}

func lastEntry(ctx context.Context, db dbtx, accountID ledger.AccountID, op string, date ledger.Date) (*ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE account_id = ? AND date ` + op + ` ?
		ORDER BY date DESC, seq DESC
		LIMIT 1
	`
	e, err := scanEntry(db.QueryRowContext(ctx, query, accountID, date.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func getEntry(ctx context.Context, db dbtx, id ledger.EntryID) (*ledger.Entry, error) {
	query := "SELECT " + entryColumns + " FROM ledger_entries WHERE id = ?"
	e, err := scanEntry(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func (s *Store) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entries(ctx, s.db, accountID)
}

func (s *Store) EntriesInRange(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entriesInRange(ctx, s.db, accountID, from, to)
}

func (s *Store) LastEntryBefore(ctx context.Context, accountID ledger.AccountID, before ledger.Date) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEntry(ctx, s.db, accountID, "<", before)
}

func (s *Store) LastEntryThrough(ctx context.Context, accountID ledger.AccountID, through ledger.Date) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEntry(ctx, s.db, accountID, "<=", through)
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	return entries(ctx, ts.tx, accountID)
}

func (ts *txStore) EntriesInRange(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	return entriesInRange(ctx, ts.tx, accountID, from, to)
}

func (ts *txStore) LastEntryBefore(ctx context.Context, accountID ledger.AccountID, before ledger.Date) (*ledger.Entry, error) {
	return lastEntry(ctx, ts.tx, accountID, "<", before)
}

func (ts *txStore) LastEntryThrough(ctx context.Context, accountID ledger.AccountID, through ledger.Date) (*ledger.Entry, error) {
	return lastEntry(ctx, ts.tx, accountID, "<=", through)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const transactionColumns = `id, direction, amount, date, description, category, payment_method,
	card_id, account_id, installment_group_id, installment_index, installment_count,
	recurrence_group_id, recurrence_count, transfer_group_id, created_at, updated_at`

func saveTransaction(ctx context.Context, db dbtx, t finance.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, direction, amount, date, description, category, payment_method,
		 card_id, account_id, installment_group_id, installment_index, installment_count,
		 recurrence_group_id, recurrence_count, transfer_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		t.ID, t.Direction, t.Amount.String(), t.Date.String(),
		t.Description, t.Category, t.PaymentMethod,
		nullString(string(t.CardID)), nullString(string(t.AccountID)),
		nullString(t.InstallmentGroupID), t.InstallmentIndex, t.InstallmentCount,
		nullString(t.RecurrenceGroupID), t.RecurrenceCount,
		nullString(t.TransferGroupID),
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func updateTransaction(ctx context.Context, db dbtx, t finance.Transaction) error {
	query := `
		UPDATE transactions SET
			direction = ?, amount = ?, date = ?, description = ?, category = ?,
			payment_method = ?, card_id = ?, account_id = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		t.Direction, t.Amount.String(), t.Date.String(), t.Description, t.Category,
		t.PaymentMethod, nullString(string(t.CardID)), nullString(string(t.AccountID)),
		time.Now().UTC().Format(time.RFC3339), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func getTransaction(ctx context.Context, db dbtx, id finance.TransactionID) (*finance.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE id = ?"
	t, err := scanTransaction(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deleteTransaction(ctx context.Context, db dbtx, id finance.TransactionID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]finance.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []finance.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(row scanner) (finance.Transaction, error) {
	var (
		t                      finance.Transaction
		amount, date           string
		description            sql.NullString
		cardID, accountID      sql.NullString
		instGroup, recurGroup  sql.NullString
		transferGroup          sql.NullString
		createdAt, updatedAt   string
	)
	err := row.Scan(&t.ID, &t.Direction, &amount, &date, &description, &t.Category,
		&t.PaymentMethod, &cardID, &accountID,
		&instGroup, &t.InstallmentIndex, &t.InstallmentCount,
		&recurGroup, &t.RecurrenceCount, &transferGroup,
		&createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	t.Amount = parseDecimal(amount)
	t.Date = parseDate(date)
	t.Description = description.String
	t.CardID = finance.CardID(cardID.String)
	t.AccountID = ledger.AccountID(accountID.String)
	t.InstallmentGroupID = instGroup.String
	t.RecurrenceGroupID = recurGroup.String
	t.TransferGroupID = transferGroup.String
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return t, nil
}

func transactionsByGroup(ctx context.Context, db dbtx, column, groupID string) ([]finance.Transaction, error) {
	if groupID == "" {
		return nil, nil
	}
	query := `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE ` + column + ` = ?
		ORDER BY date ASC, id ASC
	`
	return queryTransactions(ctx, db, query, groupID)
}

func listTransactions(ctx context.Context, db dbtx, from, to ledger.Date) ([]finance.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions"
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, from.String())
	}
	if !to.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, to.String())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	return queryTransactions(ctx, db, query, args...)
}

func (s *Store) SaveTransaction(ctx context.Context, t finance.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTransaction(ctx, s.db, t)
}

func (s *Store) UpdateTransaction(ctx context.Context, t finance.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, t)
}

func (s *Store) GetTransaction(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func (s *Store) DeleteTransaction(ctx context.Context, id finance.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteTransaction(ctx, s.db, id)
}

func (s *Store) TransactionsByInstallmentGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByGroup(ctx, s.db, "installment_group_id", groupID)
}

func (s *Store) TransactionsByRecurrenceGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByGroup(ctx, s.db, "recurrence_group_id", groupID)
}

func (s *Store) TransactionsByTransferGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByGroup(ctx, s.db, "transfer_group_id", groupID)
}

func (s *Store) ListTransactions(ctx context.Context, from, to ledger.Date) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, from, to)
}

func (ts *txStore) SaveTransaction(ctx context.Context, t finance.Transaction) error {
	return saveTransaction(ctx, ts.tx, t)
}

func (ts *txStore) UpdateTransaction(ctx context.Context, t finance.Transaction) error {
	return updateTransaction(ctx, ts.tx, t)
}

func (ts *txStore) GetTransaction(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	return getTransaction(ctx, ts.tx, id)
}

func (ts *txStore) DeleteTransaction(ctx context.Context, id finance.TransactionID) error {
	return deleteTransaction(ctx, ts.tx, id)
}

func (ts *txStore) TransactionsByInstallmentGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	return transactionsByGroup(ctx, ts.tx, "installment_group_id", groupID)
}

func (ts *txStore) TransactionsByRecurrenceGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	return transactionsByGroup(ctx, ts.tx, "recurrence_group_id", groupID)
}

func (ts *txStore) TransactionsByTransferGroup(ctx context.Context, groupID string) ([]finance.Transaction, error) {
	return transactionsByGroup(ctx, ts.tx, "transfer_group_id", groupID)
}

func (ts *txStore) ListTransactions(ctx context.Context, from, to ledger.Date) ([]finance.Transaction, error) {
	return listTransactions(ctx, ts.tx, from, to)
}

// =============================================================================
// CARDS
// =============================================================================

const cardColumns = `id, name, account_id, credit_limit, available_limit, closing_day, due_day, active, created_at, updated_at`

func getCard(ctx context.Context, db dbtx, id finance.CardID) (*finance.Card, error) {
	query := "SELECT " + cardColumns + " FROM cards WHERE id = ?"
	c, err := scanCard(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func saveCard(ctx context.Context, db dbtx, c finance.Card) error {
	query := `
		INSERT INTO cards (id, name, account_id, credit_limit, available_limit, closing_day, due_day, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.Name, c.AccountID, c.Limit.String(), c.AvailableLimit.String(),
		c.ClosingDay, c.DueDay, c.Active,
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}
	return nil
}

func updateCard(ctx context.Context, db dbtx, c finance.Card) error {
	query := `
		UPDATE cards SET
			name = ?, account_id = ?, credit_limit = ?, available_limit = ?,
			closing_day = ?, due_day = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		c.Name, c.AccountID, c.Limit.String(), c.AvailableLimit.String(),
		c.ClosingDay, c.DueDay, c.Active,
		time.Now().UTC().Format(time.RFC3339), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrCardNotFound
	}
	return nil
}

func listCards(ctx context.Context, db dbtx) ([]finance.Card, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+cardColumns+" FROM cards ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []finance.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanCard(row scanner) (finance.Card, error) {
	var (
		c                    finance.Card
		limit, available     string
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.AccountID, &limit, &available,
		&c.ClosingDay, &c.DueDay, &c.Active, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	c.Limit = parseDecimal(limit)
	c.AvailableLimit = parseDecimal(available)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

func (s *Store) GetCard(ctx context.Context, id finance.CardID) (*finance.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCard(ctx, s.db, id)
}

func (s *Store) SaveCard(ctx context.Context, c finance.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCard(ctx, s.db, c)
}

func (s *Store) UpdateCard(ctx context.Context, c finance.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCard(ctx, s.db, c)
}

func (s *Store) ListCards(ctx context.Context) ([]finance.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCards(ctx, s.db)
}

func (ts *txStore) GetCard(ctx context.Context, id finance.CardID) (*finance.Card, error) {
	return getCard(ctx, ts.tx, id)
}

func (ts *txStore) SaveCard(ctx context.Context, c finance.Card) error {
	return saveCard(ctx, ts.tx, c)
}

func (ts *txStore) UpdateCard(ctx context.Context, c finance.Card) error {
	return updateCard(ctx, ts.tx, c)
}

func (ts *txStore) ListCards(ctx context.Context) ([]finance.Card, error) {
	return listCards(ctx, ts.tx)
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, card_id, year, month, period_start, period_end, total, paid, paid_at, ledger_entry_id, created_at, updated_at`

func getInvoice(ctx context.Context, db dbtx, id finance.InvoiceID) (*finance.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE id = ?"
	inv, err := scanInvoice(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func findInvoice(ctx context.Context, db dbtx, cardID finance.CardID, year, month int) (*finance.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE card_id = ? AND year = ? AND month = ?"
	inv, err := scanInvoice(db.QueryRowContext(ctx, query, cardID, year, month))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func saveInvoice(ctx context.Context, db dbtx, inv finance.Invoice) error {
	query := `
		INSERT INTO invoices
		(id, card_id, year, month, period_start, period_end, total, paid, paid_at, ledger_entry_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		inv.ID, inv.CardID, inv.Year, int(inv.Month),
		inv.Period.Start.String(), inv.Period.End.String(),
		inv.Total.String(), inv.Paid, nullTime(inv.PaidAt),
		nullString(string(inv.LedgerEntryID)),
		inv.CreatedAt.Format(time.RFC3339), inv.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func updateInvoice(ctx context.Context, db dbtx, inv finance.Invoice) error {
	query := `
		UPDATE invoices SET
			total = ?, paid = ?, paid_at = ?, ledger_entry_id = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		inv.Total.String(), inv.Paid, nullTime(inv.PaidAt),
		nullString(string(inv.LedgerEntryID)),
		time.Now().UTC().Format(time.RFC3339), inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrInvoiceNotFound
	}
	return nil
}

func listInvoices(ctx context.Context, db dbtx, cardID finance.CardID) ([]finance.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE card_id = ?
		ORDER BY year ASC, month ASC
	`
	rows, err := db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []finance.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row scanner) (finance.Invoice, error) {
	var (
		inv                  finance.Invoice
		month                int
		start, end, total    string
		paidAt               sql.NullString
		ledgerEntryID        sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&inv.ID, &inv.CardID, &inv.Year, &month, &start, &end,
		&total, &inv.Paid, &paidAt, &ledgerEntryID, &createdAt, &updatedAt)
	if err != nil {
		return inv, err
	}
	inv.Month = time.Month(month)
	inv.Period = finance.BillingPeriod{Start: parseDate(start), End: parseDate(end)}
	inv.Total = parseDecimal(total)
	if paidAt.Valid {
		t, _ := time.Parse(time.RFC3339, paidAt.String)
		inv.PaidAt = &t
	}
	inv.LedgerEntryID = ledger.EntryID(ledgerEntryID.String)
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	inv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getInvoice(ctx, s.db, id)
}

func (s *Store) FindInvoice(ctx context.Context, cardID finance.CardID, year, month int) (*finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findInvoice(ctx, s.db, cardID, year, month)
}

func (s *Store) SaveInvoice(ctx context.Context, inv finance.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveInvoice(ctx, s.db, inv)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv finance.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateInvoice(ctx, s.db, inv)
}

func (s *Store) ListInvoices(ctx context.Context, cardID finance.CardID) ([]finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInvoices(ctx, s.db, cardID)
}

func (ts *txStore) GetInvoice(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	return getInvoice(ctx, ts.tx, id)
}

func (ts *txStore) FindInvoice(ctx context.Context, cardID finance.CardID, year, month int) (*finance.Invoice, error) {
	return findInvoice(ctx, ts.tx, cardID, year, month)
}

func (ts *txStore) SaveInvoice(ctx context.Context, inv finance.Invoice) error {
	return saveInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) UpdateInvoice(ctx context.Context, inv finance.Invoice) error {
	return updateInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) ListInvoices(ctx context.Context, cardID finance.CardID) ([]finance.Invoice, error) {
	return listInvoices(ctx, ts.tx, cardID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"ledger_entries", "transactions", "invoices", "cards", "accounts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func parseDate(s string) ledger.Date {
	d, _ := ledger.ParseDate(s)
	return d
}

// Interface conformance.
var (
	_ finance.Store   = (*Store)(nil)
	_ finance.TxStore = (*Store)(nil)
	_ finance.Store   = (*txStore)(nil)
)
