/*
Package memory provides an in-memory implementation of the storage
interfaces, for tests and development.

SEMANTICS:
  Mirrors store/sqlite exactly: append-only entries with a per-store
  sequence counter, version-guarded balance updates, and snapshot-based
  WithTx - fn runs against a deep copy of the state that replaces the
  original only on success, so a failed unit of work leaves nothing behind.

  A single mutex serializes writers, the same way the SQLite store does.
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements finance.TxStore (and therefore ledger.TxStore) in memory.
type Store struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	accounts     map[ledger.AccountID]ledger.Account
	entries      []ledger.Entry
	seq          int64
	transactions map[finance.TransactionID]finance.Transaction
	cards        map[finance.CardID]finance.Card
	invoices     map[finance.InvoiceID]finance.Invoice
}

func New() *Store {
	return &Store{state: newState()}
}

func newState() *state {
	return &state{
		accounts:     make(map[ledger.AccountID]ledger.Account),
		transactions: make(map[finance.TransactionID]finance.Transaction),
		cards:        make(map[finance.CardID]finance.Card),
		invoices:     make(map[finance.InvoiceID]finance.Invoice),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	c.entries = append([]ledger.Entry(nil), st.entries...)
	c.seq = st.seq
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	for k, v := range st.cards {
		c.cards[k] = v
	}
	for k, v := range st.invoices {
		c.invoices[k] = v
	}
	return c
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// WithTx runs fn against a snapshot; the snapshot becomes the state only
// when fn succeeds. Writers are serialized for the whole unit of work.
func (s *Store) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&view{state: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newState()
	return nil
}

// view is the Store bound to one snapshot.
type view struct {
	state *state
}

// =============================================================================
// TOP-LEVEL DELEGATION - reads/writes outside a unit of work
// =============================================================================

func (s *Store) read(fn func(*view) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&view{state: s.state})
}

func (s *Store) write(fn func(*view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{state: s.state})
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (a *ledger.Account, err error) {
	err = s.read(func(v *view) error { a, err = v.GetAccount(ctx, id); return err })
	return
}

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	return s.write(func(v *view) error { return v.SaveAccount(ctx, a) })
}

func (s *Store) UpdateAccountMeta(ctx context.Context, a ledger.Account) error {
	return s.write(func(v *view) error { return v.UpdateAccountMeta(ctx, a) })
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal, expectedVersion int64) error {
	return s.write(func(v *view) error { return v.UpdateAccountBalance(ctx, id, balance, expectedVersion) })
}

func (s *Store) ListAccounts(ctx context.Context) (accounts []ledger.Account, err error) {
	err = s.read(func(v *view) error { accounts, err = v.ListAccounts(ctx); return err })
	return
}

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) (out ledger.Entry, err error) {
	err = s.write(func(v *view) error { out, err = v.AppendEntry(ctx, e); return err })
	return
}

func (s *Store) Entries(ctx context.Context, accountID ledger.AccountID) (entries []ledger.Entry, err error) {
	err = s.read(func(v *view) error { entries, err = v.Entries(ctx, accountID); return err })
	return
}

func (s *Store) EntriesInRange(ctx context.Context, accountID ledger.AccountID, from, to ledger.Date) (entries []ledger.Entry, err error) {
	err = s.read(func(v *view) error { entries, err = v.EntriesInRange(ctx, accountID, from, to); return err })
	return
}

func (s *Store) LastEntryBefore(ctx context.Context, accountID ledger.AccountID, before ledger.Date) (e *ledger.Entry, err error) {
	err = s.read(func(v *view) error { e, err = v.LastEntryBefore(ctx, accountID, before); return err })
	return
}

func (s *Store) LastEntryThrough(ctx context.Context, accountID ledger.AccountID, through ledger.Date) (e *ledger.Entry, err error) {
	err = s.read(func(v *view) error { e, err = v.LastEntryThrough(ctx, accountID, through); return err })
	return
}

func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (e *ledger.Entry, err error) {
	err = s.read(func(v *view) error { e, err = v.GetEntry(ctx, id); return err })
	return
}

func (s *Store) SaveTransaction(ctx context.Context, t finance.Transaction) error {
	return s.write(func(v *view) error { return v.SaveTransaction(ctx, t) })
}

func (s *Store) UpdateTransaction(ctx context.Context, t finance.Transaction) error {
	return s.write(func(v *view) error { return v.UpdateTransaction(ctx, t) })
}

func (s *Store) GetTransaction(ctx context.Context, id finance.TransactionID) (t *finance.Transaction, err error) {
	err = s.read(func(v *view) error { t, err = v.GetTransaction(ctx, id); return err })
	return
}

func (s *Store) DeleteTransaction(ctx context.Context, id finance.TransactionID) error {
	return s.write(func(v *view) error { return v.DeleteTransaction(ctx, id) })
}

func (s *Store) TransactionsByInstallmentGroup(ctx context.Context, groupID string) (txs []finance.Transaction, err error) {
	err = s.read(func(v *view) error { txs, err = v.TransactionsByInstallmentGroup(ctx, groupID); return err })
	return
}

func (s *Store) TransactionsByRecurrenceGroup(ctx context.Context, groupID string) (txs []finance.Transaction, err error) {
	err = s.read(func(v *view) error { txs, err = v.TransactionsByRecurrenceGroup(ctx, groupID); return err })
	return
}

func (s *Store) TransactionsByTransferGroup(ctx context.Context, groupID string) (txs []finance.Transaction, err error) {
	err = s.read(func(v *view) error { txs, err = v.TransactionsByTransferGroup(ctx, groupID); return err })
	return
}

func (s *Store) ListTransactions(ctx context.Context, from, to ledger.Date) (txs []finance.Transaction, err error) {
	err = s.read(func(v *view) error { txs, err = v.ListTransactions(ctx, from, to); return err })
	return
}

func (s *Store) GetCard(ctx context.Context, id finance.CardID) (c *finance.Card, err error) {
	err = s.read(func(v *view) error { c, err = v.GetCard(ctx, id); return err })
	return
}

func (s *Store) SaveCard(ctx context.Context, c finance.Card) error {
	return s.write(func(v *view) error { return v.SaveCard(ctx, c) })
}

func (s *Store) UpdateCard(ctx context.Context, c finance.Card) error {
	return s.write(func(v *view) error { return v.UpdateCard(ctx, c) })
}

func (s *Store) ListCards(ctx context.Context) (cards []finance.Card, err error) {
	err = s.read(func(v *view) error { cards, err = v.ListCards(ctx); return err })
	return
}

func (s *Store) GetInvoice(ctx context.Context, id finance.InvoiceID) (inv *finance.Invoice, err error) {
	err = s.read(func(v *view) error { inv, err = v.GetInvoice(ctx, id); return err })
	return
}

func (s *Store) FindInvoice(ctx context.Context, cardID finance.CardID, year, month int) (inv *finance.Invoice, err error) {
	err = s.read(func(v *view) error { inv, err = v.FindInvoice(ctx, cardID, year, month); return err })
	return
}

func (s *Store) SaveInvoice(ctx context.Context, inv finance.Invoice) error {
	return s.write(func(v *view) error { return v.SaveInvoice(ctx, inv) })
}

func (s *Store) UpdateInvoice(ctx context.Context, inv finance.Invoice) error {
	return s.write(func(v *view) error { return v.UpdateInvoice(ctx, inv) })
}

func (s *Store) ListInvoices(ctx context.Context, cardID finance.CardID) (invoices []finance.Invoice, err error) {
	err = s.read(func(v *view) error { invoices, err = v.ListInvoices(ctx, cardID); return err })
	return
}

// Interface conformance.
var (
	_ finance.Store   = (*Store)(nil)
	_ finance.TxStore = (*Store)(nil)
	_ finance.Store   = (*view)(nil)
)

// =============================================================================
// ACCOUNTS
// =============================================================================

func (v *view) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	if a, ok := v.state.accounts[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (v *view) SaveAccount(_ context.Context, a ledger.Account) error {
	v.state.accounts[a.ID] = a
	return nil
}

func (v *view) UpdateAccountMeta(_ context.Context, a ledger.Account) error {
	current, ok := v.state.accounts[a.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	current.Name = a.Name
	current.Kind = a.Kind
	current.Active = a.Active
	current.UpdatedAt = time.Now().UTC()
	v.state.accounts[a.ID] = current
	return nil
}

func (v *view) UpdateAccountBalance(_ context.Context, id ledger.AccountID, balance decimal.Decimal, expectedVersion int64) error {
	current, ok := v.state.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return ledger.ErrVersionConflict
	}
	current.Balance = balance
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	v.state.accounts[id] = current
	return nil
}

func (v *view) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	accounts := make([]ledger.Account, 0, len(v.state.accounts))
	for _, a := range v.state.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// =============================================================================
// ENTRIES - Append-only
// =============================================================================

func (v *view) AppendEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	v.state.seq++
	e.Seq = v.state.seq
	e.CreatedAt = time.Now().UTC()
	v.state.entries = append(v.state.entries, e)
	return e, nil
}

func (v *view) accountEntries(accountID ledger.AccountID) []ledger.Entry {
	var entries []ledger.Entry
	for _, e := range v.state.entries {
		if e.AccountID == accountID {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Seq < entries[j].Seq
	})
	return entries
}

func (v *view) Entries(_ context.Context, accountID ledger.AccountID) ([]ledger.Entry, error) {
	return v.accountEntries(accountID), nil
}

func (v *view) EntriesInRange(_ context.Context, accountID ledger.AccountID, from, to ledger.Date) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for _, e := range v.accountEntries(accountID) {
		if e.Date.AfterOrEqual(from) && e.Date.BeforeOrEqual(to) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (v *view) LastEntryBefore(_ context.Context, accountID ledger.AccountID, before ledger.Date) (*ledger.Entry, error) {
	var last *ledger.Entry
	for _, e := range v.accountEntries(accountID) {
		if e.Date.Before(before) {
			e := e
			last = &e
		}
	}
	return last, nil
}

func (v *view) LastEntryThrough(_ context.Context, accountID ledger.AccountID, through ledger.Date) (*ledger.Entry, error) {
	var last *ledger.Entry
	for _, e := range v.accountEntries(accountID) {
		if e.Date.BeforeOrEqual(through) {
			e := e
			last = &e
		}
	}
	return last, nil
}

func (v *view) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	for _, e := range v.state.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (v *view) SaveTransaction(_ context.Context, t finance.Transaction) error {
	v.state.transactions[t.ID] = t
	return nil
}

func (v *view) UpdateTransaction(_ context.Context, t finance.Transaction) error {
	if _, ok := v.state.transactions[t.ID]; !ok {
		return ledger.ErrTransactionNotFound
	}
	v.state.transactions[t.ID] = t
	return nil
}

func (v *view) GetTransaction(_ context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	if t, ok := v.state.transactions[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (v *view) DeleteTransaction(_ context.Context, id finance.TransactionID) error {
	if _, ok := v.state.transactions[id]; !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(v.state.transactions, id)
	return nil
}

func (v *view) byGroup(match func(finance.Transaction) bool) []finance.Transaction {
	var txs []finance.Transaction
	for _, t := range v.state.transactions {
		if match(t) {
			txs = append(txs, t)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	return txs
}

func (v *view) TransactionsByInstallmentGroup(_ context.Context, groupID string) ([]finance.Transaction, error) {
	return v.byGroup(func(t finance.Transaction) bool { return groupID != "" && t.InstallmentGroupID == groupID }), nil
}

func (v *view) TransactionsByRecurrenceGroup(_ context.Context, groupID string) ([]finance.Transaction, error) {
	return v.byGroup(func(t finance.Transaction) bool { return groupID != "" && t.RecurrenceGroupID == groupID }), nil
}

func (v *view) TransactionsByTransferGroup(_ context.Context, groupID string) ([]finance.Transaction, error) {
	return v.byGroup(func(t finance.Transaction) bool { return groupID != "" && t.TransferGroupID == groupID }), nil
}

func (v *view) ListTransactions(_ context.Context, from, to ledger.Date) ([]finance.Transaction, error) {
	return v.byGroup(func(t finance.Transaction) bool {
		if !from.IsZero() && t.Date.Before(from) {
			return false
		}
		if !to.IsZero() && t.Date.After(to) {
			return false
		}
		return true
	}), nil
}

// =============================================================================
// CARDS
// =============================================================================

func (v *view) GetCard(_ context.Context, id finance.CardID) (*finance.Card, error) {
	if c, ok := v.state.cards[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (v *view) SaveCard(_ context.Context, c finance.Card) error {
	v.state.cards[c.ID] = c
	return nil
}

func (v *view) UpdateCard(_ context.Context, c finance.Card) error {
	if _, ok := v.state.cards[c.ID]; !ok {
		return ledger.ErrCardNotFound
	}
	v.state.cards[c.ID] = c
	return nil
}

func (v *view) ListCards(_ context.Context) ([]finance.Card, error) {
	cards := make([]finance.Card, 0, len(v.state.cards))
	for _, c := range v.state.cards {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (v *view) GetInvoice(_ context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	if inv, ok := v.state.invoices[id]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (v *view) FindInvoice(_ context.Context, cardID finance.CardID, year, month int) (*finance.Invoice, error) {
	for _, inv := range v.state.invoices {
		if inv.CardID == cardID && inv.Year == year && int(inv.Month) == month {
			inv := inv
			return &inv, nil
		}
	}
	return nil, nil
}

func (v *view) SaveInvoice(_ context.Context, inv finance.Invoice) error {
	v.state.invoices[inv.ID] = inv
	return nil
}

func (v *view) UpdateInvoice(_ context.Context, inv finance.Invoice) error {
	if _, ok := v.state.invoices[inv.ID]; !ok {
		return ledger.ErrInvoiceNotFound
	}
	v.state.invoices[inv.ID] = inv
	return nil
}

func (v *view) ListInvoices(_ context.Context, cardID finance.CardID) ([]finance.Invoice, error) {
	var invoices []finance.Invoice
	for _, inv := range v.state.invoices {
		if inv.CardID == cardID {
			invoices = append(invoices, inv)
		}
	}
	sort.Slice(invoices, func(i, j int) bool {
		if invoices[i].Year != invoices[j].Year {
			return invoices[i].Year < invoices[j].Year
		}
		return invoices[i].Month < invoices[j].Month
	})
	return invoices, nil
}
