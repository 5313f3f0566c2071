/*
balance.go - The account balance manager

PURPOSE:
  The ONLY writer of account balances. Every balance mutation in the system
  funnels through ApplyChange: it appends exactly one entry with a
  balance-after snapshot and moves the account's current balance to the
  same value, inside one unit of work. Callers can never observe the entry
  and the balance diverge, even transiently.

THE CRUX:
  Concurrent changes on the same account must compose sequentially. The
  account row carries a version counter; the balance update is guarded by
  the version read at the start of the unit of work. A losing writer's
  whole unit of work rolls back and is replayed by RunInTx, which re-reads
  the balance, so sequential deltas always compose correctly and two
  debits can never double-spend the same funds.

FUNDS CHECK:
  Outgoing deltas that would drive the balance negative fail with
  InsufficientFunds - unless the origin is ADJUSTMENT or REVERSAL.
  Reversals un-do a previously valid debit and must never be blocked.

SEE ALSO:
  - store.go: RunInTx and the version-guarded balance update
  - finance/transfer.go: Composes two ApplyChange calls atomically
*/
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CHANGE INPUT
// =============================================================================

// ChangeInput describes one balance mutation.
type ChangeInput struct {
	AccountID   AccountID
	Delta       decimal.Decimal // signed: positive credits, negative debits
	Origin      OriginTag
	ReferenceID string
	Description string
	Date        Date
}

// =============================================================================
// BALANCE MANAGER
// =============================================================================

// BalanceManager owns account creation, deactivation and the balance
// mutation primitive.
type BalanceManager struct {
	Store TxStore

	// Now is injectable for tests.
	Now func() time.Time
}

func NewBalanceManager(store TxStore) *BalanceManager {
	return &BalanceManager{Store: store, Now: time.Now}
}

// ApplyChange appends one entry and updates the account balance against a
// Store that is already inside a unit of work. Orchestrators that touch
// several rows (transfers, invoice payments) call this once per leg within
// a single WithTx.
func ApplyChange(ctx context.Context, s Store, in ChangeInput) (Entry, error) {
	if in.Delta.IsZero() {
		return Entry{}, ErrInvalidAmount
	}

	account, err := s.GetAccount(ctx, in.AccountID)
	if err != nil {
		return Entry{}, err
	}
	if account == nil {
		return Entry{}, ErrAccountNotFound
	}
	if !account.Active {
		return Entry{}, ErrInactiveResource
	}

	newBalance := account.Balance.Add(in.Delta)
	if newBalance.IsNegative() && !in.Origin.BypassesFundsCheck() {
		return Entry{}, &InsufficientFundsError{
			AccountID: account.ID,
			Available: account.Balance,
			Requested: in.Delta.Neg(),
		}
	}

	entry := Entry{
		ID:           EntryID(uuid.NewString()),
		AccountID:    account.ID,
		Date:         in.Date,
		Direction:    DirectionOf(in.Delta),
		Amount:       in.Delta.Abs(),
		Description:  strings.TrimSpace(in.Description),
		BalanceAfter: newBalance,
		Origin:       in.Origin,
		ReferenceID:  in.ReferenceID,
	}

	entry, err = s.AppendEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}

	// Version-guarded: if another writer moved the balance since GetAccount,
	// this fails with ErrVersionConflict and the whole unit of work replays.
	if err := s.UpdateAccountBalance(ctx, account.ID, newBalance, account.Version); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// ApplyBalanceChange runs a single balance mutation as its own unit of work.
func (bm *BalanceManager) ApplyBalanceChange(ctx context.Context, in ChangeInput) (Entry, error) {
	var entry Entry
	err := RunInTx(ctx, bm.Store, func(s Store) error {
		var err error
		entry, err = ApplyChange(ctx, s, in)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

// CreateAccount creates an account. A non-zero opening balance is recorded
// as the account's first ledger entry with origin ADJUSTMENT. The replay
// fold anchors at zero and the adjustment entry carries the opening amount,
// which is why that entry is protected from deletion forever: removing it
// would orphan every later balance-after snapshot.
func (bm *BalanceManager) CreateAccount(ctx context.Context, name string, kind AccountKind, opening decimal.Decimal) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, ErrInvalidName
	}
	if opening.IsNegative() {
		return Account{}, ErrInvalidAmount
	}

	now := bm.Now().UTC()
	account := Account{
		ID:             AccountID(uuid.NewString()),
		Name:           name,
		Kind:           kind,
		Active:         true,
		OpeningBalance: opening,
		Balance:        decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := RunInTx(ctx, bm.Store, func(s Store) error {
		if err := s.SaveAccount(ctx, account); err != nil {
			return err
		}
		if opening.IsZero() {
			return nil
		}
		_, err := ApplyChange(ctx, s, ChangeInput{
			AccountID:   account.ID,
			Delta:       opening,
			Origin:      OriginAdjustment,
			Description: "Opening balance",
			Date:        DateOf(now),
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}

	account.Balance = opening
	return account, nil
}

// DeactivateAccount soft-deletes an account. Accounts owning ledger history
// are never hard-deleted; a deactivated account rejects all new mutations
// with ErrInactiveResource while its statement stays queryable.
func (bm *BalanceManager) DeactivateAccount(ctx context.Context, id AccountID) error {
	return RunInTx(ctx, bm.Store, func(s Store) error {
		account, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		account.Active = false
		return s.UpdateAccountMeta(ctx, *account)
	})
}

// RenameAccount updates the display name.
func (bm *BalanceManager) RenameAccount(ctx context.Context, id AccountID, name string) error {
	name = strings.TrimSpace(name)
	return RunInTx(ctx, bm.Store, func(s Store) error {
		account, err := s.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		account.Name = name
		return s.UpdateAccountMeta(ctx, *account)
	})
}
