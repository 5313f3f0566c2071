/*
transaction.go - Transaction lifecycle: create, edit, delete with scopes

PURPOSE:
  Owns ordinary transactions and their series. Creation expands installment
  and recurrence groups into one Transaction per month; edit and delete take
  a scope that targets one row or a whole series. Every mutation of an
  already-posted row goes through the ledger as a reversal + forward pair -
  never an in-place edit of history.

THE DECISION RULE:
  Does this transaction affect the account balance immediately?
    IN  -> always yes
    OUT -> yes, unless paid by CARD (card spend defers balance impact
           to invoice payment; see invoice.go)

INSTALLMENT REMAINDER:
  amount / count is truncated to cents and the remainder goes to the LAST
  installment, so the series always sums to the original amount. Nothing
  is silently dropped.

GUARDS:
  - Transfer legs are rejected with TransferMustBeReversedAsUnit; only the
    orchestrator may undo them, as a pair.
  - Deleting the opening-balance ADJUSTMENT entry (by id) is rejected with
    ProtectedLedgerEntry.

SEE ALSO:
  - invoice.go: applySpend/removeSpend used for CARD rows
  - ledger/balance.go: ApplyChange used for posted rows
*/
package finance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// SCOPES
// =============================================================================

// Scope selects how far an edit or delete reaches into a series.
type Scope string

const (
	ScopeSingle          Scope = "unica"
	ScopeAllInstallments Scope = "all_installments"
	ScopeAllRecurrence   Scope = "all_recurrence"
)

// =============================================================================
// INPUTS
// =============================================================================

// CreateInput describes a new transaction or series.
type CreateInput struct {
	Direction     ledger.Direction
	Amount        decimal.Decimal
	Date          ledger.Date
	Description   string
	Category      string
	PaymentMethod PaymentMethod

	CardID    CardID           // required when PaymentMethod is CARD
	AccountID ledger.AccountID // required otherwise

	// At most one of these may exceed 1.
	Installments int
	Recurrences  int
}

// UpdateInput carries the editable fields. Nil pointers leave a field
// unchanged. Date changes only apply to the targeted row, never to series
// siblings - each sibling keeps its own month.
type UpdateInput struct {
	Amount      *decimal.Decimal
	Date        *ledger.Date
	Description *string
	Category    *string
}

// =============================================================================
// MANAGER
// =============================================================================

// TransactionManager is the entry point for ordinary transaction writes.
type TransactionManager struct {
	Store TxStore

	Now func() time.Time
}

func NewTransactionManager(store TxStore) *TransactionManager {
	return &TransactionManager{Store: store, Now: time.Now}
}

// Create expands the input into one or more Transactions and posts their
// ledger or invoice effects, all in one unit of work.
func (tm *TransactionManager) Create(ctx context.Context, in CreateInput) ([]Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, ErrCategoryRequired
	}
	if in.PaymentMethod == MethodCard && in.Direction != ledger.Out {
		return nil, ErrCardSpendMustBeOutgoing
	}
	if in.Installments > 1 && in.Recurrences > 1 {
		return nil, ErrConflictingSeries
	}

	rows := tm.expand(in)

	err := runInTx(ctx, tm.Store, func(s Store) error {
		for i := range rows {
			if err := tm.post(ctx, s, rows[i]); err != nil {
				return err
			}
			if err := s.SaveTransaction(ctx, rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// expand turns the input into the stored rows: a plain transaction, an
// installment series, or a recurrence series.
func (tm *TransactionManager) expand(in CreateInput) []Transaction {
	now := tm.Now().UTC()

	base := Transaction{
		Direction:     in.Direction,
		Amount:        in.Amount,
		Date:          in.Date,
		Description:   strings.TrimSpace(in.Description),
		Category:      strings.TrimSpace(in.Category),
		PaymentMethod: in.PaymentMethod,
		CardID:        in.CardID,
		AccountID:     in.AccountID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch {
	case in.Installments > 1:
		n := in.Installments
		groupID := uuid.NewString()
		per := in.Amount.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
		last := in.Amount.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))

		rows := make([]Transaction, n)
		for i := 0; i < n; i++ {
			row := base
			row.ID = TransactionID(uuid.NewString())
			row.Amount = per
			if i == n-1 {
				row.Amount = last
			}
			row.Date = in.Date.AddMonths(i)
			row.InstallmentGroupID = groupID
			row.InstallmentIndex = i + 1
			row.InstallmentCount = n
			rows[i] = row
		}
		return rows

	case in.Recurrences > 1:
		n := in.Recurrences
		groupID := uuid.NewString()
		rows := make([]Transaction, n)
		for i := 0; i < n; i++ {
			row := base
			row.ID = TransactionID(uuid.NewString())
			row.Date = in.Date.AddMonths(i)
			row.RecurrenceGroupID = groupID
			row.RecurrenceCount = n
			rows[i] = row
		}
		return rows

	default:
		base.ID = TransactionID(uuid.NewString())
		return []Transaction{base}
	}
}

// post applies a row's economic effect: card spend accumulates into its
// invoice, everything else that affects balance goes to the ledger.
func (tm *TransactionManager) post(ctx context.Context, s Store, t Transaction) error {
	if t.PaymentMethod == MethodCard {
		_, err := applySpend(ctx, s, t.CardID, t.Amount, t.Date, tm.Now().UTC())
		return err
	}
	if !t.AffectsBalanceImmediately() {
		return nil
	}
	_, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
		AccountID:   t.AccountID,
		Delta:       t.SignedDelta(),
		Origin:      ledger.OriginManualTransaction,
		ReferenceID: string(t.ID),
		Description: t.Description,
		Date:        t.Date,
	})
	return err
}

// =============================================================================
// UPDATE
// =============================================================================

// Update edits the targeted transaction or its whole series. Rows that had
// already posted to the ledger get a compensating REVERSAL for the old
// amount and a new forward entry for the new one.
func (tm *TransactionManager) Update(ctx context.Context, id TransactionID, in UpdateInput, scope Scope) ([]Transaction, error) {
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return nil, ErrCategoryRequired
	}

	var updated []Transaction
	err := runInTx(ctx, tm.Store, func(s Store) error {
		updated = updated[:0]

		targets, target, err := tm.resolveScope(ctx, s, id, scope)
		if err != nil {
			return err
		}

		for _, t := range targets {
			if t.IsTransferLeg() {
				return ledger.ErrTransferMustBeReversedAsUnit
			}

			next := t
			if in.Amount != nil {
				next.Amount = *in.Amount
			}
			if in.Date != nil && t.ID == target.ID {
				next.Date = *in.Date
			}
			if in.Description != nil {
				next.Description = strings.TrimSpace(*in.Description)
			}
			if in.Category != nil {
				next.Category = strings.TrimSpace(*in.Category)
			}
			next.UpdatedAt = tm.Now().UTC()

			if err := tm.repost(ctx, s, t, next); err != nil {
				return err
			}
			if err := s.UpdateTransaction(ctx, next); err != nil {
				return err
			}
			updated = append(updated, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// repost moves a row's economic effect from its old shape to its new one.
func (tm *TransactionManager) repost(ctx context.Context, s Store, old, next Transaction) error {
	if old.PaymentMethod == MethodCard {
		// Committed spend moves between invoices; a paid invoice on either
		// side rejects the edit.
		if old.Amount.Equal(next.Amount) && old.Date.Equal(next.Date) {
			return nil
		}
		if err := removeSpend(ctx, s, old.CardID, old.Amount, old.Date, tm.Now().UTC()); err != nil {
			return err
		}
		_, err := applySpend(ctx, s, next.CardID, next.Amount, next.Date, tm.Now().UTC())
		return err
	}

	if !old.AffectsBalanceImmediately() {
		return nil
	}
	if old.Amount.Equal(next.Amount) && old.Date.Equal(next.Date) {
		return nil
	}

	// Reversal of the old effect, then a fresh forward entry. History keeps
	// both; the net is the correction.
	if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
		AccountID:   old.AccountID,
		Delta:       old.SignedDelta().Neg(),
		Origin:      ledger.OriginReversal,
		ReferenceID: string(old.ID),
		Description: "Reversal: " + old.Description,
		Date:        next.Date,
	}); err != nil {
		return err
	}
	_, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
		AccountID:   next.AccountID,
		Delta:       next.SignedDelta(),
		Origin:      ledger.OriginManualTransaction,
		ReferenceID: string(next.ID),
		Description: next.Description,
		Date:        next.Date,
	})
	return err
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes the targeted transaction or its whole series. Posted rows
// first get a REVERSAL entry for the inverse delta, preserving the audit
// trail; only the Transaction row itself is removed.
func (tm *TransactionManager) Delete(ctx context.Context, id TransactionID, scope Scope) error {
	return runInTx(ctx, tm.Store, func(s Store) error {
		targets, _, err := tm.resolveScope(ctx, s, id, scope)
		if err != nil {
			return err
		}

		for _, t := range targets {
			if t.IsTransferLeg() {
				return ledger.ErrTransferMustBeReversedAsUnit
			}

			if t.PaymentMethod == MethodCard {
				if err := removeSpend(ctx, s, t.CardID, t.Amount, t.Date, tm.Now().UTC()); err != nil {
					return err
				}
			} else if t.AffectsBalanceImmediately() {
				if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
					AccountID:   t.AccountID,
					Delta:       t.SignedDelta().Neg(),
					Origin:      ledger.OriginReversal,
					ReferenceID: string(t.ID),
					Description: "Reversal: " + t.Description,
					Date:        ledger.DateOf(tm.Now().UTC()),
				}); err != nil {
					return err
				}
			}

			if err := s.DeleteTransaction(ctx, t.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// resolveScope loads the target row and, for series scopes, its siblings.
// A miss on the transaction table is re-checked against the ledger: asking
// to delete the opening-balance entry by id is a protected-entry error,
// not a not-found.
func (tm *TransactionManager) resolveScope(ctx context.Context, s Store, id TransactionID, scope Scope) ([]Transaction, Transaction, error) {
	target, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, Transaction{}, err
	}
	if target == nil {
		if entry, err := s.GetEntry(ctx, ledger.EntryID(id)); err != nil {
			return nil, Transaction{}, err
		} else if entry != nil && entry.Origin == ledger.OriginAdjustment {
			return nil, Transaction{}, ledger.ErrProtectedLedgerEntry
		}
		return nil, Transaction{}, ledger.ErrTransactionNotFound
	}

	switch scope {
	case ScopeAllInstallments:
		if target.InstallmentGroupID == "" {
			return []Transaction{*target}, *target, nil
		}
		siblings, err := s.TransactionsByInstallmentGroup(ctx, target.InstallmentGroupID)
		return siblings, *target, err
	case ScopeAllRecurrence:
		if target.RecurrenceGroupID == "" {
			return []Transaction{*target}, *target, nil
		}
		siblings, err := s.TransactionsByRecurrenceGroup(ctx, target.RecurrenceGroupID)
		return siblings, *target, err
	default:
		return []Transaction{*target}, *target, nil
	}
}

// =============================================================================
// READS
// =============================================================================

func (tm *TransactionManager) Get(ctx context.Context, id TransactionID) (*Transaction, error) {
	return tm.Store.GetTransaction(ctx, id)
}

func (tm *TransactionManager) List(ctx context.Context, from, to ledger.Date) ([]Transaction, error) {
	return tm.Store.ListTransactions(ctx, from, to)
}
