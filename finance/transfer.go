/*
transfer.go - Inter-account transfers as one atomic unit

PURPOSE:
  A transfer is two legs - debit the source, credit the destination - plus
  two Transaction rows sharing a fresh transfer group id. All four writes
  commit in ONE unit of work: either the whole transfer exists or none of
  it does. A partial transfer is never observable, not even after a crash
  between the legs.

REVERSAL:
  Reverse looks the pair up by group id and requires exactly one IN and one
  OUT of equal amount across two distinct accounts. Anything else means the
  data was corrupted earlier; it fails with InconsistentTransferGroup and is
  never silently "fixed". Reversing twice fails the same way, because the
  first reversal deleted the pair - no double-credit is possible.

  The reversal legs post with origin REVERSAL, which bypasses the
  insufficient-funds check: un-doing a previously valid debit must never
  be blocked, even if the destination already spent the money.
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// TransferOrchestrator creates and reverses paired transfers.
type TransferOrchestrator struct {
	Store TxStore

	Now func() time.Time
}

func NewTransferOrchestrator(store TxStore) *TransferOrchestrator {
	return &TransferOrchestrator{Store: store, Now: time.Now}
}

// Transfer moves amount from source to destination and returns the group id
// linking the two created transactions.
func (to *TransferOrchestrator) Transfer(ctx context.Context, source, dest ledger.AccountID, amount decimal.Decimal, date ledger.Date, description string) (string, error) {
	if source == dest {
		return "", ledger.ErrSameAccountTransfer
	}
	if !amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}

	groupID := uuid.NewString()

	err := runInTx(ctx, to.Store, func(s Store) error {
		src, err := requireBankAccount(ctx, s, source)
		if err != nil {
			return err
		}
		dst, err := requireBankAccount(ctx, s, dest)
		if err != nil {
			return err
		}

		// Debit first: the funds check on the source guards the whole pair.
		if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   src.ID,
			Delta:       amount.Neg(),
			Origin:      ledger.OriginTransfer,
			ReferenceID: groupID,
			Description: transferDescription(description, "Transfer to "+dst.Name),
			Date:        date,
		}); err != nil {
			return err
		}
		if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   dst.ID,
			Delta:       amount,
			Origin:      ledger.OriginTransfer,
			ReferenceID: groupID,
			Description: transferDescription(description, "Transfer from "+src.Name),
			Date:        date,
		}); err != nil {
			return err
		}

		now := to.Now().UTC()
		legs := []Transaction{
			{
				ID:              TransactionID(uuid.NewString()),
				Direction:       ledger.Out,
				Amount:          amount,
				Date:            date,
				Description:     transferDescription(description, "Transfer to "+dst.Name),
				Category:        "transfer",
				PaymentMethod:   MethodAccountTransfer,
				AccountID:       src.ID,
				TransferGroupID: groupID,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			{
				ID:              TransactionID(uuid.NewString()),
				Direction:       ledger.In,
				Amount:          amount,
				Date:            date,
				Description:     transferDescription(description, "Transfer from "+src.Name),
				Category:        "transfer",
				PaymentMethod:   MethodAccountTransfer,
				AccountID:       dst.ID,
				TransferGroupID: groupID,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
		}
		for _, leg := range legs {
			if err := s.SaveTransaction(ctx, leg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

// Reverse un-does a transfer: credits the original source back, debits the
// original destination, and deletes both legs, atomically.
func (to *TransferOrchestrator) Reverse(ctx context.Context, groupID string) error {
	return runInTx(ctx, to.Store, func(s Store) error {
		legs, err := s.TransactionsByTransferGroup(ctx, groupID)
		if err != nil {
			return err
		}

		out, in, err := transferShape(legs)
		if err != nil {
			return err
		}

		if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   out.AccountID,
			Delta:       out.Amount,
			Origin:      ledger.OriginReversal,
			ReferenceID: groupID,
			Description: "Reversal: " + out.Description,
			Date:        ledger.DateOf(to.Now().UTC()),
		}); err != nil {
			return err
		}
		if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   in.AccountID,
			Delta:       in.Amount.Neg(),
			Origin:      ledger.OriginReversal,
			ReferenceID: groupID,
			Description: "Reversal: " + in.Description,
			Date:        ledger.DateOf(to.Now().UTC()),
		}); err != nil {
			return err
		}

		if err := s.DeleteTransaction(ctx, out.ID); err != nil {
			return err
		}
		return s.DeleteTransaction(ctx, in.ID)
	})
}

// transferShape validates the 1-in/1-out pairing invariant.
func transferShape(legs []Transaction) (out, in Transaction, err error) {
	if len(legs) != 2 {
		return out, in, ledger.ErrInconsistentTransferGroup
	}
	for _, leg := range legs {
		switch leg.Direction {
		case ledger.Out:
			out = leg
		case ledger.In:
			in = leg
		}
	}
	if out.ID == "" || in.ID == "" ||
		!out.Amount.Equal(in.Amount) ||
		out.AccountID == in.AccountID {
		return out, in, ledger.ErrInconsistentTransferGroup
	}
	return out, in, nil
}

func requireBankAccount(ctx context.Context, s Store, id ledger.AccountID) (*ledger.Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("transfer endpoint %s: %w", id, ledger.ErrAccountNotFound)
	}
	if !account.Active {
		return nil, ledger.ErrInactiveResource
	}
	if account.Kind != ledger.KindBank {
		return nil, ErrCardContainerTransfer
	}
	return account, nil
}

func transferDescription(given, fallback string) string {
	if given != "" {
		return given
	}
	return fallback
}
