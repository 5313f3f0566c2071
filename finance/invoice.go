/*
invoice.go - Credit card spend and invoice payment

PURPOSE:
  Tracks committed spend per (card, billing period) and realizes it as a
  single balance-affecting ledger entry at payment time.

LIMIT SEMANTICS:
  AvailableLimit tracks COMMITTED spend, not unpaid spend: a purchase
  consumes limit immediately, and the limit is freed only when the invoice
  is paid. Unpaid spend still occupies the cardholder's credit line.

STATE MACHINE per (card, period):
  OPEN -> CLOSED -> PAID (terminal). See InvoiceStatus in types.go.
  Spend is rejected only on PAID; a CLOSED invoice still accepts backdated
  purchases whose date maps into its period.

SEE ALSO:
  - period.go: The single source of period boundary math
  - transaction.go: Routes CARD rows through applySpend/removeSpend
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

// =============================================================================
// ENGINE
// =============================================================================

// InvoiceEngine owns cards and invoices.
type InvoiceEngine struct {
	Store TxStore

	Now func() time.Time
}

func NewInvoiceEngine(store TxStore) *InvoiceEngine {
	return &InvoiceEngine{Store: store, Now: time.Now}
}

// =============================================================================
// CARD LIFECYCLE
// =============================================================================

// CreateCard registers a card linked to the bank account its invoices debit.
func (ie *InvoiceEngine) CreateCard(ctx context.Context, name string, accountID ledger.AccountID, limit decimal.Decimal, closingDay, dueDay int) (Card, error) {
	if !limit.IsPositive() {
		return Card{}, ledger.ErrInvalidAmount
	}
	if closingDay < 1 || closingDay > 31 || dueDay < 1 || dueDay > 31 {
		return Card{}, fmt.Errorf("closing/due day out of range: %w", ledger.ErrInvalidAmount)
	}

	now := ie.Now().UTC()
	card := Card{
		ID:             CardID(uuid.NewString()),
		Name:           name,
		AccountID:      accountID,
		Limit:          limit,
		AvailableLimit: limit,
		ClosingDay:     closingDay,
		DueDay:         dueDay,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := runInTx(ctx, ie.Store, func(s Store) error {
		account, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ledger.ErrAccountNotFound
		}
		return s.SaveCard(ctx, card)
	})
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

// =============================================================================
// SPEND - Committed, not yet balance-affecting
// =============================================================================

// RecordCardSpend registers a purchase on the card's invoice for the
// purchase date's billing period. No ledger entry is created; balance
// impact waits for PayInvoice.
func (ie *InvoiceEngine) RecordCardSpend(ctx context.Context, cardID CardID, amount decimal.Decimal, date ledger.Date, description, category string) (Transaction, Invoice, error) {
	if !amount.IsPositive() {
		return Transaction{}, Invoice{}, ledger.ErrInvalidAmount
	}

	var (
		tx  Transaction
		inv Invoice
	)
	err := runInTx(ctx, ie.Store, func(s Store) error {
		invoice, err := applySpend(ctx, s, cardID, amount, date, ie.Now().UTC())
		if err != nil {
			return err
		}
		inv = invoice

		now := ie.Now().UTC()
		tx = Transaction{
			ID:            TransactionID(uuid.NewString()),
			Direction:     ledger.Out,
			Amount:        amount,
			Date:          date,
			Description:   description,
			Category:      category,
			PaymentMethod: MethodCard,
			CardID:        cardID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.SaveTransaction(ctx, tx)
	})
	if err != nil {
		return Transaction{}, Invoice{}, err
	}
	return tx, inv, nil
}

// applySpend locates or lazily creates the invoice for the purchase date,
// then moves the committed-spend counters: invoice total up, card available
// limit down. Runs inside the caller's unit of work, on the caller's clock.
func applySpend(ctx context.Context, s Store, cardID CardID, amount decimal.Decimal, date ledger.Date, now time.Time) (Invoice, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return Invoice{}, err
	}
	if card == nil {
		return Invoice{}, ledger.ErrCardNotFound
	}
	if !card.Active {
		return Invoice{}, ledger.ErrInactiveResource
	}

	invoice, created, err := findOrCreateInvoice(ctx, s, *card, date, now)
	if err != nil {
		return Invoice{}, err
	}
	if invoice.Paid {
		return Invoice{}, ledger.ErrInvoiceAlreadyPaid
	}
	if card.AvailableLimit.LessThan(amount) {
		return Invoice{}, &ledger.InsufficientCreditLimitError{
			CardID:    string(cardID),
			Available: card.AvailableLimit,
			Requested: amount,
		}
	}

	invoice.Total = invoice.Total.Add(amount)
	invoice.UpdatedAt = now
	if created {
		err = s.SaveInvoice(ctx, invoice)
	} else {
		err = s.UpdateInvoice(ctx, invoice)
	}
	if err != nil {
		return Invoice{}, err
	}

	card.AvailableLimit = card.AvailableLimit.Sub(amount)
	card.UpdatedAt = now
	if err := s.UpdateCard(ctx, *card); err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// removeSpend is the inverse of applySpend, used when a CARD transaction is
// edited or deleted before its invoice is paid.
func removeSpend(ctx context.Context, s Store, cardID CardID, amount decimal.Decimal, date ledger.Date, now time.Time) error {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return ledger.ErrCardNotFound
	}

	year, month := PeriodLabel(PeriodFor(card.ClosingDay, date))
	invoice, err := s.FindInvoice(ctx, cardID, year, int(month))
	if err != nil {
		return err
	}
	if invoice == nil {
		return ledger.ErrInvoiceNotFound
	}
	if invoice.Paid {
		return ledger.ErrInvoiceAlreadyPaid
	}

	invoice.Total = invoice.Total.Sub(amount)
	invoice.UpdatedAt = now
	if err := s.UpdateInvoice(ctx, *invoice); err != nil {
		return err
	}

	card.AvailableLimit = card.AvailableLimit.Add(amount)
	card.UpdatedAt = now
	return s.UpdateCard(ctx, *card)
}

func findOrCreateInvoice(ctx context.Context, s Store, card Card, date ledger.Date, now time.Time) (Invoice, bool, error) {
	period := PeriodFor(card.ClosingDay, date)
	year, month := PeriodLabel(period)

	existing, err := s.FindInvoice(ctx, card.ID, year, int(month))
	if err != nil {
		return Invoice{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	return Invoice{
		ID:        InvoiceID(uuid.NewString()),
		CardID:    card.ID,
		Year:      year,
		Month:     month,
		Period:    period,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}

// =============================================================================
// PAYMENT - The moment committed spend hits an account balance
// =============================================================================

// PayInvoice debits the account by the invoice total, marks the invoice
// paid, and frees the card limit - one unit of work.
func (ie *InvoiceEngine) PayInvoice(ctx context.Context, invoiceID InvoiceID, debitAccountID ledger.AccountID, paymentDate ledger.Date) (Invoice, error) {
	var paid Invoice
	err := runInTx(ctx, ie.Store, func(s Store) error {
		invoice, err := s.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ledger.ErrInvoiceNotFound
		}
		if invoice.Paid {
			return ledger.ErrInvoiceAlreadyPaid
		}
		if !invoice.Total.IsPositive() {
			return ErrInvoiceEmpty
		}

		card, err := s.GetCard(ctx, invoice.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ledger.ErrCardNotFound
		}

		entry, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   debitAccountID,
			Delta:       invoice.Total.Neg(),
			Origin:      ledger.OriginInvoicePayment,
			ReferenceID: string(invoice.ID),
			Description: fmt.Sprintf("Invoice %s %04d-%02d", card.Name, invoice.Year, invoice.Month),
			Date:        paymentDate,
		})
		if err != nil {
			return err
		}

		now := ie.Now().UTC()
		invoice.Paid = true
		invoice.PaidAt = &now
		invoice.LedgerEntryID = entry.ID
		invoice.UpdatedAt = now
		if err := s.UpdateInvoice(ctx, *invoice); err != nil {
			return err
		}

		// Paying frees the limit the committed spend was occupying.
		card.AvailableLimit = card.AvailableLimit.Add(invoice.Total)
		card.UpdatedAt = now
		if err := s.UpdateCard(ctx, *card); err != nil {
			return err
		}

		paid = *invoice
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return paid, nil
}

// ReverseInvoicePayment cancels a payment: re-opens the invoice,
// re-consumes the limit, and credits the debit account back with a
// REVERSAL entry.
func (ie *InvoiceEngine) ReverseInvoicePayment(ctx context.Context, invoiceID InvoiceID) (Invoice, error) {
	var reopened Invoice
	err := runInTx(ctx, ie.Store, func(s Store) error {
		invoice, err := s.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ledger.ErrInvoiceNotFound
		}
		if !invoice.Paid {
			return ErrInvoiceNotPaid
		}

		card, err := s.GetCard(ctx, invoice.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ledger.ErrCardNotFound
		}
		// The committed spend comes back onto the credit line; if the limit
		// was re-spent or lowered meanwhile, the payment cannot be undone.
		if card.AvailableLimit.LessThan(invoice.Total) {
			return &ledger.InsufficientCreditLimitError{
				CardID:    string(card.ID),
				Available: card.AvailableLimit,
				Requested: invoice.Total,
			}
		}

		paidEntry, err := s.GetEntry(ctx, invoice.LedgerEntryID)
		if err != nil {
			return err
		}
		if paidEntry == nil {
			return ledger.ErrInvoiceNotFound
		}

		if _, err := ledger.ApplyChange(ctx, s, ledger.ChangeInput{
			AccountID:   paidEntry.AccountID,
			Delta:       invoice.Total,
			Origin:      ledger.OriginReversal,
			ReferenceID: string(invoice.ID),
			Description: "Reversal: " + paidEntry.Description,
			Date:        ledger.DateOf(ie.Now().UTC()),
		}); err != nil {
			return err
		}

		now := ie.Now().UTC()
		invoice.Paid = false
		invoice.PaidAt = nil
		invoice.LedgerEntryID = ""
		invoice.UpdatedAt = now
		if err := s.UpdateInvoice(ctx, *invoice); err != nil {
			return err
		}

		card.AvailableLimit = card.AvailableLimit.Sub(invoice.Total)
		card.UpdatedAt = now
		if err := s.UpdateCard(ctx, *card); err != nil {
			return err
		}

		reopened = *invoice
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return reopened, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// OpenInvoice returns the invoice of the period covering asOf, synthesizing
// an empty one (not persisted) when no spend has been recorded yet. Uses
// the exact same period math as spend recording, so the dashboard and the
// write path can never disagree about which invoice is "current".
func (ie *InvoiceEngine) OpenInvoice(ctx context.Context, cardID CardID, asOf ledger.Date) (Invoice, error) {
	card, err := ie.Store.GetCard(ctx, cardID)
	if err != nil {
		return Invoice{}, err
	}
	if card == nil {
		return Invoice{}, ledger.ErrCardNotFound
	}

	invoice, _, err := findOrCreateInvoice(ctx, ie.Store, *card, asOf, ie.Now().UTC())
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// ListInvoices returns all invoices of a card.
func (ie *InvoiceEngine) ListInvoices(ctx context.Context, cardID CardID) ([]Invoice, error) {
	return ie.Store.ListInvoices(ctx, cardID)
}

// RecomputeAvailableLimit derives the limit counter from first principles:
// total limit minus the sum of unpaid invoice totals. The materialized
// Card.AvailableLimit must always equal this; tests compare the two after
// every scenario.
func RecomputeAvailableLimit(ctx context.Context, s Store, cardID CardID) (decimal.Decimal, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return decimal.Zero, err
	}
	if card == nil {
		return decimal.Zero, ledger.ErrCardNotFound
	}

	invoices, err := s.ListInvoices(ctx, cardID)
	if err != nil {
		return decimal.Zero, err
	}

	available := card.Limit
	for _, inv := range invoices {
		if !inv.Paid {
			available = available.Sub(inv.Total)
		}
	}
	return available, nil
}
