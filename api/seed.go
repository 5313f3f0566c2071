/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates the database with a realistic household setup so the API can
	be explored immediately: two bank accounts with opening balances, a
	credit card, an installment purchase, a recurring expense, a transfer,
	and card spend sitting on an open invoice.

HOW SEEDING WORKS:
 1. Reset database (clear all data)
 2. Create accounts with opening balances
 3. Register a card against the checking account
 4. Create ordinary, installment and recurring transactions
 5. Transfer between the accounts
 6. Record card spend so an open invoice exists

USAGE VIA API:

	POST /api/admin/seed

NOTE:

	Seeding resets the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The handlers the seeded data is explored through
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// SeedDemo resets the database and loads the demo dataset.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "Seeding not supported by this store", nil)
		return
	}

	ctx := r.Context()
	if err := h.Resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := h.loadDemo(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "Reset not supported by this store", nil)
		return
	}
	if err := h.Resetter.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadDemo(ctx context.Context) error {
	today := ledger.Today()

	checking, err := h.Accounts.CreateAccount(ctx, "Checking", ledger.KindBank, ledger.MustMoney("5000.00"))
	if err != nil {
		return fmt.Errorf("seed checking: %w", err)
	}
	savings, err := h.Accounts.CreateAccount(ctx, "Savings", ledger.KindBank, ledger.MustMoney("12000.00"))
	if err != nil {
		return fmt.Errorf("seed savings: %w", err)
	}

	card, err := h.Invoices.CreateCard(ctx, "Visa Gold", checking.ID, ledger.MustMoney("3000.00"), 5, 12)
	if err != nil {
		return fmt.Errorf("seed card: %w", err)
	}

	// Salary this month.
	if _, err := h.Transactions.Create(ctx, finance.CreateInput{
		Direction:     ledger.In,
		Amount:        ledger.MustMoney("4200.00"),
		Date:          today,
		Description:   "Salary",
		Category:      "income",
		PaymentMethod: finance.MethodInstantTransfer,
		AccountID:     checking.ID,
	}); err != nil {
		return fmt.Errorf("seed salary: %w", err)
	}

	// A 6x installment purchase paid from the checking account.
	if _, err := h.Transactions.Create(ctx, finance.CreateInput{
		Direction:     ledger.Out,
		Amount:        ledger.MustMoney("1200.00"),
		Date:          today,
		Description:   "Washing machine",
		Category:      "home",
		PaymentMethod: finance.MethodCash,
		AccountID:     checking.ID,
		Installments:  6,
	}); err != nil {
		return fmt.Errorf("seed installments: %w", err)
	}

	// A monthly recurring expense.
	if _, err := h.Transactions.Create(ctx, finance.CreateInput{
		Direction:     ledger.Out,
		Amount:        ledger.MustMoney("89.90"),
		Date:          today,
		Description:   "Internet",
		Category:      "utilities",
		PaymentMethod: finance.MethodCash,
		AccountID:     checking.ID,
		Recurrences:   12,
	}); err != nil {
		return fmt.Errorf("seed recurrence: %w", err)
	}

	// Move some savings over.
	if _, err := h.Transfers.Transfer(ctx, savings.ID, checking.ID,
		ledger.MustMoney("500.00"), today, "Monthly top-up"); err != nil {
		return fmt.Errorf("seed transfer: %w", err)
	}

	// Card spend on the open invoice; balance untouched until payment.
	if _, _, err := h.Invoices.RecordCardSpend(ctx, card.ID,
		ledger.MustMoney("230.50"), today, "Groceries", "food"); err != nil {
		return fmt.Errorf("seed card spend: %w", err)
	}
	if _, _, err := h.Invoices.RecordCardSpend(ctx, card.ID,
		ledger.MustMoney("74.90"), today, "Streaming annual plan", "leisure"); err != nil {
		return fmt.Errorf("seed card spend: %w", err)
	}

	return nil
}
