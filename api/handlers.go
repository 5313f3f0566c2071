/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the ledger and finance managers via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                 List accounts
    POST   /api/accounts                 Create account (optional opening balance)
    GET    /api/accounts/{id}            Get account
    PUT    /api/accounts/{id}            Rename account
    DELETE /api/accounts/{id}            Deactivate account (soft delete)
    GET    /api/accounts/{id}/statement  Filtered statement with summary
    POST   /api/accounts/{id}/verify     Replay-verify stored balances

  Transactions:
    GET    /api/transactions             List in a date window
    POST   /api/transactions             Create (expands installments/recurrence)
    GET    /api/transactions/{id}        Get one
    PUT    /api/transactions/{id}        Edit with scope
    DELETE /api/transactions/{id}        Delete with scope (query param)

  Transfers:
    POST   /api/transfers                Atomic two-leg transfer
    POST   /api/transfers/{groupID}/reverse  Reverse both legs as a unit

  Cards & Invoices:
    GET    /api/cards                    List cards
    POST   /api/cards                    Register card
    GET    /api/cards/{id}               Get card
    POST   /api/cards/{id}/spend         Record committed card spend
    GET    /api/cards/{id}/invoices      List invoices
    GET    /api/cards/{id}/invoices/open Current open invoice
    GET    /api/invoices/{id}            Get invoice
    POST   /api/invoices/{id}/pay        Pay from a bank account
    POST   /api/invoices/{id}/pay/reverse  Reverse a payment

  Admin:
    POST   /api/admin/seed               Load demo data
    POST   /api/admin/reset              Database reset (dev only)

ERROR HANDLING:
  Domain errors map to HTTP status via errors.Is:
  - 400: Validation errors, invalid input, client errors
  - 404: Resource not found
  - 409: Already-paid invoices, lost optimistic-concurrency races
  - 422: Insufficient funds / insufficient credit limit
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can wipe all data (dev only).
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        finance.TxStore
	Resetter     Resetter // optional; enables /api/admin/reset
	Accounts     *ledger.BalanceManager
	Statements   *ledger.StatementReader
	Transactions *finance.TransactionManager
	Transfers    *finance.TransferOrchestrator
	Invoices     *finance.InvoiceEngine

	validate *validator.Validate
}

// NewHandler wires the domain managers around one store.
func NewHandler(store finance.TxStore) *Handler {
	return &Handler{
		Store:        store,
		Accounts:     ledger.NewBalanceManager(finance.AsLedgerTx(store)),
		Statements:   ledger.NewStatementReader(store),
		Transactions: finance.NewTransactionManager(store),
		Transfers:    finance.NewTransferOrchestrator(store),
		Invoices:     finance.NewInvoiceEngine(store),
		validate:     validator.New(),
	}
}

// decodeAndValidate parses the JSON body into req and runs struct validation.
func (h *Handler) decodeAndValidate(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return err
	}
	return h.validate.Struct(req)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account, posting an opening-balance entry
// when the opening amount is non-zero.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = ledger.ParseMoney(req.OpeningBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opening_balance", err)
			return
		}
	}

	account, err := h.Accounts.CreateAccount(r.Context(), req.Name, ledger.AccountKind(req.Kind), opening)
	if err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// RenameAccount updates an account's display name.
func (h *Handler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req RenameAccountRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Accounts.RenameAccount(r.Context(), id, req.Name); err != nil {
		writeDomainError(w, "Failed to rename account", err)
		return
	}
	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil || account == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*account))
}

// DeactivateAccount soft-deletes an account. History stays queryable.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := h.Accounts.DeactivateAccount(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to deactivate account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatement returns a filtered ledger window with summary.
// Query params: from, to (YYYY-MM-DD, required), direction, origin (optional).
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	from, err := ledger.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'from' date (use YYYY-MM-DD)", err)
		return
	}
	to, err := ledger.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid 'to' date (use YYYY-MM-DD)", err)
		return
	}

	filter := ledger.StatementFilter{
		Direction: ledger.Direction(r.URL.Query().Get("direction")),
		Origin:    ledger.OriginTag(r.URL.Query().Get("origin")),
	}

	stmt, err := h.Statements.GetStatement(r.Context(), id, from, to, filter)
	if err != nil {
		writeDomainError(w, "Failed to build statement", err)
		return
	}

	entries := make([]EntryDTO, len(stmt.Entries))
	for i, e := range stmt.Entries {
		entries[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, StatementDTO{
		AccountID: string(stmt.AccountID),
		From:      stmt.From.String(),
		To:        stmt.To.String(),
		Entries:   entries,
		Summary: SummaryDTO{
			OpeningBalance: stmt.Summary.OpeningBalance.StringFixed(2),
			ClosingBalance: stmt.Summary.ClosingBalance.StringFixed(2),
			TotalIn:        stmt.Summary.TotalIn.StringFixed(2),
			TotalOut:       stmt.Summary.TotalOut.StringFixed(2),
		},
	})
}

// VerifyAccount replays the account's entries and cross-checks every stored
// balance-after snapshot. 200 when consistent, 500 with the first mismatch
// otherwise.
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := ledger.VerifyAccount(r.Context(), h.Store, id); err != nil {
		if ledger.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Account not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Ledger inconsistency detected", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "consistent"})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns transactions in an optional date window.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var from, to ledger.Date
	if s := r.URL.Query().Get("from"); s != "" {
		var err error
		if from, err = ledger.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' date (use YYYY-MM-DD)", err)
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		var err error
		if to, err = ledger.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' date (use YYYY-MM-DD)", err)
			return
		}
	}

	txs, err := h.Transactions.List(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// CreateTransaction creates a transaction, expanding installment or
// recurrence series into one row per month.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	txs, err := h.Transactions.Create(r.Context(), finance.CreateInput{
		Direction:     ledger.Direction(req.Direction),
		Amount:        amount,
		Date:          date,
		Description:   req.Description,
		Category:      req.Category,
		PaymentMethod: finance.PaymentMethod(req.PaymentMethod),
		CardID:        finance.CardID(req.CardID),
		AccountID:     ledger.AccountID(req.AccountID),
		Installments:  req.Installments,
		Recurrences:   req.Recurrences,
	})
	if err != nil {
		writeDomainError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTOs(txs))
}

// GetTransaction returns a single transaction.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := finance.TransactionID(chi.URLParam(r, "id"))

	t, err := h.Transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*t))
}

// UpdateTransaction edits a transaction or a whole series, posting
// reversal+forward entry pairs for rows already on the ledger.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := finance.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var in finance.UpdateInput
	if req.Amount != nil {
		amount, err := ledger.ParseMoney(*req.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount", err)
			return
		}
		in.Amount = &amount
	}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		in.Date = &date
	}
	in.Description = req.Description
	in.Category = req.Category

	txs, err := h.Transactions.Update(r.Context(), id, in, finance.Scope(req.Scope))
	if err != nil {
		writeDomainError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// DeleteTransaction removes a transaction or series. Scope comes from the
// "scope" query parameter and defaults to unica.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := finance.TransactionID(chi.URLParam(r, "id"))

	scope := finance.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = finance.ScopeSingle
	}
	switch scope {
	case finance.ScopeSingle, finance.ScopeAllInstallments, finance.ScopeAllRecurrence:
	default:
		writeError(w, http.StatusBadRequest, "Invalid scope", nil)
		return
	}

	if err := h.Transactions.Delete(r.Context(), id, scope); err != nil {
		writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// CreateTransfer debits the source and credits the destination atomically.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	groupID, err := h.Transfers.Transfer(r.Context(),
		ledger.AccountID(req.SourceAccountID), ledger.AccountID(req.DestAccountID),
		amount, date, req.Description)
	if err != nil {
		writeDomainError(w, "Failed to transfer", err)
		return
	}

	legs, err := h.Store.TransactionsByTransferGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transfer legs", err)
		return
	}
	writeJSON(w, http.StatusCreated, TransferDTO{
		TransferGroupID: groupID,
		Legs:            toTransactionDTOs(legs),
	})
}

// ReverseTransfer undoes both legs of a transfer as a unit.
func (h *Handler) ReverseTransfer(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	if err := h.Transfers.Reverse(r.Context(), groupID); err != nil {
		writeDomainError(w, "Failed to reverse transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CARD HANDLERS
// =============================================================================

// ListCards returns all cards.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Store.ListCards(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cards", err)
		return
	}

	dtos := make([]CardDTO, len(cards))
	for i, c := range cards {
		dtos[i] = toCardDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCard registers a credit card linked to a bank account.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limit, err := ledger.ParseMoney(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	card, err := h.Invoices.CreateCard(r.Context(), req.Name,
		ledger.AccountID(req.AccountID), limit, req.ClosingDay, req.DueDay)
	if err != nil {
		writeDomainError(w, "Failed to create card", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardDTO(card))
}

// GetCard returns a single card.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id := finance.CardID(chi.URLParam(r, "id"))

	card, err := h.Store.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get card", err)
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCardDTO(*card))
}

// CardSpend records committed spend against the card's invoice for the
// purchase date's billing period. No account balance moves here.
func (h *Handler) CardSpend(w http.ResponseWriter, r *http.Request) {
	id := finance.CardID(chi.URLParam(r, "id"))

	var req CardSpendRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	t, inv, err := h.Invoices.RecordCardSpend(r.Context(), id, amount, date, req.Description, req.Category)
	if err != nil {
		writeDomainError(w, "Failed to record card spend", err)
		return
	}

	card, err := h.Store.GetCard(r.Context(), id)
	if err != nil || card == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload card", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": toTransactionDTO(t),
		"invoice":     toInvoiceDTO(inv, card.DueDay, ledger.Today()),
		"card":        toCardDTO(*card),
	})
}

// ListInvoices returns all invoices for a card, oldest first.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id := finance.CardID(chi.URLParam(r, "id"))

	card, err := h.Store.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get card", err)
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}

	invoices, err := h.Invoices.ListInvoices(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	asOf := ledger.Today()
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, card.DueDay, asOf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OpenInvoice returns the invoice accepting spend as of a reference date
// (query param as_of, default today). The invoice may not be persisted yet.
func (h *Handler) OpenInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.CardID(chi.URLParam(r, "id"))

	asOf := ledger.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		var err error
		if asOf, err = ledger.ParseDate(s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'as_of' date (use YYYY-MM-DD)", err)
			return
		}
	}

	card, err := h.Store.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get card", err)
		return
	}
	if card == nil {
		writeError(w, http.StatusNotFound, "Card not found", nil)
		return
	}

	inv, err := h.Invoices.OpenInvoice(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, "Failed to resolve open invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, card.DueDay, asOf))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// GetInvoice returns a single invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}

	card, err := h.Store.GetCard(r.Context(), inv.CardID)
	if err != nil || card == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(*inv, card.DueDay, ledger.Today()))
}

// PayInvoice debits the full invoice total from a bank account and frees
// the card's committed limit.
func (h *Handler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))

	var req PayInvoiceRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := ledger.ParseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date (use YYYY-MM-DD)", err)
		return
	}

	inv, err := h.Invoices.PayInvoice(r.Context(), id, ledger.AccountID(req.AccountID), date)
	if err != nil {
		writeDomainError(w, "Failed to pay invoice", err)
		return
	}

	card, err := h.Store.GetCard(r.Context(), inv.CardID)
	if err != nil || card == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, card.DueDay, ledger.Today()))
}

// ReverseInvoicePayment undoes a payment: credits the debited account back
// and re-consumes the card limit.
func (h *Handler) ReverseInvoicePayment(w http.ResponseWriter, r *http.Request) {
	id := finance.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Invoices.ReverseInvoicePayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to reverse invoice payment", err)
		return
	}

	card, err := h.Store.GetCard(r.Context(), inv.CardID)
	if err != nil || card == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, card.DueDay, ledger.Today()))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientCreditLimit):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, ledger.ErrInvoiceAlreadyPaid),
		ledger.IsRetryable(err),
		errors.Is(err, ledger.ErrInconsistentTransferGroup),
		errors.Is(err, finance.ErrConflictingSeries):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err), finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
