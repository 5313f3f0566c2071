/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("1234.56"), never floats. Floats
  would reintroduce the rounding drift the decimal engine exists to
  prevent.

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through Handler.validate before touching domain logic. Cross-field
  rules (e.g. CARD spend requires a card id) live in the domain managers,
  not here.

SEE ALSO:
  - handlers.go: Uses these types
  - finance/types.go: The domain model these mirror
*/
package api

import (
	"github.com/warp/ledger-engine/finance"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Active         bool   `json:"active"`
	OpeningBalance string `json:"opening_balance"`
	Balance        string `json:"balance"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name           string `json:"name" validate:"required"`
	Kind           string `json:"kind" validate:"required,oneof=BANK CARD_CONTAINER"`
	OpeningBalance string `json:"opening_balance" validate:"omitempty,number"`
}

// RenameAccountRequest is the request to rename an account.
type RenameAccountRequest struct {
	Name string `json:"name" validate:"required"`
}

// =============================================================================
// LEDGER ENTRIES & STATEMENTS
// =============================================================================

// EntryDTO represents one ledger entry.
type EntryDTO struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	Date         string `json:"date"`
	Direction    string `json:"direction"`
	Amount       string `json:"amount"`
	Description  string `json:"description,omitempty"`
	BalanceAfter string `json:"balance_after"`
	Origin       string `json:"origin"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Seq          int64  `json:"seq"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// StatementDTO is a filtered window of an account's ledger plus summary.
type StatementDTO struct {
	AccountID string     `json:"account_id"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Entries   []EntryDTO `json:"entries"`
	Summary   SummaryDTO `json:"summary"`
}

// SummaryDTO aggregates a statement window.
type SummaryDTO struct {
	OpeningBalance string `json:"opening_balance"`
	ClosingBalance string `json:"closing_balance"`
	TotalIn        string `json:"total_in"`
	TotalOut       string `json:"total_out"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a domain transaction.
type TransactionDTO struct {
	ID            string `json:"id"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category"`
	PaymentMethod string `json:"payment_method"`
	CardID        string `json:"card_id,omitempty"`
	AccountID     string `json:"account_id,omitempty"`

	InstallmentGroupID string `json:"installment_group_id,omitempty"`
	InstallmentIndex   int    `json:"installment_index,omitempty"`
	InstallmentCount   int    `json:"installment_count,omitempty"`
	RecurrenceGroupID  string `json:"recurrence_group_id,omitempty"`
	RecurrenceCount    int    `json:"recurrence_count,omitempty"`
	TransferGroupID    string `json:"transfer_group_id,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
}

// CreateTransactionRequest is the request to create a transaction or series.
type CreateTransactionRequest struct {
	Direction     string `json:"direction" validate:"required,oneof=IN OUT"`
	Amount        string `json:"amount" validate:"required,number"`
	Date          string `json:"date" validate:"required"`
	Description   string `json:"description"`
	Category      string `json:"category" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CASH INSTANT_TRANSFER CARD INTER_ACCOUNT_TRANSFER"`
	CardID        string `json:"card_id"`
	AccountID     string `json:"account_id"`
	Installments  int    `json:"installments" validate:"gte=0,lte=120"`
	Recurrences   int    `json:"recurrences" validate:"gte=0,lte=120"`
}

// UpdateTransactionRequest carries the editable fields; nil leaves a field
// unchanged. Scope selects how far the edit reaches into a series.
type UpdateTransactionRequest struct {
	Scope       string  `json:"scope" validate:"required,oneof=unica all_installments all_recurrence"`
	Amount      *string `json:"amount" validate:"omitempty,number"`
	Date        *string `json:"date"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// =============================================================================
// TRANSFERS
// =============================================================================

// TransferRequest is the request for an atomic inter-account transfer.
type TransferRequest struct {
	SourceAccountID string `json:"source_account_id" validate:"required"`
	DestAccountID   string `json:"dest_account_id" validate:"required"`
	Amount          string `json:"amount" validate:"required,number"`
	Date            string `json:"date" validate:"required"`
	Description     string `json:"description"`
}

// TransferDTO is the response for a created transfer.
type TransferDTO struct {
	TransferGroupID string           `json:"transfer_group_id"`
	Legs            []TransactionDTO `json:"legs"`
}

// =============================================================================
// CARDS & INVOICES
// =============================================================================

// CardDTO represents a credit card.
type CardDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AccountID      string `json:"account_id"`
	Limit          string `json:"limit"`
	AvailableLimit string `json:"available_limit"`
	ClosingDay     int    `json:"closing_day"`
	DueDay         int    `json:"due_day"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateCardRequest is the request to register a card.
type CreateCardRequest struct {
	Name       string `json:"name" validate:"required"`
	AccountID  string `json:"account_id" validate:"required"`
	Limit      string `json:"limit" validate:"required,number"`
	ClosingDay int    `json:"closing_day" validate:"required,gte=1,lte=31"`
	DueDay     int    `json:"due_day" validate:"required,gte=1,lte=31"`
}

// CardSpendRequest is the request to record card spend on an invoice.
type CardSpendRequest struct {
	Amount      string `json:"amount" validate:"required,number"`
	Date        string `json:"date" validate:"required"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required"`
}

// InvoiceDTO represents one billing period of committed card spend.
type InvoiceDTO struct {
	ID          string `json:"id"`
	CardID      string `json:"card_id"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	DueDate     string `json:"due_date"`
	Total       string `json:"total"`
	Status      string `json:"status"`
	PaidAt      string `json:"paid_at,omitempty"`
}

// PayInvoiceRequest is the request to pay an invoice from a bank account.
type PayInvoiceRequest struct {
	AccountID   string `json:"account_id" validate:"required"`
	PaymentDate string `json:"payment_date" validate:"required"`
}

// =============================================================================
// ERRORS & MAPPERS
// =============================================================================

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:             string(a.ID),
		Name:           a.Name,
		Kind:           string(a.Kind),
		Active:         a.Active,
		OpeningBalance: a.OpeningBalance.StringFixed(2),
		Balance:        a.Balance.StringFixed(2),
		CreatedAt:      formatTime(a.CreatedAt),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:           string(e.ID),
		AccountID:    string(e.AccountID),
		Date:         e.Date.String(),
		Direction:    string(e.Direction),
		Amount:       e.Amount.StringFixed(2),
		Description:  e.Description,
		BalanceAfter: e.BalanceAfter.StringFixed(2),
		Origin:       string(e.Origin),
		ReferenceID:  e.ReferenceID,
		Seq:          e.Seq,
		CreatedAt:    formatTime(e.CreatedAt),
	}
}

func toTransactionDTO(t finance.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:                 string(t.ID),
		Direction:          string(t.Direction),
		Amount:             t.Amount.StringFixed(2),
		Date:               t.Date.String(),
		Description:        t.Description,
		Category:           t.Category,
		PaymentMethod:      string(t.PaymentMethod),
		CardID:             string(t.CardID),
		AccountID:          string(t.AccountID),
		InstallmentGroupID: t.InstallmentGroupID,
		InstallmentIndex:   t.InstallmentIndex,
		InstallmentCount:   t.InstallmentCount,
		RecurrenceGroupID:  t.RecurrenceGroupID,
		RecurrenceCount:    t.RecurrenceCount,
		TransferGroupID:    t.TransferGroupID,
		CreatedAt:          formatTime(t.CreatedAt),
	}
}

func toTransactionDTOs(txs []finance.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	return dtos
}

func toCardDTO(c finance.Card) CardDTO {
	return CardDTO{
		ID:             string(c.ID),
		Name:           c.Name,
		AccountID:      string(c.AccountID),
		Limit:          c.Limit.StringFixed(2),
		AvailableLimit: c.AvailableLimit.StringFixed(2),
		ClosingDay:     c.ClosingDay,
		DueDay:         c.DueDay,
		Active:         c.Active,
		CreatedAt:      formatTime(c.CreatedAt),
	}
}

func toInvoiceDTO(inv finance.Invoice, dueDay int, asOf ledger.Date) InvoiceDTO {
	dto := InvoiceDTO{
		ID:          string(inv.ID),
		CardID:      string(inv.CardID),
		Year:        inv.Year,
		Month:       int(inv.Month),
		PeriodStart: inv.Period.Start.String(),
		PeriodEnd:   inv.Period.End.String(),
		DueDate:     finance.DueDate(inv.Period, dueDay).String(),
		Total:       inv.Total.StringFixed(2),
		Status:      string(inv.Status(asOf)),
	}
	if inv.PaidAt != nil {
		dto.PaidAt = formatTime(*inv.PaidAt)
	}
	return dto
}
