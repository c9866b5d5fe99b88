package dto

import (
	"time"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
)

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID                  string    `json:"id"`
	PayeeID             string    `json:"payee_id"`
	MerchantAccountID   string    `json:"merchant_account_id"`
	Processor           string    `json:"processor"`
	AmountCents         int64     `json:"amount_cents"`
	Currency            string    `json:"currency"`
	Destination         string    `json:"destination"`
	State               string    `json:"state"`
	PayoutType          string    `json:"payout_type"`
	CutoffDate          string    `json:"cutoff_date"`
	ExternalTransferID  string    `json:"external_transfer_id,omitempty"`
	InternalTransferID  string    `json:"internal_transfer_id,omitempty"`
	InternalAmountCents int64     `json:"internal_amount_cents,omitempty"`
	FailureReason       string    `json:"failure_reason,omitempty"`
	ArrivalDate         string    `json:"arrival_date,omitempty"`
	ReversalPending     bool      `json:"reversal_pending,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PaymentFromDomain converts a domain payment to a response.
func PaymentFromDomain(p *domain.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:                  p.ID,
		PayeeID:             p.PayeeID,
		MerchantAccountID:   p.MerchantAccountID,
		Processor:           string(p.Processor),
		AmountCents:         p.AmountCents,
		Currency:            p.Currency,
		Destination:         p.Destination,
		State:               string(p.State),
		PayoutType:          string(p.PayoutType),
		CutoffDate:          p.CutoffDate.Format("2006-01-02"),
		ExternalTransferID:  p.ExternalTransferID,
		InternalTransferID:  p.InternalTransferID,
		InternalAmountCents: p.InternalAmountCents,
		FailureReason:       string(p.FailureReason),
		ReversalPending:     p.ReversalPending,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}

	if p.ArrivalDate != nil {
		resp.ArrivalDate = p.ArrivalDate.Format("2006-01-02")
	}

	return resp
}

// PaymentsFromDomain converts domain payments to responses.
func PaymentsFromDomain(payments []*domain.Payment) []*PaymentResponse {
	result := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		result[i] = PaymentFromDomain(p)
	}
	return result
}

// ListPaymentsResponse wraps a page of payments.
type ListPaymentsResponse struct {
	Payments []*PaymentResponse `json:"payments"`
	Total    int64              `json:"total"`
}

// PayoutRunResponse represents the outcome of a triggered payout run.
type PayoutRunResponse struct {
	Skipped bool             `json:"skipped"`
	Reason  string           `json:"reason,omitempty"`
	Payment *PaymentResponse `json:"payment,omitempty"`
}

// PayoutRunFromResult converts a use case payout result to a response.
func PayoutRunFromResult(result *usecase.PayoutResult) *PayoutRunResponse {
	resp := &PayoutRunResponse{
		Skipped: result.Skipped,
		Reason:  result.Reason,
	}
	if result.Payment != nil {
		resp.Payment = PaymentFromDomain(result.Payment)
	}
	return resp
}

// EligibilityResponse represents an eligibility check in API responses.
type EligibilityResponse struct {
	Payable            bool   `json:"payable"`
	Reason             string `json:"reason,omitempty"`
	Processor          string `json:"processor,omitempty"`
	PayableCents       int64  `json:"payable_cents"`
	Currency           string `json:"currency,omitempty"`
	MinimumPayoutCents int64  `json:"minimum_payout_cents"`
	UnpaidBalances     int    `json:"unpaid_balances"`
}

// EligibilityFromResult converts a use case eligibility result to a response.
func EligibilityFromResult(result *usecase.EligibilityResult) *EligibilityResponse {
	resp := &EligibilityResponse{
		Payable:   result.Payable,
		Reason:    result.Reason,
		Processor: string(result.Processor),
	}
	if result.Snapshot != nil {
		resp.PayableCents = result.Snapshot.PayableCents
		resp.Currency = result.Snapshot.Currency
		resp.MinimumPayoutCents = result.Snapshot.MinimumPayoutCents
		resp.UnpaidBalances = result.Snapshot.UnpaidBalances
	}
	return resp
}

// EstimateResponse represents a payout estimate in API responses.
type EstimateResponse struct {
	PayeeID           string    `json:"payee_id"`
	Currency          string    `json:"currency"`
	TotalCents        int64     `json:"total_cents"`
	PlatformHeldCents int64     `json:"platform_held_cents"`
	PayeeHeldCents    int64     `json:"payee_held_cents"`
	BalanceCount      int       `json:"balance_count"`
	CutoffDate        string    `json:"cutoff_date"`
	ComputedAt        time.Time `json:"computed_at"`
}

// EstimateFromUseCase converts a use case estimate to a response.
func EstimateFromUseCase(e *usecase.PayoutEstimate) *EstimateResponse {
	return &EstimateResponse{
		PayeeID:           e.PayeeID,
		Currency:          e.Currency,
		TotalCents:        e.TotalCents,
		PlatformHeldCents: e.PlatformHeldCents,
		PayeeHeldCents:    e.PayeeHeldCents,
		BalanceCount:      e.BalanceCount,
		CutoffDate:        e.CutoffDate.Format("2006-01-02"),
		ComputedAt:        e.ComputedAt,
	}
}

// CreditResponse represents a compensating credit in API responses.
type CreditResponse struct {
	ID                      string    `json:"id"`
	PayeeID                 string    `json:"payee_id"`
	MerchantAccountID       string    `json:"merchant_account_id"`
	PaymentID               string    `json:"payment_id,omitempty"`
	AmountCents             int64     `json:"amount_cents"`
	HoldingAmountGrossCents int64     `json:"holding_amount_gross_cents"`
	HoldingAmountNetCents   int64     `json:"holding_amount_net_cents"`
	HoldingAmountFeeCents   int64     `json:"holding_amount_fee_cents"`
	HoldingCurrency         string    `json:"holding_currency"`
	CreatedAt               time.Time `json:"created_at"`
}

// CreditFromDomain converts a domain credit to a response.
func CreditFromDomain(c *domain.Credit) *CreditResponse {
	return &CreditResponse{
		ID:                      c.ID,
		PayeeID:                 c.PayeeID,
		MerchantAccountID:       c.MerchantAccountID,
		PaymentID:               c.PaymentID,
		AmountCents:             c.AmountCents,
		HoldingAmountGrossCents: c.BalanceTransaction.HoldingAmountGrossCents,
		HoldingAmountNetCents:   c.BalanceTransaction.HoldingAmountNetCents,
		HoldingAmountFeeCents:   c.BalanceTransaction.HoldingAmountFeeCents,
		HoldingCurrency:         c.BalanceTransaction.HoldingCurrency,
		CreatedAt:               c.CreatedAt,
	}
}

// CreditsFromDomain converts domain credits to responses.
func CreditsFromDomain(credits []*domain.Credit) []*CreditResponse {
	result := make([]*CreditResponse, len(credits))
	for i, c := range credits {
		result[i] = CreditFromDomain(c)
	}
	return result
}

// NoteResponse represents a payee note in API responses.
type NoteResponse struct {
	ID        string    `json:"id"`
	PayeeID   string    `json:"payee_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteFromDomain converts a domain payee note to a response.
func NoteFromDomain(n *domain.PayeeNote) *NoteResponse {
	return &NoteResponse{
		ID:        n.ID,
		PayeeID:   n.PayeeID,
		Author:    n.Author,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
	}
}

// NotesFromDomain converts domain payee notes to responses.
func NotesFromDomain(notes []*domain.PayeeNote) []*NoteResponse {
	result := make([]*NoteResponse, len(notes))
	for i, n := range notes {
		result[i] = NoteFromDomain(n)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
