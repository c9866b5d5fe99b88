package dto

import (
	"fmt"
	"time"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
)

// TriggerPayoutRequest represents a request to run a payout for one payee.
type TriggerPayoutRequest struct {
	// CutoffDate bounds the balances included, formatted 2006-01-02.
	// Defaults to today.
	CutoffDate string `json:"cutoff_date,omitempty"`
	// Processor restricts the run to one processor. Empty tries all.
	Processor string `json:"processor,omitempty"`
	// PayoutType is "standard" or "instant". Defaults to standard.
	PayoutType string `json:"payout_type,omitempty"`
	// BypassSuspension pays out a suspended payee anyway.
	BypassSuspension bool `json:"bypass_suspension,omitempty"`
}

// ToUseCaseInput converts to use case input. Admin-triggered runs carry the
// acting operator as note author.
func (r *TriggerPayoutRequest) ToUseCaseInput(payeeID, author string) (usecase.ProcessPayoutInput, error) {
	input := usecase.ProcessPayoutInput{
		PayeeID:          payeeID,
		CutoffDate:       time.Now().UTC().Truncate(24 * time.Hour),
		PayoutType:       domain.PayoutStandard,
		AdminInitiated:   true,
		BypassSuspension: r.BypassSuspension,
		Author:           author,
	}

	if r.CutoffDate != "" {
		cutoff, err := time.Parse("2006-01-02", r.CutoffDate)
		if err != nil {
			return input, fmt.Errorf("invalid cutoff_date: %w", err)
		}
		input.CutoffDate = cutoff
	}

	if r.Processor != "" {
		procID, err := domain.ParseProcessorID(r.Processor)
		if err != nil {
			return input, err
		}
		input.Processor = procID
	}

	switch r.PayoutType {
	case "", string(domain.PayoutStandard):
	case string(domain.PayoutInstant):
		input.PayoutType = domain.PayoutInstant
	default:
		return input, fmt.Errorf("invalid payout_type: %s", r.PayoutType)
	}

	return input, nil
}

// AddNoteRequest represents a request to record an operator note on a payee.
type AddNoteRequest struct {
	Content string `json:"content"`
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
