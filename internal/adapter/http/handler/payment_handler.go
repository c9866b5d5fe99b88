package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/payouts/internal/adapter/http/dto"
	"github.com/vendora/payouts/internal/usecase"
)

// PaymentHandler handles payment-related HTTP requests.
type PaymentHandler struct {
	payoutUC *usecase.PayoutUseCase
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payoutUC *usecase.PayoutUseCase) *PaymentHandler {
	return &PaymentHandler{payoutUC: payoutUC}
}

// Get retrieves a payment by ID.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing payment ID", "")
		return
	}

	payment, err := h.payoutUC.GetPayment(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get payment", err.Error())

		return
	}

	writeJSON(w, http.StatusOK, dto.PaymentFromDomain(payment))
}
