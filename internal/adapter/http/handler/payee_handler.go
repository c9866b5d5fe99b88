package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/payouts/internal/adapter/http/dto"
	"github.com/vendora/payouts/internal/adapter/http/middleware"
	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/usecase"
)

// PayeeHandler handles payee-scoped HTTP requests: eligibility, estimates,
// notes, credits and payout triggers.
type PayeeHandler struct {
	payoutUC      *usecase.PayoutUseCase
	balanceUC     *usecase.BalanceUseCase
	eligibilityUC *usecase.EligibilityUseCase
	reconUC       *usecase.ReconciliationUseCase
}

// NewPayeeHandler creates a new PayeeHandler.
func NewPayeeHandler(
	payoutUC *usecase.PayoutUseCase,
	balanceUC *usecase.BalanceUseCase,
	eligibilityUC *usecase.EligibilityUseCase,
	reconUC *usecase.ReconciliationUseCase,
) *PayeeHandler {
	return &PayeeHandler{
		payoutUC:      payoutUC,
		balanceUC:     balanceUC,
		eligibilityUC: eligibilityUC,
		reconUC:       reconUC,
	}
}

// Eligibility reports whether the payee is payable for a cutoff date,
// without mutating anything.
func (h *PayeeHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.payee(w, r)
	if !ok {
		return
	}

	cutoff, err := parseCutoffQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cutoff", err.Error())
		return
	}

	var procID domain.ProcessorID
	if p := r.URL.Query().Get("processor"); p != "" {
		procID, err = domain.ParseProcessorID(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown processor", err.Error())
			return
		}
	}

	result, err := h.eligibilityUC.Check(r.Context(), payee, cutoff, procID, usecase.EligibilityOptions{
		AdminInitiated:   r.URL.Query().Get("admin") == "true",
		BypassSuspension: r.URL.Query().Get("bypass_suspension") == "true",
	})
	if err != nil {
		writeError(w, mapDomainError(err), "failed to check eligibility", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EligibilityFromResult(result))
}

// Estimate previews what a payout run would disburse for the payee.
func (h *PayeeHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.payee(w, r)
	if !ok {
		return
	}

	cutoff, err := parseCutoffQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cutoff", err.Error())
		return
	}

	var procID domain.ProcessorID
	if p := r.URL.Query().Get("processor"); p != "" {
		procID, err = domain.ParseProcessorID(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown processor", err.Error())
			return
		}
	}

	estimate, err := h.balanceUC.Estimate(r.Context(), payee, cutoff, procID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to compute estimate", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EstimateFromUseCase(estimate))
}

// TriggerPayout runs the payout pipeline for the payee now.
func (h *PayeeHandler) TriggerPayout(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	var req dto.TriggerPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(payeeID, authorFrom(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payout request", err.Error())
		return
	}

	result, err := h.payoutUC.ProcessPayout(r.Context(), input)
	if err != nil {
		status := mapDomainError(err)
		if result != nil && result.Payment != nil {
			// The payment was built but disbursement failed; the caller gets
			// the failed payment alongside the error status.
			writeJSON(w, status, dto.PayoutRunFromResult(result))
			return
		}
		writeError(w, status, "failed to process payout", err.Error())

		return
	}

	status := http.StatusCreated
	if result.Skipped {
		status = http.StatusOK
	}

	writeJSON(w, status, dto.PayoutRunFromResult(result))
}

// PausePayouts pauses the payee's payouts on behalf of an operator.
func (h *PayeeHandler) PausePayouts(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	if err := h.payoutUC.PausePayouts(r.Context(), payeeID, domain.PausedByOperator, authorFrom(r)); err != nil {
		writeError(w, mapDomainError(err), "failed to pause payouts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumePayouts clears the payee's payout pause.
func (h *PayeeHandler) ResumePayouts(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	if err := h.payoutUC.ResumePayouts(r.Context(), payeeID, authorFrom(r)); err != nil {
		writeError(w, mapDomainError(err), "failed to resume payouts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// ListPayments lists the payee's payments.
func (h *PayeeHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	payments, err := h.payoutUC.ListPaymentsByPayee(r.Context(), usecase.ListPaymentsByPayeeInput{
		PayeeID: payeeID,
		Limit:   parseIntQuery(r, "limit", 20),
		Offset:  parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list payments", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ListPaymentsResponse{
		Payments: dto.PaymentsFromDomain(payments),
		Total:    int64(len(payments)),
	})
}

// ListCredits lists the payee's compensating credits.
func (h *PayeeHandler) ListCredits(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	credits, err := h.reconUC.ListCreditsByPayee(r.Context(), payeeID,
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list credits", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditsFromDomain(credits))
}

// ListNotes lists the payee's notes, newest first.
func (h *PayeeHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	notes, err := h.payoutUC.ListNotesByPayee(r.Context(), payeeID,
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.NotesFromDomain(notes))
}

// AddNote records an operator note on the payee.
func (h *PayeeHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return
	}

	var req dto.AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "note content is required", "")
		return
	}

	if err := h.payoutUC.AddNote(r.Context(), payeeID, req.Content, authorFrom(r)); err != nil {
		writeError(w, mapDomainError(err), "failed to add note", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *PayeeHandler) payee(w http.ResponseWriter, r *http.Request) (*domain.Payee, bool) {
	payeeID := chi.URLParam(r, "id")
	if payeeID == "" {
		writeError(w, http.StatusBadRequest, "missing payee ID", "")
		return nil, false
	}

	payee, err := h.payoutUC.GetPayee(r.Context(), payeeID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get payee", err.Error())
		return nil, false
	}

	return payee, true
}

// authorFrom resolves the acting operator for note attribution.
func authorFrom(r *http.Request) string {
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}
