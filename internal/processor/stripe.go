package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/domain"
)

// ErrUnsupportedEvent marks webhook payloads the processor does not handle.
// Handlers acknowledge these without applying any transition.
var ErrUnsupportedEvent = errors.New("unsupported webhook event type")

// Literal user-facing skip reasons reported by the Stripe payability check.
const (
	stripeMsgNoBankAccount  = "Payout skipped: no active bank account is linked to the Stripe account."
	stripeMsgPayoutInFlight = "Payout skipped: another payout is still processing."
)

// Shown on the payee's bank statement. Stripe caps descriptors at 22
// characters.
const stripeStatementDescriptor = "VENDORA PAYOUT"

// Stripe disburses through Stripe Connect: platform-held funds are staged
// onto the payee's connected account with an internal transfer, then the
// full amount is paid out to the payee's bank account.
type Stripe struct {
	gateway           Gateway
	converter         currency.Converter
	payments          PaymentUpdater
	credits           CreditWriter
	alerts            Alerter
	instantFeePercent int64
	logger            zerolog.Logger
}

// StripeConfig holds Stripe processor dependencies.
type StripeConfig struct {
	Gateway           Gateway
	Converter         currency.Converter
	Payments          PaymentUpdater
	Credits           CreditWriter
	Alerts            Alerter
	InstantFeePercent int64
	Logger            zerolog.Logger
}

// NewStripe creates the Stripe processor.
func NewStripe(cfg StripeConfig) *Stripe {
	return &Stripe{
		gateway:           cfg.Gateway,
		converter:         cfg.Converter,
		payments:          cfg.Payments,
		credits:           cfg.Credits,
		alerts:            cfg.Alerts,
		instantFeePercent: cfg.InstantFeePercent,
		logger:            cfg.Logger,
	}
}

// ID returns the processor id.
func (s *Stripe) ID() domain.ProcessorID { return domain.ProcessorStripe }

// IsUserPayable checks for an active connected account with a linked bank
// account and no other payment in flight.
func (s *Stripe) IsUserPayable(_ context.Context, ec EligibilityContext) (bool, string) {
	if ec.HasProcessingPayment {
		return false, stripeMsgPayoutInFlight
	}

	if s.SettlementAccount(ec.Accounts) == nil {
		return false, stripeMsgNoBankAccount
	}

	return true, ""
}

// SettlementAccount finds the payee-held connected account payouts are
// sent from.
func (s *Stripe) SettlementAccount(accounts []*domain.MerchantAccount) *domain.MerchantAccount {
	for _, a := range accounts {
		if a.Processor == domain.ProcessorStripe && a.Active() && a.HolderOfFunds == domain.HolderPayee && a.BankAccountID != "" {
			return a
		}
	}
	return nil
}

// IsBalancePayable accepts balances settled through an active Stripe
// merchant account whose settlement currency matches the balance's holding
// currency. Both platform-held and payee-held Stripe accounts qualify; the
// platform-held portion is routed through the internal transfer leg.
func (s *Stripe) IsBalancePayable(balance *domain.Balance, account *domain.MerchantAccount) bool {
	if account == nil || account.Processor != domain.ProcessorStripe || !account.Active() {
		return false
	}

	return strings.EqualFold(balance.HoldingCurrency, account.Currency)
}

// PreparePayment computes the payment's amount in the destination account's
// settlement currency, the platform-held internal sub-amount, and the bank
// account destination.
func (s *Stripe) PreparePayment(_ context.Context, payment *domain.Payment, payee *domain.Payee, account *domain.MerchantAccount, balances []*domain.Balance, accounts map[string]*domain.MerchantAccount) error {
	var totalCents int64
	for _, b := range balances {
		totalCents += b.AmountCents
	}

	amount, err := s.converter.Convert(totalCents, payee.Currency, account.Currency, payment.CutoffDate)
	if err != nil {
		return err
	}

	// Platform-held balances are staged through an internal transfer first.
	// A zero or negative platform-held sum is folded into the external
	// transfer with no internal leg.
	var platformHeldCents int64
	for _, b := range balances {
		holder := accounts[b.MerchantAccountID]
		if holder == nil || !holder.HeldByPlatform() {
			continue
		}

		converted, err := s.converter.Convert(b.HoldingAmountCents, b.HoldingCurrency, account.Currency, payment.CutoffDate)
		if err != nil {
			return err
		}
		platformHeldCents += converted
	}

	payment.Processor = domain.ProcessorStripe
	payment.MerchantAccountID = account.ID
	payment.Currency = account.Currency
	payment.AmountCents = amount
	payment.Destination = account.BankAccountID
	if platformHeldCents > 0 {
		payment.InternalAmountCents = platformHeldCents
	}

	return nil
}

// PerformPayment runs the two-phase disbursement protocol.
//
// Phase 1 (conditional): move the platform-held sub-amount from the
// platform's Stripe account to the payee's connected account. A phase-1
// failure aborts before any external transfer is attempted.
//
// Phase 2: pay the full amount out of the connected account to the payee's
// bank account. On a generic phase-2 failure the phase-1 transfer is
// reversed immediately, and a compensating credit records any difference
// between the amount sent and the amount the reversal actually returned.
func (s *Stripe) PerformPayment(ctx context.Context, payment *domain.Payment, account *domain.MerchantAccount) []error {
	logger := s.logger.With().
		Str("payment_id", payment.ID).
		Str("payee_id", payment.PayeeID).
		Int64("amount_cents", payment.AmountCents).
		Str("currency", payment.Currency).
		Logger()

	if payment.InternalAmountCents > 0 {
		result, err := s.gateway.CreateInternalTransfer(ctx, InternalTransferRequest{
			PaymentID:          payment.ID,
			DestinationAccount: account.ProcessorAccountID,
			AmountUnits:        currency.UnitsForProcessor(payment.InternalAmountCents, payment.Currency),
			Currency:           strings.ToLower(payment.Currency),
		})
		if err != nil {
			logger.Error().Err(err).Msg("internal transfer failed, aborting payout")
			s.alerts.Alert(ctx, "stripe internal transfer failed", map[string]any{
				"payment_id": payment.ID,
				"error":      err.Error(),
			})

			return s.fail(ctx, payment, failureReasonFor(err), err)
		}

		payment.InternalTransferID = result.TransferID
		if err := s.payments.Update(ctx, payment); err != nil {
			return []error{err}
		}

		logger.Info().Str("internal_transfer_id", result.TransferID).Msg("internal transfer created")
	}

	result, err := s.gateway.CreatePayout(ctx, PayoutRequest{
		PaymentID:           payment.ID,
		SourceAccount:       account.ProcessorAccountID,
		Destination:         payment.Destination,
		AmountUnits:         currency.UnitsForProcessor(s.disbursedCents(payment), payment.Currency),
		Currency:            strings.ToLower(payment.Currency),
		Instant:             payment.PayoutType == domain.PayoutInstant,
		StatementDescriptor: stripeStatementDescriptor,
	})
	if err != nil {
		return s.handlePayoutFailure(ctx, payment, account, err, logger)
	}

	if err := payment.MarkProcessing(result.TransferID); err != nil {
		return []error{err}
	}
	payment.ArrivalDate = result.ArrivalDate
	if err := s.payments.Update(ctx, payment); err != nil {
		return []error{err}
	}

	logger.Info().Str("external_transfer_id", result.TransferID).Msg("payout submitted")

	return nil
}

// disbursedCents applies the instant-payout fee: the requested amount
// reduced by the fee percentage, floor-rounded.
func (s *Stripe) disbursedCents(payment *domain.Payment) int64 {
	if payment.PayoutType != domain.PayoutInstant {
		return payment.AmountCents
	}

	fee := payment.AmountCents * s.instantFeePercent / 100
	return payment.AmountCents - fee
}

func (s *Stripe) handlePayoutFailure(ctx context.Context, payment *domain.Payment, account *domain.MerchantAccount, cause error, logger zerolog.Logger) []error {
	ge, _ := AsGatewayError(cause)

	// Connected account cannot receive funds: a distinct failure reason so
	// payee messaging can be specific. Any phase-1 transfer is left to the
	// asynchronous reversal flow.
	if ge != nil && ge.CannotPay {
		logger.Error().Err(cause).Msg("connected account cannot receive payouts")
		s.alerts.Alert(ctx, "stripe account cannot be paid", map[string]any{
			"payment_id": payment.ID,
			"payee_id":   payment.PayeeID,
			"error":      cause.Error(),
		})

		return s.fail(ctx, payment, domain.FailureCannotPay, cause)
	}

	errs := []error{cause}
	logger.Error().Err(cause).Msg("payout failed")

	if payment.HasInternalTransfer() {
		returnedCents, holdingCurrency, err := s.ReverseInternalTransfer(ctx, payment)
		if err != nil {
			logger.Error().Err(err).Msg("internal transfer reversal failed")
			s.alerts.Alert(ctx, "stripe internal transfer reversal failed", map[string]any{
				"payment_id":           payment.ID,
				"internal_transfer_id": payment.InternalTransferID,
				"error":                err.Error(),
			})
			errs = append(errs, err)
		} else if credit := domain.CreditForReversalDifference(payment, account, payment.InternalAmountCents, returnedCents, holdingCurrency); credit != nil {
			if err := s.credits.Create(ctx, credit); err != nil {
				errs = append(errs, err)
			} else {
				logger.Warn().
					Int64("sent_cents", payment.InternalAmountCents).
					Int64("returned_cents", returnedCents).
					Msg("reversal amount mismatch, compensating credit created")
			}
		}
	}

	if failErrs := s.fail(ctx, payment, failureReasonFor(cause), cause); len(failErrs) > 1 {
		errs = append(errs, failErrs[1:]...)
	}

	return errs
}

func (s *Stripe) fail(ctx context.Context, payment *domain.Payment, reason domain.FailureReason, cause error) []error {
	errs := []error{cause}

	if err := payment.MarkFailed(reason); err != nil {
		errs = append(errs, err)
		return errs
	}
	if err := s.payments.Update(ctx, payment); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ReverseInternalTransfer undoes the phase-1 transfer. The returned amount
// comes from the refund's balance transaction on the connected account, not
// from the original transfer amount: conversion on the connected account's
// side can shift the net figure.
func (s *Stripe) ReverseInternalTransfer(ctx context.Context, payment *domain.Payment) (int64, string, error) {
	if !payment.HasInternalTransfer() {
		return 0, "", fmt.Errorf("payment %s has no internal transfer to reverse", payment.ID)
	}

	result, err := s.gateway.ReverseInternalTransfer(ctx, payment.InternalTransferID)
	if err != nil {
		return 0, "", err
	}

	returnedCents := currency.CentsFromProcessor(result.AmountReturnedUnits, result.Currency)

	return returnedCents, strings.ToUpper(result.Currency), nil
}

// failureReasonFor maps a gateway error onto the payment failure taxonomy.
func failureReasonFor(err error) domain.FailureReason {
	ge, ok := AsGatewayError(err)
	if !ok {
		return domain.FailureProcessorError
	}

	switch ge.Code {
	case "insufficient_funds", "balance_insufficient":
		return domain.FailureInsufficientFunds
	case "account_closed", "bank_account_unusable":
		return domain.FailureAccountClosed
	default:
		return domain.FailureProcessorError
	}
}

// stripeEvent is the wire shape of a Stripe webhook payload.
type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Account string `json:"account"`
	Data    struct {
		Object stripePayout `json:"object"`
	} `json:"data"`
}

type stripePayout struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	ArrivalDate    int64             `json:"arrival_date"`
	Metadata       map[string]string `json:"metadata"`
	OriginalPayout string            `json:"original_payout"`
	FailureCode    string            `json:"failure_code"`
}

// ParseWebhook normalizes a Stripe payout event. Reversals arrive as
// distinct payout objects carrying an original_payout back-reference;
// correlation for those goes through the original payout.
func (s *Stripe) ParseWebhook(payload []byte, accountContext string) (*domain.PayoutEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid stripe webhook payload: %w", err)
	}

	var kind domain.PayoutEventKind
	switch event.Type {
	case "payout.paid":
		kind = domain.PayoutEventPaid
	case "payout.failed":
		kind = domain.PayoutEventFailed
	case "payout.canceled":
		kind = domain.PayoutEventCanceled
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.Type)
	}

	payout := event.Data.Object

	account := event.Account
	if account == "" {
		account = accountContext
	}

	var arrival string
	if payout.ArrivalDate > 0 {
		arrival = time.Unix(payout.ArrivalDate, 0).UTC().Format("2006-01-02")
	}

	return &domain.PayoutEvent{
		EventID:           event.ID,
		Processor:         domain.ProcessorStripe,
		Kind:              kind,
		TransferID:        payout.ID,
		PaymentExternalID: payout.Metadata["payment_id"],
		OriginalPayoutID:  payout.OriginalPayout,
		AmountCents:       currency.CentsFromProcessor(payout.Amount, payout.Currency),
		Currency:          strings.ToUpper(payout.Currency),
		FailureReason:     payout.FailureCode,
		ArrivalDate:       arrival,
		MerchantAccountID: account,
	}, nil
}
