package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vendora/payouts/internal/currency"
	"github.com/vendora/payouts/internal/domain"
)

const (
	paypalMsgNoPayoutEmail  = "Payout skipped: no PayPal payout email is on file."
	paypalMsgPayoutInFlight = "Payout skipped: another payout is still processing."
)

// PayPal disburses through the PayPal Payouts API. All PayPal-payable funds
// are held by the platform, so there is never an internal transfer leg: the
// whole amount moves in a single external payout to the payee's PayPal
// email.
type PayPal struct {
	gateway   Gateway
	converter currency.Converter
	payments  PaymentUpdater
	alerts    Alerter
	logger    zerolog.Logger
}

// PayPalConfig holds PayPal processor dependencies.
type PayPalConfig struct {
	Gateway   Gateway
	Converter currency.Converter
	Payments  PaymentUpdater
	Alerts    Alerter
	Logger    zerolog.Logger
}

// NewPayPal creates the PayPal processor.
func NewPayPal(cfg PayPalConfig) *PayPal {
	return &PayPal{
		gateway:   cfg.Gateway,
		converter: cfg.Converter,
		payments:  cfg.Payments,
		alerts:    cfg.Alerts,
		logger:    cfg.Logger,
	}
}

// ID returns the processor id.
func (p *PayPal) ID() domain.ProcessorID { return domain.ProcessorPayPal }

// IsUserPayable requires a payout email and no payment already in flight.
func (p *PayPal) IsUserPayable(_ context.Context, ec EligibilityContext) (bool, string) {
	if ec.HasProcessingPayment {
		return false, paypalMsgPayoutInFlight
	}

	if ec.Payee.PaypalPayoutEmail == "" || p.SettlementAccount(ec.Accounts) == nil {
		return false, paypalMsgNoPayoutEmail
	}

	return true, ""
}

// SettlementAccount picks the platform-held PayPal account payouts settle
// through.
func (p *PayPal) SettlementAccount(accounts []*domain.MerchantAccount) *domain.MerchantAccount {
	for _, a := range accounts {
		if a.Processor == domain.ProcessorPayPal && a.Active() && a.HeldByPlatform() {
			return a
		}
	}
	return nil
}

// IsBalancePayable accepts platform-held PayPal balances whose holding
// currency matches the account's settlement currency.
func (p *PayPal) IsBalancePayable(balance *domain.Balance, account *domain.MerchantAccount) bool {
	if account == nil || account.Processor != domain.ProcessorPayPal || !account.Active() || !account.HeldByPlatform() {
		return false
	}

	return strings.EqualFold(balance.HoldingCurrency, account.Currency)
}

// PreparePayment sets the payment amount in the PayPal settlement currency
// and the payout email destination. InternalAmountCents stays zero.
func (p *PayPal) PreparePayment(_ context.Context, payment *domain.Payment, payee *domain.Payee, account *domain.MerchantAccount, balances []*domain.Balance, _ map[string]*domain.MerchantAccount) error {
	if payee.PaypalPayoutEmail == "" {
		return domain.ErrMissingDestination
	}

	var totalCents int64
	for _, b := range balances {
		totalCents += b.AmountCents
	}

	amount, err := p.converter.Convert(totalCents, payee.Currency, account.Currency, payment.CutoffDate)
	if err != nil {
		return err
	}

	payment.Processor = domain.ProcessorPayPal
	payment.MerchantAccountID = account.ID
	payment.Currency = account.Currency
	payment.AmountCents = amount
	payment.Destination = payee.PaypalPayoutEmail

	return nil
}

// PerformPayment submits a single payout. PayPal has no connected-account
// staging, so this is the external phase only.
func (p *PayPal) PerformPayment(ctx context.Context, payment *domain.Payment, account *domain.MerchantAccount) []error {
	logger := p.logger.With().
		Str("payment_id", payment.ID).
		Str("payee_id", payment.PayeeID).
		Int64("amount_cents", payment.AmountCents).
		Logger()

	result, err := p.gateway.CreatePayout(ctx, PayoutRequest{
		PaymentID:   payment.ID,
		Destination: payment.Destination,
		AmountUnits: currency.UnitsForProcessor(payment.AmountCents, payment.Currency),
		Currency:    strings.ToUpper(payment.Currency),
	})
	if err != nil {
		logger.Error().Err(err).Msg("paypal payout failed")

		if ge, ok := AsGatewayError(err); ok && ge.CannotPay {
			p.alerts.Alert(ctx, "paypal account cannot be paid", map[string]any{
				"payment_id": payment.ID,
				"payee_id":   payment.PayeeID,
				"error":      err.Error(),
			})

			return p.fail(ctx, payment, domain.FailureCannotPay, err)
		}

		return p.fail(ctx, payment, failureReasonFor(err), err)
	}

	if err := payment.MarkProcessing(result.TransferID); err != nil {
		return []error{err}
	}
	payment.ArrivalDate = result.ArrivalDate
	if err := p.payments.Update(ctx, payment); err != nil {
		return []error{err}
	}

	logger.Info().Str("external_transfer_id", result.TransferID).Msg("paypal payout submitted")

	return nil
}

func (p *PayPal) fail(ctx context.Context, payment *domain.Payment, reason domain.FailureReason, cause error) []error {
	errs := []error{cause}

	if err := payment.MarkFailed(reason); err != nil {
		errs = append(errs, err)
		return errs
	}
	if err := p.payments.Update(ctx, payment); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// ReverseInternalTransfer is structurally impossible for PayPal payouts.
func (p *PayPal) ReverseInternalTransfer(_ context.Context, payment *domain.Payment) (int64, string, error) {
	return 0, "", fmt.Errorf("paypal payment %s has no internal transfer leg", payment.ID)
}

// paypalEvent is the wire shape of a PayPal Payouts webhook payload.
type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		PayoutItemID string `json:"payout_item_id"`
		PayoutItem   struct {
			Amount struct {
				Currency string `json:"currency"`
				Value    string `json:"value"`
			} `json:"amount"`
			SenderItemID string `json:"sender_item_id"`
			Receiver     string `json:"receiver"`
		} `json:"payout_item"`
		OriginalPayoutItemID string `json:"original_payout_item_id"`
		Errors               struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"resource"`
}

// ParseWebhook normalizes a PayPal payouts-item event.
func (p *PayPal) ParseWebhook(payload []byte, accountContext string) (*domain.PayoutEvent, error) {
	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid paypal webhook payload: %w", err)
	}

	var kind domain.PayoutEventKind
	switch event.EventType {
	case "PAYMENT.PAYOUTS-ITEM.SUCCEEDED":
		kind = domain.PayoutEventPaid
	case "PAYMENT.PAYOUTS-ITEM.FAILED", "PAYMENT.PAYOUTS-ITEM.BLOCKED", "PAYMENT.PAYOUTS-ITEM.RETURNED":
		kind = domain.PayoutEventFailed
	case "PAYMENT.PAYOUTS-ITEM.CANCELED", "PAYMENT.PAYOUTS-ITEM.DENIED":
		kind = domain.PayoutEventCanceled
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, event.EventType)
	}

	item := event.Resource.PayoutItem

	amountCents, err := parsePaypalAmount(item.Amount.Value, item.Amount.Currency)
	if err != nil {
		return nil, err
	}

	return &domain.PayoutEvent{
		EventID:           event.ID,
		Processor:         domain.ProcessorPayPal,
		Kind:              kind,
		TransferID:        event.Resource.PayoutItemID,
		PaymentExternalID: item.SenderItemID,
		OriginalPayoutID:  event.Resource.OriginalPayoutItemID,
		AmountCents:       amountCents,
		Currency:          strings.ToUpper(item.Amount.Currency),
		FailureReason:     event.Resource.Errors.Name,
		MerchantAccountID: accountContext,
	}, nil
}

// parsePaypalAmount converts PayPal's decimal string amount into cents.
func parsePaypalAmount(value, code string) (int64, error) {
	if value == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid paypal amount %q: %w", value, err)
	}

	if currency.IsZeroDecimal(code) {
		return d.Mul(decimal.NewFromInt(100)).IntPart(), nil
	}

	return d.Shift(2).IntPart(), nil
}
