package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeGateway is a thin client for the Stripe transfer/payout endpoints.
// Only the calls the disbursement protocol needs are implemented.
type StripeGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewStripeGateway creates a StripeGateway.
func NewStripeGateway(baseURL, secretKey string, timeout time.Duration) *StripeGateway {
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}

	return &StripeGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type stripeTransferResponse struct {
	ID          string `json:"id"`
	ArrivalDate int64  `json:"arrival_date"`
	Error       *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateInternalTransfer moves platform funds onto a connected account.
func (g *StripeGateway) CreateInternalTransfer(ctx context.Context, req InternalTransferRequest) (*TransferResult, error) {
	form := url.Values{
		"amount":      {strconv.FormatInt(req.AmountUnits, 10)},
		"currency":    {req.Currency},
		"destination": {req.DestinationAccount},
	}
	form.Set("metadata[payment_id]", req.PaymentID)

	resp, err := g.post(ctx, "/v1/transfers", form, "")
	if err != nil {
		return nil, err
	}

	return &TransferResult{TransferID: resp.ID}, nil
}

// CreatePayout pays the connected account's balance out to its bank
// account.
func (g *StripeGateway) CreatePayout(ctx context.Context, req PayoutRequest) (*TransferResult, error) {
	form := url.Values{
		"amount":   {strconv.FormatInt(req.AmountUnits, 10)},
		"currency": {req.Currency},
	}
	if req.Destination != "" {
		form.Set("destination", req.Destination)
	}
	if req.Instant {
		form.Set("method", "instant")
	}
	if req.StatementDescriptor != "" {
		form.Set("statement_descriptor", req.StatementDescriptor)
	}
	form.Set("metadata[payment_id]", req.PaymentID)

	resp, err := g.post(ctx, "/v1/payouts", form, req.SourceAccount)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{TransferID: resp.ID}
	if resp.ArrivalDate > 0 {
		t := time.Unix(resp.ArrivalDate, 0).UTC()
		result.ArrivalDate = &t
	}

	return result, nil
}

type stripeReversalResponse struct {
	ID                 string `json:"id"`
	BalanceTransaction struct {
		Net      int64  `json:"net"`
		Currency string `json:"currency"`
	} `json:"balance_transaction"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ReverseInternalTransfer reverses a transfer and reads the net returned
// amount from the destination-side balance transaction.
func (g *StripeGateway) ReverseInternalTransfer(ctx context.Context, transferID string) (*ReversalResult, error) {
	path := fmt.Sprintf("/v1/transfers/%s/reversals", url.PathEscape(transferID))
	form := url.Values{"expand[]": {"balance_transaction"}}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	g.decorate(httpReq, "")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}

	var resp stripeReversalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid stripe reversal response: %w", err)
	}
	if resp.Error != nil {
		return nil, gatewayErrorFromStripe(resp.Error.Code, resp.Error.Message, httpResp.StatusCode)
	}

	// The refund debits the connected account, so the net figure is
	// negative from its perspective; the amount returned to the platform is
	// its magnitude.
	returned := resp.BalanceTransaction.Net
	if returned < 0 {
		returned = -returned
	}

	return &ReversalResult{
		ReversalID:          resp.ID,
		AmountReturnedUnits: returned,
		Currency:            resp.BalanceTransaction.Currency,
	}, nil
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, stripeAccount string) (*stripeTransferResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	g.decorate(httpReq, stripeAccount)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}

	var resp stripeTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid stripe response: %w", err)
	}
	if resp.Error != nil {
		return nil, gatewayErrorFromStripe(resp.Error.Code, resp.Error.Message, httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		return nil, &GatewayError{Message: fmt.Sprintf("stripe returned status %d", httpResp.StatusCode), Transient: httpResp.StatusCode >= 500}
	}

	return &resp, nil
}

func (g *StripeGateway) decorate(req *http.Request, stripeAccount string) {
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if stripeAccount != "" {
		req.Header.Set("Stripe-Account", stripeAccount)
	}
}

// gatewayErrorFromStripe classifies a Stripe error response. Accounts that
// cannot receive funds (onboarding incomplete, payouts disabled) map to
// CannotPay.
func gatewayErrorFromStripe(code, message string, status int) *GatewayError {
	cannotPay := false
	switch code {
	case "account_invalid", "payouts_not_allowed", "account_information_mismatch", "instant_payouts_unsupported":
		cannotPay = true
	}

	return &GatewayError{
		Code:      code,
		Message:   message,
		CannotPay: cannotPay,
		Transient: status >= 500,
	}
}
