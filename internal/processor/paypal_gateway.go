package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendora/payouts/internal/currency"
)

// PayPalGateway is a thin client for the PayPal Payouts API.
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewPayPalGateway creates a PayPalGateway.
func NewPayPalGateway(baseURL, clientID, clientSecret string, timeout time.Duration) *PayPalGateway {
	if baseURL == "" {
		baseURL = "https://api-m.paypal.com"
	}

	return &PayPalGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
	}
}

type paypalPayoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject"`
	} `json:"sender_batch_header"`
	Items []paypalPayoutItem `json:"items"`
}

type paypalPayoutItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Receiver     string `json:"receiver"`
	SenderItemID string `json:"sender_item_id"`
}

type paypalPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
	} `json:"batch_header"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CreateInternalTransfer is structurally impossible for PayPal: all
// PayPal-payable funds are already platform-held.
func (g *PayPalGateway) CreateInternalTransfer(_ context.Context, req InternalTransferRequest) (*TransferResult, error) {
	return nil, fmt.Errorf("paypal gateway does not support internal transfers (payment %s)", req.PaymentID)
}

// CreatePayout submits a single-item payout batch to the payee's PayPal
// email.
func (g *PayPalGateway) CreatePayout(ctx context.Context, req PayoutRequest) (*TransferResult, error) {
	var body paypalPayoutRequest
	body.SenderBatchHeader.SenderBatchID = req.PaymentID
	body.SenderBatchHeader.EmailSubject = "You have a payout"

	item := paypalPayoutItem{
		RecipientType: "EMAIL",
		Receiver:      req.Destination,
		SenderItemID:  req.PaymentID,
	}
	item.Amount.Value = currency.FormatDecimal(currency.CentsFromProcessor(req.AmountUnits, req.Currency), req.Currency)
	item.Amount.Currency = strings.ToUpper(req.Currency)
	body.Items = []paypalPayoutItem{item}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments/payouts", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(g.clientID, g.clientSecret)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &GatewayError{Message: err.Error(), Transient: true}
	}

	var resp paypalPayoutResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("invalid paypal response: %w", err)
	}

	if httpResp.StatusCode >= 400 || resp.Name != "" {
		return nil, gatewayErrorFromPayPal(resp.Name, resp.Message, httpResp.StatusCode)
	}

	return &TransferResult{TransferID: resp.BatchHeader.PayoutBatchID}, nil
}

// ReverseInternalTransfer is never valid for PayPal.
func (g *PayPalGateway) ReverseInternalTransfer(_ context.Context, transferID string) (*ReversalResult, error) {
	return nil, fmt.Errorf("paypal gateway does not support transfer reversals (transfer %s)", transferID)
}

func gatewayErrorFromPayPal(name, message string, status int) *GatewayError {
	cannotPay := false
	switch name {
	case "RECEIVER_UNREGISTERED", "RECEIVER_UNCONFIRMED", "RECEIVER_ACCOUNT_LOCKED", "RECEIVER_COUNTRY_NOT_ALLOWED":
		cannotPay = true
	}

	return &GatewayError{
		Code:      name,
		Message:   message,
		CannotPay: cannotPay,
		Transient: status >= 500,
	}
}
