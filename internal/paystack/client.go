// Package paystack is a thin client for the Paystack REST API covering
// the endpoints the platform uses: transaction initialize/verify with
// subaccount splits, and subaccount creation for companion payouts.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zenofund/companion/internal/metrics"
	"github.com/zenofund/companion/internal/payment"
)

const defaultBaseURL = "https://api.paystack.co"

// Client calls the Paystack API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient creates a Paystack client. timeout bounds every API call.
func NewClient(secretKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
	}
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Reference         string `json:"reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Email             string `json:"email"`
	CallbackURL       string `json:"callback_url,omitempty"`
	Subaccount        string `json:"subaccount,omitempty"`
	TransactionCharge int64  `json:"transaction_charge,omitempty"`
	Bearer            string `json:"bearer,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize starts a checkout transaction. When the charge names a
// subaccount the platform fee rides as transaction_charge and the
// subaccount bears its own gateway fees.
func (c *Client) Initialize(ctx context.Context, charge payment.Charge) (*payment.Authorization, error) {
	req := initializeRequest{
		Reference:   charge.Reference,
		Amount:      charge.Amount,
		Currency:    charge.Currency,
		Email:       charge.Email,
		CallbackURL: charge.CallbackURL,
	}
	if charge.SubaccountCode != "" {
		req.Subaccount = charge.SubaccountCode
		req.TransactionCharge = charge.PlatformFee
		req.Bearer = "subaccount"
	}

	var data initializeData
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}
	return &payment.Authorization{Reference: data.Reference, URL: data.AuthorizationURL}, nil
}

type verifyData struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	PaidAt   string `json:"paid_at"`
}

// Verify checks a transaction's state by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	var data verifyData
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}

	result := &payment.VerifyResult{
		Reference: reference,
		Paid:      data.Status == "success",
		Amount:    data.Amount,
		Currency:  data.Currency,
	}
	if data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			result.PaidAt = t
		}
	}
	if result.PaidAt.IsZero() {
		result.PaidAt = time.Now().UTC()
	}
	return result, nil
}

// SubaccountRequest describes a companion payout destination.
type SubaccountRequest struct {
	BusinessName  string
	BankCode      string
	AccountNumber string
	// PercentageCharge is the share the subaccount keeps; the split on
	// each transaction overrides it, so 0 is fine.
	PercentageCharge float64
}

// CreateSubaccount registers a payout destination and returns its code.
func (c *Client) CreateSubaccount(ctx context.Context, req SubaccountRequest) (string, error) {
	body := map[string]any{
		"business_name":     req.BusinessName,
		"settlement_bank":   req.BankCode,
		"account_number":    req.AccountNumber,
		"percentage_charge": req.PercentageCharge,
	}
	var data struct {
		SubaccountCode string `json:"subaccount_code"`
	}
	if err := c.call(ctx, http.MethodPost, "/subaccount", body, &data); err != nil {
		return "", err
	}
	return data.SubaccountCode, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	operation := operationLabel(method, path)
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("paystack %s: status %d: %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !envelope.Status {
		return fmt.Errorf("paystack %s: status %d: %s", path, resp.StatusCode, envelope.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}

func operationLabel(method, path string) string {
	switch {
	case strings.HasPrefix(path, "/transaction/initialize"):
		return "initialize"
	case strings.HasPrefix(path, "/transaction/verify"):
		return "verify"
	case strings.HasPrefix(path, "/subaccount"):
		return "subaccount"
	}
	return strings.ToLower(method)
}
