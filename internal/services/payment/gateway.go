package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cafe-orders/internal/config"
)

// GatewayOrder is the gateway's record of a checkout
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayRefund is the gateway's record of a refund
type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Gateway is the online payment provider. Amounts are in minor units.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	Refund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]string) (*GatewayRefund, error)
}

// RazorpayClient talks to a Razorpay-compatible REST API with basic auth
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewRazorpayClient(cfg config.PaymentConfig) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayClient{
		baseURL:   strings.TrimRight(cfg.GatewayURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	payload := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	var out GatewayOrder
	if err := c.post(ctx, "/orders", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway returned an order without id")
	}
	return &out, nil
}

func (c *RazorpayClient) Refund(ctx context.Context, paymentID string, amountMinor int64, notes map[string]string) (*GatewayRefund, error) {
	payload := map[string]interface{}{
		"amount": amountMinor,
		"notes":  notes,
	}

	var out GatewayRefund
	if err := c.post(ctx, "/payments/"+paymentID+"/refund", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RazorpayClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gerr gatewayError
		if json.Unmarshal(raw, &gerr) == nil && gerr.Error.Description != "" {
			return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, gerr.Error.Description)
		}
		return fmt.Errorf("gateway error (%d)", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse gateway response: %w", err)
	}
	return nil
}
