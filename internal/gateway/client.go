package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DepositResult is the gateway's answer to a deposit-execute call. Raw
// keeps the unparsed response for the audit trail.
type DepositResult struct {
	Success bool
	Raw     string
}

// Client talks to the cashdesk service that owns the bookmaker-specific
// request signing. This side only sends a plain JSON call.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

func (c *Client) DepositExecute(ctx context.Context, bookmaker, accountID string, amount decimal.Decimal) (*DepositResult, error) {
	payload, err := json.Marshal(map[string]string{
		"bookmaker":  bookmaker,
		"account_id": accountID,
		"amount":     amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/cashdesk/deposit-execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return &DepositResult{Raw: string(raw)},
			fmt.Errorf("gateway: deposit-execute returned %d", resp.StatusCode)
	}

	var parsed struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.Warn("gateway response not parseable", zap.Error(err))
	}
	return &DepositResult{Success: parsed.Success, Raw: string(raw)}, nil
}
