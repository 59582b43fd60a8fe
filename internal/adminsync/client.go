package adminsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client mirrors deposit status changes to the external admin backend.
// Callers treat every failure as non-fatal.
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
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *Client) SyncCompleted(ctx context.Context, requestID uuid.UUID) error {
	if c.baseURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"status": "completed"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/admin/deposits/%s/status", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("adminsync: status mirror returned %d", resp.StatusCode)
	}
	return nil
}
