// Package compliance talks to the vehicle compliance checker service.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/config"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// PurgePath is the cache invalidation endpoint of the compliance service.
const PurgePath = "/v1/cache-invalidations/licences-info"

const defaultTimeout = 5 * time.Second

// Compile-time check: Client implements domain.ComplianceCache.
var _ domain.ComplianceCache = (*Client)(nil)

// Client purges licence data cached by the compliance service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. Returns nil when no base URL is configured (purges
// disabled).
func New(cfg config.ComplianceConfig) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewFromClient(cfg.BaseURL, &http.Client{Timeout: timeout})
}

// NewFromClient creates a client with a caller supplied http.Client.
func NewFromClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type purgeRequest struct {
	VRMs []string `json:"vrms"`
}

// PurgeCache asks the compliance service to drop cached licence data of vrms.
func (c *Client) PurgeCache(ctx context.Context, vrms []string) error {
	if len(vrms) == 0 {
		return nil
	}

	payload, err := json.Marshal(purgeRequest{VRMs: vrms})
	if err != nil {
		return fmt.Errorf("encoding purge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PurgePath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("purging compliance cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("purging compliance cache: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	logger.Debug("compliance cache purged", zap.Int("vrms", len(vrms)))
	return nil
}
