package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flap/internal/logging"
)

// Client delivers finished frames to a display device.
type Client interface {
	SendLayout(ctx context.Context, layout Layout) error
}

// HTTPConfig configures the board's local HTTP API client.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient posts frames to the board's local API.
type HTTPClient struct {
	config     HTTPConfig
	httpClient *http.Client
	logger     logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a board client.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("display: base URL is required")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.NewComponentLogger("display"),
	}, nil
}

// SendLayout posts the code grid. The board applies the frame atomically.
func (c *HTTPClient) SendLayout(ctx context.Context, layout Layout) error {
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("refusing to send malformed frame: %w", err)
	}

	body, err := json.Marshal(map[string]any{"characters": layout.Cells})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/board", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("board rejected frame: %d %s", resp.StatusCode, string(snippet))
	}

	c.logger.Debug("frame delivered (%d rows)", len(layout.Cells))
	return nil
}
