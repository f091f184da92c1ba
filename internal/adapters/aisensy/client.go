package aisensy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	pkghttp "github.com/merchantpay/billing-service/pkg/http"
)

// DefaultBaseURL is the AiSensy campaign API endpoint
const DefaultBaseURL = "https://backend.aisensy.com/campaign/t1/api/v2"

// Config contains AiSensy API configuration
type Config struct {
	BaseURL      string
	APIKey       string
	CampaignName string
	UserName     string
	Timeout      time.Duration
}

// Client sends WhatsApp messages through the AiSensy campaign API
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new AiSensy client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		config:     cfg,
		httpClient: pkghttp.NewClient(pkghttp.DeliveryClientConfig(), timeout),
		logger:     logger,
	}
}

type campaignRequest struct {
	APIKey         string   `json:"apiKey"`
	CampaignName   string   `json:"campaignName"`
	Destination    string   `json:"destination"`
	UserName       string   `json:"userName"`
	TemplateParams []string `json:"templateParams"`
	Source         string   `json:"source"`
}

// SendMessage delivers a message to a WhatsApp destination number.
// Returns an error on non-2xx responses so the worker can apply its retry policy.
func (c *Client) SendMessage(ctx context.Context, destination, text string) error {
	payload, err := json.Marshal(campaignRequest{
		APIKey:         c.config.APIKey,
		CampaignName:   c.config.CampaignName,
		Destination:    destination,
		UserName:       c.config.UserName,
		TemplateParams: []string{text},
		Source:         "billing-service",
	})
	if err != nil {
		return fmt.Errorf("marshal campaign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build campaign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send campaign request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("AiSensy rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("destination", destination),
			zap.ByteString("body", body),
		)
		return fmt.Errorf("aisensy returned status %d", resp.StatusCode)
	}

	c.logger.Debug("WhatsApp message accepted",
		zap.String("destination", destination),
		zap.Int("status", resp.StatusCode),
	)

	return nil
}
