// Package outbound delivers forwarded messages through the messaging provider's HTTP API.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
	"commrouter/internal/privacy"
	"commrouter/internal/retry"
	"commrouter/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

const sendPath = "/v1/messages"

// sendRequest is the provider's message payload
type sendRequest struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Client sends outbound messages with retries behind a circuit breaker
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
	breaker   *circuitbreaker.CircuitBreaker
	backoff   *retry.Backoff
	logger    *logrus.Logger
}

func NewClient(cfg models.OutboundConfig, retryCfg models.RetryConfig, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	breaker := circuitbreaker.New("outbound", circuitbreaker.Config{
		MaxFailures:  uint32(max(cfg.BreakerMaxFailures, 0)), // #nosec G115 - clamped to non-negative
		ResetTimeout: time.Duration(cfg.BreakerResetTimeoutSec) * time.Second,
		IsFailure:    apperrors.IsRetryable,
	}, logger)

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.ProviderURL, "/"),
		authToken: cfg.AuthToken,
		client:    httpClient,
		breaker:   breaker,
		backoff:   retry.NewBackoff(retry.FromConfig(retryCfg)),
		logger:    logger,
	}
}

// Send delivers msg, retrying provider-side failures. Client errors and an
// open circuit fail immediately.
func (c *Client) Send(ctx context.Context, msg models.OutboundMessage) error {
	if c.baseURL == "" {
		return apperrors.NewConfigError("outbound.provider_url", "no outbound provider configured")
	}

	body, err := json.Marshal(sendRequest{
		Channel: string(msg.Channel),
		To:      msg.To,
		From:    msg.From,
		Subject: msg.Subject,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	err = c.backoff.RetryWithPredicate(ctx, func() error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.post(ctx, msg.Channel, body)
		})
	}, apperrors.IsRetryable)
	if err != nil {
		if circuitbreaker.IsCircuitBreakerError(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeOutbound, "outbound provider unavailable").
				WithContext("channel", string(msg.Channel))
		}
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"channel": msg.Channel,
		"to":      maskRecipient(msg.Channel, msg.To),
	}).Info("Outbound message delivered")
	return nil
}

func (c *Client) post(ctx context.Context, channel models.Channel, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewOutboundError(string(channel), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperrors.NewOutboundError(string(channel), resp.StatusCode,
			fmt.Errorf("provider error: status %d, body: %s", resp.StatusCode, string(bodyBytes)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// BreakerStats reports the circuit state for health checks
func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.GetStats()
}

func maskRecipient(channel models.Channel, to string) string {
	if channel == models.ChannelEmail {
		return privacy.MaskEmail(to)
	}
	return privacy.MaskPhoneNumber(to)
}
