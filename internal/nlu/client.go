// Package nlu provides the client for the natural-language backend. The
// backend maps one user utterance to a reply over a REST webhook and
// exposes a status endpoint the orchestrator polls before accepting
// channels.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/observability/metrics"
)

// Config holds NLU connection settings.
type Config struct {
	WebhookURL string
	StatusURL  string
	Timeout    time.Duration
}

// Client calls the NLU webhook.
type Client struct {
	cfg     Config
	httpc   *http.Client
	metrics *metrics.Metrics
}

// New creates an NLU client. The request timeout bounds every webhook call.
func New(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		metrics: metrics.DefaultMetrics,
	}
}

type webhookRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type webhookResponse struct {
	Text string `json:"text"`
}

// Ask sends the utterance and returns the reply text. An empty string
// with a nil error means the backend answered without reply text; the
// caller substitutes the fallback reply either way.
func (c *Client) Ask(ctx context.Context, sender, message string) (string, error) {
	start := time.Now()
	c.metrics.NLURequests.Inc()

	body, err := json.Marshal(webhookRequest{Sender: sender, Message: message})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("nlu request: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.NLULatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nlu returned status %d", resp.StatusCode)
	}

	var replies []webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&replies); err != nil {
		return "", fmt.Errorf("decoding nlu response: %w", err)
	}
	if len(replies) == 0 || replies[0].Text == "" {
		logger := logging.WithComponent("nlu")
		logger.Warn().
			Str("sender", sender).
			Msg("NLU returned no reply text")
		return "", nil
	}
	return replies[0].Text, nil
}

// WaitReady polls the status endpoint until it answers 200, retrying up
// to maxAttempts with a fixed interval. The orchestrator does not accept
// channels before this succeeds.
func (c *Client) WaitReady(ctx context.Context, maxAttempts int, interval time.Duration) error {
	logger := logging.WithComponent("nlu")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StatusURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpc.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				logger.Info().Int("attempt", attempt).Msg("NLU backend is ready")
				return nil
			}
		}
		logger.Info().
			Int("attempt", attempt).
			Int("maxAttempts", maxAttempts).
			Msg("Waiting for NLU backend")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("nlu backend not ready after %d attempts", maxAttempts)
}
