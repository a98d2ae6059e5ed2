// Package webhook posts order events to the operator automation endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	SecretHeader      = "X-Webhook-Secret"
	EventHeader       = "X-Webhook-Event"
)

type Client struct {
	targets map[domain.EventType]config.WebhookTarget
	http    *http.Client
}

var _ ports.WebhookSender = (*Client)(nil)

func NewClient(cfg config.WebhooksConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		targets: map[domain.EventType]config.WebhookTarget{
			domain.EventOrderCreated:  cfg.OrderCreated,
			domain.EventOrderAccepted: cfg.OrderAccepted,
		},
		http: httpClient,
	}
}

// Send posts the event payload. Only the status code of the answer is used.
func (c *Client) Send(ctx context.Context, event domain.OrderEvent) error {
	target, ok := c.targets[event.Type]
	if !ok || target.URL == "" {
		return ports.ErrWebhookNotConfigured
	}

	body, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, event.OrderID)
	req.Header.Set(EventHeader, string(event.Type))
	if target.Secret != "" {
		req.Header.Set(SecretHeader, target.Secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
