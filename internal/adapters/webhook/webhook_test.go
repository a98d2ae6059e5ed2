package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
)

func TestSendPostsPayloadWithHeaders(t *testing.T) {
	var got *http.Request
	var payload domain.WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(config.WebhooksConfig{
		OrderCreated: config.WebhookTarget{URL: srv.URL, Secret: "s3cret"},
	}, srv.Client())

	event := domain.OrderEvent{
		Type:    domain.EventOrderCreated,
		OrderID: "o-1",
		StoreID: "s-1",
		Payload: domain.WebhookPayload{OrderNumber: "ORD_20250301_001", TotalAmount: 12000},
	}
	require.NoError(t, c.Send(context.Background(), event))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "o-1", got.Header.Get(IdempotencyHeader))
	assert.Equal(t, "s3cret", got.Header.Get(SecretHeader))
	assert.Equal(t, string(domain.EventOrderCreated), got.Header.Get(EventHeader))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, 12000, payload.TotalAmount)
}

func TestSendFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.WebhooksConfig{OrderAccepted: config.WebhookTarget{URL: srv.URL}}, srv.Client())
	err := c.Send(context.Background(), domain.OrderEvent{Type: domain.EventOrderAccepted, OrderID: "o-1"})
	assert.ErrorContains(t, err, "502")
}

func TestSendWithoutURL(t *testing.T) {
	c := NewClient(config.WebhooksConfig{}, nil)
	err := c.Send(context.Background(), domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: "o-1"})
	assert.ErrorIs(t, err, ports.ErrWebhookNotConfigured)
}
