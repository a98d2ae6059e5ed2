package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfoWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	l := New("order-service", &buf, slog.LevelInfo)

	l.Info("ORD_20250301_001", "order_received", "Order stored", map[string]interface{}{"total_amount": 12000})

	entry := decode(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "ORD_20250301_001", entry["request_id"])
	assert.Equal(t, "order_received", entry["action"])
	assert.Equal(t, "Order stored", entry["message"])
	assert.NotEmpty(t, entry["timestamp"])
	assert.NotEmpty(t, entry["hostname"])
	assert.Equal(t, map[string]any{"total_amount": float64(12000)}, entry["extra"])
}

func TestErrorCarriesErrorObject(t *testing.T) {
	var buf bytes.Buffer
	l := New("webhook-dispatcher", &buf, slog.LevelInfo)

	l.Error("", "webhook_failed", "Webhook delivery failed", errors.New("502 bad gateway"), nil)

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "request_id")
	errObj, ok := entry["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "502 bad gateway", errObj["msg"])
	assert.NotEmpty(t, errObj["stack"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("outbox-relay", &buf, ParseLevel("warn"))

	l.Debug("", "poll", "polling", nil)
	l.Info("", "poll", "polling", nil)
	assert.Zero(t, buf.Len())

	l.Warn("", "publish_retry", "retrying", nil)
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
