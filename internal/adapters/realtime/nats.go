// Package realtime carries order change events to connected dashboards.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// NATSFeed publishes events on orders.<store_id>.<created|accepted>. Core NATS
// has no replay, which matches the at-most-once contract of the feed.
type NATSFeed struct {
	conn   *nats.Conn
	logger *logger.Logger
}

var _ ports.OrderFeed = (*NATSFeed)(nil)

func NewNATSFeed(cfg config.NATSConfig, logger *logger.Logger) (*NATSFeed, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("", "nats_disconnected", "NATS connection lost", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("", "nats_reconnected", "NATS connection restored", map[string]interface{}{"url": c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSFeed{conn: conn, logger: logger}, nil
}

func (f *NATSFeed) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return f.conn.Publish(event.Subject(), data)
}

func (f *NATSFeed) Subscribe(storeID string, fn func(domain.OrderEvent)) (ports.Subscription, error) {
	sub, err := f.conn.Subscribe(subjectFor(storeID), func(msg *nats.Msg) {
		var event domain.OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			f.logger.Error("", "realtime_decode_failed", "Dropping malformed realtime message", err, map[string]interface{}{"subject": msg.Subject})
			return
		}
		fn(event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subjectFor(storeID), err)
	}
	return sub, nil
}

func (f *NATSFeed) Close() {
	if f.conn != nil {
		f.conn.Drain()
		f.conn.Close()
	}
}

// subjectFor is orders.<store>.* or orders.> for every store.
func subjectFor(storeID string) string {
	if storeID == "" {
		return "orders.>"
	}
	return domain.StoreSubject(storeID, "*")
}
