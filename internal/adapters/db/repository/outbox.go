package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
)

// PublishPending locks a batch of unpublished events so concurrent relays skip
// them, hands each to fn in order and marks the accepted ones published. The
// marks commit even when fn fails part way.
func (r *Repository) PublishPending(ctx context.Context, limit int, fn func(ctx context.Context, event domain.OrderEvent) error) (int, error) {
	published := 0
	var fnErr error

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT seq, event_id, order_id, store_id, event_type, payload, created_at
FROM order_events
WHERE published_at IS NULL
ORDER BY seq
LIMIT $1
FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return err
		}
		events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderEvent, error) {
			var e domain.OrderEvent
			var eventType string
			var payload []byte
			if err := row.Scan(&e.Seq, &e.ID, &e.OrderID, &e.StoreID, &eventType, &payload, &e.CreatedAt); err != nil {
				return e, err
			}
			e.Type = domain.EventType(eventType)
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return e, fmt.Errorf("decode event %s: %w", e.ID, err)
			}
			return e, nil
		})
		if err != nil {
			return err
		}

		for _, e := range events {
			if fnErr = fn(ctx, e); fnErr != nil {
				break
			}
			if _, err := tx.Exec(ctx, `UPDATE order_events SET published_at = now() WHERE seq = $1`, e.Seq); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, fnErr
}

// ClaimDelivery takes the inbox row for rec.Key with a lease. Only one worker
// gets ClaimAcquired until the row is recorded or the lease expires.
func (r *Repository) ClaimDelivery(ctx context.Context, rec ports.DeliveryRecord, lease time.Duration) (ports.DeliveryClaim, error) {
	var key string
	err := r.pool.QueryRow(ctx, `
INSERT INTO webhook_deliveries (event_key, order_id, event_type, delivered, attempts, claimed_until, updated_at)
VALUES ($1, $2, $3, FALSE, $4, now() + make_interval(secs => $5), now())
ON CONFLICT (event_key) DO UPDATE SET
    claimed_until = EXCLUDED.claimed_until,
    updated_at    = now()
WHERE NOT webhook_deliveries.delivered
  AND (webhook_deliveries.claimed_until IS NULL OR webhook_deliveries.claimed_until < now())
RETURNING event_key`,
		rec.Key, rec.OrderID, string(rec.Event), rec.Attempts, lease.Seconds()).Scan(&key)
	if err == nil {
		return ports.ClaimAcquired, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ports.ClaimBusy, mapErr(err)
	}

	var delivered bool
	if err := r.pool.QueryRow(ctx, `SELECT delivered FROM webhook_deliveries WHERE event_key = $1`, rec.Key).Scan(&delivered); err != nil {
		return ports.ClaimBusy, mapErr(err)
	}
	if delivered {
		return ports.ClaimDelivered, nil
	}
	return ports.ClaimBusy, nil
}

// RecordDelivery upserts the inbox row and drops any claim on it. A delivered row stays delivered.
func (r *Repository) RecordDelivery(ctx context.Context, rec ports.DeliveryRecord) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO webhook_deliveries (event_key, order_id, event_type, delivered, attempts, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (event_key) DO UPDATE SET
    delivered     = webhook_deliveries.delivered OR EXCLUDED.delivered,
    attempts      = GREATEST(webhook_deliveries.attempts, EXCLUDED.attempts),
    claimed_until = NULL,
    updated_at    = now()`,
		rec.Key, rec.OrderID, string(rec.Event), rec.Delivered, rec.Attempts)
	return mapErr(err)
}
