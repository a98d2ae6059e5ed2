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

const orderColumns = `id, order_number, profile_id, customer_id, draft_id, phone_number, total_amount, status, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.Number, &o.StoreID, &o.CustomerID, &o.DraftID, &o.PhoneNumber, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// CreateOrder inserts the order header, its items and the outbox event in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, event ports.EventBuilder) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		seq, err := takeOrderSeq(ctx, tx, order.CreatedAt)
		if err != nil {
			return err
		}
		order.Number = domain.FormatOrderNumber(order.CreatedAt, seq)

		_, err = tx.Exec(ctx, `
INSERT INTO orders (id, order_number, profile_id, customer_id, draft_id, phone_number, total_amount, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::order_status, $9, $10)`,
			order.ID, order.Number, order.StoreID, order.CustomerID, order.DraftID, order.PhoneNumber,
			order.TotalAmount, string(order.Status), order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return mapErr(err)
		}

		batch := &pgx.Batch{}
		for _, it := range order.Items {
			batch.Queue(`
INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, price)
VALUES ($1, $2, $3, $4, $5, $6)`, it.ID, order.ID, it.MenuItemID, it.Name, it.Quantity, it.Price)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", mapErr(err))
		}

		return insertEvent(ctx, tx, event(order))
	})
}

// takeOrderSeq bumps the counter row of the order's UTC day. The row stays
// locked until tx ends, so a rolled back order gives its number back.
func takeOrderSeq(ctx context.Context, tx pgx.Tx, createdAt time.Time) (int64, error) {
	y, m, d := createdAt.UTC().Date()
	var seq int64
	err := tx.QueryRow(ctx, `
INSERT INTO order_number_seq AS c (day, seq) VALUES ($1::date, 1)
ON CONFLICT (day) DO UPDATE SET seq = c.seq + 1
RETURNING c.seq`, time.Date(y, m, d, 0, 0, 0, 0, time.UTC)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("take order seq: %w", err)
	}
	return seq, nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repository) FindOrderByDraft(ctx context.Context, draftID string) (*domain.Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE draft_id = $1`, draftID)
}

func getOrder(ctx context.Context, q querier, sql string, arg string) (*domain.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, mapErr(err)
	}
	if err := loadItems(ctx, q, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// AcceptOrder updates only an order owned by storeID whose status allows the move.
func (r *Repository) AcceptOrder(ctx context.Context, orderID, storeID string, event ports.EventBuilder) (*domain.Order, bool, error) {
	var accepted *domain.Order
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx, `
UPDATE orders SET status = 'ACCEPT', updated_at = now()
WHERE id = $1 AND profile_id = $2 AND status IN ('PENDING', 'ACCEPT')
RETURNING `+orderColumns, orderID, storeID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := loadItems(ctx, tx, []*domain.Order{order}); err != nil {
			return err
		}
		if err := insertEvent(ctx, tx, event(order)); err != nil {
			return err
		}
		accepted = order
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return accepted, accepted != nil, nil
}

// listOrdersWhere scopes a listing to one store. The phone filter is a plain
// substring match, so % and _ typed by the owner are not wildcards.
const listOrdersWhere = `profile_id = $1
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at <= $3)
  AND ($4 = '' OR strpos(phone_number, $4) > 0)`

func (r *Repository) ListOrders(ctx context.Context, storeID string, filter domain.OrderFilter, page domain.Page) ([]domain.Order, int, error) {
	where := listOrdersWhere
	args := []any{storeID, filter.From, filter.To, filter.Phone}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+orderColumns+` FROM orders
WHERE `+where+`
ORDER BY created_at DESC, order_number DESC
LIMIT $5 OFFSET $6`, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ptrs []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := loadItems(ctx, r.pool, ptrs); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(ptrs))
	for _, o := range ptrs {
		orders = append(orders, *o)
	}
	return orders, total, nil
}

// loadItems fills Items of every order with one query.
func loadItems(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	rows, err := q.Query(ctx, `
SELECT id, order_id, menu_item_id, name, quantity, price
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, name`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return err
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, e domain.OrderEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.Exec(ctx, `
INSERT INTO order_events (event_id, order_id, store_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.OrderID, e.StoreID, string(e.Type), payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", mapErr(err))
	}
	return nil
}
