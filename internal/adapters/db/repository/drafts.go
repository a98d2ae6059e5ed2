package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

const draftColumns = `id, store_id, customer_id, payload, total_amount, phone_number, status, expires_at, created_at, claimed_at`

func scanDraft(row pgx.Row) (*domain.CheckoutDraft, error) {
	var d domain.CheckoutDraft
	var payload []byte
	var status string
	err := row.Scan(&d.ID, &d.StoreID, &d.CustomerID, &payload, &d.TotalAmount, &d.PhoneNumber, &status, &d.ExpiresAt, &d.CreatedAt, &d.ClaimedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(payload, &d.Lines); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", d.ID, err)
	}
	d.Status = domain.DraftStatus(status)
	return &d, nil
}

func (r *Repository) SaveDraft(ctx context.Context, draft *domain.CheckoutDraft) error {
	payload, err := json.Marshal(draft.Lines)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO checkout_drafts (id, store_id, customer_id, payload, total_amount, phone_number, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    customer_id = EXCLUDED.customer_id,
    payload = EXCLUDED.payload,
    total_amount = EXCLUDED.total_amount,
    phone_number = EXCLUDED.phone_number,
    expires_at = EXCLUDED.expires_at`,
		draft.ID, draft.StoreID, draft.CustomerID, payload, draft.TotalAmount, draft.PhoneNumber,
		string(draft.Status), draft.ExpiresAt, draft.CreatedAt)
	return mapErr(err)
}

func (r *Repository) GetDraft(ctx context.Context, id string) (*domain.CheckoutDraft, error) {
	return scanDraft(r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM checkout_drafts WHERE id = $1`, id))
}

// ClaimDraft is a single conditional update, so two concurrent resumes cannot both win.
func (r *Repository) ClaimDraft(ctx context.Context, id string, now time.Time) (*domain.CheckoutDraft, error) {
	return scanDraft(r.pool.QueryRow(ctx, `
UPDATE checkout_drafts SET status = 'claimed', claimed_at = $2
WHERE id = $1 AND status = 'staged' AND expires_at > $2
RETURNING `+draftColumns, id, now))
}

func (r *Repository) ReleaseDraft(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE checkout_drafts SET status = 'staged', claimed_at = NULL WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteDraft(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM checkout_drafts WHERE id = $1`, id)
	return mapErr(err)
}

func (r *Repository) PurgeExpiredDrafts(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM checkout_drafts WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
