package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

const menuColumns = `id, profile_id, name, description, price, image, category, is_active, display_order, created_at, updated_at`

func scanMenuItem(row pgx.Row) (domain.MenuItem, error) {
	var it domain.MenuItem
	err := row.Scan(&it.ID, &it.ProfileID, &it.Name, &it.Description, &it.Price, &it.Image, &it.Category,
		&it.IsActive, &it.DisplayOrder, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *Repository) ListMenu(ctx context.Context, storeID string, activeOnly bool) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+menuColumns+`
FROM menu_items
WHERE profile_id = $1 AND (NOT $2 OR is_active)
ORDER BY display_order, created_at`, storeID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.MenuItem, 0)
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) GetMenuItem(ctx context.Context, storeID, id string) (*domain.MenuItem, error) {
	it, err := scanMenuItem(r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1 AND profile_id = $2`, id, storeID))
	if err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func (r *Repository) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO menu_items (id, profile_id, name, description, price, image, category, is_active, display_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.ProfileID, item.Name, item.Description, item.Price, item.Image, item.Category,
		item.IsActive, item.DisplayOrder, item.CreatedAt, item.UpdatedAt)
	return mapErr(err)
}

func (r *Repository) UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE menu_items
SET name = $3, description = $4, price = $5, image = $6, category = $7, is_active = $8, updated_at = $9
WHERE id = $1 AND profile_id = $2`,
		item.ID, item.ProfileID, item.Name, item.Description, item.Price, item.Image, item.Category, item.IsActive, item.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteMenuItem(ctx context.Context, storeID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1 AND profile_id = $2`, id, storeID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ReorderMenu(ctx context.Context, storeID string, ids []string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for pos, id := range ids {
			batch.Queue(`UPDATE menu_items SET display_order = $3, updated_at = now() WHERE id = $1 AND profile_id = $2`, id, storeID, pos)
		}
		results := tx.SendBatch(ctx, batch)
		for range ids {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return err
			}
			if tag.RowsAffected() == 0 {
				results.Close()
				return domain.ErrNotFound
			}
		}
		return results.Close()
	})
}
