package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

const profileColumns = `id, display_name, store_name, store_number, store_image, role, phone_number, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var role string
	err := row.Scan(&p.ID, &p.DisplayName, &p.StoreName, &p.StoreNumber, &p.StoreImage, &role, &p.PhoneNumber, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	p.Role = domain.Role(role)
	return &p, nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

func (r *Repository) GetStoreByName(ctx context.Context, storeName string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE store_name = $1`, storeName)
	return scanProfile(row)
}

func (r *Repository) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	_, err := r.pool.Exec(ctx, `
INSERT INTO profiles (id, display_name, store_name, store_number, store_image, role, phone_number, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::profile_role, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.DisplayName, profile.StoreName, profile.StoreNumber, profile.StoreImage,
		string(profile.Role), profile.PhoneNumber, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return r.GetProfile(ctx, profile.ID)
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE profiles SET
    display_name = COALESCE($2, display_name),
    store_name   = COALESCE($3, store_name),
    store_number = COALESCE($4, store_number),
    store_image  = COALESCE($5, store_image),
    phone_number = COALESCE($6, phone_number),
    updated_at   = now()
WHERE id = $1
RETURNING `+profileColumns,
		id, upd.DisplayName, upd.StoreName, upd.StoreNumber, upd.StoreImage, upd.PhoneNumber)
	return scanProfile(row)
}
