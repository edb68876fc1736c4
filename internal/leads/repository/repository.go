package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Repository is the Postgres implementation of LeadsRepository.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, email, first_name, last_name, phone, category, restaurant_name,
	restaurant_tables, products_count, modules, message, qualified_at, created_at, updated_at`

func scanLead(row pgx.Row, lead *Lead, extra ...any) error {
	dest := []any{
		&lead.ID, &lead.Email, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Category, &lead.RestaurantName,
		&lead.RestaurantTables, &lead.ProductsCount, &lead.Modules, &lead.Message, &lead.QualifiedAt, &lead.CreatedAt, &lead.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *Repository) UpsertLead(ctx context.Context, params UpsertParams) (Lead, bool, error) {
	var lead Lead
	var created bool
	err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, email, first_name, last_name, phone, category, restaurant_name,
			restaurant_tables, products_count, modules, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email) DO UPDATE SET
			first_name        = COALESCE(NULLIF(EXCLUDED.first_name, ''), leads.first_name),
			last_name         = COALESCE(NULLIF(EXCLUDED.last_name, ''), leads.last_name),
			phone             = COALESCE(NULLIF(EXCLUDED.phone, ''), leads.phone),
			category          = COALESCE(NULLIF(EXCLUDED.category, ''), leads.category),
			restaurant_name   = COALESCE(NULLIF(EXCLUDED.restaurant_name, ''), leads.restaurant_name),
			restaurant_tables = COALESCE(NULLIF(EXCLUDED.restaurant_tables, ''), leads.restaurant_tables),
			products_count    = COALESCE(NULLIF(EXCLUDED.products_count, ''), leads.products_count),
			modules           = COALESCE(NULLIF(EXCLUDED.modules, ''), leads.modules),
			message           = COALESCE(NULLIF(EXCLUDED.message, ''), leads.message),
			updated_at        = now()
		RETURNING `+leadColumns+`, (xmax = 0) AS created
	`,
		uuid.New(), params.Email, params.FirstName, params.LastName, params.Phone, params.Category, params.RestaurantName,
		params.RestaurantTables, params.ProductsCount, params.Modules, params.Message,
	), &lead, &created)
	if err != nil {
		return Lead{}, false, err
	}
	return lead, created, nil
}

func (r *Repository) AddInterest(ctx context.Context, leadID uuid.UUID, appID, category string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_interests (lead_id, app_id, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id, app_id) DO UPDATE SET
			hits         = lead_interests.hits + 1,
			category     = COALESCE(NULLIF(EXCLUDED.category, ''), lead_interests.category),
			last_seen_at = now()
	`, leadID, appID, category)
	return err
}

func (r *Repository) MarkQualified(ctx context.Context, leadID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET qualified_at = now(), updated_at = now()
		WHERE id = $1 AND qualified_at IS NULL
	`, leadID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Lead, error) {
	var lead Lead
	err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = $1`, email), &lead)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) ListInterests(ctx context.Context, leadID uuid.UUID) ([]Interest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT app_id, category, hits, last_seen_at
		FROM lead_interests
		WHERE lead_id = $1
		ORDER BY last_seen_at DESC, app_id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Interest, 0)
	for rows.Next() {
		var it Interest
		if err := rows.Scan(&it.AppID, &it.Category, &it.Hits, &it.LastSeenAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

var _ LeadsRepository = (*Repository)(nil)
