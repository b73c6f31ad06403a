package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

type ProviderConfigRepo struct {
	pool *pgxpool.Pool
}

func NewProviderConfigRepo(pool *pgxpool.Pool) *ProviderConfigRepo {
	return &ProviderConfigRepo{pool: pool}
}

const providerColumns = "id, name, kind, file_path, endpoint, api_key, model, is_active, created_at"

func scanProvider(row pgx.Row) (*models.ProviderConfig, error) {
	p := &models.ProviderConfig{}
	err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.FilePath, &p.Endpoint, &p.APIKey, &p.Model, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan provider config: %w", err)
	}
	return p, nil
}

func (r *ProviderConfigRepo) Create(ctx context.Context, p *models.ProviderConfig) error {
	p.ID = uuid.New()
	query := `INSERT INTO provider_configs (id, name, kind, file_path, endpoint, api_key, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Kind, p.FilePath, p.Endpoint, p.APIKey, p.Model,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create provider config: %w", err)
	}
	return nil
}

func (r *ProviderConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+providerColumns+" FROM provider_configs WHERE id = $1", id)
	return scanProvider(row)
}

// GetActive returns the single active config, or ErrNotFound when no config
// is active.
func (r *ProviderConfigRepo) GetActive(ctx context.Context) (*models.ProviderConfig, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT " + providerColumns + " FROM provider_configs WHERE is_active")
	return scanProvider(row)
}

func (r *ProviderConfigRepo) List(ctx context.Context) ([]*models.ProviderConfig, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+providerColumns+" FROM provider_configs ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list provider configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.ProviderConfig
	for rows.Next() {
		p := &models.ProviderConfig{}
		err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.FilePath, &p.Endpoint, &p.APIKey, &p.Model, &p.IsActive, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider config: %w", err)
		}
		configs = append(configs, p)
	}
	return configs, rows.Err()
}

// Update rewrites the editable fields. An empty APIKey keeps the stored key
// so the UI can edit a config without re-entering the secret.
func (r *ProviderConfigRepo) Update(ctx context.Context, p *models.ProviderConfig) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE provider_configs
		SET name = $2, kind = $3, file_path = $4, endpoint = $5,
		    api_key = CASE WHEN $6 = '' THEN api_key ELSE $6 END,
		    model = $7
		WHERE id = $1`,
		p.ID, p.Name, p.Kind, p.FilePath, p.Endpoint, p.APIKey, p.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to update provider config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProviderConfigRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM provider_configs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete provider config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Activate marks one config active and deactivates every other one in a
// single transaction, keeping the at-most-one-active invariant.
func (r *ProviderConfigRepo) Activate(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "UPDATE provider_configs SET is_active = FALSE WHERE is_active"); err != nil {
		return fmt.Errorf("failed to deactivate configs: %w", err)
	}

	tag, err := tx.Exec(ctx, "UPDATE provider_configs SET is_active = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to activate config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}
