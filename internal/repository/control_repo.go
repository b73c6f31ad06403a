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

type ControlRepo struct {
	pool *pgxpool.Pool
}

func NewControlRepo(pool *pgxpool.Pool) *ControlRepo {
	return &ControlRepo{pool: pool}
}

func (r *ControlRepo) Create(ctx context.Context, c *models.Control) error {
	c.ID = uuid.New()
	query := `INSERT INTO controls (id, name, description)
		VALUES ($1, $2, $3) RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, c.ID, c.Name, c.Description).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create control: %w", err)
	}
	return nil
}

func (r *ControlRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Control, error) {
	c := &models.Control{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, description, created_at, updated_at FROM controls WHERE id = $1",
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get control: %w", err)
	}
	return c, nil
}

func (r *ControlRepo) List(ctx context.Context) ([]*models.Control, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, name, description, created_at, updated_at FROM controls ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list controls: %w", err)
	}
	defer rows.Close()

	var controls []*models.Control
	for rows.Next() {
		c := &models.Control{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan control: %w", err)
		}
		controls = append(controls, c)
	}
	return controls, rows.Err()
}

func (r *ControlRepo) Update(ctx context.Context, c *models.Control) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE controls SET name = $2, description = $3, updated_at = NOW() WHERE id = $1",
		c.ID, c.Name, c.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to update control: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a control; its conversations and turns go with it via the
// schema-level cascade.
func (r *ControlRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM controls WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete control: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
