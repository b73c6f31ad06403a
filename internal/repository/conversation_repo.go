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

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// EnsureForControl returns the conversation for the given control and topic,
// creating it on first access. The system prompt is only applied on creation;
// an existing conversation keeps its stored prompt.
func (r *ConversationRepo) EnsureForControl(ctx context.Context, controlID uuid.UUID, topic, systemPrompt string) (*models.Conversation, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (id, control_id, topic, system_prompt)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (control_id, topic) DO NOTHING`,
		id, controlID, topic, systemPrompt,
	)
	if err != nil {
		// FK violation means the owning control is gone
		return nil, fmt.Errorf("failed to ensure conversation: %w", err)
	}

	var convID uuid.UUID
	err = r.pool.QueryRow(ctx,
		"SELECT id FROM conversations WHERE control_id = $1 AND topic = $2",
		controlID, topic,
	).Scan(&convID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	return r.GetByID(ctx, convID)
}

// GetByID loads a conversation and its full turn history in order.
func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, control_id, topic, system_prompt, created_at FROM conversations WHERE id = $1",
		id,
	).Scan(&c.ID, &c.ControlID, &c.Topic, &c.SystemPrompt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT role, content, response FROM turns WHERE conversation_id = $1 ORDER BY seq ASC",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			role     string
			content  *string
			response []string
		)
		if err := rows.Scan(&role, &content, &response); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn := models.Turn{Role: role, Response: response}
		if content != nil {
			turn.Text = *content
		}
		c.History = append(c.History, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}

	return c, nil
}

// AppendExchange appends one completed exchange — a user turn followed by its
// paired model turn — as a single transaction. The conversation row is locked
// for the duration so two concurrent exchanges on the same conversation
// serialize their appends instead of racing on the sequence counter.
func (r *ConversationRepo) AppendExchange(ctx context.Context, id uuid.UUID, userTurn, modelTurn models.Turn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin exchange transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, "SELECT id FROM conversations WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock conversation: %w", err)
	}

	var nextSeq int
	err = tx.QueryRow(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = $1",
		id,
	).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("failed to compute next turn sequence: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO turns (conversation_id, seq, role, content) VALUES ($1, $2, $3, $4)",
		id, nextSeq, models.TurnRoleUser, userTurn.Text,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user turn: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO turns (conversation_id, seq, role, response) VALUES ($1, $2, $3, $4)",
		id, nextSeq+1, models.TurnRoleModel, modelTurn.Response,
	)
	if err != nil {
		return fmt.Errorf("failed to insert model turn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}
	return nil
}

// Clear truncates a conversation's history. The system prompt and the
// conversation row itself are untouched. Clearing an already-empty
// conversation succeeds.
func (r *ConversationRepo) Clear(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	_, err = r.pool.Exec(ctx, "DELETE FROM turns WHERE conversation_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
