package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/calebkish/control-generator-sub000/internal/llm"
	"github.com/calebkish/control-generator-sub000/internal/models"
	"github.com/calebkish/control-generator-sub000/internal/repository"
	"github.com/calebkish/control-generator-sub000/internal/stream"
)

// ErrConversationNotFound is reported before any streaming begins.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrNoActiveProvider means neither an explicit provider config nor an
// active one was available; the caller must select a provider first.
var ErrNoActiveProvider = errors.New("no provider selected")

// CommitError means generation succeeded and the caller received the full
// response, but persisting the exchange failed. It is surfaced after the
// stream, distinctly from generation failures.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("exchange was not saved: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// StreamRequest describes one prompt exchange. SystemPromptOverride, when
// set, replaces the conversation's stored system prompt for this exchange
// only. ProviderConfigID, when set, bypasses the active-config lookup.
type StreamRequest struct {
	ConversationID       uuid.UUID
	UserPrompt           string
	SystemPromptOverride *string
	ProviderConfigID     *uuid.UUID
}

type conversationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	AppendExchange(ctx context.Context, id uuid.UUID, userTurn, modelTurn models.Turn) error
	Clear(ctx context.Context, id uuid.UUID) error
}

type providerStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProviderConfig, error)
	GetActive(ctx context.Context) (*models.ProviderConfig, error)
}

type adapterFactory interface {
	CreateAdapter(cfg models.ProviderConfig) (llm.Adapter, error)
}

// ChatService orchestrates one streaming exchange: resolve conversation and
// provider, relay deltas to the sink while accumulating them, and commit the
// completed exchange exactly once. It stays provider-agnostic; history
// translation lives inside each adapter.
type ChatService struct {
	conversations conversationStore
	providers     providerStore
	adapters      adapterFactory
}

func NewChatService(conversations conversationStore, providers providerStore, adapters adapterFactory) *ChatService {
	return &ChatService{
		conversations: conversations,
		providers:     providers,
		adapters:      adapters,
	}
}

// Run streams one exchange into sink.
//
// Completion policy: a clean end commits {user turn, model turn} atomically,
// even when the response is empty. A cancellation observed before the stream
// ends discards the exchange in full and returns nil — the caller that
// cancelled already knows. An adapter error propagates without committing.
// A failed commit after a successful stream returns *CommitError.
func (s *ChatService) Run(ctx context.Context, req StreamRequest, sink stream.Sink) error {
	conv, err := s.conversations.GetByID(ctx, req.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	var cfg *models.ProviderConfig
	if req.ProviderConfigID != nil {
		cfg, err = s.providers.GetByID(ctx, *req.ProviderConfigID)
	} else {
		cfg, err = s.providers.GetActive(ctx)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoActiveProvider
	}
	if err != nil {
		return fmt.Errorf("failed to resolve provider config: %w", err)
	}

	systemPrompt := conv.SystemPrompt
	if req.SystemPromptOverride != nil {
		systemPrompt = *req.SystemPromptOverride
	}

	adapter, err := s.adapters.CreateAdapter(*cfg)
	if err != nil {
		return err
	}

	ch, err := adapter.Open(ctx, conv.History, systemPrompt, req.UserPrompt)
	if err != nil {
		return err
	}

	if err := sink.Start(); err != nil {
		return fmt.Errorf("failed to start response stream: %w", err)
	}

	var buf strings.Builder
	completed := false
	for chunk := range ch {
		if chunk.Err != nil {
			if errors.Is(chunk.Err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return chunk.Err
		}
		if chunk.Done {
			completed = true
			break
		}
		if err := sink.Send(chunk.Content); err != nil {
			// The consumer dropped the connection mid-stream.
			return nil
		}
		buf.WriteString(chunk.Content)
	}

	if !completed {
		// The channel closed without a terminal chunk: cancelled exchange,
		// discard everything including the partial buffer.
		return nil
	}

	// Generation already finished; a cancellation landing now must not
	// abort the commit.
	commitCtx := context.WithoutCancel(ctx)
	err = s.conversations.AppendExchange(commitCtx, conv.ID,
		models.UserTurn(req.UserPrompt), models.ModelTurn(buf.String()))
	if err != nil {
		return &CommitError{Err: err}
	}
	return nil
}

// ClearHistory truncates a conversation's history. The system prompt stays,
// and an in-flight exchange is unaffected: if it completes afterwards it
// commits its own two turns on top of the now-empty history.
func (s *ChatService) ClearHistory(ctx context.Context, conversationID uuid.UUID) error {
	err := s.conversations.Clear(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}
