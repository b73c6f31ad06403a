package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

// openaiAdapter talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI itself, Azure deployments, llama.cpp server in OpenAI mode).
type openaiAdapter struct {
	client *openai.Client
	model  string
}

func newOpenAIAdapter(cfg models.ProviderConfig) (*openaiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured for %q", ErrUnavailable, cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: no model configured for %q", ErrUnavailable, cfg.Name)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &openaiAdapter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

func (a *openaiAdapter) Open(ctx context.Context, history []models.Turn, systemPrompt, userPrompt string) (<-chan Chunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: buildChatMessages(history, systemPrompt, userPrompt),
		Stream:   true,
	}

	// The request is issued here so that a rejection surfaces before any
	// chunk exists.
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, translateOpenAIError(err)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				emit(ctx, ch, Chunk{Done: true})
				return
			}
			if err != nil {
				// On cancellation the channel closes without a terminal
				// chunk; the orchestrator checks ctx itself.
				if ctx.Err() == nil {
					emit(ctx, ch, Chunk{Err: &StreamError{Err: err}})
				}
				return
			}

			if len(response.Choices) > 0 {
				content := response.Choices[0].Delta.Content
				if content != "" {
					if !emit(ctx, ch, Chunk{Content: content}) {
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// buildChatMessages flattens a turn history into the role/content array the
// chat-completions wire format expects: system first, then alternating
// user/assistant entries. A model turn contributes its first completion.
func buildChatMessages(history []models.Turn, systemPrompt, userPrompt string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, turn := range history {
		switch turn.Role {
		case models.TurnRoleUser:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Text,
			})
		case models.TurnRoleModel:
			if len(turn.Response) > 0 {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: turn.Response[0],
				})
			}
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})
	return messages
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RequestError{StatusCode: apiErr.HTTPStatusCode, Detail: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RequestError{StatusCode: reqErr.HTTPStatusCode, Detail: reqErr.Error()}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// emit delivers a chunk unless the exchange was cancelled, so a stalled
// consumer never wedges the producing goroutine.
func emit(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
