package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

// localAdapter runs prompts against a model loaded from a local weights file
// via the shared runtime. The weights stay resident in the runtime between
// exchanges; only the per-request session is built here.
type localAdapter struct {
	runtime  *RuntimeClient
	cache    *ModelCache
	filePath string
	bufSize  int
}

func newLocalAdapter(runtime *RuntimeClient, cache *ModelCache, cfg models.ProviderConfig, bufSize int) (*localAdapter, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("%w: no model file configured for %q", ErrUnavailable, cfg.Name)
	}
	return &localAdapter{
		runtime:  runtime,
		cache:    cache,
		filePath: cfg.FilePath,
		bufSize:  bufSize,
	}, nil
}

func (a *localAdapter) Open(ctx context.Context, history []models.Turn, systemPrompt, userPrompt string) (<-chan Chunk, error) {
	model, err := a.cache.Ensure(ctx, a.filePath)
	if err != nil {
		return nil, err
	}

	chatReq := runtimeChatRequest{
		Model:    model,
		Messages: buildRuntimeMessages(history, systemPrompt, userPrompt),
		Stream:   true,
	}

	resp, err := a.runtime.OpenChat(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 4096), a.bufSize)

		for scanner.Scan() {
			var chatResp runtimeChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chatResp); err != nil {
				if ctx.Err() == nil {
					emit(ctx, ch, Chunk{Err: &StreamError{Err: fmt.Errorf("malformed runtime response: %w", err)}})
				}
				return
			}

			if chatResp.Message.Content != "" {
				if !emit(ctx, ch, Chunk{Content: chatResp.Message.Content}) {
					return
				}
			}

			if chatResp.Done {
				emit(ctx, ch, Chunk{Done: true})
				return
			}
		}

		// Body ended without a done marker: cancelled or interrupted.
		if ctx.Err() == nil {
			err := scanner.Err()
			if err == nil {
				err = fmt.Errorf("runtime stream ended early")
			}
			emit(ctx, ch, Chunk{Err: &StreamError{Err: err}})
		}
	}()

	return ch, nil
}

// buildRuntimeMessages flattens history for the runtime's chat endpoint,
// which speaks the same system/user/assistant roles as the remote APIs.
func buildRuntimeMessages(history []models.Turn, systemPrompt, userPrompt string) []runtimeMessage {
	messages := make([]runtimeMessage, 0, len(history)+2)

	if systemPrompt != "" {
		messages = append(messages, runtimeMessage{Role: "system", Content: systemPrompt})
	}

	for _, turn := range history {
		switch turn.Role {
		case models.TurnRoleUser:
			messages = append(messages, runtimeMessage{Role: "user", Content: turn.Text})
		case models.TurnRoleModel:
			if len(turn.Response) > 0 {
				messages = append(messages, runtimeMessage{Role: "assistant", Content: turn.Response[0]})
			}
		}
	}

	messages = append(messages, runtimeMessage{Role: "user", Content: userPrompt})
	return messages
}
