package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

// geminiAdapter streams completions from the Gemini API.
type geminiAdapter struct {
	apiKey string
	model  string
}

func newGeminiAdapter(cfg models.ProviderConfig) (*geminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no API key configured for %q", ErrUnavailable, cfg.Name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: no model configured for %q", ErrUnavailable, cfg.Name)
	}
	return &geminiAdapter{apiKey: cfg.APIKey, model: cfg.Model}, nil
}

func (a *geminiAdapter) Open(ctx context.Context, history []models.Turn, systemPrompt, userPrompt string) (<-chan Chunk, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client", ErrUnavailable)
	}

	model := client.GenerativeModel(a.model)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	session := model.StartChat()
	session.History = buildGeminiHistory(history)

	iter := session.SendMessageStream(ctx, genai.Text(userPrompt))

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer client.Close()

		produced := false
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				emit(ctx, ch, Chunk{Done: true})
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					emit(ctx, ch, Chunk{Err: translateGeminiError(err, produced)})
				}
				return
			}

			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					text, ok := part.(genai.Text)
					if !ok || text == "" {
						continue
					}
					if !emit(ctx, ch, Chunk{Content: string(text)}) {
						return
					}
					produced = true
				}
				break
			}
		}
	}()

	return ch, nil
}

// buildGeminiHistory maps stored turns onto genai chat history. Gemini uses
// the role "model" for assistant content, matching our own tagging.
func buildGeminiHistory(history []models.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case models.TurnRoleUser:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(turn.Text)},
			})
		case models.TurnRoleModel:
			if len(turn.Response) > 0 {
				contents = append(contents, &genai.Content{
					Role:  "model",
					Parts: []genai.Part{genai.Text(turn.Response[0])},
				})
			}
		}
	}
	return contents
}

func translateGeminiError(err error, produced bool) error {
	if produced {
		return &StreamError{Err: err}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &RequestError{StatusCode: gerr.Code, Detail: gerr.Message}
	}
	return &RequestError{Detail: err.Error()}
}
