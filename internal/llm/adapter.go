package llm

import (
	"context"
	"fmt"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

// Chunk is one increment of a streamed completion. Exactly one of the fields
// is meaningful: a non-empty Content delta, a terminal Done marker, or a
// terminal Err. The producing goroutine closes the channel after a terminal
// chunk.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

// Adapter streams one completion from a concrete model backend.
//
// Open returns an error for failures detected before any content could be
// produced (backend unreachable, request rejected); once it returns a
// channel, the channel yields deltas in generation order, finitely, and is
// not restartable. The stream ends with a Done chunk (clean completion), an
// Err chunk (mid-stream failure), or — when ctx is cancelled — by closing
// with no terminal chunk at all. Cancelling ctx stops token production and
// aborts any outbound call.
type Adapter interface {
	Open(ctx context.Context, history []models.Turn, systemPrompt, userPrompt string) (<-chan Chunk, error)
}

// Factory builds adapters from provider configs. It owns the process-wide
// local-model cache and the HTTP client shared by local adapters, so
// repeated requests against the same weights file reuse the loaded model.
type Factory struct {
	runtime *RuntimeClient
	cache   *ModelCache
	bufSize int
}

func NewFactory(runtimeURL string, streamBufSize int) *Factory {
	runtime := NewRuntimeClient(runtimeURL)
	return &Factory{
		runtime: runtime,
		cache:   NewModelCache(runtime),
		bufSize: streamBufSize,
	}
}

// CreateAdapter selects the adapter variant for the config's kind.
func (f *Factory) CreateAdapter(cfg models.ProviderConfig) (Adapter, error) {
	switch cfg.Kind {
	case models.ProviderKindLocal:
		return newLocalAdapter(f.runtime, f.cache, cfg, f.bufSize)
	case models.ProviderKindOpenAI:
		return newOpenAIAdapter(cfg)
	case models.ProviderKindGemini:
		return newGeminiAdapter(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider kind %q", ErrUnavailable, cfg.Kind)
	}
}
