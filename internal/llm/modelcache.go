package llm

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// modelLoader is the slice of RuntimeClient the cache needs; tests substitute
// a fake.
type modelLoader interface {
	LoadModel(ctx context.Context, name, filePath string) error
}

// ModelCache maps a weights file path to the runtime-side model name,
// registering each file with the runtime at most once per process. Loading
// pages in megabytes-to-gigabytes of weights, so the first caller performs
// the load and concurrent callers for the same path wait on that same
// in-flight load.
type ModelCache struct {
	loader modelLoader
	group  singleflight.Group

	mu     sync.RWMutex
	loaded map[string]string // absolute file path -> model name
}

func NewModelCache(loader modelLoader) *ModelCache {
	return &ModelCache{
		loader: loader,
		loaded: make(map[string]string),
	}
}

// Ensure returns the runtime model name for the given weights file, loading
// it on first use. A missing file or a failed load is ErrUnavailable.
func (c *ModelCache) Ensure(ctx context.Context, filePath string) (string, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: bad model path %q: %v", ErrUnavailable, filePath, err)
	}

	c.mu.RLock()
	name, ok := c.loaded[abs]
	c.mu.RUnlock()
	if ok {
		return name, nil
	}

	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("%w: model file %s: %v", ErrUnavailable, abs, err)
	}

	v, err, _ := c.group.Do(abs, func() (interface{}, error) {
		// Re-check under the flight: a previous caller may have finished
		// between the fast path and Do.
		c.mu.RLock()
		name, ok := c.loaded[abs]
		c.mu.RUnlock()
		if ok {
			return name, nil
		}

		name = modelName(abs)
		if err := c.loader.LoadModel(ctx, name, abs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		c.mu.Lock()
		c.loaded[abs] = name
		c.mu.Unlock()
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// modelName derives a stable runtime-side name from the weights path.
func modelName(absPath string) string {
	sum := sha1.Sum([]byte(absPath))
	return "controlgen-" + hex.EncodeToString(sum[:6])
}
