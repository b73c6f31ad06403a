package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeLoader struct {
	loads int32
	fail  error
}

func (f *fakeLoader) LoadModel(ctx context.Context, name, filePath string) error {
	atomic.AddInt32(&f.loads, 1)
	return f.fail
}

func tempWeightsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestModelCache_LoadsOnce(t *testing.T) {
	loader := &fakeLoader{}
	cache := NewModelCache(loader)
	path := tempWeightsFile(t)

	first, err := cache.Ensure(context.Background(), path)
	if err != nil {
		t.Fatalf("First Ensure failed: %v", err)
	}

	second, err := cache.Ensure(context.Background(), path)
	if err != nil {
		t.Fatalf("Second Ensure failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected stable model name, got %q then %q", first, second)
	}
	if n := atomic.LoadInt32(&loader.loads); n != 1 {
		t.Errorf("Expected exactly 1 load, got %d", n)
	}
}

func TestModelCache_ConcurrentCallersShareLoad(t *testing.T) {
	loader := &fakeLoader{}
	cache := NewModelCache(loader)
	path := tempWeightsFile(t)

	var wg sync.WaitGroup
	names := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name, err := cache.Ensure(context.Background(), path)
			if err != nil {
				t.Errorf("Ensure failed: %v", err)
				return
			}
			names[i] = name
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(names); i++ {
		if names[i] != names[0] {
			t.Errorf("Caller %d got model %q, caller 0 got %q", i, names[i], names[0])
		}
	}
	if n := atomic.LoadInt32(&loader.loads); n != 1 {
		t.Errorf("Expected concurrent callers to share one load, got %d loads", n)
	}
}

func TestModelCache_MissingFile(t *testing.T) {
	cache := NewModelCache(&fakeLoader{})

	_, err := cache.Ensure(context.Background(), "/nonexistent/model.gguf")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for missing file, got %v", err)
	}
}

func TestModelCache_FailedLoadNotCached(t *testing.T) {
	loader := &fakeLoader{fail: errors.New("out of memory")}
	cache := NewModelCache(loader)
	path := tempWeightsFile(t)

	if _, err := cache.Ensure(context.Background(), path); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable for failed load, got %v", err)
	}

	// A later attempt retries instead of serving the failure from cache.
	loader.fail = nil
	if _, err := cache.Ensure(context.Background(), path); err != nil {
		t.Fatalf("Expected retry after failed load to succeed, got %v", err)
	}
	if n := atomic.LoadInt32(&loader.loads); n != 2 {
		t.Errorf("Expected 2 load attempts, got %d", n)
	}
}
