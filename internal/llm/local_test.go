package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calebkish/control-generator-sub000/internal/models"
)

func localTestFactory(t *testing.T, handler http.Handler) (*Factory, models.ProviderConfig) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory := NewFactory(server.URL, 64*1024)
	cfg := models.ProviderConfig{
		Name:     "local test",
		Kind:     models.ProviderKindLocal,
		FilePath: tempWeightsFile(t),
	}
	return factory, cfg
}

func TestLocalAdapter_StreamsDeltasInOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		for _, delta := range []string{"Hi", " there", "!"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", delta)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	})

	factory, cfg := localTestFactory(t, mux)
	adapter, err := factory.CreateAdapter(cfg)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	ch, err := adapter.Open(context.Background(), nil, "S", "Hello")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var got []string
	done := false
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("Unexpected stream error: %v", chunk.Err)
		}
		if chunk.Done {
			done = true
			continue
		}
		got = append(got, chunk.Content)
	}

	if !done {
		t.Error("Expected a terminal Done chunk")
	}
	if strings.Join(got, "") != "Hi there!" {
		t.Errorf("Expected chunks to concatenate to %q, got %q", "Hi there!", strings.Join(got, ""))
	}
}

func TestLocalAdapter_RuntimeRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	factory, cfg := localTestFactory(t, mux)
	adapter, err := factory.CreateAdapter(cfg)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	_, err = adapter.Open(context.Background(), nil, "", "Hello")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", reqErr.StatusCode)
	}
}

func TestLocalAdapter_FailedLoadIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported weights format", http.StatusBadRequest)
	})

	factory, cfg := localTestFactory(t, mux)
	adapter, err := factory.CreateAdapter(cfg)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	_, err = adapter.Open(context.Background(), nil, "", "Hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestLocalAdapter_CancellationStopsStream(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/create", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hi"},"done":false}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	factory, cfg := localTestFactory(t, mux)
	adapter, err := factory.CreateAdapter(cfg)
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := adapter.Open(ctx, nil, "", "Hello")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	first := <-ch
	if first.Content != "Hi" {
		t.Fatalf("Expected first delta %q, got %+v", "Hi", first)
	}

	cancel()

	// The channel must close promptly with no Done chunk.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			if chunk.Done {
				t.Fatal("Got Done chunk after cancellation")
			}
		case <-deadline:
			t.Fatal("Stream did not terminate after cancellation")
		}
	}
}
