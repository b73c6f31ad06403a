package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/calebkish/control-generator-sub000/internal/services"
	"github.com/calebkish/control-generator-sub000/internal/stream"
)

type stubChatService struct {
	runFunc  func(ctx context.Context, req services.StreamRequest, sink stream.Sink) error
	clearErr error
	cleared  []uuid.UUID
}

func (s *stubChatService) Run(ctx context.Context, req services.StreamRequest, sink stream.Sink) error {
	return s.runFunc(ctx, req, sink)
}

func (s *stubChatService) ClearHistory(ctx context.Context, conversationID uuid.UUID) error {
	s.cleared = append(s.cleared, conversationID)
	return s.clearErr
}

func chatTestRouter(svc *stubChatService) http.Handler {
	h := NewChatHandler(svc)
	r := chi.NewRouter()
	r.Post("/conversations/{id}/prompt", h.Prompt)
	r.Delete("/conversations/{id}/history", h.ClearHistory)
	return r
}

func promptBody(t *testing.T, prompt string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{"user_prompt": prompt})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(body)
}

func TestPrompt_StreamsChunks(t *testing.T) {
	svc := &stubChatService{
		runFunc: func(ctx context.Context, req services.StreamRequest, sink stream.Sink) error {
			if req.UserPrompt != "Hello" {
				t.Errorf("Expected user prompt 'Hello', got %q", req.UserPrompt)
			}
			sink.Start()
			for _, chunk := range []string{"Hi", " there", "!"} {
				if err := sink.Send(chunk); err != nil {
					return err
				}
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/conversations/"+uuid.NewString()+"/prompt", promptBody(t, "Hello"))
	rr := httptest.NewRecorder()
	chatTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "Hi there!" {
		t.Errorf("Expected streamed body %q, got %q", "Hi there!", body)
	}
	if got := rr.Header().Get(stream.ErrorTrailer); got != "" {
		t.Errorf("Expected clean completion, got error trailer %q", got)
	}
}

func TestPrompt_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
	}{
		{"bad conversation id", "/conversations/not-a-uuid/prompt", `{"user_prompt":"hi"}`},
		{"empty prompt", "/conversations/" + uuid.NewString() + "/prompt", `{"user_prompt":"  "}`},
		{"malformed body", "/conversations/" + uuid.NewString() + "/prompt", `{`},
	}

	svc := &stubChatService{
		runFunc: func(ctx context.Context, req services.StreamRequest, sink stream.Sink) error {
			t.Error("Service must not be called on validation failure")
			return nil
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.url, bytes.NewReader([]byte(tc.body)))
			rr := httptest.NewRecorder()
			chatTestRouter(svc).ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
		})
	}
}

func TestPrompt_PreStreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conversation missing", services.ErrConversationNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"no active provider", services.ErrNoActiveProvider, http.StatusPreconditionFailed, "NO_ACTIVE_PROVIDER"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubChatService{
				runFunc: func(ctx context.Context, req services.StreamRequest, sink stream.Sink) error {
					return tc.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/conversations/"+uuid.NewString()+"/prompt", promptBody(t, "Hello"))
			rr := httptest.NewRecorder()
			chatTestRouter(svc).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp map[string]map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Expected JSON error payload: %v", err)
			}
			if got := resp["error"]["code"]; got != tc.wantCode {
				t.Errorf("Expected error code %q, got %v", tc.wantCode, got)
			}
		})
	}
}

func TestPrompt_CommitFailureSetsTrailer(t *testing.T) {
	svc := &stubChatService{
		runFunc: func(ctx context.Context, req services.StreamRequest, sink stream.Sink) error {
			sink.Start()
			sink.Send("full response")
			return &services.CommitError{Err: context.DeadlineExceeded}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/conversations/"+uuid.NewString()+"/prompt", promptBody(t, "Hello"))
	rr := httptest.NewRecorder()
	chatTestRouter(svc).ServeHTTP(rr, req)

	if body := rr.Body.String(); body != "full response" {
		t.Errorf("Streamed content must stay intact, got %q", body)
	}
	if got := rr.Header().Get(stream.ErrorTrailer); got != "COMMIT_FAILED" {
		t.Errorf("Expected COMMIT_FAILED trailer, got %q", got)
	}
}

func TestClearHistory_NoContent(t *testing.T) {
	svc := &stubChatService{runFunc: nil}
	id := uuid.New()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/"+id.String()+"/history", nil)
	rr := httptest.NewRecorder()
	chatTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != id {
		t.Errorf("Expected clear of %s, got %v", id, svc.cleared)
	}
}

func TestClearHistory_NotFound(t *testing.T) {
	svc := &stubChatService{clearErr: services.ErrConversationNotFound}

	req := httptest.NewRequest(http.MethodDelete, "/conversations/"+uuid.NewString()+"/history", nil)
	rr := httptest.NewRecorder()
	chatTestRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}
