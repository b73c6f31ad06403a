package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// RuntimeClient talks to a local llama.cpp-style model runtime over its
// localhost HTTP API. One client is shared by every local adapter in the
// process.
type RuntimeClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRuntimeClient(baseURL string) *RuntimeClient {
	// No overall client timeout: responses stream for as long as the model
	// keeps generating. Only the dial and header phases are bounded.
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 120 * time.Second,
		},
	}

	return &RuntimeClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

type runtimeCreateRequest struct {
	Name      string `json:"name"`
	Modelfile string `json:"modelfile"`
}

type runtimeChatRequest struct {
	Model    string           `json:"model"`
	Messages []runtimeMessage `json:"messages"`
	Stream   bool             `json:"stream"`
}

type runtimeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runtimeChatResponse struct {
	Message runtimeMessage `json:"message"`
	Done    bool           `json:"done"`
}

// LoadModel registers a weights file with the runtime under the given model
// name. The runtime streams progress lines; they are drained and discarded,
// only the terminal status matters.
func (c *RuntimeClient) LoadModel(ctx context.Context, name, filePath string) error {
	body := runtimeCreateRequest{
		Name:      name,
		Modelfile: fmt.Sprintf("FROM %s", filePath),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model runtime unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model runtime refused to load %s: %s", filePath, string(detail))
	}

	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return fmt.Errorf("model load interrupted: %w", err)
	}
	return nil
}

// OpenChat issues a streaming chat request and hands back the raw response.
// The caller owns the body and must close it. A non-200 status is returned
// as a RequestError with the runtime's diagnostic body.
func (c *RuntimeClient) OpenChat(ctx context.Context, chatReq runtimeChatRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &RequestError{StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	return resp, nil
}
