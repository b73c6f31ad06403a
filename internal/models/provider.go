package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider kinds. A closed set: adding a backend means adding a kind plus an
// adapter implementation, the orchestrator never switches on these.
const (
	ProviderKindLocal  = "local"
	ProviderKindOpenAI = "openai_compatible"
	ProviderKindGemini = "gemini"
)

// ProviderConfig describes one configured language-model backend. At most
// one config is active at a time; activation is an atomic swap. The API key
// is write-only at the HTTP surface and must never appear in error text.
type ProviderConfig struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	FilePath  string    `json:"file_path,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	APIKey    string    `json:"-"`
	Model     string    `json:"model,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderConfigRequest is the payload for creating or updating a provider
// config. APIKey is accepted here but never echoed back.
type ProviderConfigRequest struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	FilePath string `json:"file_path"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}
