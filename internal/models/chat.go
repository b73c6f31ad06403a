package models

import (
	"time"

	"github.com/google/uuid"
)

// Turn roles. A conversation only ever holds user/model pairs appended
// together by a single completed exchange.
const (
	TurnRoleUser  = "user"
	TurnRoleModel = "model"
)

// Turn is one message in a conversation, tagged by role. User turns carry
// Text; model turns carry Response, a list of alternative completions of
// which the first element is the one that was streamed.
type Turn struct {
	Role     string   `json:"role"`
	Text     string   `json:"text,omitempty"`
	Response []string `json:"response,omitempty"`
}

// UserTurn builds a user-authored turn.
func UserTurn(text string) Turn {
	return Turn{Role: TurnRoleUser, Text: text}
}

// ModelTurn builds a model-authored turn with a single completion.
func ModelTurn(response string) Turn {
	return Turn{Role: TurnRoleModel, Response: []string{response}}
}

// Conversation is a persisted chat thread: a system prompt plus an ordered,
// append-only history of turns. One conversation exists per logical chat
// topic on a control and is created lazily on first access.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	ControlID    uuid.UUID `json:"control_id"`
	Topic        string    `json:"topic"`
	SystemPrompt string    `json:"system_prompt"`
	History      []Turn    `json:"history"`
	CreatedAt    time.Time `json:"created_at"`
}

// PromptRequest is the payload sent to the streaming prompt endpoint.
// SystemPrompt, when set, overrides the conversation's stored system prompt
// for this single exchange without persisting it. ProviderConfigID, when
// set, bypasses the active-config lookup.
type PromptRequest struct {
	UserPrompt       string     `json:"user_prompt"`
	SystemPrompt     *string    `json:"system_prompt,omitempty"`
	ProviderConfigID *uuid.UUID `json:"provider_config_id,omitempty"`
}
