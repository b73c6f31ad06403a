package models

import (
	"time"

	"github.com/google/uuid"
)

// Control is the owning parent record for chat conversations: one internal
// control being documented. The chat core treats its contents as opaque;
// deleting a control cascades to its conversations at the schema level.
type Control struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ControlRequest is the payload for creating or updating a control.
type ControlRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
