// Package journal keeps the agent's local state: generated identity and
// token config entries, plus the activity log backing the notification
// history.
package journal

import (
	"time"

	"github.com/google/uuid"
)

// Config keys stored in the agent database.
const (
	ConfigKeyDeviceID  = "device_id"
	ConfigKeyAuthToken = "auth_token"
)

// Entry is one recorded user-visible event.
type Entry struct {
	ID        string    `json:"id"`
	ReelID    string    `json:"reel_id,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh entry identifier.
func NewID() string {
	return uuid.NewString()
}
