package model

import "time"

// Notification is an append-only message shown to users. Ref identifies the
// condition that raised it, so the monitor can avoid repeating itself.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Urgent    bool      `json:"urgent"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Ref       string    `json:"ref,omitempty"`
}
