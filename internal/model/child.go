package model

import "time"

// Child is a child profile owned by a parent account. Children are
// deactivated rather than deleted so their tasks and logs stay addressable.
type Child struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Grade     string    `json:"grade,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
