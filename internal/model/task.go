package model

import "time"

// Task is a recurring study task for one child. DaysMask encodes the weekdays
// the task recurs on as a 7-bit field, Monday-start: bit 0 (value 1) is
// Monday through bit 6 (value 64) Sunday. StartDate and EndDate, when set,
// bound the recurrence inclusively. Tasks are archived, never deleted.
type Task struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	ChildID        string    `json:"child_id"`
	Name           string    `json:"name"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description,omitempty"`
	DefaultMinutes int       `json:"default_minutes"`
	DaysMask       int       `json:"days_mask"`
	IsArchived     bool      `json:"is_archived"`
	StartDate      *Date     `json:"start_date,omitempty"`
	EndDate        *Date     `json:"end_date,omitempty"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
