package model

import "time"

// StudyLog records minutes actually spent on a task on one date. At most one
// row exists per (child, date, task); the row's existence marks the task done
// for that date regardless of the minutes value.
type StudyLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ChildID   string    `json:"child_id"`
	TaskID    string    `json:"task_id"`
	Date      Date      `json:"date"`
	Minutes   int       `json:"minutes"`
	CreatedAt time.Time `json:"created_at"`
}
