package schedule

import (
	"github.com/dlanger/studyden/internal/model"
)

// IsDue reports whether the task recurs on the given date: the task is not
// archived, the date's weekday bit is set in the mask, and the date falls
// inside the task's optional active range (boundaries inclusive).
func IsDue(t model.Task, d model.Date) bool {
	if t.IsArchived {
		return false
	}
	if t.DaysMask&WeekdayBit(d) == 0 {
		return false
	}
	if t.StartDate != nil && d.Before(*t.StartDate) {
		return false
	}
	if t.EndDate != nil && d.After(*t.EndDate) {
		return false
	}
	return true
}

// DueTasks filters tasks to those due on the date, preserving input order.
func DueTasks(tasks []model.Task, d model.Date) []model.Task {
	var due []model.Task
	for _, t := range tasks {
		if IsDue(t, d) {
			due = append(due, t)
		}
	}
	return due
}
