package schedule

import (
	"sort"

	"github.com/dlanger/studyden/internal/model"
)

// DailyTask is one due task merged with its completion state for a date.
// Minutes holds the logged minutes when done, otherwise the task's default.
type DailyTask struct {
	TaskID         string `json:"task_id"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	DefaultMinutes int    `json:"default_minutes"`
	IsDone         bool   `json:"is_done"`
	Minutes        int    `json:"minutes"`
}

// DailyView is the merged due-task list for a single date.
type DailyView struct {
	Date    model.Date  `json:"date"`
	Weekday string      `json:"weekday"`
	Tasks   []DailyTask `json:"tasks"`
}

// BuildDailyView merges the tasks due on date with that date's study logs.
// Tasks are ordered by sort order, then subject, then name.
func BuildDailyView(date model.Date, tasks []model.Task, logs []model.StudyLog) DailyView {
	logged := make(map[string]int, len(logs))
	for _, l := range logs {
		logged[l.TaskID] = l.Minutes
	}

	due := DueTasks(tasks, date)
	sortTasks(due)

	view := DailyView{
		Date:    date,
		Weekday: WeekdayLabel(date),
		Tasks:   make([]DailyTask, 0, len(due)),
	}
	for _, t := range due {
		minutes, done := logged[t.ID]
		if !done {
			minutes = t.DefaultMinutes
		}
		view.Tasks = append(view.Tasks, DailyTask{
			TaskID:         t.ID,
			Name:           t.Name,
			Subject:        t.Subject,
			DefaultMinutes: t.DefaultMinutes,
			IsDone:         done,
			Minutes:        minutes,
		})
	}
	return view
}

func sortTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].SortOrder != tasks[j].SortOrder {
			return tasks[i].SortOrder < tasks[j].SortOrder
		}
		if tasks[i].Subject != tasks[j].Subject {
			return tasks[i].Subject < tasks[j].Subject
		}
		return tasks[i].Name < tasks[j].Name
	})
}
