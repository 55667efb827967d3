package schedule

import (
	"sort"

	"github.com/dlanger/studyden/internal/model"
)

// MaxSummaryDays bounds the inclusive day count of a period summary request.
const MaxSummaryDays = 366

// DayMinutes is the minute total for one calendar date.
type DayMinutes struct {
	Date    model.Date `json:"date"`
	Minutes int        `json:"minutes"`
}

// SubjectMinutes is the minute total for one subject.
type SubjectMinutes struct {
	Subject string `json:"subject"`
	Minutes int    `json:"minutes"`
}

// TaskMinutes is the minute total for one task.
type TaskMinutes struct {
	TaskID  string `json:"task_id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Minutes int    `json:"minutes"`
}

// Summary aggregates logged minutes over a date range.
type Summary struct {
	From         model.Date       `json:"from"`
	To           model.Date       `json:"to"`
	TotalMinutes int              `json:"total_minutes"`
	ByDay        []DayMinutes     `json:"by_day"`
	BySubject    []SubjectMinutes `json:"by_subject"`
	ByTask       []TaskMinutes    `json:"by_task"`
}

// BuildSummary sums logged minutes in [from, to] per day, subject, and task.
// ByDay lists only dates that have at least one log, ascending. BySubject and
// ByTask are descending by minutes with ascending name breaking ties. The
// tasks slice supplies name and subject and should include archived tasks so
// historical logs stay attributed.
func BuildSummary(from, to model.Date, tasks []model.Task, logs []model.StudyLog) (Summary, error) {
	if err := checkRange(from, to, MaxSummaryDays); err != nil {
		return Summary{}, err
	}

	taskByID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}

	sum := Summary{From: from, To: to}
	dayTotals := make(map[string]int)
	subjectTotals := make(map[string]int)
	taskTotals := make(map[string]int)

	for _, l := range logs {
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		sum.TotalMinutes += l.Minutes
		dayTotals[l.Date.String()] += l.Minutes
		subjectTotals[taskByID[l.TaskID].Subject] += l.Minutes
		taskTotals[l.TaskID] += l.Minutes
	}

	for dateStr, minutes := range dayTotals {
		d, err := model.ParseDate(dateStr)
		if err != nil {
			continue
		}
		sum.ByDay = append(sum.ByDay, DayMinutes{Date: d, Minutes: minutes})
	}
	sort.Slice(sum.ByDay, func(i, j int) bool {
		return sum.ByDay[i].Date.Before(sum.ByDay[j].Date)
	})

	for subject, minutes := range subjectTotals {
		sum.BySubject = append(sum.BySubject, SubjectMinutes{Subject: subject, Minutes: minutes})
	}
	sort.Slice(sum.BySubject, func(i, j int) bool {
		if sum.BySubject[i].Minutes != sum.BySubject[j].Minutes {
			return sum.BySubject[i].Minutes > sum.BySubject[j].Minutes
		}
		return sum.BySubject[i].Subject < sum.BySubject[j].Subject
	})

	for taskID, minutes := range taskTotals {
		t := taskByID[taskID]
		sum.ByTask = append(sum.ByTask, TaskMinutes{
			TaskID:  taskID,
			Name:    t.Name,
			Subject: t.Subject,
			Minutes: minutes,
		})
	}
	sort.Slice(sum.ByTask, func(i, j int) bool {
		if sum.ByTask[i].Minutes != sum.ByTask[j].Minutes {
			return sum.ByTask[i].Minutes > sum.ByTask[j].Minutes
		}
		return sum.ByTask[i].Name < sum.ByTask[j].Name
	})

	return sum, nil
}
