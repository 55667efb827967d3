package schedule

import (
	"errors"

	"github.com/dlanger/studyden/internal/model"
)

// MaxCalendarDays bounds the inclusive day count of a calendar request.
const MaxCalendarDays = 62

var (
	// ErrRangeInverted means from is after to.
	ErrRangeInverted = errors.New("from is after to")
	// ErrRangeTooLong means the inclusive day count exceeds the builder's cap.
	ErrRangeTooLong = errors.New("date range too long")
)

// DayStatus is the completion color of a calendar day.
type DayStatus string

const (
	StatusWhite  DayStatus = "white"
	StatusGreen  DayStatus = "green"
	StatusYellow DayStatus = "yellow"
	StatusRed    DayStatus = "red"
)

// CalendarDay is one day of the completion calendar.
type CalendarDay struct {
	Date   model.Date `json:"date"`
	Total  int        `json:"total"`
	Done   int        `json:"done"`
	Status DayStatus  `json:"status"`
}

// Calendar is a per-day completion summary over an inclusive date range.
type Calendar struct {
	From model.Date    `json:"from"`
	To   model.Date    `json:"to"`
	Days []CalendarDay `json:"days"`
}

// BuildCalendar computes per-day due/done counts and a status color for every
// date in [from, to]. Days strictly after today are white regardless of
// counts; so are days with nothing due. A past or current day is green when
// everything due was logged, yellow when something was, red when nothing was.
func BuildCalendar(from, to, today model.Date, tasks []model.Task, logs []model.StudyLog) (Calendar, error) {
	if err := checkRange(from, to, MaxCalendarDays); err != nil {
		return Calendar{}, err
	}

	loggedByDate := make(map[string]map[string]bool)
	for _, l := range logs {
		key := l.Date.String()
		if loggedByDate[key] == nil {
			loggedByDate[key] = make(map[string]bool)
		}
		loggedByDate[key][l.TaskID] = true
	}

	cal := Calendar{From: from, To: to}
	for d := from; !d.After(to); d = d.AddDays(1) {
		day := CalendarDay{Date: d}
		logged := loggedByDate[d.String()]
		for _, t := range tasks {
			if !IsDue(t, d) {
				continue
			}
			day.Total++
			if logged[t.ID] {
				day.Done++
			}
		}
		day.Status = dayStatus(d, today, day.Total, day.Done)
		cal.Days = append(cal.Days, day)
	}
	return cal, nil
}

func dayStatus(d, today model.Date, total, done int) DayStatus {
	switch {
	case d.After(today):
		return StatusWhite
	case total == 0:
		return StatusWhite
	case done == total:
		return StatusGreen
	case done > 0:
		return StatusYellow
	default:
		return StatusRed
	}
}

func checkRange(from, to model.Date, maxDays int) error {
	if from.After(to) {
		return ErrRangeInverted
	}
	if from.DaysUntil(to)+1 > maxDays {
		return ErrRangeTooLong
	}
	return nil
}
