// Package schedule evaluates the weekday recurrence model and derives daily,
// calendar, and period views from tasks and study logs. All functions are
// pure: they operate on rows the caller already fetched.
//
// The weekday bit convention is Monday-start and is part of the public
// contract: bit 0 (value 1) is Monday, bit 1 Tuesday, ..., bit 5 Saturday,
// bit 6 (value 64) Sunday. Mask validation, due-evaluation, and calendar
// computation all share this single mapping.
package schedule

import (
	"github.com/dlanger/studyden/internal/model"
)

const (
	// MinMask is the smallest valid days mask (one weekday set).
	MinMask = 1
	// MaxMask is the largest valid days mask (all seven weekdays set).
	MaxMask = 127
)

// ValidMask reports whether m is a usable 7-bit weekday mask.
func ValidMask(m int) bool {
	return m >= MinMask && m <= MaxMask
}

// WeekdayBit returns the mask bit for the date's weekday under the
// Monday-start convention.
func WeekdayBit(d model.Date) int {
	// time.Weekday is Sunday=0; shift so Monday=0.
	idx := (int(d.Weekday()) + 6) % 7
	return 1 << idx
}

// WeekdayLabel returns the English weekday name for the date.
func WeekdayLabel(d model.Date) string {
	return d.Weekday().String()
}
