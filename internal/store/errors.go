package store

import (
	"errors"
	"strings"
)

var (
	// ErrChildNotFound covers both absent children and children owned by
	// someone else; callers must not be able to tell the two apart.
	ErrChildNotFound = errors.New("child not found")

	// ErrTaskNotFound covers absent tasks and tasks outside the caller's
	// ownership, same policy as ErrChildNotFound.
	ErrTaskNotFound = errors.New("task not found")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidDateRange is returned when a task update would leave
	// start_date after end_date.
	ErrInvalidDateRange = errors.New("start_date is after end_date")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
