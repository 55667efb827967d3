package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dlanger/studyden/internal/model"
)

type StudyLogStore struct {
	db *sql.DB
}

func NewStudyLogStore(db *sql.DB) *StudyLogStore {
	return &StudyLogStore{db: db}
}

func scanLog(scanner interface{ Scan(...any) error }) (*model.StudyLog, error) {
	var l model.StudyLog
	err := scanner.Scan(&l.ID, &l.UserID, &l.ChildID, &l.TaskID, &l.Date, &l.Minutes, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const logCols = `id, user_id, child_id, task_id, date, minutes, created_at`

// ListForDate returns the child's logs for one date.
func (s *StudyLogStore) ListForDate(childID, userID string, date model.Date) ([]model.StudyLog, error) {
	return s.list(
		`SELECT `+logCols+` FROM study_logs WHERE child_id = ? AND user_id = ? AND date = ? ORDER BY task_id ASC`,
		childID, userID, date.String(),
	)
}

// ListRange returns the child's logs with date in [from, to], date ascending.
func (s *StudyLogStore) ListRange(childID, userID string, from, to model.Date) ([]model.StudyLog, error) {
	return s.list(
		`SELECT `+logCols+` FROM study_logs WHERE child_id = ? AND user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC, task_id ASC`,
		childID, userID, from.String(), to.String(),
	)
}

func (s *StudyLogStore) list(query string, args ...any) ([]model.StudyLog, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list study logs: %w", err)
	}
	defer rows.Close()

	var logs []model.StudyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// LogItem is one entry of a daily replace payload.
type LogItem struct {
	TaskID  string
	Minutes int
}

// ReplaceForDate atomically replaces the child's logs for one date:
// it verifies the child under the caller's ownership, verifies every
// referenced task belongs to that child, deletes the day's rows, and inserts
// one row per item. Any failure rolls the whole day back. Returns the number
// of rows written.
func (s *StudyLogStore) ReplaceForDate(userID, childID string, date model.Date, items []LogItem) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRow(`SELECT 1 FROM children WHERE id = ? AND user_id = ?`, childID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return 0, ErrChildNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("check child: %w", err)
	}

	if len(items) > 0 {
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.TaskID
		}
		matched, err := countTasksIn(tx, childID, userID, ids)
		if err != nil {
			return 0, err
		}
		if matched != len(items) {
			return 0, ErrTaskNotFound
		}
	}

	if _, err := tx.Exec(
		`DELETE FROM study_logs WHERE child_id = ? AND user_id = ? AND date = ?`,
		childID, userID, date.String(),
	); err != nil {
		return 0, fmt.Errorf("delete day logs: %w", err)
	}

	for _, item := range items {
		if _, err := tx.Exec(
			`INSERT INTO study_logs (id, user_id, child_id, task_id, date, minutes) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), userID, childID, item.TaskID, date.String(), item.Minutes,
		); err != nil {
			return 0, fmt.Errorf("insert log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return len(items), nil
}
