package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dlanger/studyden/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var startDate, endDate sql.NullString

	err := scanner.Scan(
		&t.ID, &t.UserID, &t.ChildID, &t.Name, &t.Subject, &t.Description,
		&t.DefaultMinutes, &t.DaysMask, &t.IsArchived, &startDate, &endDate,
		&t.SortOrder, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		d, err := model.ParseDate(startDate.String)
		if err != nil {
			return nil, fmt.Errorf("stored start_date: %w", err)
		}
		t.StartDate = &d
	}
	if endDate.Valid {
		d, err := model.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("stored end_date: %w", err)
		}
		t.EndDate = &d
	}
	return &t, nil
}

const taskCols = `id, user_id, child_id, name, subject, description, default_minutes, days_mask, is_archived, start_date, end_date, sort_order, created_at, updated_at`

func dateArg(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// Create inserts a new task from the caller-filled fields of t and assigns
// its id. Ownership fields (UserID, ChildID) must be set by the caller.
func (s *TaskStore) Create(t model.Task) (*model.Task, error) {
	t.ID = uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, user_id, child_id, name, subject, description, default_minutes, days_mask, is_archived, start_date, end_date, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ChildID, t.Name, t.Subject, t.Description,
		t.DefaultMinutes, t.DaysMask, t.IsArchived,
		dateArg(t.StartDate), dateArg(t.EndDate), t.SortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(t.ID, t.ChildID, t.UserID)
}

func (s *TaskStore) GetByID(id, childID, userID string) (*model.Task, error) {
	row := s.db.QueryRow(
		`SELECT `+taskCols+` FROM tasks WHERE id = ? AND child_id = ? AND user_id = ?`,
		id, childID, userID,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListByChild returns the child's tasks in display order. Archived tasks are
// excluded unless includeArchived is set.
func (s *TaskStore) ListByChild(childID, userID string, includeArchived bool) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE child_id = ? AND user_id = ?`
	if !includeArchived {
		query += ` AND is_archived = 0`
	}
	query += ` ORDER BY sort_order ASC, subject ASC, name ASC`

	rows, err := s.db.Query(query, childID, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update replaces every mutable field of the task.
func (s *TaskStore) Update(id, childID, userID string, t model.Task) (*model.Task, error) {
	if t.StartDate != nil && t.EndDate != nil && t.StartDate.After(*t.EndDate) {
		return nil, ErrInvalidDateRange
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET name = ?, subject = ?, description = ?, default_minutes = ?, days_mask = ?, is_archived = ?, start_date = ?, end_date = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND child_id = ? AND user_id = ?`,
		t.Name, t.Subject, t.Description, t.DefaultMinutes, t.DaysMask, t.IsArchived,
		dateArg(t.StartDate), dateArg(t.EndDate), t.SortOrder,
		id, childID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id, childID, userID)
}

// OptDate is a tri-state date field for partial updates: leave unchanged
// (Set false), clear (Set true, Date nil), or assign (Set true, Date set).
type OptDate struct {
	Set  bool
	Date *model.Date
}

// TaskPatch is an explicit partial update: nil pointer fields are left
// unchanged, everything else is assigned.
type TaskPatch struct {
	Name           *string
	Subject        *string
	Description    *string
	DefaultMinutes *int
	DaysMask       *int
	IsArchived     *bool
	SortOrder      *int
	StartDate      OptDate
	EndDate        OptDate
}

// Patch applies the partial update in one transaction: read the current row
// under the caller's ownership, merge the provided fields, and write every
// mutable column back in a single UPDATE. Returns (nil, nil) when the task
// is not resolvable for this owner.
func (s *TaskStore) Patch(id, childID, userID string, p TaskPatch) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+taskCols+` FROM tasks WHERE id = ? AND child_id = ? AND user_id = ?`,
		id, childID, userID,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task for patch: %w", err)
	}

	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DefaultMinutes != nil {
		t.DefaultMinutes = *p.DefaultMinutes
	}
	if p.DaysMask != nil {
		t.DaysMask = *p.DaysMask
	}
	if p.IsArchived != nil {
		t.IsArchived = *p.IsArchived
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
	if p.StartDate.Set {
		t.StartDate = p.StartDate.Date
	}
	if p.EndDate.Set {
		t.EndDate = p.EndDate.Date
	}

	if t.StartDate != nil && t.EndDate != nil && t.StartDate.After(*t.EndDate) {
		return nil, ErrInvalidDateRange
	}

	_, err = tx.Exec(
		`UPDATE tasks SET name = ?, subject = ?, description = ?, default_minutes = ?, days_mask = ?, is_archived = ?, start_date = ?, end_date = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND child_id = ? AND user_id = ?`,
		t.Name, t.Subject, t.Description, t.DefaultMinutes, t.DaysMask, t.IsArchived,
		dateArg(t.StartDate), dateArg(t.EndDate), t.SortOrder,
		id, childID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("patch task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit patch: %w", err)
	}
	return s.GetByID(id, childID, userID)
}

// UpdateSortOrder assigns sort_order by position in ids. Every id must be a
// task of (childID, userID); otherwise nothing changes and ErrTaskNotFound
// is returned.
func (s *TaskStore) UpdateSortOrder(childID, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	matched, err := countTasksIn(tx, childID, userID, ids)
	if err != nil {
		return err
	}
	if matched != len(ids) {
		return ErrTaskNotFound
	}

	for i, id := range ids {
		if _, err := tx.Exec(
			`UPDATE tasks SET sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND child_id = ? AND user_id = ?`,
			i, id, childID, userID,
		); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// countTasksIn counts how many of ids are tasks of (childID, userID).
func countTasksIn(q querier, childID, userID string, ids []string) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+2)
	args = append(args, childID, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE child_id = ? AND user_id = ? AND id IN (`+placeholders+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}
