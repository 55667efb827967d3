package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dlanger/studyden/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	err := scanner.Scan(&c.ID, &c.UserID, &c.Name, &c.Grade, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const childCols = `id, user_id, name, grade, is_active, created_at, updated_at`

func (s *ChildStore) Create(userID, name, grade string) (*model.Child, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO children (id, user_id, name, grade) VALUES (?, ?, ?, ?)`,
		id, userID, name, grade,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	return s.GetByID(id, userID)
}

// GetByID returns the child regardless of active state, but only when owned
// by userID. Unowned and absent children are both (nil, nil).
func (s *ChildStore) GetByID(id, userID string) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// List returns the owner's active children.
func (s *ChildStore) List(userID string) ([]model.Child, error) {
	rows, err := s.db.Query(
		`SELECT `+childCols+` FROM children WHERE user_id = ? AND is_active = 1 ORDER BY created_at ASC, name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *ChildStore) Update(id, userID, name, grade string) (*model.Child, error) {
	_, err := s.db.Exec(
		`UPDATE children SET name = ?, grade = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		name, grade, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.GetByID(id, userID)
}

// Deactivate soft-deletes the child. The row and its tasks and logs remain.
func (s *ChildStore) Deactivate(id, userID string) error {
	_, err := s.db.Exec(
		`UPDATE children SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate child: %w", err)
	}
	return nil
}
