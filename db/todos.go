package db

import (
	"context"
	"fmt"
	"time"

	"rdolist/models"
)

const todoColumns = `id, title, note, due_date, notified, completed, completed_at,
	card_id, owner_id, created_at, updated_at`

func scanTodo(row scanner) (models.Todo, error) {
	var t models.Todo
	err := row.Scan(&t.ID, &t.Title, &t.Note, &t.DueDate, &t.Notified, &t.Completed, &t.CompletedAt,
		&t.CardID, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) CreateTodo(ctx context.Context, t *models.Todo) error {
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO todos (title, note, due_date, notified, completed, completed_at,
			card_id, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Note, utc(t.DueDate), t.Notified, t.Completed, utc(t.CompletedAt),
		t.CardID, t.OwnerID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (s *Store) Todo(ctx context.Context, id int64) (*models.Todo, error) {
	t, err := scanTodo(s.db.QueryRowContext(ctx, "SELECT "+todoColumns+" FROM todos WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// UpdateTodo writes every mutable column of t.
func (s *Store) UpdateTodo(ctx context.Context, t *models.Todo) error {
	t.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE todos SET title = ?, note = ?, due_date = ?, notified = ?, completed = ?,
			completed_at = ?, card_id = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Note, utc(t.DueDate), t.Notified, t.Completed,
		utc(t.CompletedAt), t.CardID, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update todo %d: %w", t.ID, err)
	}
	return requireAffected(res)
}

// CompleteTodo marks the todo done and returns it. The completion time is
// kept from the first call.
func (s *Store) CompleteTodo(ctx context.Context, id int64) (*models.Todo, error) {
	t, err := s.Todo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Complete(s.now()) {
		return t, nil
	}
	if err := s.UpdateTodo(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) DeleteTodo(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return requireAffected(res)
}

// Todos lists the owner's todos in the given state, optionally limited to
// one card. Delayed todos are the incomplete ones whose due date has passed
// at call time.
func (s *Store) Todos(ctx context.Context, ownerID int64, cardID *int64, state models.TodoState) ([]models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE owner_id = ?"
	args := []any{ownerID}
	if cardID != nil {
		query += " AND card_id = ?"
		args = append(args, *cardID)
	}
	switch state {
	case models.StateCompleted:
		query += " AND completed = ?"
		args = append(args, true)
	case models.StateIncomplete:
		query += " AND completed = ?"
		args = append(args, false)
	case models.StateDelayed:
		query += " AND completed = ? AND due_date IS NOT NULL"
		args = append(args, false)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos of user %d: %w", ownerID, err)
	}
	defer rows.Close()

	now := s.Now()
	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		if state == models.StateDelayed && !t.IsDelayed(now) {
			continue
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
