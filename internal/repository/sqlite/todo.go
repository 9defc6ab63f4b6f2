package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/repository"
)

var _ repository.TodoRepository = (*DB)(nil)

// CreateTodo inserts a todo and sets its generated ID.
//
// A category_id that does not reference a category fails the FOREIGN KEY
// constraint; the insert is rejected as a whole, so no row is written.
func (db *DB) CreateTodo(ctx context.Context, todo *model.Todo) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO todos (task, user_id, category_id, done) VALUES (?, ?, ?, ?)`,
		todo.Task, todo.UserID, todo.CategoryID, todo.Done,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("category_id",
				fmt.Sprintf("category %d does not exist", todo.CategoryID))
		}
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading todo id: %w", err)
	}
	todo.ID = id
	return nil
}

func (db *DB) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	var t model.Todo
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, task, user_id, category_id, done FROM todos WHERE id = ?`, id,
	).Scan(&t.ID, &t.Task, &t.UserID, &t.CategoryID, &t.Done)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %d: %w", id, err)
	}
	return &t, nil
}

// ListTodos returns todos ordered by ID. A non-empty filter.UserID restricts
// the result to that owner.
func (db *DB) ListTodos(ctx context.Context, filter repository.TodoFilter) ([]model.Todo, error) {
	query := `SELECT id, task, user_id, category_id, done FROM todos`
	var args []any
	if filter.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos: %w", err)
	}
	defer rows.Close()

	todos := []model.Todo{}
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.Task, &t.UserID, &t.CategoryID, &t.Done); err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}
	return todos, nil
}

// UpdateTodo writes every mutable column (task, user_id, category_id, done).
func (db *DB) UpdateTodo(ctx context.Context, todo *model.Todo) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE todos SET task = ?, user_id = ?, category_id = ?, done = ? WHERE id = ?`,
		todo.Task, todo.UserID, todo.CategoryID, todo.Done, todo.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("category_id",
				fmt.Sprintf("category %d does not exist", todo.CategoryID))
		}
		return fmt.Errorf("sqlite: updating todo %d: %w", todo.ID, err)
	}
	return expectOneRow(result, "todo", todo.ID)
}

func (db *DB) DeleteTodo(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %d: %w", id, err)
	}
	return expectOneRow(result, "todo", id)
}

func (db *DB) CountTodos(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting todos: %w", err)
	}
	return n, nil
}
