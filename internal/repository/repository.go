// Package repository declares the storage interfaces the service layer and
// the session store depend on. internal/repository/sqlite implements them.
package repository

import (
	"context"
	"time"

	"github.com/sakif/todo-app/internal/model"
)

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
	CountCategories(ctx context.Context) (int, error)
}

// TodoFilter narrows ListTodos. The zero value lists every todo.
type TodoFilter struct {
	UserID string
}

type TodoRepository interface {
	CreateTodo(ctx context.Context, todo *model.Todo) error
	GetTodo(ctx context.Context, id int64) (*model.Todo, error)
	ListTodos(ctx context.Context, filter TodoFilter) ([]model.Todo, error)
	UpdateTodo(ctx context.Context, todo *model.Todo) error
	DeleteTodo(ctx context.Context, id int64) error
	CountTodos(ctx context.Context) (int, error)
}

// SessionRepository persists encoded session blobs for the server-side
// session store. Expired rows are treated as missing.
type SessionRepository interface {
	LoadSession(ctx context.Context, id string) (string, error)
	SaveSession(ctx context.Context, id, data string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}
