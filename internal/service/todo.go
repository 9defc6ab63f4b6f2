// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, scopes by owner, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services never see HTTP types. Every todo operation takes the acting user
// id explicitly; an empty id is apperror.ErrUnauthenticated no matter which
// route called in.
//
// WEB vs API SEMANTICS:
// The web routes (toggle, delete) call the silent variants: a todo that is
// missing or owned by someone else is a no-op, not an error. The JSON API
// calls the strict variants (Get, Update, Remove), which report NotFound
// and Forbidden so clients get reliable status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/repository"
)

// Validation limits.
const (
	MaxTaskLength         = 200
	MaxCategoryNameLength = 50
)

// TodoInput is the data needed to create a todo.
type TodoInput struct {
	Task       string
	CategoryID int64
	Done       bool
}

// TodoPatch is a partial update. Nil fields are left unchanged.
type TodoPatch struct {
	Task       *string
	CategoryID *int64
	Done       *bool
}

// TodoService handles the per-user todo list.
type TodoService struct {
	todos      repository.TodoRepository
	categories repository.CategoryRepository
	validator  *todoValidator
	logger     *slog.Logger
}

// NewTodoService creates a TodoService.
func NewTodoService(todos repository.TodoRepository, categories repository.CategoryRepository, logger *slog.Logger) *TodoService {
	return &TodoService{
		todos:      todos,
		categories: categories,
		validator:  newTodoValidator(categories),
		logger:     logger,
	}
}

// List returns the user's todos ordered by id.
func (s *TodoService) List(ctx context.Context, userID string) ([]model.Todo, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}
	todos, err := s.todos.ListTodos(ctx, repository.TodoFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

// Create validates and saves a new todo owned by userID. Nothing is
// persisted when validation fails.
func (s *TodoService) Create(ctx context.Context, userID string, in TodoInput) (*model.Todo, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}

	todo := &model.Todo{
		Task:       in.Task,
		UserID:     userID,
		CategoryID: in.CategoryID,
		Done:       in.Done,
	}
	if err := s.validator.validate(ctx, todo); err != nil {
		return nil, err
	}

	if err := s.todos.CreateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.Int64("id", todo.ID),
		slog.String("user_id", userID),
		slog.Int64("category_id", todo.CategoryID),
	)
	return todo, nil
}

// Toggle flips done on the user's todo. A missing or foreign todo is a
// silent no-op.
func (s *TodoService) Toggle(ctx context.Context, userID string, id int64) error {
	todo, err := s.ownedOrNil(ctx, userID, id)
	if err != nil || todo == nil {
		return err
	}

	todo.Done = !todo.Done
	if err := s.todos.UpdateTodo(ctx, todo); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Deleted between read and write.
			return nil
		}
		return fmt.Errorf("toggling todo %d: %w", id, err)
	}
	return nil
}

// Delete removes the user's todo. A missing or foreign todo is a silent
// no-op.
func (s *TodoService) Delete(ctx context.Context, userID string, id int64) error {
	todo, err := s.ownedOrNil(ctx, userID, id)
	if err != nil || todo == nil {
		return err
	}

	if err := s.todos.DeleteTodo(ctx, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("deleting todo %d: %w", id, err)
	}
	s.logger.Info("todo deleted", slog.Int64("id", id), slog.String("user_id", userID))
	return nil
}

// Get returns the user's todo.
//
// Errors, checked in this order:
//   - ErrUnauthenticated: empty userID
//   - ErrNotFound: no todo with this id
//   - ErrForbidden: the todo belongs to someone else
func (s *TodoService) Get(ctx context.Context, userID string, id int64) (*model.Todo, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}
	todo, err := s.todos.GetTodo(ctx, id)
	if err != nil {
		return nil, err
	}
	if todo.UserID != userID {
		return nil, apperror.Forbidden("todo belongs to another user")
	}
	return todo, nil
}

// Update applies patch to the user's todo. It reports the same errors as
// Get, then ErrValidation for a bad task or category.
func (s *TodoService) Update(ctx context.Context, userID string, id int64, patch TodoPatch) (*model.Todo, error) {
	todo, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Task != nil {
		todo.Task = *patch.Task
	}
	if patch.CategoryID != nil {
		todo.CategoryID = *patch.CategoryID
	}
	if patch.Done != nil {
		todo.Done = *patch.Done
	}
	if err := s.validator.validate(ctx, todo); err != nil {
		return nil, err
	}

	if err := s.todos.UpdateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("updating todo %d: %w", id, err)
	}
	s.logger.Info("todo updated", slog.Int64("id", id), slog.String("user_id", userID))
	return todo, nil
}

// Remove deletes the user's todo, reporting the same errors as Get.
func (s *TodoService) Remove(ctx context.Context, userID string, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.todos.DeleteTodo(ctx, id); err != nil {
		return fmt.Errorf("deleting todo %d: %w", id, err)
	}
	s.logger.Info("todo deleted", slog.Int64("id", id), slog.String("user_id", userID))
	return nil
}

// ownedOrNil returns the todo when it exists and belongs to userID, and
// (nil, nil) when it is missing or foreign.
func (s *TodoService) ownedOrNil(ctx context.Context, userID string, id int64) (*model.Todo, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated()
	}
	todo, err := s.todos.GetTodo(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting todo %d: %w", id, err)
	}
	if todo.UserID != userID {
		s.logger.Debug("ignoring action on foreign todo", slog.Int64("id", id), slog.String("user_id", userID))
		return nil, nil
	}
	return todo, nil
}

// todoValidator normalizes and checks todo fields. Shared by the user and
// admin services.
//
// Task text is plain text. It is stored as typed (minus surrounding
// whitespace) and html/template escapes it on output, so "a<b" and "&amp;"
// come back exactly as they went in.
type todoValidator struct {
	categories repository.CategoryRepository
}

func newTodoValidator(categories repository.CategoryRepository) *todoValidator {
	return &todoValidator{categories: categories}
}

// validate trims todo.Task in place, then checks the task and category. All
// field problems are reported together.
func (v *todoValidator) validate(ctx context.Context, todo *model.Todo) error {
	fields := map[string]string{}

	todo.Task = strings.TrimSpace(todo.Task)
	switch {
	case todo.Task == "":
		fields["task"] = "task is required"
	case utf8.RuneCountInString(todo.Task) > MaxTaskLength:
		fields["task"] = fmt.Sprintf("task must be %d characters or less", MaxTaskLength)
	}

	if todo.CategoryID <= 0 {
		fields["category_id"] = "category_id is required"
	} else if _, err := v.categories.GetCategory(ctx, todo.CategoryID); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("checking category %d: %w", todo.CategoryID, err)
		}
		fields["category_id"] = fmt.Sprintf("category %d does not exist", todo.CategoryID)
	}

	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}
