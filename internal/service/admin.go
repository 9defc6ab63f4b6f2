package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/repository"
)

// Demo data inserted by SeedDemo.
const (
	DemoUserID = "github|5987806"
	DemoTask   = "Mr Eggleton checking your Todo App!"
)

// AdminTodoInput is a todo as edited in the admin panel, owner included.
type AdminTodoInput struct {
	Task       string
	UserID     string
	CategoryID int64
	Done       bool
}

// AdminService is unscoped todo CRUD for the admin panel.
//
// BLANKET TRUST: there is no owner check here. Any signed-in user who can
// reach /admin/ can read and rewrite every user's todos. Callers gate access
// at the route level; row-level rules do not apply.
type AdminService struct {
	todos     repository.TodoRepository
	validator *todoValidator
	logger    *slog.Logger
}

func NewAdminService(todos repository.TodoRepository, categories repository.CategoryRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		todos:     todos,
		validator: newTodoValidator(categories),
		logger:    logger,
	}
}

// ListTodos returns every todo of every user, ordered by id.
func (s *AdminService) ListTodos(ctx context.Context) ([]model.Todo, error) {
	todos, err := s.todos.ListTodos(ctx, repository.TodoFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

func (s *AdminService) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	return s.todos.GetTodo(ctx, id)
}

func (s *AdminService) CreateTodo(ctx context.Context, in AdminTodoInput) (*model.Todo, error) {
	todo := &model.Todo{
		Task:       in.Task,
		UserID:     strings.TrimSpace(in.UserID),
		CategoryID: in.CategoryID,
		Done:       in.Done,
	}
	if err := s.validate(ctx, todo); err != nil {
		return nil, err
	}
	if err := s.todos.CreateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}
	s.logger.Info("admin created todo", slog.Int64("id", todo.ID), slog.String("user_id", todo.UserID))
	return todo, nil
}

// UpdateTodo replaces every editable field of the todo.
func (s *AdminService) UpdateTodo(ctx context.Context, id int64, in AdminTodoInput) (*model.Todo, error) {
	if _, err := s.todos.GetTodo(ctx, id); err != nil {
		return nil, err
	}

	todo := &model.Todo{
		ID:         id,
		Task:       in.Task,
		UserID:     strings.TrimSpace(in.UserID),
		CategoryID: in.CategoryID,
		Done:       in.Done,
	}
	if err := s.validate(ctx, todo); err != nil {
		return nil, err
	}
	if err := s.todos.UpdateTodo(ctx, todo); err != nil {
		return nil, fmt.Errorf("updating todo %d: %w", id, err)
	}
	s.logger.Info("admin updated todo", slog.Int64("id", id))
	return todo, nil
}

func (s *AdminService) DeleteTodo(ctx context.Context, id int64) error {
	if err := s.todos.DeleteTodo(ctx, id); err != nil {
		return fmt.Errorf("deleting todo %d: %w", id, err)
	}
	s.logger.Info("admin deleted todo", slog.Int64("id", id))
	return nil
}

// SeedDemo inserts the demo todo for DemoUserID into categoryID, but only
// while no todo exists at all. It reports whether it inserted.
func (s *AdminService) SeedDemo(ctx context.Context, categoryID int64) (bool, error) {
	n, err := s.todos.CountTodos(ctx)
	if err != nil {
		return false, fmt.Errorf("counting todos: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateTodo(ctx, AdminTodoInput{Task: DemoTask, UserID: DemoUserID, CategoryID: categoryID}); err != nil {
		return false, err
	}
	return true, nil
}

// validate adds the owner check to the shared task/category rules, so
// every problem is reported in one error.
func (s *AdminService) validate(ctx context.Context, todo *model.Todo) error {
	err := s.validator.validate(ctx, todo)
	if todo.UserID != "" {
		return err
	}

	fields := map[string]string{"user_id": "user_id is required"}
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Fields == nil {
			return err
		}
		maps.Copy(fields, appErr.Fields)
	}
	return apperror.Invalid(fields)
}
