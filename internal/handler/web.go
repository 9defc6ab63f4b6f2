package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/auth"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/service"
)

// WebHandler serves the browser to-do list.
//
// Every route here is forgiving: an anonymous visitor, a missing todo or a
// todo owned by someone else all end in a redirect back to "/" rather than
// an error page. The JSON API is where precise status codes live.
type WebHandler struct {
	todos      *service.TodoService
	categories *service.CategoryService
	render     *Renderer
	logger     *slog.Logger
}

func NewWebHandler(todos *service.TodoService, categories *service.CategoryService, render *Renderer, logger *slog.Logger) *WebHandler {
	return &WebHandler{todos: todos, categories: categories, render: render, logger: logger}
}

// todoView is a todo with its category name resolved for display.
type todoView struct {
	model.Todo
	CategoryName string
}

type indexPage struct {
	Todos      []todoView
	Categories []model.Category
}

// HandleHome shows the user's todos, or the login page when anonymous.
//
// HTTP: GET /
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.render.Render(w, r, http.StatusOK, "login", nil)
		return
	}

	todos, err := h.todos.List(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "index", indexPage{
		Todos:      withCategoryNames(todos, categories),
		Categories: categories,
	})
}

// HandleAdd creates a todo from the home page form.
//
// HTTP: POST /add (form: task, category_id)
//
// Bad input is dropped silently: the form already enforces the limits, so
// a request that gets past it is not worth an error page.
func (h *WebHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	categoryID, err := strconv.ParseInt(r.PostForm.Get("category_id"), 10, 64)
	if err != nil || categoryID <= 0 {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	_, err = h.todos.Create(r.Context(), user.ID, service.TodoInput{
		Task:       r.PostForm.Get("task"),
		CategoryID: categoryID,
	})
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrValidation):
		h.logger.Debug("ignoring invalid todo from form", slog.String("error", err.Error()))
	default:
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleToggle flips a todo's done flag.
//
// HTTP: GET /toggle/{id}
func (h *WebHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.todos.Toggle)
}

// HandleDelete removes a todo.
//
// HTTP: GET /delete/{id}
func (h *WebHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.todos.Delete)
}

// act runs a silent per-todo action for the current user and goes home.
func (h *WebHandler) act(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID string, id int64) error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if err := action(r.Context(), user.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *WebHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("web request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	h.render.Error(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// withCategoryNames pairs each todo with its category's name.
func withCategoryNames(todos []model.Todo, categories []model.Category) []todoView {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	views := make([]todoView, 0, len(todos))
	for _, t := range todos {
		views = append(views, todoView{Todo: t, CategoryName: names[t.CategoryID]})
	}
	return views
}
