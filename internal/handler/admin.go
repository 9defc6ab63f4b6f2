package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/service"
)

// AdminHandler serves the HTML admin panel under /admin/.
//
// ACCESS:
// The router wraps these routes in auth.RequireUser, so every handler here
// runs with a signed-in user. There is no further check: any user can edit
// any record (see service.AdminService).
//
// ROUTES:
//
//	GET  /admin/                        → index
//	GET  /admin/todos                   → list
//	GET  /admin/todos/new               → empty form
//	POST /admin/todos                   → create
//	GET  /admin/todos/{id}/edit         → filled form
//	POST /admin/todos/{id}              → update
//	POST /admin/todos/{id}/delete       → delete
//	(the same five for /admin/categories)
type AdminHandler struct {
	admin      *service.AdminService
	categories *service.CategoryService
	render     *Renderer
	logger     *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, categories *service.CategoryService, render *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, categories: categories, render: render, logger: logger}
}

type adminIndexPage struct {
	Todos      int
	Categories int
}

type adminTodosPage struct {
	Todos []todoView
}

type todoForm struct {
	ID         int64
	Action     string
	Task       string
	UserID     string
	CategoryID int64
	Done       bool
	Categories []model.Category
	Error      string
}

type categoriesPage struct {
	Categories []model.Category
	Error      string
}

type categoryForm struct {
	ID     int64
	Action string
	Name   string
	Error  string
}

// HandleIndex shows record counts and links to each model.
func (h *AdminHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	todos, err := h.admin.ListTodos(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "admin_index", adminIndexPage{
		Todos:      len(todos),
		Categories: len(categories),
	})
}

// =========================================================================
// TODOS
// =========================================================================

func (h *AdminHandler) HandleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.admin.ListTodos(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "admin_todos", adminTodosPage{
		Todos: withCategoryNames(todos, categories),
	})
}

func (h *AdminHandler) HandleNewTodo(w http.ResponseWriter, r *http.Request) {
	h.renderTodoForm(w, r, http.StatusOK, todoForm{Action: "/admin/todos"})
}

func (h *AdminHandler) HandleCreateTodo(w http.ResponseWriter, r *http.Request) {
	form := todoFormFrom(r)
	form.Action = "/admin/todos"

	if _, err := h.admin.CreateTodo(r.Context(), form.input()); err != nil {
		h.todoFormFailed(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/admin/todos", http.StatusSeeOther)
}

func (h *AdminHandler) HandleEditTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	todo, err := h.admin.GetTodo(r.Context(), id)
	if err != nil {
		h.failKnown(w, r, err)
		return
	}
	h.renderTodoForm(w, r, http.StatusOK, todoForm{
		ID:         todo.ID,
		Action:     fmt.Sprintf("/admin/todos/%d", todo.ID),
		Task:       todo.Task,
		UserID:     todo.UserID,
		CategoryID: todo.CategoryID,
		Done:       todo.Done,
	})
}

func (h *AdminHandler) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	form := todoFormFrom(r)
	form.ID = id
	form.Action = fmt.Sprintf("/admin/todos/%d", id)

	if _, err := h.admin.UpdateTodo(r.Context(), id, form.input()); err != nil {
		h.todoFormFailed(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/admin/todos", http.StatusSeeOther)
}

func (h *AdminHandler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.admin.DeleteTodo(r.Context(), id); err != nil {
		h.failKnown(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin/todos", http.StatusSeeOther)
}

// todoFormFailed re-renders the form for validation errors and falls back
// to the error page for everything else.
func (h *AdminHandler) todoFormFailed(w http.ResponseWriter, r *http.Request, form todoForm, err error) {
	if !errors.Is(err, apperror.ErrValidation) {
		h.failKnown(w, r, err)
		return
	}
	form.Error = messageOf(err)
	h.renderTodoForm(w, r, http.StatusBadRequest, form)
}

func (h *AdminHandler) renderTodoForm(w http.ResponseWriter, r *http.Request, status int, form todoForm) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	form.Categories = categories
	h.render.Render(w, r, status, "admin_todo_form", form)
}

// todoFormFrom reads a submitted todo form. Unparseable numbers become 0,
// which validation reports as missing.
func todoFormFrom(r *http.Request) todoForm {
	r.ParseForm()
	categoryID, _ := strconv.ParseInt(r.PostForm.Get("category_id"), 10, 64)
	return todoForm{
		Task:       r.PostForm.Get("task"),
		UserID:     r.PostForm.Get("user_id"),
		CategoryID: categoryID,
		Done:       r.PostForm.Get("done") != "",
	}
}

func (f todoForm) input() service.AdminTodoInput {
	return service.AdminTodoInput{
		Task:       f.Task,
		UserID:     f.UserID,
		CategoryID: f.CategoryID,
		Done:       f.Done,
	}
}

// =========================================================================
// CATEGORIES
// =========================================================================

func (h *AdminHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	h.renderCategories(w, r, http.StatusOK, "")
}

func (h *AdminHandler) HandleNewCategory(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "admin_category_form", categoryForm{Action: "/admin/categories"})
}

func (h *AdminHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	form := categoryForm{Action: "/admin/categories", Name: r.PostForm.Get("name")}

	if _, err := h.categories.Create(r.Context(), form.Name); err != nil {
		h.categoryFormFailed(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

func (h *AdminHandler) HandleEditCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.failKnown(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "admin_category_form", categoryForm{
		ID:     c.ID,
		Action: fmt.Sprintf("/admin/categories/%d", c.ID),
		Name:   c.Name,
	})
}

func (h *AdminHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	r.ParseForm()
	form := categoryForm{
		ID:     id,
		Action: fmt.Sprintf("/admin/categories/%d", id),
		Name:   r.PostForm.Get("name"),
	}

	if _, err := h.categories.Rename(r.Context(), id, form.Name); err != nil {
		h.categoryFormFailed(w, r, form, err)
		return
	}
	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

// HandleDeleteCategory deletes a category. A category still in use is
// refused with 409 and the list is shown again with the reason.
func (h *AdminHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.categories.Delete(r.Context(), id)
	switch {
	case err == nil:
		http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
	case errors.Is(err, apperror.ErrConflict):
		h.renderCategories(w, r, http.StatusConflict, messageOf(err))
	default:
		h.failKnown(w, r, err)
	}
}

// categoryFormFailed re-renders the form for validation errors and
// duplicate names.
func (h *AdminHandler) categoryFormFailed(w http.ResponseWriter, r *http.Request, form categoryForm, err error) {
	status, _ := statusFor(err)
	if status != http.StatusBadRequest && status != http.StatusConflict {
		h.failKnown(w, r, err)
		return
	}
	form.Error = messageOf(err)
	h.render.Render(w, r, status, "admin_category_form", form)
}

func (h *AdminHandler) renderCategories(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render.Render(w, r, status, "admin_categories", categoriesPage{Categories: categories, Error: errMsg})
}

// =========================================================================
// HELPERS
// =========================================================================

func (h *AdminHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.render.Error(w, r, http.StatusNotFound, "No such record.")
		return 0, false
	}
	return id, true
}

// failKnown renders the error page with the status and message of a domain
// error, or a generic 500.
func (h *AdminHandler) failKnown(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusFor(err)
	var appErr *apperror.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		h.fail(w, r, err)
		return
	}
	h.render.Error(w, r, status, appErr.Message)
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("admin request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	h.render.Error(w, r, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

// messageOf returns the user-facing message of a domain error.
func messageOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
