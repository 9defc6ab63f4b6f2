package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/auth"
	"github.com/sakif/todo-app/internal/service"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// APIHandler serves the JSON API under /api.
//
// Unlike the web routes, every problem gets its own status code:
// 401 anonymous, 403 someone else's todo, 404 no such todo, 400 bad input.
type APIHandler struct {
	todos      *service.TodoService
	categories *service.CategoryService
	logger     *slog.Logger
}

func NewAPIHandler(todos *service.TodoService, categories *service.CategoryService, logger *slog.Logger) *APIHandler {
	return &APIHandler{todos: todos, categories: categories, logger: logger}
}

// createTodoRequest is the body of POST /api/todos.
//
// Example: {"task": "Buy milk", "category_id": 1, "done": false}
type createTodoRequest struct {
	Task       string `json:"task"`
	CategoryID int64  `json:"category_id"`
	Done       bool   `json:"done"`
}

// updateTodoRequest is the body of PUT /api/todos/{id}. Pointer fields
// tell "absent" (nil, keep the current value) from a zero value.
type updateTodoRequest struct {
	Task       *string `json:"task"`
	CategoryID *int64  `json:"category_id"`
	Done       *bool   `json:"done"`
}

// OpenAPIDocument serves the static API description. No login required.
//
// HTTP: GET /api/
func OpenAPIDocument(doc []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}

// HandleListCategories returns every category. No login required.
//
// HTTP: GET /api/categories
func (h *APIHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(categories))
}

// HandleListTodos returns the caller's todos.
//
// HTTP: GET /api/todos
func (h *APIHandler) HandleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todos.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(todos))
}

// HandleCreateTodo creates a todo owned by the caller.
//
// HTTP: POST /api/todos → 201 with the stored todo
func (h *APIHandler) HandleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.todos.Create(r.Context(), userID(r), service.TodoInput{
		Task:       req.Task,
		CategoryID: req.CategoryID,
		Done:       req.Done,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

// HandleGetTodo returns one of the caller's todos.
//
// HTTP: GET /api/todos/{id}
func (h *APIHandler) HandleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	todo, err := h.todos.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleUpdateTodo applies a partial update to one of the caller's todos.
//
// HTTP: PUT /api/todos/{id}
func (h *APIHandler) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var req updateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.todos.Update(r.Context(), userID(r), id, service.TodoPatch{
		Task:       req.Task,
		CategoryID: req.CategoryID,
		Done:       req.Done,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleDeleteTodo deletes one of the caller's todos.
//
// HTTP: DELETE /api/todos/{id} → 204 No Content
func (h *APIHandler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	if err := h.todos.Remove(r.Context(), userID(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userID is the caller's id, or "" for anonymous requests. The service
// layer turns "" into ErrUnauthenticated.
func userID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

// todoID parses the {id} path parameter. The route pattern only admits
// digits, so the only failure left is an id too large for int64, which
// cannot exist and is answered as 404.
func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: apperror.NotFound("todo", raw).Message,
		})
		return 0, false
	}
	return id, true
}

// decodeJSON reads a single JSON object from the body into dst, answering
// 400 itself when the body is not valid JSON of the right shape.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "request body must be a JSON object: "+err.Error())
		return false
	}
	return true
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
