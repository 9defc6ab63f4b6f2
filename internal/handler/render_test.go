package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todo-app/internal/auth"
	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/web"
)

func newTestRenderer(t *testing.T, env config.Environment) *Renderer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := auth.NewGateway(func() (config.Environment, error) { return env, nil }, logger)
	rd, err := NewRenderer(web.Templates, Site{
		Name:           "TodoApp",
		ControllerName: "UTC Sheffield Olympic Legacy Park",
		ControllerURL:  "https://www.utcsheffield.org.uk/olp/",
	}, gw, logger)
	require.NoError(t, err)
	return rd
}

func TestRenderer_ParsesEveryPage(t *testing.T) {
	rd := newTestRenderer(t, config.Environment{})
	for _, name := range pageNames {
		assert.Contains(t, rd.pages, name)
	}
}

func TestRenderer_LoginPageNamesProvider(t *testing.T) {
	rd := newTestRenderer(t, config.Environment{RenderServiceID: "srv-1"})
	rr := httptest.NewRecorder()
	rd.Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "login", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "Log in with Auth0")
	assert.Contains(t, rr.Body.String(), "UTC Sheffield Olympic Legacy Park")
}

func TestRenderer_EscapesTaskText(t *testing.T) {
	rd := newTestRenderer(t, config.Environment{})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(auth.WithUser(r.Context(), &model.User{ID: "github|1", Name: "alice"}))

	rr := httptest.NewRecorder()
	rd.Render(rr, r, http.StatusOK, "index", indexPage{
		Todos:      []todoView{{Todo: model.Todo{ID: 1, Task: "<b>bold</b> & co", CategoryID: 1}, CategoryName: "Urgent"}},
		Categories: []model.Category{{ID: 1, Name: "Urgent"}},
	})

	body := rr.Body.String()
	assert.Contains(t, body, "&lt;b&gt;bold&lt;/b&gt; &amp; co")
	assert.Contains(t, body, "/toggle/1")
	assert.Contains(t, body, "alice")
}

func TestRenderer_Error(t *testing.T) {
	rd := newTestRenderer(t, config.Environment{})
	rr := httptest.NewRecorder()
	rd.Error(rr, httptest.NewRequest(http.MethodGet, "/callback", nil), http.StatusBadGateway, "authentication with GitHub failed")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Bad Gateway")
	assert.Contains(t, rr.Body.String(), "authentication with GitHub failed")
}
