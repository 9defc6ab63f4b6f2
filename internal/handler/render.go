// Package handler contains the HTTP handlers: server-rendered pages for the
// browser (web.go, admin.go), the provider login routes (auth.go) and the
// JSON API (api.go).
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path params, form, JSON body)
//  2. Call the service layer with the acting user's id
//  3. Write the response (a rendered page, a redirect or JSON)
//
// Handlers contain no business rules. The one piece of policy that lives
// here is the mapping from apperror kinds to HTTP status codes.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/todo-app/internal/auth"
	"github.com/sakif/todo-app/internal/model"
)

// Site is the static branding shown on every page.
type Site struct {
	Name              string
	ControllerName    string
	ControllerAddress string
	ControllerURL     string
}

// Pages rendered by Renderer. Each is parsed together with base.html.
var pageNames = []string{
	"index",
	"login",
	"error",
	"admin_index",
	"admin_todos",
	"admin_todo_form",
	"admin_categories",
	"admin_category_form",
}

// page is the root value every template receives.
type page struct {
	Site     Site
	User     *model.User
	Provider string // label of the login provider for this environment
	Data     any
}

type errorPage struct {
	Status  int
	Title   string
	Message string
}

// Renderer holds the parsed page templates.
//
// TEMPLATE COMPOSITION:
// Every page is its own template set made of base.html plus the page file.
// base.html renders {{template "content" .}}; the page defines "content"
// (and optionally "title"). Parsing each page separately keeps one page's
// "content" from overwriting another's.
type Renderer struct {
	pages  map[string]*template.Template
	site   Site
	gw     *auth.Gateway
	logger *slog.Logger
}

// NewRenderer parses templates/base.html and every page from fsys.
func NewRenderer(fsys fs.FS, site Site, gw *auth.Gateway, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFS(fsys, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, site: site, gw: gw, logger: logger}, nil
}

// Render executes page name with data and writes it with status.
//
// The page is rendered into a buffer first: a template error must still be
// able to turn into a 500 before any of the body has been sent.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("unknown template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	p := page{Site: rd.site, Provider: rd.gw.SelectedLabel(), Data: data}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		p.User = u
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", p); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("writing page", slog.String("error", err.Error()))
	}
}

// Error renders the error page.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.Render(w, r, status, "error", errorPage{
		Status:  status,
		Title:   http.StatusText(status),
		Message: message,
	})
}
