package auth

import (
	"context"
	"encoding/gob"
	"log/slog"

	"github.com/gorilla/sessions"

	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
)

func init() {
	// The session blob is gob-encoded by securecookie; concrete types stored
	// behind interface{} values must be registered.
	gob.Register(model.User{})
}

// EnvironmentSource returns the current deployment environment.
type EnvironmentSource func() (config.Environment, error)

// Gateway is the single source of truth for "who is the current user".
//
// It holds the registered providers in a fixed order (GitHub before Auth0)
// and reads the deployment environment through env on every call that needs
// it, so provider selection is never cached at start-up.
type Gateway struct {
	providers []LoginProvider
	env       EnvironmentSource
	logger    *slog.Logger
}

// NewGateway creates a Gateway. Providers are consulted in the order given;
// nil providers (not configured) are skipped.
func NewGateway(env EnvironmentSource, logger *slog.Logger, providers ...LoginProvider) *Gateway {
	if env == nil {
		env = config.LoadEnvironment
	}
	g := &Gateway{env: env, logger: logger}
	for _, p := range providers {
		if p != nil {
			g.providers = append(g.providers, p)
		}
	}
	return g
}

// CurrentUser resolves the session's user.
//
//  1. A user already cached under KeyUser wins.
//  2. Otherwise each provider is asked in order whether it holds a login;
//     the first one that does is normalized, cached into the session and
//     returned.
//  3. No provider login → nil, nil.
//
// The caller saves the session if it wants the cached user persisted.
func (g *Gateway) CurrentUser(ctx context.Context, sess *sessions.Session) (*model.User, error) {
	if sess == nil {
		return nil, nil
	}
	if u, ok := sess.Values[KeyUser].(model.User); ok && u.ID != "" {
		return &u, nil
	}

	for _, p := range g.providers {
		if !p.Authenticated(sess) {
			continue
		}
		u, err := p.FetchUser(ctx, sess)
		if err != nil {
			return nil, err
		}
		sess.Values[KeyUser] = *u
		return u, nil
	}
	return nil, nil
}

// Environment returns the deployment environment as of now.
func (g *Gateway) Environment() (config.Environment, error) {
	return g.env()
}

// Selected returns the provider for the current environment. The provider
// is nil when the selected one is not configured; its name is returned
// either way.
func (g *Gateway) Selected() (LoginProvider, string, error) {
	env, err := g.env()
	if err != nil {
		return nil, "", err
	}
	name := SelectProvider(env)
	p, _ := g.Provider(name)
	return p, name, nil
}

// SelectedLabel is the display name of the provider the current environment
// selects, whether or not it is registered.
func (g *Gateway) SelectedLabel() string {
	p, name, err := g.Selected()
	if err != nil {
		g.logger.Warn("reading deployment environment", slog.String("error", err.Error()))
		name = ProviderGitHub
	}
	if p != nil {
		return p.Label()
	}
	if name == ProviderAuth0 {
		return "Auth0"
	}
	return "GitHub"
}

// Provider looks up a registered provider by name.
func (g *Gateway) Provider(name string) (LoginProvider, bool) {
	for _, p := range g.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Providers returns the registered providers in lookup order.
func (g *Gateway) Providers() []LoginProvider {
	return append([]LoginProvider(nil), g.providers...)
}

// Logout wipes every session value, not just KeyUser, so no provider's
// token or cached profile survives to re-authenticate the next request.
// MaxAge -1 makes the store delete the row and expire the cookie on Save.
func Logout(sess *sessions.Session) {
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	if sess.Options == nil {
		sess.Options = &sessions.Options{Path: "/"}
	}
	sess.Options.MaxAge = -1
}
