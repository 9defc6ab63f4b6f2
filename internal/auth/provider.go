// Package auth resolves who the current user is, independent of which OAuth
// provider authenticated them.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /login → Gateway picks a provider from the deployment
//     environment and redirects to /login/github or /login/auth0
//  2. The provider route stores a random state in the session and redirects
//     to the provider's authorize page
//  3. The provider calls back with a code; we exchange it for a token, fetch
//     the profile once and cache the raw JSON in the session
//  4. On every later request, Gateway.CurrentUser reads the cached user (or
//     asks each provider in order) and normalizes it into model.User
//
// Sessions live server-side (see internal/session). The cookie only carries
// an opaque id.
package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
)

// Provider names, used in routes (/login/<name>) and by SelectProvider.
const (
	ProviderGitHub = "github"
	ProviderAuth0  = "auth0"
)

// Session value keys.
const (
	KeyUser        = "user"
	KeyGitHubToken = "github_oauth_token"
	KeyGitHub      = "github"
	KeyAuth0       = "auth0"
	KeyState       = "oauth_state"
	KeyNext        = "next"
)

// Provider is one OAuth identity source.
//
// Authenticated reports whether the session holds this provider's login.
// FetchUser normalizes that login into a model.User, calling the provider's
// API only when nothing is cached yet.
type Provider interface {
	Name() string
	Authenticated(sess *sessions.Session) bool
	FetchUser(ctx context.Context, sess *sessions.Session) (*model.User, error)
}

// LoginProvider is a Provider that also drives the authorization code flow.
// The HTTP routes in internal/handler work against this interface only, so
// both providers share one login/callback/logout implementation.
type LoginProvider interface {
	Provider

	// Label is the human-readable name shown in templates.
	Label() string

	// AuthCodeURL builds the authorize URL for state and redirectURL.
	AuthCodeURL(state, redirectURL string) string

	// Complete exchanges code for a token, fetches the profile and writes the
	// provider's session values. On error the session is left untouched.
	Complete(ctx context.Context, sess *sessions.Session, code, redirectURL string) (*model.User, error)

	// CallbackURL is the redirect_uri for this request. It is recomputed on
	// every call.
	CallbackURL(r *http.Request, env config.Environment) string

	// LogoutURL is where the browser goes after the session is wiped.
	LogoutURL(r *http.Request, env config.Environment) string
}
