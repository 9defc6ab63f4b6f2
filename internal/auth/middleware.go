package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/sakif/todo-app/internal/model"
	"github.com/sakif/todo-app/internal/session"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the values stored under it.
type contextKey string

const (
	userKey    contextKey = "user"
	sessionKey contextKey = "session"
)

// LoadUser is a middleware that resolves the session and current user once
// per request and stores both in the request context.
//
// It never blocks a request: a missing or broken session, or a provider
// that fails while normalizing a cached profile, leaves the request
// anonymous. Route-level middleware (RequireUser, RequireAPIUser) decides
// what anonymous means for each route class.
func LoadUser(store sessions.Store, gw *Gateway, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Get(r, session.DefaultName)
			if err != nil {
				logger.Error("loading session", slog.String("error", err.Error()))
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			_, cached := sess.Values[KeyUser].(model.User)
			user, err := gw.CurrentUser(r.Context(), sess)
			if err != nil {
				logger.Warn("resolving current user", slog.String("error", err.Error()))
				user = nil
			}
			if user != nil && !cached {
				// First sight of this login: persist the normalized user so
				// later requests skip the providers entirely.
				if err := sess.Save(r, w); err != nil {
					logger.Error("saving session", slog.String("error", err.Error()))
				}
			}

			ctx := WithSession(r.Context(), sess)
			if user != nil {
				ctx = WithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser redirects anonymous browsers to /login, keeping the original
// request URI as the post-login target.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIUser enforces authentication on API routes.
//
// A session user is accepted as-is. Otherwise, when tokens is non-nil, an
// "Authorization: Bearer <jwt>" header is validated and its user is put in
// the context. Anything else is 401 with the API's JSON error shape.
func RequireAPIUser(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if tokens != nil {
				if raw, ok := bearerToken(r); ok {
					if user, err := tokens.Validate(raw); err == nil {
						next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
						return
					}
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthenticated","message":"authentication required"}` + "\n"))
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) when the
// request is anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil && u.ID != ""
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the request's session as loaded by LoadUser.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*sessions.Session)
	return s, ok && s != nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
