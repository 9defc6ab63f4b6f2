package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/xid"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/auth"
)

// AuthHandler drives the OAuth login flows.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin / HandleLogout → pick the provider for this environment
//     and redirect to its /login/<name> or /logout/<name> route
//   - ProviderLogin    → store a state value, redirect to the authorize page
//   - ProviderCallback → check the state, complete the code exchange, log in
//   - ProviderLogout   → wipe the session, redirect to the provider's logout
//   - HandleToken      → mint an API bearer token for the session user
//
// The provider routes take an auth.LoginProvider, so GitHub and Auth0 share
// one implementation of the flow.
type AuthHandler struct {
	gw     *auth.Gateway
	tokens *auth.TokenService // nil when API tokens are disabled
	render *Renderer
	logger *slog.Logger
}

func NewAuthHandler(gw *auth.Gateway, tokens *auth.TokenService, render *Renderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{gw: gw, tokens: tokens, render: render, logger: logger}
}

// HandleLogin sends the browser to the selected provider's login route.
//
// HTTP: GET /login?next=/admin/
//
// A local next target is kept in the session and used after the callback.
// Anything else (absolute URLs, //host) is ignored so the login flow can
// never be turned into an open redirect.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, name, err := h.gw.Selected()
	if err != nil {
		h.logger.Error("reading deployment environment", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError, "Login is unavailable right now.")
		return
	}
	if p == nil {
		h.logger.Warn("selected login provider is not configured", slog.String("provider", name))
		h.render.Error(w, r, http.StatusServiceUnavailable,
			fmt.Sprintf("Login with %s is not configured on this server.", h.gw.SelectedLabel()))
		return
	}

	if next := r.URL.Query().Get("next"); auth.IsLocalPath(next) {
		if sess, ok := auth.SessionFromContext(r.Context()); ok {
			sess.Values[auth.KeyNext] = next
			h.save(w, r, sess)
		}
	}

	http.Redirect(w, r, "/login/"+name, http.StatusFound)
}

// HandleLogout sends the browser to the selected provider's logout route.
// With no provider configured the session is wiped here.
//
// HTTP: GET /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, name, err := h.gw.Selected()
	if err == nil && p != nil {
		http.Redirect(w, r, "/logout/"+name, http.StatusFound)
		return
	}

	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		auth.Logout(sess)
		h.save(w, r, sess)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// ProviderLogin starts the authorization code flow.
//
// HTTP: GET /login/github, GET /login/auth0
//
// CSRF PROTECTION VIA STATE:
// A random xid is stored in the session and sent as the state parameter.
// The callback only proceeds when the provider hands the same value back,
// which proves the flow was started by this browser.
func (h *AuthHandler) ProviderLogin(p auth.LoginProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.SessionFromContext(r.Context())
		if !ok {
			h.render.Error(w, r, http.StatusInternalServerError, "Your session could not be loaded.")
			return
		}
		env, err := h.gw.Environment()
		if err != nil {
			h.logger.Error("reading deployment environment", slog.String("error", err.Error()))
			h.render.Error(w, r, http.StatusInternalServerError, "Login is unavailable right now.")
			return
		}

		state := xid.New().String()
		sess.Values[auth.KeyState] = state
		if !h.save(w, r, sess) {
			h.render.Error(w, r, http.StatusInternalServerError, "Your session could not be saved.")
			return
		}

		http.Redirect(w, r, p.AuthCodeURL(state, p.CallbackURL(r, env)), http.StatusFound)
	}
}

// ProviderCallback completes the login.
//
// HTTP: GET /login/github/authorized, GET /callback
//
// FLOW:
//  1. Consume the stored state and compare it with ?state (400 on mismatch)
//  2. Reject provider-reported errors (?error=access_denied, ...)
//  3. Exchange the code and fetch the profile (502 when the provider fails)
//  4. Cache the normalized user, issue a fresh session id, redirect to next
//
// Steps 1-3 write no login into the session, so a failed callback leaves
// the visitor anonymous.
func (h *AuthHandler) ProviderCallback(p auth.LoginProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.SessionFromContext(r.Context())
		if !ok {
			h.render.Error(w, r, http.StatusInternalServerError, "Your session could not be loaded.")
			return
		}
		q := r.URL.Query()

		// --- Step 1: state ---
		expected, _ := sess.Values[auth.KeyState].(string)
		delete(sess.Values, auth.KeyState)
		if expected == "" || q.Get("state") != expected {
			h.logger.Warn("auth callback: state mismatch", slog.String("provider", p.Name()))
			h.save(w, r, sess)
			h.render.Error(w, r, http.StatusBadRequest, "Invalid OAuth state. Please try logging in again.")
			return
		}

		// --- Step 2: provider-reported error ---
		if errParam := q.Get("error"); errParam != "" {
			h.logger.Info("auth callback: provider returned an error",
				slog.String("provider", p.Name()),
				slog.String("error", errParam),
				slog.String("description", q.Get("error_description")),
			)
			h.save(w, r, sess)
			h.render.Error(w, r, http.StatusBadGateway,
				fmt.Sprintf("Login with %s was not completed.", p.Label()))
			return
		}
		code := q.Get("code")
		if code == "" {
			h.save(w, r, sess)
			h.render.Error(w, r, http.StatusBadRequest, "Missing OAuth code.")
			return
		}

		// --- Step 3: exchange ---
		env, err := h.gw.Environment()
		if err != nil {
			h.logger.Error("reading deployment environment", slog.String("error", err.Error()))
			h.render.Error(w, r, http.StatusInternalServerError, "Login is unavailable right now.")
			return
		}
		user, err := p.Complete(r.Context(), sess, code, p.CallbackURL(r, env))
		if err != nil {
			h.logger.Error("auth callback: completing login failed",
				slog.String("provider", p.Name()),
				slog.String("error", err.Error()),
			)
			h.save(w, r, sess)
			status, message := http.StatusInternalServerError, "Login failed."
			var appErr *apperror.AppError
			if errors.Is(err, apperror.ErrUpstreamAuth) && errors.As(err, &appErr) {
				status, message = http.StatusBadGateway, appErr.Message
			}
			h.render.Error(w, r, status, message)
			return
		}

		// --- Step 4: log in ---
		sess.Values[auth.KeyUser] = *user
		next, _ := sess.Values[auth.KeyNext].(string)
		delete(sess.Values, auth.KeyNext)
		if !auth.IsLocalPath(next) {
			next = "/"
		}

		// A fresh id on privilege change: whoever knew the anonymous
		// session id does not get the logged-in one.
		sess.ID = ""
		if !h.save(w, r, sess) {
			h.render.Error(w, r, http.StatusInternalServerError, "Your session could not be saved.")
			return
		}

		h.logger.Info("user authenticated",
			slog.String("provider", p.Name()),
			slog.String("user_id", user.ID),
		)
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// ProviderLogout wipes the session and hands the browser to the provider's
// logout URL.
//
// HTTP: GET /logout/github, GET /logout/auth0
func (h *AuthHandler) ProviderLogout(p auth.LoginProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, err := h.gw.Environment()
		if err != nil {
			h.logger.Error("reading deployment environment", slog.String("error", err.Error()))
		}

		if sess, ok := auth.SessionFromContext(r.Context()); ok {
			if u, ok := auth.UserFromContext(r.Context()); ok {
				h.logger.Info("user logged out", slog.String("user_id", u.ID))
			}
			auth.Logout(sess)
			h.save(w, r, sess)
		}

		target := "/"
		if err == nil {
			target = p.LogoutURL(r, env)
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// HandleToken issues a bearer token for the session's user.
//
// HTTP: POST /api/token
//
// Only a session login can mint tokens: the route sits outside
// RequireAPIUser, so an existing bearer token cannot extend itself.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated())
		return
	}

	token, expiresAt, err := h.tokens.Generate(*user)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// save persists sess and logs failures. It reports whether the save worked.
func (h *AuthHandler) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) bool {
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("saving session", slog.String("error", err.Error()))
		return false
	}
	return true
}
