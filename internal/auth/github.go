package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
)

// GitHubUser is the portion of the GitHub /user API response we care about.
// The full response is kept in the session as raw JSON; only these fields
// are decoded.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID    int64  `json:"id"`    // stable numeric id
	Login string `json:"login"` // username, e.g. "sakif"
	Email string `json:"email"` // empty if hidden in GitHub settings
}

// Normalize maps the GitHub profile into a model.User.
//
// The "github|" prefix namespaces the id so it can never collide with an
// Auth0 subject. Todos are scoped by this exact string.
func (u GitHubUser) Normalize() *model.User {
	return &model.User{
		ID:    "github|" + strconv.FormatInt(u.ID, 10),
		Name:  u.Login,
		Email: u.Email,
	}
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. We redirect the user to GitHub's authorization endpoint with our
//     ClientID and the requested scopes.
//  2. The user approves (or denies) the request on GitHub.
//  3. GitHub redirects back to /login/github/authorized with a short-lived code.
//  4. We exchange the code for an access token (server-to-server).
//  5. We call GET /user once with the token and cache the JSON in the session.
type GitHubProvider struct {
	config      *oauth2.Config
	callbackURL string
	apiBaseURL  string
	client      *http.Client
}

var _ LoginProvider = (*GitHubProvider)(nil)

// GitHubOption customizes a GitHubProvider.
type GitHubOption func(*GitHubProvider)

// WithGitHubEndpoint points the provider at different OAuth and API hosts.
// Tests use it with an httptest server.
func WithGitHubEndpoint(endpoint oauth2.Endpoint, apiBaseURL string) GitHubOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
		p.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	}
}

// NewGitHubProvider creates a GitHubProvider from cfg. client carries the
// upstream timeout and is used for both the token exchange and /user.
//
// Scopes we request:
//   - "read:user" for the public profile (id, login)
//   - "user:email" for the email address
func NewGitHubProvider(cfg config.GitHubConfig, client *http.Client, opts ...GitHubOption) *GitHubProvider {
	if client == nil {
		client = http.DefaultClient
	}
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		callbackURL: cfg.CallbackURL,
		apiBaseURL:  "https://api.github.com",
		client:      client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubProvider) Name() string  { return ProviderGitHub }
func (p *GitHubProvider) Label() string { return "GitHub" }

// Authenticated reports whether the session holds a GitHub access token.
func (p *GitHubProvider) Authenticated(sess *sessions.Session) bool {
	tok, _ := sess.Values[KeyGitHubToken].(string)
	return tok != ""
}

// FetchUser returns the normalized user for the session's GitHub login.
// The cached /user JSON is used when present; otherwise /user is called
// once and the response is cached.
func (p *GitHubProvider) FetchUser(ctx context.Context, sess *sessions.Session) (*model.User, error) {
	raw, _ := sess.Values[KeyGitHub].(string)
	if raw == "" {
		tok, _ := sess.Values[KeyGitHubToken].(string)
		if tok == "" {
			return nil, apperror.Unauthenticated()
		}
		body, err := p.fetchProfile(ctx, tok)
		if err != nil {
			return nil, apperror.UpstreamAuth(p.Label(), err)
		}
		raw = body
		sess.Values[KeyGitHub] = raw
	}

	ghUser, err := decodeGitHubUser(raw)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}
	return ghUser.Normalize(), nil
}

// AuthCodeURL returns the GitHub authorize URL.
func (p *GitHubProvider) AuthCodeURL(state, redirectURL string) string {
	return p.withRedirect(redirectURL).AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Complete trades the authorization code for a token and a GitHub profile.
//
// Steps:
//  1. Exchange the code for an OAuth access token (server-to-server)
//  2. Call GitHub's /user endpoint with the token
//  3. Only when both succeed, write token and raw JSON into the session
func (p *GitHubProvider) Complete(ctx context.Context, sess *sessions.Session, code, redirectURL string) (*model.User, error) {
	// oauth2 picks the HTTP client out of the context; this is how the
	// upstream timeout reaches the token endpoint call.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.withRedirect(redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), fmt.Errorf("exchanging OAuth code: %w", err))
	}

	raw, err := p.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}
	ghUser, err := decodeGitHubUser(raw)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}

	sess.Values[KeyGitHubToken] = token.AccessToken
	sess.Values[KeyGitHub] = raw
	return ghUser.Normalize(), nil
}

// CallbackURL is GITHUB_CALLBACK_URL when configured, else derived from the
// request. env is not consulted; GitHub is only selected outside hosted
// environments.
func (p *GitHubProvider) CallbackURL(r *http.Request, _ config.Environment) string {
	if p.callbackURL != "" {
		return p.callbackURL
	}
	return RequestBaseURL(r) + "/login/github/authorized"
}

// LogoutURL sends the browser home. GitHub has no end-session endpoint.
func (p *GitHubProvider) LogoutURL(*http.Request, config.Environment) string {
	return "/"
}

func (p *GitHubProvider) withRedirect(redirectURL string) *oauth2.Config {
	c := *p.config
	c.RedirectURL = redirectURL
	return &c
}

// fetchProfile calls GET /user and returns the response body verbatim.
func (p *GitHubProvider) fetchProfile(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/user", nil)
	if err != nil {
		return "", fmt.Errorf("building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub /user API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading GitHub /user response: %w", err)
	}
	return string(body), nil
}

func decodeGitHubUser(raw string) (GitHubUser, error) {
	var u GitHubUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return GitHubUser{}, fmt.Errorf("decoding GitHub /user response: %w", err)
	}
	if u.ID == 0 {
		return GitHubUser{}, errors.New("GitHub returned an invalid user (ID = 0)")
	}
	return u, nil
}
