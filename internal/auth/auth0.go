package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
)

// Auth0UserInfo is the part of the /userinfo response we decode.
type Auth0UserInfo struct {
	Sub      string `json:"sub"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Normalize maps the userinfo claims into a model.User. The subject is used
// verbatim; Auth0 already prefixes it with the connection ("auth0|...",
// "google-oauth2|...").
func (u Auth0UserInfo) Normalize() *model.User {
	name := u.Nickname
	if name == "" {
		name = u.Name
	}
	return &model.User{ID: u.Sub, Name: name, Email: u.Email}
}

// Auth0Provider runs the authorization code flow against an Auth0 tenant
// with explicit endpoints:
//
//	GET  https://<domain>/authorize   (browser)
//	POST https://<domain>/oauth/token (client secret in the body)
//	GET  https://<domain>/userinfo    (bearer token)
type Auth0Provider struct {
	config      *oauth2.Config
	baseURL     string
	callbackURL string
	client      *http.Client
}

var _ LoginProvider = (*Auth0Provider)(nil)

// NewAuth0Provider creates an Auth0Provider from cfg. A domain that already
// carries a scheme ("http://127.0.0.1:9999") is used as the base URL as-is.
func NewAuth0Provider(cfg config.Auth0Config, client *http.Client) *Auth0Provider {
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(cfg.Domain, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Auth0Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		baseURL:     base,
		callbackURL: cfg.CallbackURL,
		client:      client,
	}
}

func (p *Auth0Provider) Name() string  { return ProviderAuth0 }
func (p *Auth0Provider) Label() string { return "Auth0" }

// Authenticated reports whether the session holds Auth0 userinfo.
func (p *Auth0Provider) Authenticated(sess *sessions.Session) bool {
	raw, _ := sess.Values[KeyAuth0].(string)
	return raw != ""
}

// FetchUser normalizes the userinfo cached at callback time. Auth0 is never
// called here: there is no stored token to call it with.
func (p *Auth0Provider) FetchUser(_ context.Context, sess *sessions.Session) (*model.User, error) {
	raw, _ := sess.Values[KeyAuth0].(string)
	if raw == "" {
		return nil, apperror.Unauthenticated()
	}
	info, err := decodeAuth0UserInfo(raw)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}
	return info.Normalize(), nil
}

// AuthCodeURL returns the tenant's authorize URL. The audience asks Auth0
// for a token that is valid against /userinfo.
func (p *Auth0Provider) AuthCodeURL(state, redirectURL string) string {
	return p.withRedirect(redirectURL).AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", p.baseURL+"/userinfo"),
	)
}

// Complete exchanges the code and fetches /userinfo. The raw userinfo JSON
// is written to the session only when both calls succeed.
func (p *Auth0Provider) Complete(ctx context.Context, sess *sessions.Session, code, redirectURL string) (*model.User, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.withRedirect(redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), fmt.Errorf("exchanging OAuth code: %w", err))
	}

	raw, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}
	info, err := decodeAuth0UserInfo(raw)
	if err != nil {
		return nil, apperror.UpstreamAuth(p.Label(), err)
	}

	sess.Values[KeyAuth0] = raw
	return info.Normalize(), nil
}

// CallbackURL resolves the redirect_uri for this request:
//
//	AUTH0_CALLBACK_URL
//	ExternalBaseURL(r, env) + "/callback"
//
// Nothing is memoized. The same process may answer for a Codespaces
// preview host and a Render host, and each needs its own redirect_uri.
func (p *Auth0Provider) CallbackURL(r *http.Request, env config.Environment) string {
	if p.callbackURL != "" {
		return p.callbackURL
	}
	return ExternalBaseURL(r, env) + "/callback"
}

// LogoutURL ends the Auth0 session too, then returns the browser to the
// app's home page.
func (p *Auth0Provider) LogoutURL(r *http.Request, env config.Environment) string {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("returnTo", ExternalBaseURL(r, env)+"/")
	return p.baseURL + "/v2/logout?" + q.Encode()
}

func (p *Auth0Provider) withRedirect(redirectURL string) *oauth2.Config {
	c := *p.config
	c.RedirectURL = redirectURL
	return &c
}

func (p *Auth0Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("building userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// Auth0 sometimes answers token_type "bearer"; normalize it.
	(&oauth2.Token{AccessToken: token.AccessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading userinfo response: %w", err)
	}
	return string(body), nil
}

func decodeAuth0UserInfo(raw string) (Auth0UserInfo, error) {
	var info Auth0UserInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return Auth0UserInfo{}, fmt.Errorf("decoding userinfo: %w", err)
	}
	if info.Sub == "" {
		return Auth0UserInfo{}, errors.New("userinfo has no subject")
	}
	return info, nil
}
