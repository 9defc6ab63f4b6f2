package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/config"
)

// fakeGitHub serves GitHub's token and /user endpoints.
type fakeGitHub struct {
	*httptest.Server
	userCalls  atomic.Int32
	tokenFails bool
	userBody   string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{userBody: `{"id":5987806,"login":"eggleton","email":null,"avatar_url":"x"}`}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenFails {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer","scope":"read:user"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.userCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.userBody))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitHub) provider() *GitHubProvider {
	return NewGitHubProvider(
		config.GitHubConfig{ClientID: "gh-id", ClientSecret: "gh-secret"},
		f.Client(),
		WithGitHubEndpoint(oauth2.Endpoint{
			AuthURL:   f.URL + "/login/oauth/authorize",
			TokenURL:  f.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		}, f.URL),
	)
}

func TestGitHub_CompleteNormalizesAndCaches(t *testing.T) {
	gh := newFakeGitHub(t)
	p := gh.provider()
	sess := newSession()

	u, err := p.Complete(context.Background(), sess, "good-code", "http://localhost/login/github/authorized")
	require.NoError(t, err)
	assert.Equal(t, "github|5987806", u.ID)
	assert.Equal(t, "eggleton", u.Name)
	assert.Equal(t, "", u.Email, "null email normalizes to empty")

	assert.True(t, p.Authenticated(sess))
	assert.Equal(t, "gho_test", sess.Values[KeyGitHubToken])
	assert.Contains(t, sess.Values[KeyGitHub], `"login":"eggleton"`)

	// Later lookups reuse the cached /user JSON.
	again, err := p.FetchUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, u, again)
	assert.Equal(t, int32(1), gh.userCalls.Load())
}

func TestGitHub_FetchUserCallsAPIWhenCacheMissing(t *testing.T) {
	gh := newFakeGitHub(t)
	p := gh.provider()
	sess := newSession()
	sess.Values[KeyGitHubToken] = "gho_test"

	u, err := p.FetchUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "github|5987806", u.ID)
	assert.NotEmpty(t, sess.Values[KeyGitHub])

	_, err = p.FetchUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int32(1), gh.userCalls.Load())
}

func TestGitHub_TokenFailureWritesNothing(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.tokenFails = true
	p := gh.provider()
	sess := newSession()

	u, err := p.Complete(context.Background(), sess, "good-code", "http://localhost/cb")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, apperror.ErrUpstreamAuth)
	assert.Empty(t, sess.Values)
}

func TestGitHub_ZeroIDIsUpstreamError(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.userBody = `{"id":0,"login":"ghost"}`
	p := gh.provider()
	sess := newSession()

	_, err := p.Complete(context.Background(), sess, "good-code", "http://localhost/cb")
	assert.ErrorIs(t, err, apperror.ErrUpstreamAuth)
	assert.Empty(t, sess.Values)
}

func TestGitHub_URLs(t *testing.T) {
	p := NewGitHubProvider(config.GitHubConfig{ClientID: "gh-id"}, nil)
	r := httptest.NewRequest(http.MethodGet, "http://localhost:5000/login/github", nil)

	assert.Equal(t, "http://localhost:5000/login/github/authorized", p.CallbackURL(r, config.Environment{}))
	assert.Equal(t, "/", p.LogoutURL(r, config.Environment{}))

	authURL, err := url.Parse(p.AuthCodeURL("st4te", "http://localhost:5000/login/github/authorized"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", authURL.Host)
	q := authURL.Query()
	assert.Equal(t, "gh-id", q.Get("client_id"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "read:user user:email", q.Get("scope"))
	assert.Equal(t, "http://localhost:5000/login/github/authorized", q.Get("redirect_uri"))

	explicit := NewGitHubProvider(config.GitHubConfig{ClientID: "gh-id", CallbackURL: "https://todo.example/cb"}, nil)
	assert.Equal(t, "https://todo.example/cb", explicit.CallbackURL(r, config.Environment{}))
}

// fakeAuth0 serves an Auth0 tenant's token and userinfo endpoints.
type fakeAuth0 struct {
	*httptest.Server
	userinfo     string
	userinfoCode int
	redirectURI  string
}

func newFakeAuth0(t *testing.T) *fakeAuth0 {
	t.Helper()
	f := &fakeAuth0{
		userinfo:     `{"sub":"auth0|abc123","name":"Ada Lovelace","email":"ada@example.com"}`,
		userinfoCode: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		// Client secret post: credentials travel in the body.
		if r.Form.Get("client_secret") != "a0-secret" || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusForbidden)
			return
		}
		f.redirectURI = r.Form.Get("redirect_uri")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a0_token","token_type":"Bearer","expires_in":86400}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a0_token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userinfoCode)
		w.Write([]byte(f.userinfo))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAuth0) provider() *Auth0Provider {
	return NewAuth0Provider(config.Auth0Config{
		Domain:       f.URL,
		ClientID:     "a0-id",
		ClientSecret: "a0-secret",
	}, f.Client())
}

func TestAuth0_CompleteNormalizes(t *testing.T) {
	a0 := newFakeAuth0(t)
	p := a0.provider()
	sess := newSession()

	u, err := p.Complete(context.Background(), sess, "good-code", "https://todo.onrender.com/callback")
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc123", u.ID)
	assert.Equal(t, "Ada Lovelace", u.Name, "name is used when nickname is absent")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "https://todo.onrender.com/callback", a0.redirectURI)

	assert.True(t, p.Authenticated(sess))
	cached, err := p.FetchUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, u, cached)
}

func TestAuth0_NicknameWins(t *testing.T) {
	info := Auth0UserInfo{Sub: "auth0|x", Nickname: "ada", Name: "Ada Lovelace"}
	assert.Equal(t, "ada", info.Normalize().Name)

	info = Auth0UserInfo{Sub: "auth0|x"}
	assert.Equal(t, "", info.Normalize().Name)
}

func TestAuth0_UserinfoFailureWritesNothing(t *testing.T) {
	a0 := newFakeAuth0(t)
	a0.userinfoCode = http.StatusServiceUnavailable
	p := a0.provider()
	sess := newSession()

	_, err := p.Complete(context.Background(), sess, "good-code", "http://localhost/callback")
	assert.ErrorIs(t, err, apperror.ErrUpstreamAuth)
	assert.False(t, p.Authenticated(sess))
}

func TestAuth0_EmptySubIsUpstreamError(t *testing.T) {
	a0 := newFakeAuth0(t)
	a0.userinfo = `{"name":"nobody"}`
	p := a0.provider()
	sess := newSession()

	_, err := p.Complete(context.Background(), sess, "good-code", "http://localhost/callback")
	assert.ErrorIs(t, err, apperror.ErrUpstreamAuth)
	assert.Empty(t, sess.Values)
}

func TestAuth0_AuthCodeURL(t *testing.T) {
	p := NewAuth0Provider(config.Auth0Config{Domain: "tenant.eu.auth0.com", ClientID: "a0-id"}, nil)

	u, err := url.Parse(p.AuthCodeURL("st4te", "https://todo.onrender.com/callback"))
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "tenant.eu.auth0.com", u.Host)
	assert.Equal(t, "/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "a0-id", q.Get("client_id"))
	assert.Equal(t, "https://todo.onrender.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "https://tenant.eu.auth0.com/userinfo", q.Get("audience"))
	assert.Equal(t, "st4te", q.Get("state"))
}

func TestAuth0_CallbackURLResolution(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://localhost:5000/login/auth0", nil)
	p := NewAuth0Provider(config.Auth0Config{Domain: "tenant.auth0.com"}, nil)

	tests := []struct {
		name string
		env  config.Environment
		want string
	}{
		{"render url", config.Environment{RenderExternalURL: "https://todo.onrender.com"}, "https://todo.onrender.com/callback"},
		{"render hostname", config.Environment{RenderExternalHostname: "todo.onrender.com"}, "https://todo.onrender.com/callback"},
		{"codespace", config.Environment{CodespaceName: "fluffy", Port: "8080", PortForwardingDomain: "preview.app.github.dev"}, "https://fluffy-8080.preview.app.github.dev/callback"},
		{"request", config.Environment{}, "http://localhost:5000/callback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CallbackURL(r, tt.env))
		})
	}

	explicit := NewAuth0Provider(config.Auth0Config{Domain: "tenant.auth0.com", CallbackURL: "https://fixed.example/callback"}, nil)
	assert.Equal(t, "https://fixed.example/callback",
		explicit.CallbackURL(r, config.Environment{RenderExternalURL: "https://todo.onrender.com"}),
		"explicit configuration wins over every environment signal")
}

func TestAuth0_LogoutURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://localhost:5000/logout/auth0", nil)
	p := NewAuth0Provider(config.Auth0Config{Domain: "tenant.auth0.com", ClientID: "a0-id"}, nil)

	u, err := url.Parse(p.LogoutURL(r, config.Environment{RenderExternalURL: "https://todo.onrender.com"}))
	require.NoError(t, err)
	assert.Equal(t, "tenant.auth0.com", u.Host)
	assert.Equal(t, "/v2/logout", u.Path)
	assert.Equal(t, "a0-id", u.Query().Get("client_id"))
	assert.Equal(t, "https://todo.onrender.com/", u.Query().Get("returnTo"))
}
