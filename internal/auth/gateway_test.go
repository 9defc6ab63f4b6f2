package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todo-app/internal/apperror"
	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/model"
)

// fakeProvider is a LoginProvider whose login state is a single session key.
type fakeProvider struct {
	name    string
	key     string
	user    model.User
	err     error
	fetches int
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Label() string { return f.name }

func (f *fakeProvider) Authenticated(sess *sessions.Session) bool {
	_, ok := sess.Values[f.key]
	return ok
}

func (f *fakeProvider) FetchUser(context.Context, *sessions.Session) (*model.User, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	u := f.user
	return &u, nil
}

func (f *fakeProvider) AuthCodeURL(state, redirectURL string) string {
	return "https://" + f.name + ".example/authorize?state=" + state
}

func (f *fakeProvider) Complete(context.Context, *sessions.Session, string, string) (*model.User, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) CallbackURL(*http.Request, config.Environment) string { return "" }
func (f *fakeProvider) LogoutURL(*http.Request, config.Environment) string   { return "/" }

func newSession() *sessions.Session {
	return sessions.NewSession(nil, "test")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedEnv(env config.Environment) EnvironmentSource {
	return func() (config.Environment, error) { return env, nil }
}

func TestSelectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  config.Environment
		want string
	}{
		{"local", config.Environment{}, ProviderGitHub},
		{"codespaces flag", config.Environment{Codespaces: "true"}, ProviderAuth0},
		{"codespaces flag false", config.Environment{Codespaces: "false"}, ProviderGitHub},
		{"codespace name", config.Environment{CodespaceName: "space"}, ProviderAuth0},
		{"render url", config.Environment{RenderExternalURL: "https://x.onrender.com"}, ProviderAuth0},
		{"render service", config.Environment{RenderServiceID: "srv-1"}, ProviderAuth0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectProvider(tt.env))
		})
	}
}

func TestCurrentUser_NoProviderSession(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh"}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh)

	u, err := gw.CurrentUser(context.Background(), newSession())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Zero(t, gh.fetches)
}

func TestCurrentUser_CachedUserWins(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh", user: model.User{ID: "github|1"}}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh)

	sess := newSession()
	sess.Values["gh"] = true
	sess.Values[KeyUser] = model.User{ID: "auth0|cached", Name: "cached"}

	u, err := gw.CurrentUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "auth0|cached", u.ID)
	assert.Zero(t, gh.fetches, "providers must not be asked when a user is cached")
}

func TestCurrentUser_GitHubBeforeAuth0(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh", user: model.User{ID: "github|5987806", Name: "egg"}}
	a0 := &fakeProvider{name: ProviderAuth0, key: "a0", user: model.User{ID: "auth0|abc"}}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh, a0)

	sess := newSession()
	sess.Values["gh"] = true
	sess.Values["a0"] = true

	u, err := gw.CurrentUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "github|5987806", u.ID)
	assert.Zero(t, a0.fetches)
	assert.Equal(t, model.User{ID: "github|5987806", Name: "egg"}, sess.Values[KeyUser], "user must be cached in the session")
}

func TestCurrentUser_FallsThroughToAuth0(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh"}
	a0 := &fakeProvider{name: ProviderAuth0, key: "a0", user: model.User{ID: "auth0|abc"}}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh, a0)

	sess := newSession()
	sess.Values["a0"] = true

	u, err := gw.CurrentUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", u.ID)
}

func TestCurrentUser_ProviderError(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh", err: apperror.UpstreamAuth("GitHub", errors.New("boom"))}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh)

	sess := newSession()
	sess.Values["gh"] = true

	u, err := gw.CurrentUser(context.Background(), sess)
	assert.Nil(t, u)
	assert.ErrorIs(t, err, apperror.ErrUpstreamAuth)
	assert.NotContains(t, sess.Values, KeyUser)
}

func TestLogout_ClearsEverything(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: KeyGitHubToken, user: model.User{ID: "github|1"}}
	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh)

	sess := newSession()
	sess.Values[KeyUser] = model.User{ID: "github|1"}
	sess.Values[KeyGitHubToken] = "still-valid-upstream"
	sess.Values[KeyGitHub] = `{"id":1}`
	sess.Values[KeyNext] = "/admin/"

	Logout(sess)

	assert.Empty(t, sess.Values)
	assert.Equal(t, -1, sess.Options.MaxAge)

	u, err := gw.CurrentUser(context.Background(), sess)
	require.NoError(t, err)
	assert.Nil(t, u, "a wiped session must resolve to no user")
}

func TestGateway_Selected(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh"}

	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh, nil)
	p, name, err := gw.Selected()
	require.NoError(t, err)
	assert.Equal(t, ProviderGitHub, name)
	assert.Same(t, gh, p)

	// Auth0 selected but not configured.
	gw = NewGateway(fixedEnv(config.Environment{CodespaceName: "x"}), discardLogger(), gh, nil)
	p, name, err = gw.Selected()
	require.NoError(t, err)
	assert.Equal(t, ProviderAuth0, name)
	assert.Nil(t, p)
}

func TestGateway_SelectedLabel(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh"}

	gw := NewGateway(fixedEnv(config.Environment{}), discardLogger(), gh)
	assert.Equal(t, ProviderGitHub, gw.SelectedLabel(), "registered providers label themselves")

	gw = NewGateway(fixedEnv(config.Environment{RenderServiceID: "srv-1"}), discardLogger(), gh)
	assert.Equal(t, "Auth0", gw.SelectedLabel())

	gw = NewGateway(fixedEnv(config.Environment{}), discardLogger())
	assert.Equal(t, "GitHub", gw.SelectedLabel())
}

func TestGateway_SelectedReadsEnvironmentEachCall(t *testing.T) {
	gh := &fakeProvider{name: ProviderGitHub, key: "gh"}
	a0 := &fakeProvider{name: ProviderAuth0, key: "a0"}

	env := config.Environment{}
	gw := NewGateway(func() (config.Environment, error) { return env, nil }, discardLogger(), gh, a0)

	_, name, _ := gw.Selected()
	assert.Equal(t, ProviderGitHub, name)

	env.RenderServiceID = "srv-1"
	_, name, _ = gw.Selected()
	assert.Equal(t, ProviderAuth0, name)
}

func TestExternalBaseURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://localhost:5000/login", nil)

	tests := []struct {
		name string
		env  config.Environment
		want string
	}{
		{
			name: "render url wins",
			env: config.Environment{
				RenderExternalURL:      "https://todo.onrender.com/",
				RenderExternalHostname: "other.onrender.com",
				CodespaceName:          "space",
			},
			want: "https://todo.onrender.com",
		},
		{
			name: "render hostname",
			env:  config.Environment{RenderExternalHostname: "todo.onrender.com", CodespaceName: "space"},
			want: "https://todo.onrender.com",
		},
		{
			name: "codespace",
			env:  config.Environment{CodespaceName: "fluffy", Port: "5000", PortForwardingDomain: "app.github.dev"},
			want: "https://fluffy-5000.app.github.dev",
		},
		{
			name: "codespace defaults",
			env:  config.Environment{CodespaceName: "fluffy"},
			want: "https://fluffy-5000.app.github.dev",
		},
		{
			name: "request",
			env:  config.Environment{},
			want: "http://localhost:5000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExternalBaseURL(r, tt.env))
		})
	}
}

func TestRequestBaseURL_ForwardedProto(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://todo.example.com/login", nil)
	r.Header.Set("X-Forwarded-Proto", "https, http")

	assert.Equal(t, "https://todo.example.com", RequestBaseURL(r))
}

func TestIsLocalPath(t *testing.T) {
	tests := map[string]bool{
		"/":                    true,
		"/admin/todos?page=2":  true,
		"":                     false,
		"admin":                false,
		"//evil.example":       false,
		"/\\evil.example":      false,
		"https://evil.example": false,
		"/ok\r\nSet-Cookie:x":  false,
	}
	for in, want := range tests {
		assert.Equal(t, want, IsLocalPath(in), in)
	}
}
