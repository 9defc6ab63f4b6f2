package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sakif/todo-app/internal/config"
)

// SelectProvider picks the login provider for env.
//
// Cloud workspaces (Codespaces) and managed hosting (Render) get Auth0,
// because their hostnames change per preview and cannot all be registered
// as GitHub OAuth callback URLs. Everything else gets GitHub.
func SelectProvider(env config.Environment) string {
	if env.IsCodespaces() || env.IsRender() {
		return ProviderAuth0
	}
	return ProviderGitHub
}

// ExternalBaseURL is the externally visible origin of the app, without a
// trailing slash. Resolution order:
//
//	RENDER_EXTERNAL_URL
//	https://RENDER_EXTERNAL_HOSTNAME
//	https://CODESPACE_NAME-PORT.PORT_FORWARDING_DOMAIN
//	the request's own scheme and host
func ExternalBaseURL(r *http.Request, env config.Environment) string {
	if env.RenderExternalURL != "" {
		return strings.TrimRight(env.RenderExternalURL, "/")
	}
	if env.RenderExternalHostname != "" {
		return "https://" + strings.TrimRight(env.RenderExternalHostname, "/")
	}
	if env.CodespaceName != "" {
		domain := env.PortForwardingDomain
		if domain == "" {
			domain = "app.github.dev"
		}
		port := env.Port
		if port == "" {
			port = "5000"
		}
		return fmt.Sprintf("https://%s-%s.%s", env.CodespaceName, port, domain)
	}
	return RequestBaseURL(r)
}

// RequestBaseURL derives scheme://host from r, honouring X-Forwarded-Proto
// set by a TLS-terminating proxy.
func RequestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		// A chain of proxies sends "https, http"; the first hop is the client's.
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// IsLocalPath reports whether target is a same-origin path that is safe to
// redirect to after login.
func IsLocalPath(target string) bool {
	if target == "" || target[0] != '/' {
		return false
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(target, "\r\n")
}
