package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment holds the deployment-context signals used to pick the login
// provider and to build externally visible URLs.
type Environment struct {
	Codespaces           string `env:"CODESPACES"`
	CodespaceName        string `env:"CODESPACE_NAME"`
	PortForwardingDomain string `env:"GITHUB_CODESPACES_PORT_FORWARDING_DOMAIN" envDefault:"app.github.dev"`
	Port                 string `env:"PORT" envDefault:"5000"`

	RenderExternalURL      string `env:"RENDER_EXTERNAL_URL"`
	RenderExternalHostname string `env:"RENDER_EXTERNAL_HOSTNAME"`
	RenderServiceID        string `env:"RENDER_SERVICE_ID"`
}

// IsCodespaces reports whether the process runs in a GitHub Codespace.
func (e Environment) IsCodespaces() bool {
	return e.Codespaces == "true" || e.CodespaceName != ""
}

// IsRender reports whether the process runs on Render's managed hosting.
func (e Environment) IsRender() bool {
	return e.RenderExternalURL != "" || e.RenderServiceID != ""
}

// LoadEnvironment parses the current process environment. It is cheap and
// meant to be called per request.
func LoadEnvironment() (Environment, error) {
	var e Environment
	if err := ParseEnv(&e); err != nil {
		return Environment{}, err
	}
	return e, nil
}

// EnvironmentFrom parses an Environment from an explicit variable set
// instead of the process environment.
func EnvironmentFrom(vars map[string]string) (Environment, error) {
	var e Environment
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Environment{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
