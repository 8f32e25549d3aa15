// Package config provides configuration management for the Lightspeed auth CLI.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the Lightspeed service URL, identity
// backend preferences, proxy configuration, and credential storage location.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consumed on top of the YAML file.
const (
	// EnvPreferRHSSO forces Red Hat SSO to be tried before the Lightspeed
	// backend when set to "true".
	EnvPreferRHSSO = "LIGHTSPEED_PREFER_RHSSO_AUTH"

	// EnvTestAccessToken short-circuits access token grants with a fixed
	// value. Honored only in development builds.
	EnvTestAccessToken = "TEST_LIGHTSPEED_ACCESS_TOKEN"
)

// DefaultServiceURL is the public Lightspeed endpoint used when no explicit
// service URL is configured.
const DefaultServiceURL = "https://c.ai.ansible.redhat.com"

// RHSSOConfig holds the endpoints and client identity for the Red Hat SSO
// backend. All fields have working defaults; overriding them is only needed
// when pointing at a staging realm.
type RHSSOConfig struct {
	// AuthURL is the SSO authorization endpoint.
	AuthURL string `yaml:"auth-url" json:"auth-url"`

	// TokenURL is the SSO token endpoint.
	TokenURL string `yaml:"token-url" json:"token-url"`

	// ClientID identifies this application to the SSO service.
	ClientID string `yaml:"client-id" json:"client-id"`
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// ServiceURL is the base URL of the Lightspeed service. An empty value is
	// a fatal configuration error surfaced when a login is attempted.
	ServiceURL string `yaml:"service-url" json:"service-url"`

	// PreferRHSSO forces the Red Hat SSO backend to be tried first.
	PreferRHSSO bool `yaml:"prefer-rhsso" json:"prefer-rhsso"`

	// RHSSOAvailable reports whether the companion SSO capability is present
	// in the host. When false the Lightspeed backend is the only option.
	RHSSOAvailable bool `yaml:"rhsso-available" json:"rhsso-available"`

	// RHSSO configures the Red Hat SSO backend endpoints.
	RHSSO RHSSOConfig `yaml:"rhsso" json:"rhsso"`

	// AuthDir is the directory used for credential persistence.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// CallbackPort is the local port used for the OAuth redirect callback.
	CallbackPort int `yaml:"callback-port" json:"callback-port"`

	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// LogLevel controls logrus verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log-level" json:"log-level"`

	// LogFile, when set, routes log output to a rotated file.
	LogFile string `yaml:"log-file" json:"log-file"`
}

// Default returns a configuration populated with working defaults.
func Default() *Config {
	return &Config{
		ServiceURL:     DefaultServiceURL,
		RHSSOAvailable: true,
		RHSSO: RHSSOConfig{
			AuthURL:  "https://sso.redhat.com/auth/realms/redhat-external/protocol/openid-connect/auth",
			TokenURL: "https://sso.redhat.com/auth/realms/redhat-external/protocol/openid-connect/token",
			ClientID: "vscode-redhat-account",
		},
		AuthDir:      defaultAuthDir(),
		CallbackPort: 54345,
		LogLevel:     "info",
	}
}

// Load reads the configuration file at path and applies environment
// overrides. A missing file is not an error; defaults are returned.
//
// Parameters:
//   - path: The YAML configuration file path. Empty uses defaults only.
//
// Returns:
//   - *Config: The effective configuration
//   - error: An error if the file exists but cannot be parsed
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s failed: %w", path, err)
			}
		} else if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s failed: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers environment variables on top of file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvPreferRHSSO); v != "" {
		c.PreferRHSSO = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LIGHTSPEED_SERVICE_URL"); v != "" {
		c.ServiceURL = v
	}
}

// defaultAuthDir resolves the per-user credential directory.
func defaultAuthDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lightspeed-auth"
	}
	return filepath.Join(home, ".lightspeed-auth")
}
