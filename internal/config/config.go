// internal/config/config.go
//
// This package handles configuration and the .onboard directory structure.
// Every working directory that runs onboard gets a .onboard/ folder with a
// config.yaml, a logs/ folder and a schemas/ folder for custom forms.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// OnboardDir is the name of the directory we create in each working directory
	OnboardDir = ".onboard"

	// EnvAPIURL overrides api.base_url from config.yaml.
	EnvAPIURL = "ONBOARD_API_URL"

	DefaultAPIBaseURL     = "http://127.0.0.1:8780"
	DefaultSchemaID       = "business"
	DefaultDismissAfter   = 3 * time.Second
	DefaultSandboxHost    = "127.0.0.1"
	DefaultSandboxPort    = 8780
	defaultSandboxSecret  = "onboard-sandbox-secret"
	defaultConfigVersion  = 1
	maxNotificationWindow = 5 * time.Minute
)

const defaultProjectConfigYAML = `# onboard configuration
version: 1

# Registration API. ONBOARD_API_URL overrides base_url.
api:
  base_url: http://127.0.0.1:8780
  # Requests wait indefinitely unless a timeout is set, e.g. 30s.
  # timeout: 30s

wizard:
  # business or personal, or the id of a schema under .onboard/schemas/
  default_schema: business

notifications:
  dismiss_after: 3s

# Local API used by "onboard sandbox".
sandbox:
  enabled: true
  host: 127.0.0.1
  port: 8780
  secret: onboard-sandbox-secret
`

// APIConfig points the client at the registration API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// WizardConfig captures wizard preferences.
type WizardConfig struct {
	DefaultSchema string `yaml:"default_schema"`
}

// NotificationConfig controls the notification slot.
type NotificationConfig struct {
	DismissAfter time.Duration `yaml:"dismiss_after,omitempty"`
}

// SandboxConfig configures the local API server.
type SandboxConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Secret  string `yaml:"secret,omitempty"`
}

// ProjectConfig models .onboard/config.yaml.
type ProjectConfig struct {
	Version       int                `yaml:"version"`
	API           APIConfig          `yaml:"api"`
	Wizard        WizardConfig       `yaml:"wizard"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sandbox       SandboxConfig      `yaml:"sandbox"`
}

// Config holds the runtime configuration for onboard.
type Config struct {
	// WorkDir is the directory where the user ran `onboard` from
	WorkDir string

	// OnboardProjectDir is WorkDir/.onboard
	OnboardProjectDir string

	Project ProjectConfig
}

// InitOnboardDir creates the .onboard directory structure in the given directory.
//
// Structure created:
// .onboard/
// ├── config.yaml
// ├── logs/      <- onboard.log
// └── schemas/   <- custom form schemas (*.yaml)
func InitOnboardDir(workDir string) error {
	root := filepath.Join(workDir, OnboardDir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "schemas"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads .onboard/config.yaml (if present) and applies env overrides.
func NewConfig(workDir string) (*Config, error) {
	cfg := &Config{
		WorkDir:           workDir,
		OnboardProjectDir: filepath.Join(workDir, OnboardDir),
		Project:           defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if override := strings.TrimSpace(os.Getenv(EnvAPIURL)); override != "" {
		if err := cfg.SetAPIBaseURL(override); err != nil {
			return nil, fmt.Errorf("config: %s: %w", EnvAPIURL, err)
		}
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.OnboardProjectDir, "logs")
}

// LogPath returns the path of the application log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "onboard.log")
}

// SchemasDir returns the directory scanned for custom form schemas.
func (c *Config) SchemasDir() string {
	return filepath.Join(c.OnboardProjectDir, "schemas")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.OnboardProjectDir, "config.yaml")
}

// APIBaseURL returns the registration API base URL without a trailing slash.
func (c *Config) APIBaseURL() string {
	return c.Project.API.BaseURL
}

// APITimeout bounds each API request. Zero means no timeout.
func (c *Config) APITimeout() time.Duration {
	return c.Project.API.Timeout
}

// SetAPIBaseURL validates and applies a base URL override (not persisted).
func (c *Config) SetAPIBaseURL(raw string) error {
	normalized, err := normalizeBaseURL(raw)
	if err != nil {
		return err
	}
	c.Project.API.BaseURL = normalized
	return nil
}

// DefaultSchema returns the schema opened when none is requested explicitly.
func (c *Config) DefaultSchema() string {
	return c.Project.Wizard.DefaultSchema
}

// DismissAfter returns how long a notification stays visible.
func (c *Config) DismissAfter() time.Duration {
	return c.Project.Notifications.DismissAfter
}

// SetDefaultSchema updates the default schema and persists it to config.yaml.
func (c *Config) SetDefaultSchema(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: schema id is required")
	}
	c.Project.Wizard.DefaultSchema = id
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = defaultConfigVersion
	}
	if strings.TrimSpace(pc.API.BaseURL) == "" {
		pc.API.BaseURL = DefaultAPIBaseURL
	}
	if pc.API.Timeout < 0 {
		pc.API.Timeout = 0
	}
	if strings.TrimSpace(pc.Wizard.DefaultSchema) == "" {
		pc.Wizard.DefaultSchema = DefaultSchemaID
	}
	if pc.Notifications.DismissAfter <= 0 {
		pc.Notifications.DismissAfter = DefaultDismissAfter
	}
	if pc.Sandbox.Enabled == nil {
		enabled := true
		pc.Sandbox.Enabled = &enabled
	}
	if strings.TrimSpace(pc.Sandbox.Host) == "" {
		pc.Sandbox.Host = DefaultSandboxHost
	}
	if pc.Sandbox.Port == 0 {
		pc.Sandbox.Port = DefaultSandboxPort
	}
	if strings.TrimSpace(pc.Sandbox.Secret) == "" {
		pc.Sandbox.Secret = defaultSandboxSecret
	}
}

func (pc *ProjectConfig) normalize() {
	if normalized, err := normalizeBaseURL(pc.API.BaseURL); err == nil {
		pc.API.BaseURL = normalized
	}
	pc.Wizard.DefaultSchema = strings.ToLower(strings.TrimSpace(pc.Wizard.DefaultSchema))
	pc.Sandbox.Host = strings.TrimSpace(pc.Sandbox.Host)
	pc.Sandbox.Secret = strings.TrimSpace(pc.Sandbox.Secret)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if _, err := normalizeBaseURL(pc.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if pc.Wizard.DefaultSchema == "" {
		return fmt.Errorf("wizard.default_schema is required")
	}
	if pc.Notifications.DismissAfter > maxNotificationWindow {
		return fmt.Errorf("notifications.dismiss_after must be <= %s", maxNotificationWindow)
	}
	if pc.Sandbox.Port < 0 || pc.Sandbox.Port > 65535 {
		return fmt.Errorf("sandbox.port must be within 0-65535")
	}
	return nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", trimmed, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base url %q must use http or https", trimmed)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base url %q has no host", trimmed)
	}
	return trimmed, nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.OnboardProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure onboard dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
