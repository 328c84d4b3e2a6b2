package sandbox

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/onboard/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = config.DefaultSandboxHost
	// DefaultPort matches the client's default API base URL.
	DefaultPort = config.DefaultSandboxPort
	// DefaultMaxBodyBytes fits a full set of capped attachments.
	DefaultMaxBodyBytes int64 = 64 << 20
	// DefaultTokenTTL bounds how long an approval link stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second

	EnvEnabled = "ONBOARD_SANDBOX_ENABLED"
	EnvHost    = "ONBOARD_SANDBOX_HOST"
	EnvPort    = "ONBOARD_SANDBOX_PORT"
)

// Settings captures runtime configuration for the sandbox API.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	Secret       string
	MaxBodyBytes int64
	TokenTTL     time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from .onboard/config.yaml and environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Enabled:      true,
		Host:         DefaultHost,
		Port:         DefaultPort,
		MaxBodyBytes: DefaultMaxBodyBytes,
		TokenTTL:     DefaultTokenTTL,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		raw := cfg.Project.Sandbox
		if raw.Enabled != nil {
			settings.Enabled = *raw.Enabled
		}
		if host := strings.TrimSpace(raw.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(raw.Port) {
			settings.Port = raw.Port
		}
		settings.Secret = strings.TrimSpace(raw.Secret)
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv(EnvEnabled)); value != "" {
		if enabled, err := strconv.ParseBool(value); err == nil {
			s.Enabled = enabled
		}
	}
	if host := strings.TrimSpace(os.Getenv(EnvHost)); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if !isValidPort(s.Port) {
		s.Port = DefaultPort
	}
	if s.Secret == "" {
		s.Secret = "onboard-sandbox-secret"
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
