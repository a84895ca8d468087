package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "UTC"
	defaultPageSize   = 3
	defaultBackendURL = "http://127.0.0.1:8000"
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 15
	defaultRatePerSec = 10
	defaultLogLevel   = "info"

	// developmentBackend is what APP_ENV=development points the client at.
	developmentBackend = "http://127.0.0.1:8000"
)

// BackendConfig locates the event API.
type BackendConfig struct {
	// URL is the backend origin, e.g. "https://events.example.com".
	URL string `yaml:"url" json:"url"`
	// APIPrefix is appended to URL for every request, e.g. "/api/v1".
	APIPrefix string `yaml:"api_prefix" json:"api_prefix"`
	// TimeoutSeconds bounds every backend request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// RatePerSec caps outgoing requests.
	RatePerSec int `yaml:"rate_per_sec" json:"rate_per_sec"`
}

// CORSConfig applies to the /api proxy only.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and proxy.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to read form input and render times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// PageSize is the limit sent with every list request.
	PageSize int `yaml:"page_size" json:"page_size"`

	// RefreshCron schedules a resync of the cached list with the backend
	// (e.g. "*/15 * * * *"). Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Backend BackendConfig `yaml:"backend" json:"backend"`
	CORS    CORSConfig    `yaml:"cors" json:"cors"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		PageSize:    defaultPageSize,
		RefreshCron: "*/15 * * * *",
		LogLevel:    defaultLogLevel,
		Backend: BackendConfig{
			URL:            defaultBackendURL,
			APIPrefix:      defaultAPIPrefix,
			TimeoutSeconds: defaultTimeout,
			RatePerSec:     defaultRatePerSec,
		},
		CORS:      CORSConfig{AllowedOrigins: []string{}},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. An empty RefreshCron is
// kept: it means no scheduled resync.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}

	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.APIPrefix != "" && !strings.HasPrefix(c.Backend.APIPrefix, "/") {
		c.Backend.APIPrefix = "/" + c.Backend.APIPrefix
	}
	c.Backend.APIPrefix = strings.TrimRight(c.Backend.APIPrefix, "/")
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultTimeout
	}
	if c.Backend.RatePerSec <= 0 {
		c.Backend.RatePerSec = defaultRatePerSec
	}

	if c.CORS.AllowedOrigins == nil {
		c.CORS.AllowedOrigins = []string{}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// BackendBaseURL is the origin plus API prefix every client request is
// built on.
func (c *Config) BackendBaseURL() string {
	return c.Backend.URL + c.Backend.APIPrefix
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Timeout is the backend request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error. Variables already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from the environment:
//
//   - APP_ENV=development points the backend at http://127.0.0.1:8000
//   - API_URL sets the backend origin
//   - API_STR sets the API prefix
//   - LISTEN, LOG_LEVEL, PAGE_SIZE override their keys
//
// cfg is normalized afterwards.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if v, ok := os.LookupEnv("API_URL"); ok && v != "" {
		cfg.Backend.URL = v
	}
	if strings.EqualFold(os.Getenv("APP_ENV"), "development") {
		cfg.Backend.URL = developmentBackend
	}
	if v, ok := os.LookupEnv("API_STR"); ok {
		cfg.Backend.APIPrefix = v
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PAGE_SIZE %q: %w", v, err)
		}
		cfg.PageSize = n
	}

	cfg.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
