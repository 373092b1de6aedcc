// Package config provides configuration management for go-moodtracker.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// SecretEnv names the environment variable holding the session secret
	SecretEnv = "SESSION_SECRET"
	// DefaultSecret is used when SecretEnv is not set. It is public and only fit for development.
	DefaultSecret = "dev_secret_key"

	// EnvPrefix prefixes the optional MOOD_* overrides
	EnvPrefix = "MOOD"

	DefaultListenHost = "0.0.0.0"
	DefaultListenPort = 5000
)

var (
	ErrInsecureSecret = errors.New("refusing to run in release mode with the default session secret; set " + SecretEnv)
	ErrInvalidPort    = errors.New("invalid listen port")
)

// MainConfig holds the main configuration for go-moodtracker
type MainConfig struct {
	Web      WebConfig      `json:"web" mapstructure:"web"`
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	Insights InsightsConfig `json:"insights" mapstructure:"insights"`

	AppVersion string `json:"app_version" mapstructure:"-"` // Application version, set at build time
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenHost  string `json:"listen_host" mapstructure:"host"`
	ListenPort  int    `json:"listen_port" mapstructure:"port"`
	Debug       bool   `json:"debug" mapstructure:"debug"`               // gin debug mode, verbose errors and template reload
	TemplateDir string `json:"template_dir" mapstructure:"template_dir"` // load templates from disk instead of the embedded copies
	TimeZone    string `json:"timezone" mapstructure:"timezone"`         // location used to derive entry dates and weekdays

	// Secret signs visitor session cookies. It is read once at startup and never changes.
	Secret string `json:"-" mapstructure:"-"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DataDir        string        `json:"data_dir" mapstructure:"data_dir"`
	SessionTimeout time.Duration `json:"session_timeout" mapstructure:"session_timeout"`
}

// InsightsConfig tunes when insights are shown
type InsightsConfig struct {
	MinUniqueDays         int     `json:"min_unique_days" mapstructure:"min_unique_days"`
	BroadenBuildThreshold float64 `json:"broaden_build_threshold" mapstructure:"broaden_build_threshold"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		AppVersion: AppVersion,
		Web: WebConfig{
			ListenHost: DefaultListenHost,
			ListenPort: DefaultListenPort,
			Debug:      true,
			TimeZone:   "Local",
			Secret:     DefaultSecret,
		},
		Database: DatabaseConfig{
			DataDir:        "data",
			SessionTimeout: 30 * 24 * time.Hour,
		},
		Insights: InsightsConfig{
			MinUniqueDays:         3,
			BroadenBuildThreshold: 4.5,
		},
	}
}

// Load builds the configuration from defaults and the environment.
// SESSION_SECRET is read without prefix; everything else uses MOOD_<SECTION>_<KEY>,
// e.g. MOOD_WEB_PORT or MOOD_DATABASE_DATA_DIR.
func Load() (*MainConfig, error) {
	cfg := NewDefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("web.host", cfg.Web.ListenHost)
	v.SetDefault("web.port", cfg.Web.ListenPort)
	v.SetDefault("web.debug", cfg.Web.Debug)
	v.SetDefault("web.template_dir", cfg.Web.TemplateDir)
	v.SetDefault("web.timezone", cfg.Web.TimeZone)
	v.SetDefault("database.data_dir", cfg.Database.DataDir)
	v.SetDefault("database.session_timeout", cfg.Database.SessionTimeout)
	v.SetDefault("insights.min_unique_days", cfg.Insights.MinUniqueDays)
	v.SetDefault("insights.broaden_build_threshold", cfg.Insights.BroadenBuildThreshold)

	if err := v.BindEnv("secret", SecretEnv); err != nil {
		return nil, fmt.Errorf("bind %s: %w", SecretEnv, err)
	}
	v.SetDefault("secret", DefaultSecret)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Web.Secret = v.GetString("secret")
	if cfg.Web.Secret == "" {
		cfg.Web.Secret = DefaultSecret
	}
	return cfg, nil
}

// UsesDefaultSecret reports whether the publicly known fallback secret is in use
func (c *MainConfig) UsesDefaultSecret() bool {
	return c.Web.Secret == DefaultSecret
}

// Validate checks ports and the secret policy. The default secret is
// tolerated in debug mode only.
func (c *MainConfig) Validate() error {
	if c.Web.ListenPort < 1 || c.Web.ListenPort > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPort, c.Web.ListenPort)
	}
	if c.Web.Secret == "" {
		return errors.New("session secret must not be empty")
	}
	if !c.Web.Debug && c.UsesDefaultSecret() {
		return ErrInsecureSecret
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone
func (c *MainConfig) Location() (*time.Location, error) {
	switch c.Web.TimeZone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Web.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Web.TimeZone, err)
	}
	return loc, nil
}

// ListenAddr returns host:port for the web listener
func (c *WebConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}
