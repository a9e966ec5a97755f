// Package config loads the server configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/matthewbaird/fiberorder/internal/session"
	"github.com/matthewbaird/fiberorder/internal/types"
)

// FileEnv names the environment variable that points at the YAML file.
const FileEnv = "FIBERORDER_CONFIG"

// Config is the full server configuration.
type Config struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// CatalogFile is the CUE catalog loaded into the database on start. Empty
	// keeps the catalog already stored.
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`
	// LogMode is "production" (JSON) or "development" (console).
	LogMode     string `yaml:"log_mode" mapstructure:"log_mode"`
	EventBuffer int    `yaml:"event_buffer" mapstructure:"event_buffer"`

	// AllowedOrigins are host patterns, such as "shop.example.com" or
	// "*.example.com", whose pages may open the websocket. The server's own
	// host is always allowed.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Pricing types.Policy  `yaml:"pricing" mapstructure:"pricing"`
}

// SessionConfig configures session expiry.
type SessionConfig struct {
	MaxAge          time.Duration `yaml:"max_age" mapstructure:"max_age"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:        8080,
		DatabaseURL: "file:fiberorder.db?_pragma=foreign_keys(1)",
		LogMode:     "production",
		EventBuffer: 256,
		Session: SessionConfig{
			MaxAge:          24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Pricing: types.DefaultPolicy(),
	}
}

// envBindings maps config keys to the unprefixed variables the deployment
// already uses. Every other key is read from FIBERORDER_<KEY>.
var envBindings = map[string]string{
	"port":         "PORT",
	"database_url": "DATABASE_URL",
	"catalog_file": "CATALOG_FILE",
}

// Load reads the configuration. path may be empty; then the file named by
// FIBERORDER_CONFIG is used, if any.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("FIBERORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "FIBERORDER_"+env, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	// No default: an unset list stays nil.
	if err := v.BindEnv("allowed_origins"); err != nil {
		return nil, fmt.Errorf("binding allowed_origins: %w", err)
	}

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("config", "")
	v.SetDefault("port", d.Port)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("catalog_file", d.CatalogFile)
	v.SetDefault("log_mode", d.LogMode)
	v.SetDefault("event_buffer", d.EventBuffer)
	v.SetDefault("session.max_age", d.Session.MaxAge)
	v.SetDefault("session.idle_timeout", d.Session.IdleTimeout)
	v.SetDefault("session.cleanup_interval", d.Session.CleanupInterval)
	v.SetDefault("pricing.twelve_month_families", d.Pricing.TwelveMonthFamilies)
	v.SetDefault("pricing.router_discount_families", d.Pricing.RouterDiscountFamilies)
	v.SetDefault("pricing.referral_bonus_cents", d.Pricing.ReferralBonusCents)
	v.SetDefault("pricing.express_fallback_cents", d.Pricing.ExpressFallbackCents)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if c.LogMode != "production" && c.LogMode != "development" {
		errs = append(errs, fmt.Errorf("log_mode %q: want production or development", c.LogMode))
	}
	if c.Session.MaxAge <= 0 || c.Session.IdleTimeout <= 0 || c.Session.CleanupInterval <= 0 {
		errs = append(errs, errors.New("session durations must be positive"))
	}
	for _, o := range c.AllowedOrigins {
		if _, err := path.Match(o, ""); err != nil || strings.Contains(o, "://") {
			errs = append(errs, fmt.Errorf("allowed_origins: %q is not a host pattern", o))
		}
	}
	if c.Pricing.ReferralBonusCents < 0 || c.Pricing.ExpressFallbackCents < 0 {
		errs = append(errs, errors.New("pricing amounts must not be negative"))
	}
	return errors.Join(errs...)
}

// SessionOptions converts the session and pricing settings.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		MaxAge:      c.Session.MaxAge,
		IdleTimeout: c.Session.IdleTimeout,
		Policy:      c.Pricing,
	}
}

// NewLogger builds the zap logger for LogMode.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.LogMode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
