// Package config loads polytran configuration from a YAML file and the
// environment, and exposes the read-only runtime Settings used by the engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/translator"
)

// Config mirrors polytran.yaml.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Store StoreConfig `mapstructure:"store"`

	Providers struct {
		Enabled  []string                            `mapstructure:"enabled"`
		Services map[string]translator.ServiceConfig `mapstructure:"services"`
	} `mapstructure:"providers"`

	Vendors map[string]VendorConfig `mapstructure:"vendors"`

	Translation struct {
		Rules                []resolver.Rule   `mapstructure:"rules"`
		Mapping              map[string]string `mapstructure:"mapping"`
		VerifyOutputLanguage bool              `mapstructure:"verify_output_language"`
		RequestTimeout       time.Duration     `mapstructure:"request_timeout"`
	} `mapstructure:"translation"`

	Jobs JobsConfig `mapstructure:"jobs"`

	HTTP struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"http"`

	Workflows struct {
		Files       []string `mapstructure:"files"`
		StopOnError bool     `mapstructure:"stop_on_error"`
	} `mapstructure:"workflows"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"` // sqlite, redis, memory
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// JobsConfig controls background dispatch and polling.
type JobsConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	PollAttempts     int           `mapstructure:"poll_attempts"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ProcessSpawn     bool          `mapstructure:"process_spawn"`
	LoopbackURL      string        `mapstructure:"loopback_url"`
	LoopbackTimeout  time.Duration `mapstructure:"loopback_timeout"`
	PurgeSchedule    string        `mapstructure:"purge_schedule"`
	DisabledLaunches []string      `mapstructure:"disabled_launchers"`
}

// VendorConfig is the connection configuration of one AI vendor.
type VendorConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	APIKey  string        `mapstructure:"api_key" json:"api_key"`
	BaseURL string        `mapstructure:"base_url" json:"base_url"`
	Model   string        `mapstructure:"model" json:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// keylessVendors run without credentials (self-hosted).
var keylessVendors = map[string]bool{
	"ollama": true,
}

// RequiresAPIKey reports whether a vendor refuses to run without a credential.
func RequiresAPIKey(vendor string) bool {
	return !keylessVendors[vendor]
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/polytran.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("providers.enabled", []string{"google"})
	v.SetDefault("translation.request_timeout", 60*time.Second)
	v.SetDefault("jobs.ttl", time.Hour)
	v.SetDefault("jobs.poll_attempts", 60)
	v.SetDefault("jobs.poll_interval", 2*time.Second)
	v.SetDefault("jobs.process_spawn", true)
	v.SetDefault("jobs.loopback_url", "http://127.0.0.1:8080")
	v.SetDefault("jobs.loopback_timeout", 100*time.Millisecond)
	v.SetDefault("jobs.purge_schedule", "@every 1m")
	v.SetDefault("http.address", ":8080")
}

// Load reads configuration from path, or searches the default locations when
// path is empty. A missing file in the default locations is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POLYTRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("polytran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.polytran")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Vendors == nil {
		c.Vendors = make(map[string]VendorConfig)
	}
	if c.Providers.Services == nil {
		c.Providers.Services = make(map[string]translator.ServiceConfig)
	}
	if c.Translation.Mapping == nil {
		c.Translation.Mapping = make(map[string]string)
	}
	for i := range c.Providers.Enabled {
		c.Providers.Enabled[i] = strings.ToLower(strings.TrimSpace(c.Providers.Enabled[i]))
	}
}

// Settings builds the runtime view consumed by the validator and executors.
func (c *Config) Settings() Settings {
	s := Settings{
		EnabledProviders:     make(map[string]bool, len(c.Providers.Enabled)),
		Providers:            c.Providers.Services,
		Vendors:              c.Vendors,
		RequestTimeout:       c.Translation.RequestTimeout,
		VerifyOutputLanguage: c.Translation.VerifyOutputLanguage,
	}
	for _, id := range c.Providers.Enabled {
		s.EnabledProviders[id] = true
	}
	return s
}
