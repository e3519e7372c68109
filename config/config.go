// Package config loads oscctl settings from defaults, an optional YAML file
// and OSC_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/telemetry"
)

const (
	envPrefix = "OSC"

	// gkeCollectorEndpoint is the in-cluster OpenTelemetry collector.
	gkeCollectorEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

var (
	errInvalidDriver  = errors.New("store.driver must be memory or sqlite")
	errInvalidWorkers = errors.New("trigger.workers must be positive")
	errInvalidTTL     = errors.New("osc.task_expired_after_seconds must be positive")
)

// Config is the full process configuration.
type Config struct {
	OSC      OSCConfig      `mapstructure:"osc"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Otel     OtelConfig     `mapstructure:"otel"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

type OSCConfig struct {
	TaskExpiredAfterSeconds int64 `mapstructure:"task_expired_after_seconds"`
}

type TriggerConfig struct {
	Spec    string `mapstructure:"spec"`
	Workers int    `mapstructure:"workers"`
}

type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

type OtelConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoint       string        `mapstructure:"endpoint"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Environment    string        `mapstructure:"environment"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SimulateConfig tunes the dry-run actions used by "oscctl serve".
type SimulateConfig struct {
	Polls int `mapstructure:"polls"`
}

// TaskTTL is the expiry limit applied by the expiry guard.
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.OSC.TaskExpiredAfterSeconds) * time.Second
}

// Telemetry converts the otel section for telemetry.Initialize.
func (c *Config) Telemetry() *telemetry.Config {
	return &telemetry.Config{
		ServiceName:    c.Otel.ServiceName,
		ServiceVersion: c.Otel.ServiceVersion,
		Environment:    c.Otel.Environment,
		Endpoint:       c.Otel.Endpoint,
		Enabled:        c.Otel.Enabled,
		Timeout:        c.Otel.Timeout,
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: %q", errInvalidDriver, c.Store.Driver)
	}

	if c.Trigger.Workers <= 0 {
		return fmt.Errorf("%w: %d", errInvalidWorkers, c.Trigger.Workers)
	}

	if c.OSC.TaskExpiredAfterSeconds <= 0 {
		return fmt.Errorf("%w: %d", errInvalidTTL, c.OSC.TaskExpiredAfterSeconds)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// Loader reads configuration from every source.
type Loader struct {
	v          *viper.Viper
	configFile string
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// WithConfigFile sets an explicit config file. It must exist.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path

	return l
}

// Viper exposes the underlying instance so CLI flags can be bound to keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load merges defaults, the config file and OSC_* variables, then validates.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("osc")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "osc"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("osc.task_expired_after_seconds", 432000)

	l.v.SetDefault("trigger.spec", "@every 10s")
	l.v.SetDefault("trigger.workers", 10)

	l.v.SetDefault("store.driver", "memory")
	l.v.SetDefault("store.dsn", "osc.db")

	l.v.SetDefault("log.json", false)
	l.v.SetDefault("log.level", "info")

	endpoint := ""
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		endpoint = gkeCollectorEndpoint
	}

	l.v.SetDefault("otel.enabled", false)
	l.v.SetDefault("otel.endpoint", endpoint)
	l.v.SetDefault("otel.service_name", "oscctl")
	l.v.SetDefault("otel.service_version", "1.0.0")
	l.v.SetDefault("otel.environment", "local")
	l.v.SetDefault("otel.timeout", "5s")

	l.v.SetDefault("simulate.polls", 3)
}
