// Package config loads gateway configuration from file, environment and
// runtime overrides, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ISSGATE_SERVER_PORT.
const EnvPrefix = "ISSGATE"

// Config is the full gateway configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Files     FilesConfig     `mapstructure:"files"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig points at the upstream job scheduler API.
type SchedulerConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	TokenURL string        `mapstructure:"token_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FilesConfig points at the scheduler's file access service. TenantURLs
// maps tenant IDs to per-tenant gateway base URLs; tenants without an
// entry use BaseURL.
type FilesConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	TenantURLs map[string]string `mapstructure:"tenant_urls"`
	Timeout    time.Duration     `mapstructure:"timeout"`
}

// SecretsConfig names the AWS Secrets Manager secret holding scheduler
// credentials. AccessKeyID and SecretAccessKey are optional; when empty
// the default AWS credential chain applies.
type SecretsConfig struct {
	SecretName      string `mapstructure:"secret_name"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AuthConfig controls inbound API authentication. When Token is empty the
// /api routes are open, which is only acceptable in local development.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// LoggingConfig controls the shared zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig bounds inbound request rate per instance.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load reads configuration and stores it as the process config. The
// optional path names an explicit config file; when empty, issgate.yaml is
// searched in the working directory and /etc/issgate. Overrides win over
// environment, which wins over file, which wins over defaults.
func Load(path string, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("issgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/issgate")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, o := range overrides {
		if err := v.MergeConfigMap(o); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// GetConfig returns the most recently loaded config, or nil before Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Scheduler.BaseURL == "" {
		return fmt.Errorf("scheduler.base_url is required")
	}
	if c.Secrets.SecretName == "" {
		return fmt.Errorf("secrets.secret_name is required")
	}
	if c.Secrets.Region == "" {
		return fmt.Errorf("secrets.region is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be positive when rate limiting is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("scheduler.timeout", 30*time.Second)
	v.SetDefault("files.timeout", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", true)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)
}
