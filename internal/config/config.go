package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benashkar/golf-tracker/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	PGA     PGAConfig     `yaml:"pga" mapstructure:"pga"`
	Redis   RedisConfig   `yaml:"redis" mapstructure:"redis"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	College CollegeConfig `yaml:"college" mapstructure:"college"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// FetchConfig holds the defaults every fetch client starts from.
type FetchConfig struct {
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs      int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffFactorMs int    `yaml:"backoff_factor_ms" mapstructure:"backoff_factor_ms"`
	MaxBackoffMs    int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Timeout returns the per-attempt timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// MinDelay returns the gap between consecutive requests of one client.
func (f FetchConfig) MinDelay() time.Duration {
	return time.Duration(f.MinDelayMs) * time.Millisecond
}

// RetryPolicy returns the retry policy for fetch clients.
func (f FetchConfig) RetryPolicy() resilience.RetryPolicy {
	return resilience.FromRetryConfig(f.MaxRetries, f.BackoffFactorMs, f.MaxBackoffMs, 0)
}

// EnrichConfig configures the bio waterfall job.
type EnrichConfig struct {
	// WaterfallPath points at the waterfall YAML. Empty uses the
	// built-in source order.
	WaterfallPath string `yaml:"waterfall_path" mapstructure:"waterfall_path"`
	Limit         int    `yaml:"limit" mapstructure:"limit"`
	// CooldownHours holds back players the waterfall missed. Zero
	// disables the cooldown.
	CooldownHours int `yaml:"cooldown_hours" mapstructure:"cooldown_hours"`
}

// Cooldown returns the miss cooldown.
func (e EnrichConfig) Cooldown() time.Duration {
	return time.Duration(e.CooldownHours) * time.Hour
}

// PGAConfig configures the player directory.
type PGAConfig struct {
	GraphQLURL string   `yaml:"graphql_url" mapstructure:"graphql_url"`
	APIKey     string   `yaml:"api_key" mapstructure:"api_key"`
	Tours      []string `yaml:"tours" mapstructure:"tours"`
}

// RedisConfig configures the optional cooldown store.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// CollegeConfig lists the team roster pages read by the college roster job.
// An empty list selects the built-in programs.
type CollegeConfig struct {
	Rosters []RosterConfig `yaml:"rosters" mapstructure:"rosters"`
}

// RosterConfig is one team roster page.
type RosterConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	URL    string `yaml:"url" mapstructure:"url"`
	School string `yaml:"school" mapstructure:"school"`
}

// ServerConfig configures the metrics server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GOLF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "GolfTracker/1.0 (Local News Research; github.com/golf-tracker)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.min_delay_ms", 2000)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_factor_ms", 1000)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("enrich.limit", 50)
	v.SetDefault("enrich.cooldown_hours", 0)
	v.SetDefault("pga.graphql_url", "https://orchestrator.pgatour.com/graphql")
	v.SetDefault("pga.api_key", "da2-gsrx5bibzbb4njvhl7t37wqyl4")
	v.SetDefault("pga.tours", []string{"R"})
	v.SetDefault("server.port", 9090)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite", "memory":
	default:
		errs = append(errs, "store.driver must be postgres, sqlite or memory")
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, "fetch.max_retries must be >= 0")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MinDelayMs < 0 {
		errs = append(errs, "fetch.min_delay_ms must be >= 0")
	}

	switch mode {
	case "roster":
		if len(c.PGA.Tours) == 0 {
			errs = append(errs, "pga.tours must list at least one tour")
		}
		if c.PGA.APIKey == "" {
			errs = append(errs, "pga.api_key is required")
		}
	case "enrich":
		if c.Enrich.Limit < 0 {
			errs = append(errs, "enrich.limit must be >= 0")
		}
		if c.Enrich.CooldownHours < 0 {
			errs = append(errs, "enrich.cooldown_hours must be >= 0")
		}
		if c.Enrich.CooldownHours > 0 && c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when enrich.cooldown_hours is set")
		}
	case "college":
		for i, r := range c.College.Rosters {
			if r.URL == "" || r.School == "" {
				errs = append(errs, fmt.Sprintf("college.rosters[%d] needs url and school", i))
			}
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "migrate", "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
