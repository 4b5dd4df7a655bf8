package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resilience"
)

// Config is the top-level waterfall configuration. Sources are consulted in
// the order listed.
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
	Targets []string       `yaml:"targets"`
	Breaker BreakerConfig  `yaml:"breaker"`
}

// SourceConfig enables and tunes one source.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Enabled    *bool  `yaml:"enabled,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`
	MinDelayMs int    `yaml:"min_delay_ms,omitempty"`
}

// IsEnabled reports whether the source should be consulted. Sources are
// enabled unless switched off explicitly.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// BreakerConfig holds per-source circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs"`
}

// CircuitConfig converts to the resilience breaker config.
func (b BreakerConfig) CircuitConfig() resilience.CircuitBreakerConfig {
	return resilience.FromCircuitConfig(b.FailureThreshold, b.ResetTimeoutSecs)
}

// DefaultTargets are the fields whose absence marks a player for enrichment.
var DefaultTargets = []string{string(player.FieldHighSchoolName), string(player.FieldHometownCity)}

// Source names.
const (
	SourceDuckDuckGo = "duckduckgo"
	SourceWikipedia  = "wikipedia"
	SourceESPN       = "espn"
	SourceGrokepedia = "grokepedia"
)

// DefaultConfig returns the built-in order: search snippets, the
// encyclopedia, the stats site, then the alternate encyclopedia.
func DefaultConfig() *Config {
	return &Config{
		Sources: []SourceConfig{
			{Name: SourceDuckDuckGo},
			{Name: SourceWikipedia},
			{Name: SourceESPN},
			{Name: SourceGrokepedia},
		},
		Targets: append([]string(nil), DefaultTargets...),
	}
}

// LoadConfig reads waterfall config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML with a top-level "waterfall" key and applies
// defaults.
func ParseConfig(data []byte) (*Config, error) {
	var wrapper struct {
		Waterfall Config `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse config")
	}

	cfg := &wrapper.Waterfall
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultConfig().Sources
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = append([]string(nil), DefaultTargets...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks source names and target fields.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return eris.Errorf("waterfall: source %d has no name", i)
		}
		if seen[s.Name] {
			return eris.Errorf("waterfall: source %q listed twice", s.Name)
		}
		if s.MinDelayMs < 0 {
			return eris.Errorf("waterfall: source %q has negative min_delay_ms", s.Name)
		}
		seen[s.Name] = true
	}
	_, err := c.TargetFields()
	return err
}

// TargetFields parses Targets.
func (c *Config) TargetFields() ([]player.Field, error) {
	out := make([]player.Field, 0, len(c.Targets))
	for _, t := range c.Targets {
		f, err := player.ParseField(t)
		if err != nil {
			return nil, eris.Wrap(err, "waterfall: targets")
		}
		out = append(out, f)
	}
	return out, nil
}

// Enabled returns the enabled sources in order.
func (c *Config) Enabled() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Source returns the config for name.
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}
