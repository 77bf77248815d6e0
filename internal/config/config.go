package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration, assembled from defaults, the YAML
// file, and FLAP_* environment overrides, in that order.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Display    DisplayConfig    `yaml:"display"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	ToolLoop   ToolLoopConfig   `yaml:"tool_loop"`
	Generators GeneratorsConfig `yaml:"generators"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Duration decodes YAML durations given either as Go duration strings
// ("5m", "90s") or as bare seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProviderConfig describes one AI provider endpoint.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Tier    string `yaml:"tier"`
}

// ProvidersConfig holds the preferred/alternate provider pair.
type ProvidersConfig struct {
	Preferred ProviderConfig `yaml:"preferred"`
	Alternate ProviderConfig `yaml:"alternate"`
}

// DisplayConfig points at the split-flap board.
type DisplayConfig struct {
	// Mode is "http" for a real board or "console" for a terminal preview.
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// BreakerConfig tunes circuit recovery.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	ResetTimeout     Duration `yaml:"reset_timeout"`
	ProbeQuota       int      `yaml:"probe_quota"`
}

// SchedulerConfig drives update cadence.
type SchedulerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	MajorSchedule     string   `yaml:"major_schedule"`
	MinorUpdates      bool     `yaml:"minor_updates"`
	CycleTimeout      Duration `yaml:"cycle_timeout"`
	ConcurrencyPolicy string   `yaml:"concurrency_policy"`
}

// ToolLoopConfig tunes tool-call negotiation.
type ToolLoopConfig struct {
	Enabled          bool   `yaml:"enabled"`
	MaxAttempts      int    `yaml:"max_attempts"`
	ExhaustionPolicy string `yaml:"exhaustion_policy"`
}

// GeneratorConfig registers one prompt-driven generator.
type GeneratorConfig struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Priority     int     `yaml:"priority"`
	SystemPrompt string  `yaml:"system_prompt"`
	UserPrompt   string  `yaml:"user_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	Align        string  `yaml:"align"`
	AccentColor  int     `yaml:"accent_color"`
}

// GeneratorsConfig holds the generator roster and fallback messages.
type GeneratorsConfig struct {
	Prompts          []GeneratorConfig `yaml:"prompts"`
	FallbackMessages []string          `yaml:"fallback_messages"`
	HistorySize      int               `yaml:"history_size"`
}

// ServerConfig configures the web UI and API listener.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig tunes log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Providers: ProvidersConfig{
			Preferred: ProviderConfig{Name: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", Tier: "standard"},
		},
		Display: DisplayConfig{Mode: "console"},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     Duration(5 * time.Minute),
			ProbeQuota:       2,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			MajorSchedule: "0 * * * *",
			MinorUpdates:  true,
			CycleTimeout:  Duration(2 * time.Minute),
		},
		ToolLoop: ToolLoopConfig{Enabled: true, MaxAttempts: 3, ExhaustionPolicy: "throw"},
		Generators: GeneratorsConfig{
			HistorySize: 24,
		},
		Server:  ServerConfig{Enabled: true, Addr: ":8080"},
		Storage: StorageConfig{DatabasePath: defaultDatabasePath()},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "flapd.db"
	}
	return home + "/.flapd/flapd.db"
}

// Load reads configuration: defaults, then the YAML file (if path is
// non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers FLAP_* variables over the file. Only the knobs that differ
// per deployment get an override; everything else belongs in the file.
func applyEnv(cfg *Config) {
	setString(&cfg.Providers.Preferred.APIKey, "FLAP_PREFERRED_API_KEY")
	setString(&cfg.Providers.Preferred.BaseURL, "FLAP_PREFERRED_BASE_URL")
	setString(&cfg.Providers.Preferred.Model, "FLAP_PREFERRED_MODEL")
	setString(&cfg.Providers.Alternate.APIKey, "FLAP_ALTERNATE_API_KEY")
	setString(&cfg.Providers.Alternate.BaseURL, "FLAP_ALTERNATE_BASE_URL")
	setString(&cfg.Providers.Alternate.Model, "FLAP_ALTERNATE_MODEL")
	setString(&cfg.Display.Mode, "FLAP_DISPLAY_MODE")
	setString(&cfg.Display.BaseURL, "FLAP_DISPLAY_BASE_URL")
	setString(&cfg.Display.APIKey, "FLAP_DISPLAY_API_KEY")
	setString(&cfg.Server.Addr, "FLAP_SERVER_ADDR")
	setString(&cfg.Storage.DatabasePath, "FLAP_DATABASE_PATH")
	setString(&cfg.Logging.Level, "FLAP_LOG_LEVEL")
	setBool(&cfg.Scheduler.Enabled, "FLAP_SCHEDULER_ENABLED")
	setBool(&cfg.Server.Enabled, "FLAP_SERVER_ENABLED")
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func setBool(target *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Providers.Preferred.Name == "" {
		return fmt.Errorf("config: providers.preferred.name is required")
	}
	switch c.Display.Mode {
	case "http":
		if c.Display.BaseURL == "" {
			return fmt.Errorf("config: display.base_url is required in http mode")
		}
	case "console", "":
	default:
		return fmt.Errorf("config: unknown display.mode %q", c.Display.Mode)
	}
	switch strings.ToLower(c.ToolLoop.ExhaustionPolicy) {
	case "", "throw", "use-last":
	default:
		return fmt.Errorf("config: unknown tool_loop.exhaustion_policy %q", c.ToolLoop.ExhaustionPolicy)
	}
	if c.Breaker.FailureThreshold < 0 || c.Breaker.ProbeQuota < 0 {
		return fmt.Errorf("config: breaker counters must not be negative")
	}
	seen := make(map[string]bool, len(c.Generators.Prompts))
	for _, g := range c.Generators.Prompts {
		if g.ID == "" {
			return fmt.Errorf("config: generator without id")
		}
		if seen[g.ID] {
			return fmt.Errorf("config: duplicate generator id %q", g.ID)
		}
		seen[g.ID] = true
	}
	return nil
}

// HasAlternate reports whether an alternate provider is configured.
func (c *Config) HasAlternate() bool {
	return c.Providers.Alternate.Name != ""
}
