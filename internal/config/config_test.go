package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flapd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.ResetTimeout.Std())
	assert.Equal(t, 2, cfg.Breaker.ProbeQuota)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.MajorSchedule)
	assert.True(t, cfg.Scheduler.MinorUpdates)
	assert.False(t, cfg.HasAlternate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
providers:
  preferred:
    name: anthropic
    base_url: https://api.anthropic.com/v1
    model: claude-haiku
  alternate:
    name: openai
    base_url: https://api.openai.com/v1
    model: gpt-4o-mini
breaker:
  failure_threshold: 5
  reset_timeout: 10m
tool_loop:
  exhaustion_policy: use-last
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Providers.Preferred.Name)
	assert.True(t, cfg.HasAlternate())
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Breaker.ResetTimeout.Std())
	assert.Equal(t, "use-last", cfg.ToolLoop.ExhaustionPolicy)

	// Untouched sections keep their defaults.
	assert.Equal(t, 2, cfg.Breaker.ProbeQuota)
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  cycle_timeout: 90
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.CycleTimeout.Std())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
display:
  mode: console
`)
	t.Setenv("FLAP_PREFERRED_API_KEY", "sk-from-env")
	t.Setenv("FLAP_LOG_LEVEL", "debug")
	t.Setenv("FLAP_SCHEDULER_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Providers.Preferred.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestValidateRejections(t *testing.T) {
	cases := map[string]func(*Config){
		"missing preferred name": func(c *Config) { c.Providers.Preferred.Name = "" },
		"http without base url":  func(c *Config) { c.Display.Mode = "http"; c.Display.BaseURL = "" },
		"unknown display mode":   func(c *Config) { c.Display.Mode = "hologram" },
		"unknown policy":         func(c *Config) { c.ToolLoop.ExhaustionPolicy = "explode" },
		"duplicate generator": func(c *Config) {
			c.Generators.Prompts = []GeneratorConfig{{ID: "a"}, {ID: "a"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
