package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
llm:
  api_key: sk-test
  model: gpt-4.1
  tool_model: gpt-4.1-mini
agent:
  max_rounds: 3
  turn_log: true
weather:
  max_days: 7
log_level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.EffectiveToolModel())
	assert.Equal(t, 3, cfg.Agent.MaxRounds)
	assert.True(t, cfg.Agent.TurnLog)
	assert.Equal(t, 7, cfg.Weather.MaxDays)

	// untouched fields keep defaults
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 1000, cfg.Agent.ResultLimit)
	assert.Equal(t, 10*time.Second, cfg.Weather.Timeout())
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.Weather.ForecastURL)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_BadYAML(t *testing.T) {
	_, err := LoadFromFile(writeFile(t, "llm: [unclosed"))
	require.Error(t, err)
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.Model)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.EffectiveToolModel())
}

func TestLoad_FileKeyWinsOverEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(writeFile(t, "llm:\n  api_key: sk-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o644))

	cfg, err := Load("missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")

	cfg.LLM.APIKey = "sk"
	require.NoError(t, cfg.Validate())

	cfg.Agent.MaxRounds = 0
	cfg.Weather.MaxDays = 30
	cfg.LogLevel = "loud"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.max_rounds")
	assert.Contains(t, err.Error(), "weather.max_days")
	assert.Contains(t, err.Error(), `invalid log_level "loud"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}

func TestStoreDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Dir = "/tmp/conv"
	dir, err := cfg.StoreDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/conv", dir)

	t.Setenv("HOME", "/home/tester")
	cfg.Store.Dir = "~/trips"
	dir, err = cfg.StoreDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/trips", dir)

	cfg.Store.Dir = ""
	dir, err = cfg.StoreDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.travelpilot/conversations", dir)
}
