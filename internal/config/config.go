package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath 默认配置文件位置（相对于工作目录）
const DefaultPath = "configs/config.yaml"

// LLMConfig LLM 配置
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
	Model   string `yaml:"model"`
	// ToolModel 工具内部生成使用的模型，为空时与 Model 相同
	ToolModel      string  `yaml:"tool_model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout 单次 LLM 请求的超时时间
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EffectiveToolModel returns ToolModel, or Model when unset.
func (c LLMConfig) EffectiveToolModel() string {
	if c.ToolModel != "" {
		return c.ToolModel
	}
	return c.Model
}

// AgentConfig 编排循环配置
type AgentConfig struct {
	MaxRounds        int    `yaml:"max_rounds"`
	ResultLimit      int    `yaml:"result_limit"`
	SystemPromptPath string `yaml:"system_prompt_path"`
	LogDir           string `yaml:"log_dir"`
	TurnLog          bool   `yaml:"turn_log"`
}

// WeatherConfig Open-Meteo 配置
type WeatherConfig struct {
	GeocodingURL   string `yaml:"geocoding_url"`
	ForecastURL    string `yaml:"forecast_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxDays        int    `yaml:"max_days"`
}

func (c WeatherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Dir string `yaml:"dir"`
}

// Config 主配置
type Config struct {
	LLM      LLMConfig     `yaml:"llm"`
	Agent    AgentConfig   `yaml:"agent"`
	Weather  WeatherConfig `yaml:"weather"`
	Store    StoreConfig   `yaml:"store"`
	LogLevel string        `yaml:"log_level"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			TimeoutSeconds: 60,
		},
		Agent: AgentConfig{
			MaxRounds:   5,
			ResultLimit: 1000,
		},
		Weather: WeatherConfig{
			GeocodingURL:   "https://geocoding-api.open-meteo.com/v1/search",
			ForecastURL:    "https://api.open-meteo.com/v1/forecast",
			TimeoutSeconds: 10,
			MaxDays:        14,
		},
		LogLevel: "warn",
	}
}

// LoadFromFile 从 YAML 文件加载配置，文件中未出现的字段保留默认值
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load 加载 .env（若存在）和配置文件，并应用环境变量覆盖。
// 配置文件不存在时使用默认配置。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", slog.String("err", err.Error()))
	}

	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadFromFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("Config file not found, using defaults", slog.String("path", path))
		cfg = DefaultConfig()
	case err != nil:
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 环境变量只填充未配置的值
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" && c.LLM.APIBase == DefaultConfig().LLM.APIBase {
		c.LLM.APIBase = v
	}
}

// Validate 检查必填项和取值范围
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, errors.New("llm.api_key is required (or set OPENAI_API_KEY)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature))
	}
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("llm.timeout_seconds must be positive"))
	}
	if c.Agent.MaxRounds <= 0 {
		errs = append(errs, errors.New("agent.max_rounds must be positive"))
	}
	if c.Agent.ResultLimit < 0 {
		errs = append(errs, errors.New("agent.result_limit must not be negative"))
	}
	if c.Weather.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("weather.timeout_seconds must be positive"))
	}
	if c.Weather.MaxDays <= 0 || c.Weather.MaxDays > 16 {
		errs = append(errs, fmt.Errorf("weather.max_days must be within [1, 16], got %d", c.Weather.MaxDays))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel 解析 log_level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}

// StoreDir returns the conversation directory, defaulting to
// ~/.travelpilot/conversations.
func (c *Config) StoreDir() (string, error) {
	if c.Store.Dir != "" {
		return expandHome(c.Store.Dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home directory: %w", err)
	}
	return filepath.Join(home, ".travelpilot", "conversations"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
