// Package config provides configuration for the refinery.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the environment variable pointing at an optional config file.
const EnvConfigFile = "REFINERY_CONFIG"

// Config holds the refinery configuration.
type Config struct {
	// Server settings
	HTTPPort    int      `toml:"http-port" yaml:"http_port"`
	CORSOrigins []string `toml:"cors-origins" yaml:"cors_origins"`
	RPCAddr     string   `toml:"rpc-addr" yaml:"rpc_addr"`

	// LLM backend
	LLMBaseURL     string        `toml:"llm-base-url" yaml:"llm_base_url"`
	LLMAPIKey      string        `toml:"llm-api-key" yaml:"llm_api_key"`
	DefaultModel   string        `toml:"model" yaml:"model"`
	Temperature    float64       `toml:"temperature" yaml:"temperature"`
	MaxTokens      int           `toml:"max-tokens" yaml:"max_tokens"`
	LLMTimeout     time.Duration `toml:"-" yaml:"-"`
	LLMTimeoutSecs int           `toml:"llm-timeout-seconds" yaml:"llm_timeout_seconds"`
	Mode           string        `toml:"mode" yaml:"mode"`

	// Refinement and admission
	DefaultMaxTurns       int           `toml:"max-turns" yaml:"max_turns"`
	MaxConcurrent         int           `toml:"max-concurrent-requests" yaml:"max_concurrent_requests"`
	GenerationTimeout     time.Duration `toml:"-" yaml:"-"`
	GenerationTimeoutSecs int           `toml:"generation-timeout-seconds" yaml:"generation_timeout_seconds"`

	// Policy
	PolicyFile    string   `toml:"policy-file" yaml:"policy_file"`
	BlockedModels []string `toml:"blocked-models" yaml:"blocked_models"`

	// Observability
	LogLevel       string `toml:"log-level" yaml:"log_level"`
	MetricsEnabled bool   `toml:"metrics-enabled" yaml:"metrics_enabled"`
	OTLPEndpoint   string `toml:"otlp-endpoint" yaml:"otlp_endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		HTTPPort:              8080,
		CORSOrigins:           []string{"*"},
		LLMBaseURL:            "http://localhost:11434/v1",
		DefaultModel:          "llama3.2:latest",
		Temperature:           0.7,
		MaxTokens:             500,
		LLMTimeoutSecs:        30,
		DefaultMaxTurns:       5,
		MaxConcurrent:         10,
		GenerationTimeoutSecs: 600,
		LogLevel:              "warn",
		MetricsEnabled:        true,
	}
	cfg.resolveDurations()
	return cfg
}

// Load loads configuration from defaults, an optional config file named by
// REFINERY_CONFIG, and environment variables, in that order.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	cfg.resolveDurations()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RPCAddr = getEnv("RPC_ADDR", cfg.RPCAddr)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.DefaultModel = getEnv("LLM_MODEL", cfg.DefaultModel)
	cfg.Temperature = getEnvFloat("LLM_TEMPERATURE", cfg.Temperature)
	cfg.MaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.MaxTokens)
	cfg.LLMTimeoutSecs = getEnvInt("LLM_TIMEOUT_S", cfg.LLMTimeoutSecs)
	cfg.Mode = getEnv("REFINERY_MODE", cfg.Mode)
	cfg.DefaultMaxTurns = getEnvInt("DEFAULT_MAX_TURNS", cfg.DefaultMaxTurns)
	cfg.MaxConcurrent = getEnvInt("MAX_CONCURRENT_REQUESTS", cfg.MaxConcurrent)
	cfg.GenerationTimeoutSecs = getEnvInt("GENERATION_TIMEOUT_S", cfg.GenerationTimeoutSecs)
	cfg.PolicyFile = getEnv("REFINERY_POLICY_FILE", cfg.PolicyFile)
	cfg.BlockedModels = getEnvList("REFINERY_BLOCKED_MODELS", cfg.BlockedModels)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)
}

func (c *Config) resolveDurations() {
	c.LLMTimeout = time.Duration(c.LLMTimeoutSecs) * time.Second
	c.GenerationTimeout = time.Duration(c.GenerationTimeoutSecs) * time.Second
}

// Validate checks every setting against its allowed range.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http port %d out of range 1-65535", c.HTTPPort))
	}
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		errs = append(errs, errors.New("llm base url is required"))
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		errs = append(errs, errors.New("default model is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range 0-2", c.Temperature))
	}
	if c.MaxTokens < 1 || c.MaxTokens > 4096 {
		errs = append(errs, fmt.Errorf("max tokens %d out of range 1-4096", c.MaxTokens))
	}
	if c.LLMTimeoutSecs < 1 || c.LLMTimeoutSecs > 300 {
		errs = append(errs, fmt.Errorf("llm timeout %ds out of range 1-300", c.LLMTimeoutSecs))
	}
	if c.DefaultMaxTurns < 1 || c.DefaultMaxTurns > 10 {
		errs = append(errs, fmt.Errorf("max turns %d out of range 1-10", c.DefaultMaxTurns))
	}
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 100 {
		errs = append(errs, fmt.Errorf("max concurrent requests %d out of range 1-100", c.MaxConcurrent))
	}
	if c.GenerationTimeoutSecs < 60 || c.GenerationTimeoutSecs > 1800 {
		errs = append(errs, fmt.Errorf("generation timeout %ds out of range 60-1800", c.GenerationTimeoutSecs))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "off":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
