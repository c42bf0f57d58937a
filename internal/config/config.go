// Package config loads CLI and server settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// Config is the root configuration for the gateflow CLI and servers.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Model    ModelConfig    `yaml:"model"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP and MCP listeners.
type ServerConfig struct {
	Port    int `yaml:"port"`
	MCPPort int `yaml:"mcp_port"`
}

// RedisConfig selects the checkpoint backend. An empty Addr means the
// in-memory store.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ModelConfig selects the chat completions endpoint for both stages.
type ModelConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	PolicyModel   string `yaml:"policy_model"`
	ResponseModel string `yaml:"response_model"`
}

// WorkflowConfig carries the per-run screening configuration.
type WorkflowConfig struct {
	Variant          string `yaml:"variant"`
	ConstitutionFile string `yaml:"constitution_file"`
	Adherence        string `yaml:"adherence"`
	StrictGate       bool   `yaml:"strict_gate"`
	MaxSteps         int    `yaml:"max_steps"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:    8080,
			MCPPort: 8081,
		},
		Model: ModelConfig{
			BaseURL:       "https://api.openai.com",
			PolicyModel:   "gpt-4o-mini",
			ResponseModel: "gpt-4o-mini",
		},
		Workflow: WorkflowConfig{
			Variant: string(domain.VariantGated),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path, applies environment overrides, and
// validates the result. A missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine would refuse at runtime.
func (c Config) Validate() error {
	if !domain.Variant(c.Workflow.Variant).Valid() {
		return &domain.ConfigError{Field: "workflow.variant", Reason: fmt.Sprintf("unknown variant %q", c.Workflow.Variant)}
	}
	if c.Workflow.MaxSteps < 0 {
		return &domain.ConfigError{Field: "workflow.max_steps", Reason: "must not be negative"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Reason: "must be a valid port"}
	}
	return nil
}

// Constitution reads the configured constitution file, if any.
func (c Config) Constitution() (string, error) {
	if c.Workflow.ConstitutionFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Workflow.ConstitutionFile)
	if err != nil {
		return "", fmt.Errorf("read constitution: %w", err)
	}
	return string(data), nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setInt("GATEFLOW_PORT", &cfg.Server.Port)
	setInt("GATEFLOW_MCP_PORT", &cfg.Server.MCPPort)
	setString("GATEFLOW_REDIS_ADDR", &cfg.Redis.Addr)
	setString("GATEFLOW_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("GATEFLOW_REDIS_DB", &cfg.Redis.DB)
	setString("GATEFLOW_MODEL_BASE_URL", &cfg.Model.BaseURL)
	setString("GATEFLOW_API_KEY", &cfg.Model.APIKey)
	setString("GATEFLOW_POLICY_MODEL", &cfg.Model.PolicyModel)
	setString("GATEFLOW_RESPONSE_MODEL", &cfg.Model.ResponseModel)
	setString("GATEFLOW_VARIANT", &cfg.Workflow.Variant)
	setString("GATEFLOW_CONSTITUTION_FILE", &cfg.Workflow.ConstitutionFile)
	setBool("GATEFLOW_STRICT_GATE", &cfg.Workflow.StrictGate)
	setInt("GATEFLOW_MAX_STEPS", &cfg.Workflow.MaxSteps)
	setString("GATEFLOW_LOG_LEVEL", &cfg.Log.Level)
	setString("GATEFLOW_LOG_FORMAT", &cfg.Log.Format)
}
