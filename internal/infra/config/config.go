package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	LLM       LLMConfig       `yaml:"llm"`
	Summary   SummaryConfig   `yaml:"summary"`
	Documents DocumentsConfig `yaml:"documents"`
	History   HistoryConfig   `yaml:"history"`
	Auth      AuthConfig      `yaml:"auth"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// Transport names accepted by llm.transport.
const (
	TransportRaw = "raw"
	TransportSDK = "sdk"
)

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey            string         `yaml:"apiKey"`
	BaseURL           string         `yaml:"baseUrl"`
	Model             string         `yaml:"model"`
	Transport         string         `yaml:"transport"`
	Temperature       float32        `yaml:"temperature"`
	SystemInstruction string         `yaml:"systemInstruction"`
	MaxTokens         int            `yaml:"maxTokens"`
	AvailableModels   []string       `yaml:"availableModels"`
	ContextWindows    map[string]int `yaml:"contextWindows"`
}

// SummaryConfig defines how summaries are built and placed.
type SummaryConfig struct {
	DefaultPrompt  string        `yaml:"defaultPrompt"`
	Placement      string        `yaml:"placement"`
	MinWords       int           `yaml:"minWords"`
	MetadataKey    string        `yaml:"metadataKey"`
	FlushThreshold int           `yaml:"flushThreshold"`
	FlushDelay     time.Duration `yaml:"flushDelay"`
}

// Document backends accepted by documents.backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendValkey = "valkey"
	BackendR2     = "r2"
)

// DocumentsConfig selects where notes are stored.
type DocumentsConfig struct {
	Backend string       `yaml:"backend"`
	Dir     string       `yaml:"dir"`
	Valkey  ValkeyConfig `yaml:"valkey"`
	R2      R2Config     `yaml:"r2"`
}

// ValkeyConfig contains connection information for the Valkey backend.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// R2Config contains the S3 compatible bucket settings.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// HistoryConfig stores run history in Postgres when a DSN is set.
type HistoryConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Capacity int            `yaml:"capacity"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// AuthConfig enables bearer token checks on the HTTP API.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TRANSPORT"); v != "" {
		cfg.LLM.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_SYSTEM_INSTRUCTION"); v != "" {
		cfg.LLM.SystemInstruction = v
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxTokens = parsed
		}
	}
	if v := os.Getenv("SUMMARY_DEFAULT_PROMPT"); v != "" {
		cfg.Summary.DefaultPrompt = v
	}
	if v := os.Getenv("SUMMARY_PLACEMENT"); v != "" {
		cfg.Summary.Placement = strings.ToLower(v)
	}
	if v := os.Getenv("DOCUMENTS_BACKEND"); v != "" {
		cfg.Documents.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DOCUMENTS_DIR"); v != "" {
		cfg.Documents.Dir = v
	}
	if v := os.Getenv("DOCUMENTS_VALKEY_ADDR"); v != "" {
		cfg.Documents.Valkey.Addr = v
	}
	if v := os.Getenv("R2_ENDPOINT"); v != "" {
		cfg.Documents.R2.Endpoint = v
	}
	if v := os.Getenv("R2_ACCESS_KEY"); v != "" {
		cfg.Documents.R2.AccessKey = v
	}
	if v := os.Getenv("R2_SECRET_KEY"); v != "" {
		cfg.Documents.R2.SecretKey = v
	}
	if v := os.Getenv("R2_BUCKET"); v != "" {
		cfg.Documents.R2.Bucket = v
	}
	if v := os.Getenv("HISTORY_POSTGRES_DSN"); v != "" {
		cfg.History.Postgres.DSN = v
	}
	if v := os.Getenv("HISTORY_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.History.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Minute,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		LLM: LLMConfig{
			Model:           "gpt-4",
			Transport:       TransportSDK,
			Temperature:     0.2,
			MaxTokens:       500,
			AvailableModels: []string{"gpt-4", "gpt-4o", "gpt-4o-mini"},
		},
		Summary: SummaryConfig{
			DefaultPrompt:  "Summarize the following note clearly and concisely, keeping its key points.",
			Placement:      "replace",
			MinWords:       30,
			MetadataKey:    "summary",
			FlushThreshold: 96,
			FlushDelay:     50 * time.Millisecond,
		},
		Documents: DocumentsConfig{
			Backend: BackendMemory,
			Dir:     "data/notes",
			Valkey:  ValkeyConfig{Prefix: "notesum"},
			R2:      R2Config{Region: "auto"},
		},
		History: HistoryConfig{
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			Capacity: 500,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	switch c.LLM.Transport {
	case TransportRaw, TransportSDK:
	default:
		return fmt.Errorf("llm.transport must be %q or %q", TransportRaw, TransportSDK)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.maxTokens must be positive")
	}
	for model, size := range c.LLM.ContextWindows {
		if size <= 0 {
			return fmt.Errorf("llm.contextWindows.%s must be positive", model)
		}
	}
	if c.Summary.DefaultPrompt == "" {
		return errors.New("summary.defaultPrompt cannot be empty")
	}
	switch c.Summary.Placement {
	case "replace", "below", "frontmatter":
	default:
		return errors.New("summary.placement must be replace, below or frontmatter")
	}
	if c.Summary.MinWords < 0 {
		return errors.New("summary.minWords cannot be negative")
	}
	if c.Summary.FlushThreshold <= 0 {
		return errors.New("summary.flushThreshold must be positive")
	}
	if c.Summary.FlushDelay <= 0 {
		return errors.New("summary.flushDelay must be positive")
	}
	switch c.Documents.Backend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.Documents.Dir) == "" {
			return errors.New("documents.dir cannot be empty for the file backend")
		}
	case BackendValkey:
		if strings.TrimSpace(c.Documents.Valkey.Addr) == "" {
			return errors.New("documents.valkey.addr cannot be empty for the valkey backend")
		}
	case BackendR2:
		if c.Documents.R2.Endpoint == "" || c.Documents.R2.Bucket == "" {
			return errors.New("documents.r2.endpoint and documents.r2.bucket are required for the r2 backend")
		}
	default:
		return fmt.Errorf("unknown documents.backend %q", c.Documents.Backend)
	}
	if c.History.Capacity < 0 {
		return errors.New("history.capacity cannot be negative")
	}
	return nil
}
