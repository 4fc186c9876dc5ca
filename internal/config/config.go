package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	AppName     string `envconfig:"APP_NAME" default:"Advanced Multi-Agent Generator"`
	AppVersion  string `envconfig:"APP_VERSION" default:"1.0.0"`

	// Ops server: /health, /ready, /metrics and the websocket event stream
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// API server
	APIListenAddr  string `envconfig:"API_LISTEN_ADDR" default:":8000"`
	APIPrefix      string `envconfig:"API_PREFIX" default:"/api"`
	AuthMode       string `envconfig:"AUTH_MODE" default:"none"` // none | api-key | jwt
	APIKey         string `envconfig:"API_KEY"`
	JWTSecret      string `envconfig:"JWT_SECRET"`
	JWTIssuer      string `envconfig:"JWT_ISSUER"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" default:"*"`

	// Storage
	DBPath    string `envconfig:"DB_PATH" default:"appforge.db"`
	OutputDir string `envconfig:"OUTPUT_DIR"` // empty: <tmp>/appforge

	// Workers
	Workers    int           `envconfig:"WORKERS" default:"4"`
	QueueSize  int           `envconfig:"QUEUE_SIZE" default:"256"`
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"0s"` // 0 = no deadline
	MaxAgents  int           `envconfig:"MAX_AGENTS" default:"12"`

	// Stage graph override; empty uses the embedded graph
	WorkflowGraph string `envconfig:"WORKFLOW_GRAPH"`

	// Retention
	RetentionSchedule string        `envconfig:"RETENTION_SCHEDULE" default:"@every 1h"`
	TaskMaxAge        time.Duration `envconfig:"TASK_MAX_AGE" default:"168h"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Completion providers
	LLMPrimary        string        `envconfig:"LLM_PRIMARY" default:"openai"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel       string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel       string        `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GeminiBaseURL     string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`
	CompletionRetries int           `envconfig:"COMPLETION_RETRIES" default:"1"` // attempts per provider

	// Stage sampling
	StageTemperature float64 `envconfig:"STAGE_TEMPERATURE" default:"0.2"`
	StageMaxTokens   int     `envconfig:"STAGE_MAX_TOKENS" default:"3000"`
	ContextMaxChars  int     `envconfig:"CONTEXT_MAX_CHARS" default:"1000"`

	// Notifications
	WSKeepaliveInterval time.Duration `envconfig:"WS_KEEPALIVE_INTERVAL" default:"30s"`
	SlackWebhookURL     string        `envconfig:"SLACK_WEBHOOK_URL"`

	// Requirements analysis cache
	AnalysisCacheSize int           `envconfig:"ANALYSIS_CACHE_SIZE" default:"128"`
	AnalysisCacheTTL  time.Duration `envconfig:"ANALYSIS_CACHE_TTL" default:"10m"`
}

// OpenAIEnabled returns true if an OpenAI key is configured.
func (c *Config) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// GeminiEnabled returns true if a Gemini key is configured.
func (c *Config) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

// SlackEnabled returns true if a completion webhook is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackWebhookURL != ""
}

// ResolvedOutputDir returns the absolute directory archives are written to.
func (c *Config) ResolvedOutputDir() (string, error) {
	dir := c.OutputDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "appforge")
	}
	return filepath.Abs(dir)
}

// CORSOriginList returns the configured origins as a comma-separated list
// normalized for the fiber cors middleware.
func (c *Config) CORSOriginList() string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return strings.Join(origins, ", ")
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.AuthMode {
	case "none":
	case "api-key":
		if c.APIKey == "" {
			errs = append(errs, errors.New("AUTH_MODE=api-key requires API_KEY"))
		}
	case "jwt":
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("AUTH_MODE=jwt requires JWT_SECRET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}
	switch c.LLMPrimary {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PRIMARY %q", c.LLMPrimary))
	}
	if c.ContextMaxChars <= 0 {
		errs = append(errs, errors.New("CONTEXT_MAX_CHARS must be positive"))
	}
	if c.TaskMaxAge <= 0 {
		errs = append(errs, errors.New("TASK_MAX_AGE must be positive"))
	}
	if c.CompletionTimeout <= 0 {
		errs = append(errs, errors.New("COMPLETION_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file and then configuration from environment variables.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
