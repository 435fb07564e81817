package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// EnvConfigPath is the environment variable pointing at the config file.
const EnvConfigPath = "MACHTMS_CONFIG"

// Config describes everything the daemon needs at startup.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	TaskQueue TaskQueueConfig `json:"task_queue"`
	Cache     CacheConfig     `json:"cache"`
	LLM       LLMConfig       `json:"llm"`
	Search    SearchConfig    `json:"search"`
	AWS       AWSConfig       `json:"aws"`
	Gmail     GmailConfig     `json:"gmail"`
	Auth      AuthConfig      `json:"auth"`
	Logging   LoggingConfig   `json:"logging"`
	Agents    AgentsConfig    `json:"agents"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string `json:"address"`
	MetricsAddress  string `json:"metrics_address"`
	ReadTimeoutSec  int    `json:"read_timeout_seconds"`
	WriteTimeoutSec int    `json:"write_timeout_seconds"`
	Debug           bool   `json:"debug"`
}

// StorageConfig describes the persistent backends.
type StorageConfig struct {
	Driver      string `json:"driver"`
	DSN         string `json:"dsn"`
	AutoMigrate bool   `json:"auto_migrate"`
}

// TaskQueueConfig selects the background task queue implementation.
type TaskQueueConfig struct {
	Driver   string         `json:"driver"`
	Workers  int            `json:"workers"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig is shared by the queue and the response cache.
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// RabbitMQConfig describes the AMQP broker connection.
type RabbitMQConfig struct {
	URL   string `json:"url"`
	Queue string `json:"queue"`
}

// CacheConfig controls the per-organization response cache.
type CacheConfig struct {
	Enabled    bool        `json:"enabled"`
	Redis      RedisConfig `json:"redis"`
	TTLSeconds int         `json:"ttl_seconds"`
}

// LLMConfig configures the chat completion backend.
type LLMConfig struct {
	Provider string       `json:"provider"`
	OpenAI   OpenAIConfig `json:"openai"`
}

// OpenAIConfig targets any OpenAI-compatible completion endpoint.
type OpenAIConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SearchConfig configures the Meilisearch connection.
type SearchConfig struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	APIKey      string `json:"api_key"`
	IndexPrefix string `json:"index_prefix"`
}

// AWSConfig holds the S3 buckets used by the document pipeline.
type AWSConfig struct {
	Region             string `json:"region"`
	UploadBucket       string `json:"upload_bucket"`
	PostShipmentBucket string `json:"post_shipment_bucket"`
}

// GmailConfig holds the OAuth application used for invoice delivery.
// Per-organization refresh tokens live in storage, not here.
type GmailConfig struct {
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	RedirectURL    string `json:"redirect_url"`
	DebugRecipient string `json:"debug_recipient"`
}

// AuthConfig controls token issuance and bootstrap accounts.
type AuthConfig struct {
	TokenSecret     string       `json:"token_secret"`
	TokenTTLMinutes int          `json:"token_ttl_minutes"`
	Seeds           []SeedConfig `json:"seeds"`
}

// SeedConfig is one bootstrap account upserted at startup.
type SeedConfig struct {
	OrgID       string   `json:"org_id"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// LoggingConfig mirrors pkg/logger.Config.
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig controls the audit trail file.
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// AgentsConfig points at the optional agent instruction overrides.
type AgentsConfig struct {
	InstructionsPath string `json:"instructions_path"`
	MaxTurns         int    `json:"max_turns"`
}

// RuntimeConfig holds general runtime parameters.
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// Load parses the JSON config file at path. An empty path falls back
// to the MACHTMS_CONFIG environment variable.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return nil, errors.New("config path is empty, set " + EnvConfigPath + " or pass -config")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of
// the config file on disk.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MACHTMS_MYSQL_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("MACHTMS_OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("MACHTMS_MEILISEARCH_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("MACHTMS_TOKEN_SECRET"); v != "" {
		c.Auth.TokenSecret = v
	}
	if v := os.Getenv("MACHTMS_GMAIL_CLIENT_SECRET"); v != "" {
		c.Gmail.ClientSecret = v
	}
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9091"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 30
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 60
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.TaskQueue.Driver == "" {
		c.TaskQueue.Driver = "memory"
	}
	if c.TaskQueue.Workers <= 0 {
		c.TaskQueue.Workers = 4
	}
	if c.TaskQueue.Redis.Address == "" {
		c.TaskQueue.Redis.Address = "127.0.0.1:6379"
	}
	if c.TaskQueue.Redis.Key == "" {
		c.TaskQueue.Redis.Key = "machtms:tasks"
	}
	if c.TaskQueue.RabbitMQ.Queue == "" {
		c.TaskQueue.RabbitMQ.Queue = "machtms.tasks"
	}

	if c.Cache.Redis.Address == "" {
		c.Cache.Redis.Address = c.TaskQueue.Redis.Address
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = int((15 * time.Minute).Seconds())
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.BaseURL == "" {
		c.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o"
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 120
	}

	if c.Search.Host == "" {
		c.Search.Host = "http://127.0.0.1:7700"
	}
	if c.Search.IndexPrefix == "" && c.Server.Debug {
		c.Search.IndexPrefix = "DEBUG_"
	}

	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}

	if c.Auth.TokenTTLMinutes <= 0 {
		c.Auth.TokenTTLMinutes = 12 * 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Agents.MaxTurns <= 0 {
		c.Agents.MaxTurns = 10
	}
	if c.Agents.InstructionsPath != "" && !filepath.IsAbs(c.Agents.InstructionsPath) {
		c.Agents.InstructionsPath = filepath.Join(baseDir, c.Agents.InstructionsPath)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "mysql" && c.Storage.DSN == "" {
		return errors.New("storage.dsn is required for the mysql driver")
	}

	switch c.TaskQueue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("unsupported task queue driver %q", c.TaskQueue.Driver)
	}
	if c.TaskQueue.Driver == "rabbitmq" && c.TaskQueue.RabbitMQ.URL == "" {
		return errors.New("task_queue.rabbitmq.url is required for the rabbitmq driver")
	}
	return nil
}
