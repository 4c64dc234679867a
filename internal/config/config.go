// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables win over the file.
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

// ErrMissingCredential is returned by Validate when a selected provider or
// backend lacks what it needs to connect.
var ErrMissingCredential = errors.New("missing credential")

// Provider and backend names.
const (
	ProviderMock     = "mock"
	ProviderGemini   = "gemini"
	ProviderCalendly = "calendly"

	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Completion    CompletionConfig    `yaml:"completion"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Scheduling    SchedulingConfig    `yaml:"scheduling"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal     string `yaml:"principal"`
	HTTPPort      string `yaml:"http_port"`
	GRPCPort      string `yaml:"grpc_port"`
	MetricsPort   string `yaml:"metrics_port"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type CompletionConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	ContextTurns int           `yaml:"context_turns"`
}

type CheckpointConfig struct {
	Backend        string `yaml:"backend"`
	SQLitePath     string `yaml:"sqlite_path"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	DynamoTable    string `yaml:"dynamo_table"`
	DynamoRegion   string `yaml:"dynamo_region"`
	DynamoEndpoint string `yaml:"dynamo_endpoint"`
}

type SchedulingConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	EventTypeURI    string        `yaml:"event_type_uri"`
	DefaultTimezone string        `yaml:"default_timezone"`
	MaxRetries      int           `yaml:"max_retries"`
	Timeout         time.Duration `yaml:"timeout"`
}

type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	TopicTurns     string   `yaml:"topic_turns"`
	TopicSummaries string   `yaml:"topic_summaries"`
	Principal      string   `yaml:"principal"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-voice-agent",
			HTTPPort:    "8080",
			GRPCPort:    "50051",
			MetricsPort: "9090",
		},
		Completion: CompletionConfig{
			Provider:     ProviderMock,
			Model:        "gemini-2.5-flash",
			Temperature:  0.7,
			MaxTokens:    512,
			Timeout:      15 * time.Second,
			ContextTurns: 10,
		},
		Checkpoint: CheckpointConfig{
			Backend:      BackendMemory,
			SQLitePath:   "data/checkpoints.db",
			DynamoRegion: "eu-central-1",
		},
		Scheduling: SchedulingConfig{
			Provider:        ProviderMock,
			BaseURL:         "https://api.calendly.com",
			DefaultTimezone: "Europe/Berlin",
			MaxRetries:      3,
			Timeout:         10 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:        false,
			Brokers:        []string{"localhost:9092"},
			TopicTurns:     "conversation.turn.completed",
			TopicSummaries: "conversation.call.summarized",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (config.yaml when unset, skipped when absent), then the
// environment. Invalid environment values keep the previous value.
func Load() (*Config, error) {
	cfg := Default()

	path := envOrDefault("CONFIG_FILE", "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	s := &cfg.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPPort = envOrDefault("HTTP_PORT", s.HTTPPort)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.MetricsPort = envOrDefault("METRICS_PORT", s.MetricsPort)
	s.WebhookSecret = envOrDefault("WEBHOOK_SECRET", s.WebhookSecret)

	c := &cfg.Completion
	c.Provider = strings.ToLower(envOrDefault("COMPLETION_PROVIDER", c.Provider))
	c.APIKey = envOrDefault("GEMINI_API_KEY", c.APIKey)
	c.Model = envOrDefault("COMPLETION_MODEL", c.Model)
	c.Temperature = envOrDefaultFloat("COMPLETION_TEMPERATURE", c.Temperature)
	c.MaxTokens = envOrDefaultInt("COMPLETION_MAX_TOKENS", c.MaxTokens)
	c.Timeout = envOrDefaultDuration("COMPLETION_TIMEOUT", c.Timeout)
	c.ContextTurns = envOrDefaultInt("COMPLETION_CONTEXT_TURNS", c.ContextTurns)

	k := &cfg.Checkpoint
	k.Backend = strings.ToLower(envOrDefault("CHECKPOINT_BACKEND", k.Backend))
	k.SQLitePath = envOrDefault("CHECKPOINT_SQLITE_PATH", k.SQLitePath)
	k.PostgresDSN = envOrDefault("CHECKPOINT_POSTGRES_DSN", k.PostgresDSN)
	k.DynamoTable = envOrDefault("CHECKPOINT_DYNAMO_TABLE", k.DynamoTable)
	k.DynamoRegion = envOrDefault("AWS_REGION", k.DynamoRegion)
	k.DynamoEndpoint = envOrDefault("CHECKPOINT_DYNAMO_ENDPOINT", k.DynamoEndpoint)

	sc := &cfg.Scheduling
	sc.Provider = strings.ToLower(envOrDefault("SCHEDULING_PROVIDER", sc.Provider))
	sc.APIKey = envOrDefault("CALENDLY_API_KEY", sc.APIKey)
	sc.BaseURL = envOrDefault("CALENDLY_BASE_URL", sc.BaseURL)
	sc.EventTypeURI = envOrDefault("CALENDLY_EVENT_TYPE_URI", sc.EventTypeURI)
	sc.DefaultTimezone = envOrDefault("SCHEDULING_DEFAULT_TIMEZONE", sc.DefaultTimezone)
	sc.MaxRetries = envOrDefaultInt("SCHEDULING_MAX_RETRIES", sc.MaxRetries)
	sc.Timeout = envOrDefaultDuration("SCHEDULING_TIMEOUT", sc.Timeout)

	kf := &cfg.Kafka
	kf.Enabled = envOrDefaultBool("KAFKA_ENABLED", kf.Enabled)
	kf.Brokers = envList("KAFKA_BROKERS", kf.Brokers)
	kf.TopicTurns = envOrDefault("KAFKA_TOPIC_TURNS", kf.TopicTurns)
	kf.TopicSummaries = envOrDefault("KAFKA_TOPIC_SUMMARIES", kf.TopicSummaries)
	kf.Principal = envOrDefault("KAFKA_PRINCIPAL", kf.Principal)
	if kf.Principal == "" {
		kf.Principal = s.Principal
	}

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
}

// Validate checks that every selected provider and backend can be built.
func (c *Config) Validate() error {
	var errs []error
	missing := func(what string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCredential, what))
	}

	switch c.Completion.Provider {
	case ProviderMock:
	case ProviderGemini:
		if c.Completion.APIKey == "" {
			missing("GEMINI_API_KEY for completion provider gemini")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown completion provider %q", c.Completion.Provider))
	}

	switch c.Checkpoint.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Checkpoint.PostgresDSN == "" {
			missing("CHECKPOINT_POSTGRES_DSN for checkpoint backend postgres")
		}
	case BackendDynamoDB:
		if c.Checkpoint.DynamoTable == "" {
			missing("CHECKPOINT_DYNAMO_TABLE for checkpoint backend dynamodb")
		}
		if c.Checkpoint.DynamoRegion == "" {
			missing("AWS_REGION for checkpoint backend dynamodb")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend))
	}

	switch c.Scheduling.Provider {
	case ProviderMock:
	case ProviderCalendly:
		if c.Scheduling.APIKey == "" {
			missing("CALENDLY_API_KEY for scheduling provider calendly")
		}
		if c.Scheduling.EventTypeURI == "" {
			missing("CALENDLY_EVENT_TYPE_URI for scheduling provider calendly")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown scheduling provider %q", c.Scheduling.Provider))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka enabled without brokers"))
	}

	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envList splits a comma separated variable, dropping blanks.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
