// Package config loads relaypipe configuration from a YAML file and the
// environment.
//
// Precedence, lowest first: defaults, config file, RELAYPIPE_* environment
// variables. Nested keys use a double underscore in the environment, e.g.
// RELAYPIPE_SERVER__PORT=9000 sets server.port. String values may reference
// other environment variables as ${VAR}.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "RELAYPIPE_"

// DefaultPath is read when no config path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Storage   StorageConfig   `koanf:"storage"`
	Events    EventsConfig    `koanf:"events"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// SlogLevel converts Level to a slog.Level, defaulting to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

type TelemetryConfig struct {
	Tracing     bool   `koanf:"tracing"`
	ServiceName string `koanf:"service_name"`
}

type StorageConfig struct {
	Type     string         `koanf:"type"` // none, memory, sqlite, postgres
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type EventsConfig struct {
	Type string     `koanf:"type"` // none, nats
	NATS NATSConfig `koanf:"nats"`
}

type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type PipelineConfig struct {
	Stages []StageConfig `koanf:"stages"`
}

// StageConfig configures one participant. Which fields apply depends on Type.
type StageConfig struct {
	Name     string            `koanf:"name"`
	Type     string            `koanf:"type"`
	Timeout  time.Duration     `koanf:"timeout"`
	URL      string            `koanf:"url"`
	OnError  string            `koanf:"on_error"`
	Retries  int               `koanf:"retries"`
	Headers  map[string]string `koanf:"headers"`
	Secret   string            `koanf:"secret"`
	Issuer   string            `koanf:"issuer"`
	Audience string            `koanf:"audience"`

	// Header and Keys configure the api_key stage.
	Header string         `koanf:"header"`
	Keys   []APIKeyConfig `koanf:"keys"`

	// BlockPrivate makes a webhook refuse loopback and private addresses.
	BlockPrivate bool `koanf:"block_private"`
	// ForwardHeaders names request headers a webhook passes along.
	ForwardHeaders []string `koanf:"forward_headers"`
}

// APIKeyConfig is one accepted API key, stored as its SHA-256 hash.
type APIKeyConfig struct {
	Subject string `koanf:"subject"`
	KeyHash string `koanf:"key_hash"`
}

// DefaultStages is the pipeline used when none is configured. Serializers
// sit before the error handler so they format recovered errors.
func DefaultStages() []StageConfig {
	return []StageConfig{
		{Name: "request_id", Type: "request_id"},
		{Name: "logging", Type: "logging"},
		{Name: "recorder", Type: "recorder"},
		{Name: "metrics", Type: "metrics"},
		{Name: "tracing", Type: "tracing"},
		{Name: "json", Type: "json"},
		{Name: "yaml", Type: "yaml"},
		{Name: "error_handler", Type: "error_handler"},
		{Name: "recover", Type: "recover"},
		{Name: "negotiation", Type: "negotiation"},
	}
}

// Default returns the configuration Load produces with no file and no
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RequestTimeout:  30 * time.Second,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Telemetry: TelemetryConfig{ServiceName: "relaypipe"},
		Storage:   StorageConfig{Type: "memory"},
		Events:    EventsConfig{Type: "none", NATS: NATSConfig{Subject: "relaypipe.exchanges"}},
		Pipeline:  PipelineConfig{Stages: DefaultStages()},
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path, falling back to DefaultPath when path
// is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Pipeline.Stages) == 0 {
		cfg.Pipeline.Stages = DefaultStages()
	}
	cfg.expandEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":             8080,
		"server.request_timeout":  "30s",
		"server.max_body_bytes":   1 << 20,
		"server.shutdown_timeout": "10s",
		"logging.level":           "info",
		"logging.format":          "json",
		"telemetry.service_name":  "relaypipe",
		"storage.type":            "memory",
		"events.type":             "none",
		"events.nats.subject":     "relaypipe.exchanges",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

func (c *Config) expandEnv() {
	c.Storage.Database.DSN = substituteEnvVars(c.Storage.Database.DSN)
	c.Storage.SQLite.Path = substituteEnvVars(c.Storage.SQLite.Path)
	c.Events.NATS.URL = substituteEnvVars(c.Events.NATS.URL)

	for i := range c.Pipeline.Stages {
		s := &c.Pipeline.Stages[i]
		s.URL = substituteEnvVars(s.URL)
		s.Secret = substituteEnvVars(s.Secret)
		for k, v := range s.Headers {
			s.Headers[k] = substituteEnvVars(v)
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Type {
	case "none", "memory", "sqlite":
	case "postgres":
		if c.Storage.Database.DSN == "" {
			return errors.New("storage.database.dsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	switch c.Events.Type {
	case "none":
	case "nats":
		if c.Events.NATS.URL == "" {
			return errors.New("events.nats.url is required for nats events")
		}
	default:
		return fmt.Errorf("unknown events.type %q", c.Events.Type)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Pipeline.Stages))
	for i, s := range c.Pipeline.Stages {
		if s.Type == "" {
			return fmt.Errorf("pipeline.stages[%d]: type is required", i)
		}
		name := s.StageName()
		if seen[name] {
			return fmt.Errorf("pipeline.stages[%d]: duplicate stage name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

// StageName returns Name, or Type when no name is set.
func (s StageConfig) StageName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
