package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/elastic"
	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"fern"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Source database
	DatabaseHost            string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort            string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName        string        `env:"DB_USER_NAME" env-default:"app"`
	DatabasePassword        string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName            string        `env:"DB_NAME" env-default:"movies_database"`
	DatabaseSSLMode         string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"5"`
	DatabaseMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	// Prefix for source tables, e.g. "movies_" or "content.movies_"
	DatabaseTablePrefix string `env:"DB_TABLE_PREFIX" env-default:"movies_"`

	// Redis
	RedisHost          string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort          int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB            int    `env:"REDIS_DB" env-default:"0"`
	WatermarkKeyPrefix string `env:"WATERMARK_KEY_PREFIX" env-default:"fern:watermark:"`
	LockKeyPrefix      string `env:"LOCK_KEY_PREFIX" env-default:"fern:lock:"`

	// Elasticsearch
	ElasticAddresses    []string `env:"ELASTIC_ADDRESSES" env-default:"http://localhost:9200"`
	ElasticUsername     string   `env:"ELASTIC_USERNAME" env-default:""`
	ElasticPassword     string   `env:"ELASTIC_PASSWORD" env-default:""`
	ElasticAPIKey       string   `env:"ELASTIC_API_KEY" env-default:""`
	ElasticMoviesIndex  string   `env:"ELASTIC_MOVIES_INDEX" env-default:"movies"`
	ElasticPersonsIndex string   `env:"ELASTIC_PERSONS_INDEX" env-default:"persons"`
	ElasticGenresIndex  string   `env:"ELASTIC_GENRES_INDEX" env-default:"genres"`

	// Kafka sync events
	KafkaEnabled bool   `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC" env-default:"fern.sync"`

	// Pipeline
	BatchSize             int           `env:"BATCH_SIZE" env-default:"100"`
	CascadePageSize       int           `env:"CASCADE_PAGE_SIZE" env-default:"100"`
	SourceRetryMaxElapsed time.Duration `env:"SOURCE_RETRY_MAX_ELAPSED" env-default:"60s"`
	SinkRetryMaxElapsed   time.Duration `env:"SINK_RETRY_MAX_ELAPSED" env-default:"60s"`
	SyncLockTTL           time.Duration `env:"SYNC_LOCK_TTL" env-default:"1h"`

	// Scheduler
	SchedulerEnabled      bool          `env:"SCHEDULER_ENABLED" env-default:"true"`
	SchedulerPollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"5m"`
	SchedulerKinds        []string      `env:"SCHEDULER_KINDS" env-default:"movies,persons,genres"`

	// Tracing
	OTLPEnabled  bool   `env:"OTLP_ENABLED" env-default:"false"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Admin API auth. When disabled every request is allowed.
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`
}

// Load reads an optional .env file, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.CascadePageSize <= 0 {
		return fmt.Errorf("CASCADE_PAGE_SIZE must be positive, got %d", c.CascadePageSize)
	}
	if c.SourceRetryMaxElapsed <= 0 {
		return fmt.Errorf("SOURCE_RETRY_MAX_ELAPSED must be positive, got %s", c.SourceRetryMaxElapsed)
	}
	if c.SinkRetryMaxElapsed <= 0 {
		return fmt.Errorf("SINK_RETRY_MAX_ELAPSED must be positive, got %s", c.SinkRetryMaxElapsed)
	}
	if _, err := c.Kinds(); err != nil {
		return fmt.Errorf("SCHEDULER_KINDS: %w", err)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	return nil
}

// Kinds parses SchedulerKinds in order.
func (c *Config) Kinds() ([]models.Kind, error) {
	kinds := make([]models.Kind, 0, len(c.SchedulerKinds))
	for _, raw := range c.SchedulerKinds {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		kind, err := models.ParseKind(raw)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Redis() fernredis.Config {
	return fernredis.Config{Host: c.RedisHost, Port: c.RedisPort, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *Config) Elastic() elastic.Config {
	return elastic.Config{
		Addresses: c.ElasticAddresses,
		Username:  c.ElasticUsername,
		Password:  c.ElasticPassword,
		APIKey:    c.ElasticAPIKey,
	}
}

func (c *Config) Kafka() kafka.Config {
	return kafka.ParseConfig(c.KafkaBrokers, c.KafkaTopic)
}

// OTLP returns an empty endpoint when tracing export is disabled.
func (c *Config) OTLP() exporters.OTLPConfig {
	if !c.OTLPEnabled {
		return exporters.OTLPConfig{}
	}
	return exporters.OTLPConfig{Endpoint: c.OTLPEndpoint, Protocol: c.OTLPProtocol, Insecure: c.OTLPInsecure}
}

func (c *Config) Extractor() extractor.Options {
	return extractor.Options{
		TablePrefix: c.DatabaseTablePrefix,
		PageSize:    c.CascadePageSize,
		Retry:       c.retryPolicy(c.SourceRetryMaxElapsed),
	}
}

// SinkRetry is the budget for a single bulk write.
func (c *Config) SinkRetry() retry.Policy {
	return c.retryPolicy(c.SinkRetryMaxElapsed)
}

func (c *Config) retryPolicy(maxElapsed time.Duration) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxElapsedTime = maxElapsed
	return policy
}
