// Package config assembles service settings from built-in defaults, an
// optional YAML file and SR_* environment variables, in that order.
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

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Corpus source kinds.
const (
	SourceFile     = "file"
	SourceInline   = "inline"
	SourcePostgres = "postgres"
)

// CorpusConfig selects where the text to index comes from and how it is
// stemmed.
type CorpusConfig struct {
	Source      string        `yaml:"source"`
	Path        string        `yaml:"path"`
	Text        string        `yaml:"text"`
	Name        string        `yaml:"name"`
	Stemmer     string        `yaml:"stemmer"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// RankingConfig bounds rank queries.
type RankingConfig struct {
	DefaultTopN    int `yaml:"defaultTopN"`
	MaxTopN        int `yaml:"maxTopN"`
	MaxQueryLength int `yaml:"maxQueryLength"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RankEvents    string `yaml:"rankEvents"`
	CorpusUpdates string `yaml:"corpusUpdates"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// AnalyticsConfig controls rank-event publishing and snapshotting.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// RateLimitConfig controls the per-client token bucket. X-Forwarded-For is
// only honoured for connections from TrustedProxies (IPs or CIDRs).
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	TrustedProxies []string      `yaml:"trustedProxies"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load layers the YAML file at path (skipped when empty) and then the
// environment over the defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no service can start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Corpus.Source {
	case SourceFile:
		if c.Corpus.Path == "" {
			errs = append(errs, fmt.Errorf("corpus.path must be set when corpus.source is %q", SourceFile))
		}
	case SourcePostgres:
		if c.Corpus.Name == "" {
			errs = append(errs, fmt.Errorf("corpus.name must be set when corpus.source is %q", SourcePostgres))
		}
	case SourceInline:
	default:
		errs = append(errs, fmt.Errorf("corpus.source %q is not one of file, inline, postgres", c.Corpus.Source))
	}
	if c.Ranking.DefaultTopN < 0 || c.Ranking.MaxTopN < 0 {
		errs = append(errs, errors.New("ranking.defaultTopN and ranking.maxTopN cannot be negative"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("an enabled rateLimit needs positive requests and window"))
	}
	return errors.Join(errs...)
}

func defaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, ShutdownTimeout: 15 * time.Second},
		Corpus:  CorpusConfig{Source: SourceFile, Path: "data/corpus.txt", Stemmer: "suffix", LoadTimeout: 30 * time.Second},
		Ranking: RankingConfig{DefaultTopN: 10, MaxTopN: 100, MaxQueryLength: 1024},
		Postgres: PostgresConfig{
			Host: "localhost", Port: 5432, SSLMode: "disable",
			Database: "sentenceranker", User: "sentenceranker", Password: "localdev",
			MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "sentenceranker-group",
			Topics:        KafkaTopics{RankEvents: "rank-events", CorpusUpdates: "corpus-updates"},
		},
		Redis:     RedisConfig{Addr: "localhost:6379", PoolSize: 10, CacheTTL: time.Minute},
		Analytics: AnalyticsConfig{BufferSize: 10000, SnapshotInterval: time.Minute},
		RateLimit: RateLimitConfig{Requests: 100, Window: time.Minute},
		CORS:      CORSConfig{AllowOrigins: []string{"*"}},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Metrics:   MetricsConfig{Enabled: true, Port: 9090},
	}
}

// envBinding ties one SR_* variable to the field it overrides.
type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *field(c) = v; return nil }
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func list(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var items []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*field(c) = items
		return nil
	}
}

var envBindings = []envBinding{
	{"SR_SERVER_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"SR_CORPUS_SOURCE", str(func(c *Config) *string { return &c.Corpus.Source })},
	{"SR_CORPUS_PATH", str(func(c *Config) *string { return &c.Corpus.Path })},
	{"SR_CORPUS_NAME", str(func(c *Config) *string { return &c.Corpus.Name })},
	{"SR_CORPUS_STEMMER", str(func(c *Config) *string { return &c.Corpus.Stemmer })},
	{"SR_RANKING_MAX_TOP_N", integer(func(c *Config) *int { return &c.Ranking.MaxTopN })},
	{"SR_POSTGRES_ENABLED", boolean(func(c *Config) *bool { return &c.Postgres.Enabled })},
	{"SR_POSTGRES_HOST", str(func(c *Config) *string { return &c.Postgres.Host })},
	{"SR_POSTGRES_PORT", integer(func(c *Config) *int { return &c.Postgres.Port })},
	{"SR_POSTGRES_DATABASE", str(func(c *Config) *string { return &c.Postgres.Database })},
	{"SR_POSTGRES_USER", str(func(c *Config) *string { return &c.Postgres.User })},
	{"SR_POSTGRES_PASSWORD", str(func(c *Config) *string { return &c.Postgres.Password })},
	{"SR_POSTGRES_SSLMODE", str(func(c *Config) *string { return &c.Postgres.SSLMode })},
	{"SR_KAFKA_BROKERS", list(func(c *Config) *[]string { return &c.Kafka.Brokers })},
	{"SR_REDIS_ENABLED", boolean(func(c *Config) *bool { return &c.Redis.Enabled })},
	{"SR_REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"SR_REDIS_PASSWORD", str(func(c *Config) *string { return &c.Redis.Password })},
	{"SR_REDIS_CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.Redis.CacheTTL })},
	{"SR_ANALYTICS_ENABLED", boolean(func(c *Config) *bool { return &c.Analytics.Enabled })},
	{"SR_RATE_LIMIT_TRUSTED_PROXIES", list(func(c *Config) *[]string { return &c.RateLimit.TrustedProxies })},
	{"SR_LOGGING_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"SR_LOGGING_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
}

// applyEnv applies every bound variable that lookup finds. A malformed value
// is an error rather than silently ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", b.name, v, err))
		}
	}
	return errors.Join(errs...)
}
