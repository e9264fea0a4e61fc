package config

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName = "linkguard"
	defaultVersion     = "0.1.0"
	defaultServicePort = 8094

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBUser    = "postgres"
	defaultDBName    = "linkguard"
	defaultDBSSLMode = "disable"

	defaultRedisAddress = "localhost:6379"

	defaultCacheTTL = time.Hour

	defaultSafetyThreshold = 3
	defaultHitBufferSize   = 1000
	defaultHitFlushEvery   = time.Second

	defaultWorkerConcurrency = 4
	defaultQueuePollInterval = 5 * time.Second
	defaultQueueMaxRetries   = 3
	defaultQueueRetryBase    = 5 * time.Second
	defaultQueueStaleAfter   = 5 * time.Minute

	defaultFetchTimeout    = 35 * time.Second
	defaultFetchMaxChars   = 40000
	defaultFetchMinChars   = 100
	defaultAnalysisMin     = 100
	defaultAnalysisChunk   = 4000
	defaultChunkPacing     = 2 * time.Second
	defaultProviderTries   = 3
	defaultProviderWait    = 30 * time.Second
	defaultProviderTimeout = 60 * time.Second

	defaultLogLevel = "info"
)

// Config holds the full application configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Resolver ResolverConfig `yaml:"resolver"`
	Queue    QueueConfig    `yaml:"queue"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"LINKGUARD_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"      yaml:"debug"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_USER"     yaml:"user"`
	Password string `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the resolver cache.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// ResolverConfig holds resolution and cache behaviour.
type ResolverConfig struct {
	// SafetyThreshold is the minimum safety rating (1-5) a completed link
	// needs for a direct redirect. Ratings below it produce a warning.
	SafetyThreshold int           `env:"SAFETY_THRESHOLD" yaml:"safety_threshold"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	HitBufferSize   int           `yaml:"hit_buffer_size"`
	HitFlushEvery   time.Duration `yaml:"hit_flush_interval"`
}

// QueueConfig holds analysis job queue behaviour.
type QueueConfig struct {
	Concurrency  int           `env:"WORKER_CONCURRENCY" yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries"`
	// RetryBase is the first redelivery delay; it doubles per attempt.
	RetryBase  time.Duration `yaml:"retry_base"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// FetcherConfig holds content fetching behaviour.
type FetcherConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxChars int           `yaml:"max_chars"`
	MinChars int           `yaml:"min_chars"`
}

// AnalysisConfig holds analysis engine and provider behaviour.
type AnalysisConfig struct {
	ProviderURL    string        `env:"TEXTAI_URL"     yaml:"provider_url"`
	ProviderToken  string        `env:"TEXTAI_TOKEN"   yaml:"provider_token"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// MinContent is the content length below which analysis skips the
	// provider and uses the deterministic fallback.
	MinContent int `yaml:"min_content"`
	// ChunkThreshold is the content length above which map-reduce
	// summarization kicks in; it is also the chunk size.
	ChunkThreshold int           `yaml:"chunk_threshold"`
	ChunkPacing    time.Duration `yaml:"chunk_pacing"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryWait      time.Duration `yaml:"retry_wait"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Load loads configuration from the specified path and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)
	// Env always wins, including over defaults.
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setResolverDefaults(&cfg.Resolver)
	setQueueDefaults(&cfg.Queue)
	setFetcherDefaults(&cfg.Fetcher)
	setAnalysisDefaults(&cfg.Analysis)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

func setResolverDefaults(r *ResolverConfig) {
	if r.SafetyThreshold == 0 {
		r.SafetyThreshold = defaultSafetyThreshold
	}
	if r.CacheTTL == 0 {
		r.CacheTTL = defaultCacheTTL
	}
	if r.HitBufferSize == 0 {
		r.HitBufferSize = defaultHitBufferSize
	}
	if r.HitFlushEvery == 0 {
		r.HitFlushEvery = defaultHitFlushEvery
	}
}

func setQueueDefaults(q *QueueConfig) {
	if q.Concurrency == 0 {
		q.Concurrency = defaultWorkerConcurrency
	}
	if q.PollInterval == 0 {
		q.PollInterval = defaultQueuePollInterval
	}
	if q.MaxRetries == 0 {
		q.MaxRetries = defaultQueueMaxRetries
	}
	if q.RetryBase == 0 {
		q.RetryBase = defaultQueueRetryBase
	}
	if q.StaleAfter == 0 {
		q.StaleAfter = defaultQueueStaleAfter
	}
}

func setFetcherDefaults(f *FetcherConfig) {
	if f.Timeout == 0 {
		f.Timeout = defaultFetchTimeout
	}
	if f.MaxChars == 0 {
		f.MaxChars = defaultFetchMaxChars
	}
	if f.MinChars == 0 {
		f.MinChars = defaultFetchMinChars
	}
}

func setAnalysisDefaults(a *AnalysisConfig) {
	if a.ProviderTimeout == 0 {
		a.ProviderTimeout = defaultProviderTimeout
	}
	if a.MinContent == 0 {
		a.MinContent = defaultAnalysisMin
	}
	if a.ChunkThreshold == 0 {
		a.ChunkThreshold = defaultAnalysisChunk
	}
	if a.ChunkPacing == 0 {
		a.ChunkPacing = defaultChunkPacing
	}
	if a.RetryAttempts == 0 {
		a.RetryAttempts = defaultProviderTries
	}
	if a.RetryWait == 0 {
		a.RetryWait = defaultProviderWait
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: invalid port %d", c.Service.Port)
	}
	if c.Analysis.ProviderURL == "" {
		return errors.New("analysis.provider_url is required")
	}
	if c.Resolver.SafetyThreshold < 1 || c.Resolver.SafetyThreshold > 5 {
		return fmt.Errorf("resolver.safety_threshold: must be 1-5, got %d", c.Resolver.SafetyThreshold)
	}
	return nil
}
