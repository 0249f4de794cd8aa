package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/3Health-View/backend/pkg/config"
)

const (
	defaultSecretKey = "change-this-to-a-secure-secret"

	// MaxBatchOps is the most write operations sent in a single batch.
	MaxBatchOps = 500
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	// Sessions
	SecretKey  string        `env:"SECRET_KEY" envDefault:"change-this-to-a-secure-secret"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"threehv"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"threehv_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"threehv"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`
	MaxBatchOps           int   `env:"MAX_BATCH_OPS" envDefault:"500"`

	// Redis display cache
	RedisHost string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string        `env:"REDIS_PWD" envDefault:""`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	// Oura
	OuraAPIBaseURI   string        `env:"OURA_API_BASE_URI" envDefault:"https://api.ouraring.com/v2/usercollection"`
	OuraOAuthURI     string        `env:"OURA_OAUTH_URI" envDefault:"https://api.ouraring.com/oauth/token"`
	OuraClientID     string        `env:"OURA_CLIENT_ID"`
	OuraClientSecret string        `env:"OURA_CLIENT_SECRET"`
	OuraTimeout      time.Duration `env:"OURA_TIMEOUT" envDefault:"30s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"5"`

	// Recommendation model
	ModelPath         string `env:"MODEL_PATH"`
	LabelEncoderPath  string `env:"LABEL_ENCODER_PATH"`
	MLflowTrackingURI string `env:"MLFLOW_TRACKING_URI"`
	MLflowExperiment  string `env:"MLFLOW_EXPERIMENT" envDefault:"XGBoost"`
	MLflowRunName     string `env:"MLFLOW_RUN_NAME" envDefault:"Production"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"threehv.events"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Signup and login throttling per client IP
	CredentialRateLimitRPS   float64 `env:"CREDENTIAL_RATE_LIMIT_RPS" envDefault:"1"`
	CredentialRateLimitBurst int     `env:"CREDENTIAL_RATE_LIMIT_BURST" envDefault:"5"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load backend config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.StoreBackend != StorePostgres && c.StoreBackend != StoreMemory {
		return fmt.Errorf("invalid STORE_BACKEND %q: want %q or %q", c.StoreBackend, StorePostgres, StoreMemory)
	}
	if c.MaxBatchOps < 1 || c.MaxBatchOps > MaxBatchOps {
		return fmt.Errorf("MAX_BATCH_OPS must be between 1 and %d, got %d", MaxBatchOps, c.MaxBatchOps)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}
	if c.CredentialRateLimitRPS < 0 || c.CredentialRateLimitBurst < 1 {
		return fmt.Errorf("CREDENTIAL_RATE_LIMIT_RPS must be >= 0 and CREDENTIAL_RATE_LIMIT_BURST >= 1")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.MLflowTrackingURI == "" && (c.ModelPath == "" || c.LabelEncoderPath == "") {
		return fmt.Errorf("either MLFLOW_TRACKING_URI or both MODEL_PATH and LABEL_ENCODER_PATH must be set")
	}

	if c.Environment != "development" {
		if c.SecretKey == defaultSecretKey {
			return fmt.Errorf("SECRET_KEY must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters long, got %d", len(c.SecretKey))
		}
	}
	return nil
}
