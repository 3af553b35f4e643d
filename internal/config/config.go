// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-edu-chat-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "edu-chat-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Storage backends.
const (
	BackendSQL    = "sql"
	BackendDynamo = "dynamodb"
)

// Cache drivers.
const (
	CacheNone  = "none"
	CacheStore = "store"
	CacheRedis = "redis"
)

// AI providers.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
)

// StorageConfig selects and configures the persistence backend. The backend
// is resolved once at load time from APP_ENV unless STORAGE_BACKEND pins it.
type StorageConfig struct {
	Backend string // STORAGE_BACKEND: sql|dynamodb

	// Relational
	Driver      string // DB_DRIVER: sqlite|postgres
	DBPath      string // DB_PATH (SQLite)
	DatabaseURL string // DATABASE_URL (PostgreSQL)

	// Key-value
	Region       string // AWS_REGION
	Endpoint     string // DYNAMODB_ENDPOINT (DynamoDB Local)
	TablePrefix  string // DYNAMODB_TABLE_PREFIX
	CreateTables bool   // DYNAMODB_CREATE_TABLES
	AccessKey    string // AWS_ACCESS_KEY_ID
	SecretKey    string // AWS_SECRET_ACCESS_KEY
}

// CacheConfig selects the response cache driver.
type CacheConfig struct {
	Driver        string        // CACHE_DRIVER: auto|none|store|redis (auto resolved at load)
	TTL           time.Duration // CACHE_TTL
	RedisAddr     string        // REDIS_ADDR
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
}

// AIConfig configures the response generator.
type AIConfig struct {
	Provider    string        // AI_PROVIDER: mock|openai
	APIKey      string        // OPENAI_API_KEY
	Model       string        // OPENAI_MODEL
	BaseURL     string        // OPENAI_BASE_URL (optional)
	Timeout     time.Duration // AI_TIMEOUT
	MaxTokens   int           // AI_MAX_TOKENS
	Temperature float64       // AI_TEMPERATURE
}

// AuthConfig configures database sessions and credential hashing.
type AuthConfig struct {
	CookieName   string        // SESSION_COOKIE
	MaxAge       time.Duration // SESSION_MAX_AGE
	UpdateAge    time.Duration // SESSION_UPDATE_AGE
	BcryptCost   int           // BCRYPT_COST
	Secret       string        // AUTH_SECRET (guards the identity-provider callback)
	SecureCookie bool          // SESSION_COOKIE_SECURE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	AppEnv         string // APP_ENV: development|production|test
	QuestionsPath  string // optional YAML catalogue overriding the embedded one
	MaxPromptRunes int    // MAX_PROMPT_RUNES
	MaxReplyRunes  int    // MAX_REPLY_RUNES

	Storage StorageConfig
	Cache   CacheConfig
	AI      AIConfig
	Auth    AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads the environment, fills defaults, resolves the APP_ENV driven
// choices (storage backend, cache driver) and validates every section. All
// problems are reported together.
func Load() (Config, error) {
	cfg := Config{
		Port:              envString("PORT", "8080"),
		ReadTimeout:       envDuration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDuration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       envDuration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           envLower("GIN_MODE", "release"),

		LogLevel:       envLower("LOG_LEVEL", "info"),
		LogPretty:      envBool("LOG_PRETTY", false),
		SwaggerEnabled: envBool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(envString("API_BASE_PATH", "/api")),

		AppEnv:         envLower("APP_ENV", "development"),
		QuestionsPath:  envString("QUESTIONS_PATH", ""),
		MaxPromptRunes: envInt("MAX_PROMPT_RUNES", 4000),
		MaxReplyRunes:  envInt("MAX_REPLY_RUNES", 4000),

		Storage: StorageConfig{
			Backend:      envLower("STORAGE_BACKEND", ""),
			Driver:       envLower("DB_DRIVER", "sqlite"),
			DBPath:       envString("DB_PATH", "app.db"),
			DatabaseURL:  envString("DATABASE_URL", ""),
			Region:       envString("AWS_REGION", "us-east-1"),
			Endpoint:     envString("DYNAMODB_ENDPOINT", ""),
			TablePrefix:  envString("DYNAMODB_TABLE_PREFIX", "EduAI-"),
			CreateTables: envBool("DYNAMODB_CREATE_TABLES", false),
			AccessKey:    envString("AWS_ACCESS_KEY_ID", ""),
			SecretKey:    envString("AWS_SECRET_ACCESS_KEY", ""),
		},
		Cache: CacheConfig{
			Driver:        envLower("CACHE_DRIVER", "auto"),
			TTL:           envDuration("CACHE_TTL", time.Hour),
			RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: envString("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
		},
		AI: AIConfig{
			Provider:    envLower("AI_PROVIDER", ProviderMock),
			APIKey:      envString("OPENAI_API_KEY", ""),
			Model:       envString("OPENAI_MODEL", "gpt-3.5-turbo"),
			BaseURL:     envString("OPENAI_BASE_URL", ""),
			Timeout:     envDuration("AI_TIMEOUT", 30*time.Second),
			MaxTokens:   envInt("AI_MAX_TOKENS", 500),
			Temperature: envFloat("AI_TEMPERATURE", 0.7),
		},
		Auth: AuthConfig{
			CookieName:   envString("SESSION_COOKIE", "edu_session"),
			MaxAge:       envDuration("SESSION_MAX_AGE", 30*24*time.Hour),
			UpdateAge:    envDuration("SESSION_UPDATE_AGE", 24*time.Hour),
			BcryptCost:   envInt("BCRYPT_COST", 10),
			Secret:       sysutil.FirstNonEmpty(os.Getenv("AUTH_SECRET"), os.Getenv("NEXTAUTH_SECRET")),
			SecureCookie: envBool("SESSION_COOKIE_SECURE", false),
		},

		RateRPS:   envFloat("RATE_RPS", 5),
		RateBurst: envInt("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS"))},
		Security: SecurityConfig{
			EnableHSTS: envBool("ENABLE_HSTS", false),
			HSTSMaxAge: envDuration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: envDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: envString("OTEL_SERVICE_NAME", "edu-chat-backend"),
			SampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	cfg.resolve()

	return cfg, errors.Join(
		cfg.validateServer(),
		cfg.Storage.validate(),
		cfg.Cache.validate(),
		cfg.AI.validate(),
		cfg.Auth.validate(),
		cfg.validateLimits(),
	)
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c Config) IsProduction() bool { return c.AppEnv == "production" || c.AppEnv == "prod" }

// resolve fills the choices that depend on other settings.
func (c *Config) resolve() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if c.GinMode != "debug" && c.GinMode != "test" {
		c.GinMode = "release"
	}
	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = BackendSQL
		if c.IsProduction() {
			c.Storage.Backend = BackendDynamo
		}
	case "dynamo":
		c.Storage.Backend = BackendDynamo
	}
	if c.Cache.Driver == "auto" {
		c.Cache.Driver = CacheNone
		if c.IsProduction() {
			c.Cache.Driver = CacheStore
		}
	}
}

func (c Config) validateServer() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		errs = append(errs, errors.New("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic"))
	}
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive durations"))
	}
	if c.MaxHeaderBytes <= 0 {
		errs = append(errs, errors.New("MAX_HEADER_BYTES must be > 0"))
	}
	if c.MaxPromptRunes < 1 || c.MaxReplyRunes < 1 {
		errs = append(errs, errors.New("MAX_PROMPT_RUNES and MAX_REPLY_RUNES must be >= 1"))
	}
	return errors.Join(errs...)
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case BackendSQL:
		switch s.Driver {
		case "sqlite":
			if strings.TrimSpace(s.DBPath) == "" {
				return errors.New("DB_PATH must not be empty")
			}
		case "postgres":
			if strings.TrimSpace(s.DatabaseURL) == "" {
				return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
			}
		default:
			return errors.New("DB_DRIVER must be one of: sqlite, postgres")
		}
	case BackendDynamo:
		if strings.TrimSpace(s.Region) == "" {
			return errors.New("AWS_REGION must not be empty")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: sql, dynamodb")
	}
	return nil
}

func (c CacheConfig) validate() error {
	var errs []error
	switch c.Driver {
	case CacheNone, CacheStore:
	case CacheRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_DRIVER=redis"))
		}
	default:
		errs = append(errs, errors.New("CACHE_DRIVER must be one of: auto, none, store, redis"))
	}
	if c.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be > 0"))
	}
	return errors.Join(errs...)
}

func (a AIConfig) validate() error {
	var errs []error
	switch a.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		if strings.TrimSpace(a.APIKey) == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when AI_PROVIDER=openai"))
		}
	default:
		errs = append(errs, errors.New("AI_PROVIDER must be one of: mock, openai"))
	}
	if a.Timeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be > 0"))
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		errs = append(errs, errors.New("AI_TEMPERATURE must be between 0 and 2"))
	}
	return errors.Join(errs...)
}

func (a AuthConfig) validate() error {
	var errs []error
	if strings.TrimSpace(a.CookieName) == "" {
		errs = append(errs, errors.New("SESSION_COOKIE must not be empty"))
	}
	if a.MaxAge <= 0 || a.UpdateAge < 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be > 0 and SESSION_UPDATE_AGE >= 0"))
	}
	if a.BcryptCost < bcrypt.MinCost || a.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

func (c Config) validateLimits() error {
	var errs []error
	if c.RateRPS < 0 {
		errs = append(errs, errors.New("RATE_RPS must be >= 0"))
	}
	if c.RateBurst < 1 {
		errs = append(errs, errors.New("RATE_BURST must be >= 1"))
	}
	if c.Security.HSTSMaxAge < 0 {
		errs = append(errs, errors.New("HSTS_MAX_AGE must be >= 0"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be > 0"))
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]"))
	}
	return errors.Join(errs...)
}

// env returns parse(value) for a set, non-empty key, or def when the key is
// unset, empty or unparsable.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func envString(key, def string) string {
	return env(key, def, func(v string) (string, error) { return v, nil })
}

func envLower(key, def string) string { return strings.ToLower(envString(key, def)) }

func envInt(key string, def int) int { return env(key, def, strconv.Atoi) }

func envDuration(key string, def time.Duration) time.Duration {
	return env(key, def, time.ParseDuration)
}

func envFloat(key string, def float64) float64 {
	return env(key, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func envBool(key string, def bool) bool {
	if on, ok := sysutil.ParseSwitch(os.Getenv(key)); ok {
		return on
	}
	return def
}

// splitCSV splits a comma list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath gives p a leading slash and no trailing one; blank is "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
