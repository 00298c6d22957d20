// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage, channel credentials, pipeline
// thresholds, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" validate:"dive,http_url"`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" validate:"gte=0s"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" validate:"required_if=Enabled true"` // e.g. "otel:4317"
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" validate:"required"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" validate:"gte=0,lte=1"`
}

// TelegramConfig defines the Telegram channel settings.
type TelegramConfig struct {
	BotToken         string        `env:"TELEGRAM_BOT_TOKEN"` // seeds a credential for DefaultTenant
	APIURL           string        `env:"TELEGRAM_API_URL" validate:"required,http_url"`
	WebhookSecret    string        `env:"TELEGRAM_WEBHOOK_SECRET" validate:"omitempty,max=256"`
	WebhookBaseURL   string        `env:"TELEGRAM_WEBHOOK_BASE_URL" validate:"omitempty,http_url"` // public origin used when registering webhooks
	DefaultTenant    string        `env:"TELEGRAM_DEFAULT_TENANT" validate:"required,max=64"`
	ProbeCredentials bool          `env:"TELEGRAM_PROBE_CREDENTIALS"` // legacy credential probing
	SendTimeout      time.Duration `env:"SEND_TIMEOUT" validate:"gt=0s"`
}

// PipelineConfig defines the thresholds of the conversation pipeline.
type PipelineConfig struct {
	MaxMessageRunes        int           `env:"MAX_MESSAGE_RUNES" validate:"gte=1"`
	SpamWindow             time.Duration `env:"SPAM_WINDOW" validate:"gt=0s"`
	SpamMinGap             time.Duration `env:"SPAM_MIN_GAP" validate:"gte=0s"`
	SpamMaxMessages        int           `env:"SPAM_MAX_MESSAGES" validate:"gte=1"`
	UnknownStreakThreshold int           `env:"UNKNOWN_STREAK_THRESHOLD" validate:"gte=1"`
	PersistTimeout         time.Duration `env:"PERSIST_TIMEOUT" validate:"gt=0s"`
}

// StateConfig defines conversation state retention.
type StateConfig struct {
	TTL           time.Duration `env:"STATE_TTL" validate:"gt=0s"` // idle time before eviction
	MaxEntries    int           `env:"STATE_MAX_ENTRIES" validate:"gte=0"`
	SweepInterval time.Duration `env:"STATE_SWEEP_INTERVAL" validate:"gt=0s"`
	RedisURL      string        `env:"REDIS_URL" validate:"omitempty,url"` // memory kept in Redis when set
}

// Config holds all configuration values for the application. The env tag
// names the variable a field is read from and is used in validation errors.
type Config struct {
	// Server
	Port              string        `env:"PORT" validate:"required,numeric"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" validate:"gt=0s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" validate:"gt=0s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" validate:"gt=0s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" validate:"gt=0s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" validate:"gt=0"`
	GinMode           string        `env:"GIN_MODE" validate:"oneof=debug release test"`

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" validate:"oneof=debug info warn error fatal panic"`
	LogPretty      bool   `env:"LOG_PRETTY"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED"`
	APIBasePath    string `env:"API_BASE_PATH" validate:"startswith=/"`

	// Storage
	DBDriver    string `env:"DB_DRIVER" validate:"oneof=sqlite postgres"`
	DBPath      string `env:"DB_PATH" validate:"required_if=DBDriver sqlite"`
	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=DBDriver postgres"`

	// Knowledge base
	KnowledgePath           string        `env:"KNOWLEDGE_PATH" validate:"required"`          // JSON array of Q&A entries
	KnowledgeReloadInterval time.Duration `env:"KNOWLEDGE_RELOAD_INTERVAL" validate:"gte=0s"` // 0 disables scheduled reloads

	Telegram TelegramConfig
	Pipeline PipelineConfig
	State    StateConfig

	// Rate limiting of admin routes
	RateRPS   float64 `env:"RATE_RPS" validate:"gte=0"`
	RateBurst int     `env:"RATE_BURST" validate:"gte=1"`

	CORS     CORSConfig
	Security SecurityConfig

	// How long a claimed update_id is remembered.
	UpdateDedupTTL time.Duration `env:"UPDATE_DEDUP_TTL" validate:"gt=0s"`

	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:      getenv("DB_PATH", "app.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Knowledge base
		KnowledgePath:           getenv("KNOWLEDGE_PATH", "data/faq.json"),
		KnowledgeReloadInterval: getdur("KNOWLEDGE_RELOAD_INTERVAL", 0),

		Telegram: TelegramConfig{
			BotToken:         getenv("TELEGRAM_BOT_TOKEN", ""),
			APIURL:           strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			WebhookSecret:    getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			WebhookBaseURL:   strings.TrimRight(getenv("TELEGRAM_WEBHOOK_BASE_URL", ""), "/"),
			DefaultTenant:    getenv("TELEGRAM_DEFAULT_TENANT", "default"),
			ProbeCredentials: getbool("TELEGRAM_PROBE_CREDENTIALS", false),
			SendTimeout:      getdur("SEND_TIMEOUT", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxMessageRunes:        getint("MAX_MESSAGE_RUNES", 2000),
			SpamWindow:             getdur("SPAM_WINDOW", 10*time.Second),
			SpamMinGap:             getdur("SPAM_MIN_GAP", 2*time.Second),
			SpamMaxMessages:        getint("SPAM_MAX_MESSAGES", 5),
			UnknownStreakThreshold: getint("UNKNOWN_STREAK_THRESHOLD", 3),
			PersistTimeout:         getdur("PERSIST_TIMEOUT", 10*time.Second),
		},
		State: StateConfig{
			TTL:           getdur("STATE_TTL", 24*time.Hour),
			MaxEntries:    getint("STATE_MAX_ENTRIES", 100000),
			SweepInterval: getdur("STATE_SWEEP_INTERVAL", 5*time.Minute),
			RedisURL:      getenv("REDIS_URL", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Update de-duplication
		UpdateDedupTTL: getdur("UPDATE_DEDUP_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-bizbot-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	normalize(&cfg)
	return cfg, validate(cfg)
}

func normalize(cfg *Config) {
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgresql" || cfg.DBDriver == "pg" {
		cfg.DBDriver = "postgres"
	}
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.KnowledgePath = strings.TrimSpace(cfg.KnowledgePath)
	cfg.Telegram.DefaultTenant = strings.TrimSpace(cfg.Telegram.DefaultTenant)
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("env")
	})
	return v
}

// validate reports every violated rule by variable name. Values are left
// out since some of them are secrets.
func validate(cfg Config) error {
	err := structValidator.Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("config: %s violates %s", fe.Field(), rule(fe)))
	}
	return errors.Join(msgs...)
}

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// ---- env helpers ----

// lookup parses the non-empty value of k, keeping def when the variable is
// unset, empty or unparsable.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

var errNotBool = errors.New("not a boolean")

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
