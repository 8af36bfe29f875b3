package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Schema     SchemaConfig
	MightyCall MightyCallConfig
	Redis      RedisConfig
	Email      EmailConfig
	Dev        DevConfig
	Runtime    RuntimeConfig
	Bootstrap  BootstrapConfig
	Sync       SyncConfig

	// IntegrationsKey derives the AES key for stored provider credentials.
	IntegrationsKey string
	SessionTTL      time.Duration
}

type MightyCallConfig struct {
	BaseURL      string
	APIKey       string
	ClientSecret string
	Timeout      time.Duration
}

func (c MightyCallConfig) HasCredentials() bool {
	return c.APIKey != "" && c.ClientSecret != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// DevConfig gates development-only behavior. None of it is honored in production.
type DevConfig struct {
	AuthBypass  bool
	EnableSeed  bool
	ExposeError bool
}

// RuntimeConfig is read once at startup and handed to long-running workers.
type RuntimeConfig struct {
	SkipFatalSignalExit bool
}

type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

type SyncConfig struct {
	JobTracking      bool
	SchedulerEnabled bool
	TriggerRate      float64
	TriggerBurst     int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := strings.ToLower(getenv("ENVIRONMENT", getenv("NODE_ENV", "development")))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "switchboard"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		HTTPAddr:     httpAddr(),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Schema: SchemaConfig{
			PhoneAssignment: ParseSchemaVersion(getenv("SCHEMA_PHONE_ASSIGNMENT", string(SchemaDirect))),
		},
		MightyCall: MightyCallConfig{
			BaseURL:      strings.TrimRight(getenv("MIGHTYCALL_BASE_URL", "https://ccapi.mightycall.com/v4/api"), "/"),
			APIKey:       strings.TrimSpace(getenv("MIGHTYCALL_API_KEY", "")),
			ClientSecret: strings.TrimSpace(getenv("MIGHTYCALL_CLIENT_SECRET", "")),
			Timeout:      getenvDuration("MIGHTYCALL_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "support@switchboard.local"),
		},
		Dev: DevConfig{
			AuthBypass:  getenvBool("DEV_AUTH_BYPASS", false),
			EnableSeed:  getenvBool("ENABLE_DEV_SEED", false),
			ExposeError: getenvBool("DEV_EXPOSE_ERROR_DETAIL", false),
		},
		Runtime: RuntimeConfig{
			SkipFatalSignalExit: getenvBool("SKIP_FATAL_SIGNAL_EXIT", false),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Sync: SyncConfig{
			JobTracking:      getenvBool("SYNC_JOB_TRACKING", true),
			SchedulerEnabled: getenvBool("SYNC_SCHEDULER_ENABLED", false),
			TriggerRate:      getenvFloat("SYNC_TRIGGER_RATE", 0.2),
			TriggerBurst:     getenvInt("SYNC_TRIGGER_BURST", 3),
		},
		IntegrationsKey: strings.TrimSpace(getenv("INTEGRATIONS_ENCRYPTION_KEY", "")),
		SessionTTL:      getenvDuration("SESSION_TTL", 7*24*time.Hour),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// DevSeedEnabled reports whether the seed-call endpoint may be registered.
func (c Config) DevSeedEnabled() bool {
	return c.Dev.EnableSeed && !c.IsProduction()
}

func httpAddr() string {
	if addr := strings.TrimSpace(os.Getenv("HTTP_ADDR")); addr != "" {
		return addr
	}
	return ":" + getenv("PORT", "4000")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
