package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`

	DBDriver   string `mapstructure:"DB_DRIVER"` // postgres | sqlite
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FrontendURL    string `mapstructure:"FRONTEND_URL"`
	Currency       string `mapstructure:"CURRENCY"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ClerkWebhookSecret  string `mapstructure:"CLERK_WEBHOOK_SECRET"`
	SessionJWTSecret    string `mapstructure:"SESSION_JWT_SECRET"`
	SessionJWTPublicKey string `mapstructure:"SESSION_JWT_PUBLIC_KEY"`

	ProviderMaxAttempts int           `mapstructure:"PROVIDER_MAX_ATTEMPTS"`
	ProviderBackoff     time.Duration `mapstructure:"PROVIDER_BACKOFF"`
	ProviderTimeout     time.Duration `mapstructure:"PROVIDER_TIMEOUT"`

	ProgressRequireEnrollment bool `mapstructure:"PROGRESS_REQUIRE_ENROLLMENT"`
	RateLimitPurchase         int  `mapstructure:"RATE_LIMIT_PURCHASE"` // запросов в минуту

	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS"`
	KafkaEnrollmentTopic string        `mapstructure:"KAFKA_ENROLLMENT_TOPIC"`
	OutboxPollInterval   time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
}

var defaults = map[string]any{
	"PORT":                        ":8080",
	"GRPC_PORT":                   ":9090",
	"DB_DRIVER":                   "postgres",
	"DB_PORT":                     "5432",
	"SQLITE_PATH":                 "coursemarket.db",
	"REDIS_ADDR":                  "localhost:6379",
	"ALLOWED_ORIGINS":             "http://localhost:5173",
	"FRONTEND_URL":                "http://localhost:5173",
	"CURRENCY":                    "usd",
	"LOG_LEVEL":                   "info",
	"PROVIDER_MAX_ATTEMPTS":       3,
	"PROVIDER_BACKOFF":            "200ms",
	"PROVIDER_TIMEOUT":            "10s",
	"PROGRESS_REQUIRE_ENROLLMENT": true,
	"RATE_LIMIT_PURCHASE":         10,
	"KAFKA_ENROLLMENT_TOPIC":      "enrollment.completed",
	"OUTBOX_POLL_INTERVAL":        "2s",
}

var keys = []string{
	"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "CLERK_WEBHOOK_SECRET",
	"SESSION_JWT_SECRET", "SESSION_JWT_PUBLIC_KEY", "KAFKA_BROKERS",
}

func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	// Явно биндим ключи без дефолтов, иначе Unmarshal их не увидит
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Файла может не быть - тогда работаем только на ENV
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	config.Currency = strings.ToLower(config.Currency)
	err = config.Validate()
	return
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.ProviderMaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be >= 1")
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	return nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func (c Config) Origins() []string {
	return splitCSV(c.AllowedOrigins)
}

func (c Config) Brokers() []string {
	return splitCSV(c.KafkaBrokers)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
