package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Payment  PaymentConfig
	TextGen  TextGenConfig
	Face     FaceConfig
	Media    MediaConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr    string
	LockTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	OrderStatus string
	OpsAlerts   string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	OpsAddress   string
}

type PaymentConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
}

type TextGenConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// FaceConfig selects and configures the face-personalization backend.
// Strategy is "poll" or "callback".
type FaceConfig struct {
	Strategy         string
	PollBaseURL      string
	PollAPIKey       string
	CallbackBaseURL  string
	CallbackAPIKey   string
	CallbackEndpoint string
	PollDelay        time.Duration
}

type MediaConfig struct {
	RootDir   string
	PublicURL string
	FontPath  string
}

type PipelineConfig struct {
	CancelAfter   time.Duration
	CompleteAfter time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "bookworks"),
			Password:     getEnv("DB_PASSWORD", "bookworks"),
			Database:     getEnv("DB_NAME", "bookworks"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			LockTTL: getEnvDuration("ORDER_LOCK_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderStatus: getEnv("KAFKA_TOPIC_ORDER_STATUS", "bookworks.orders.status"),
				OpsAlerts:   getEnv("KAFKA_TOPIC_OPS_ALERTS", "bookworks.ops.alerts"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("EMAIL_FROM", "orders@bookworks.example"),
			OpsAddress:   getEnv("EMAIL_OPS", "ops@bookworks.example"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:            getEnv("PAYMENT_CURRENCY", "usd"),
		},
		TextGen: TextGenConfig{
			BaseURL: getEnv("TEXTGEN_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("TEXTGEN_API_KEY", ""),
			Model:   getEnv("TEXTGEN_MODEL", "gpt-4o-mini"),
		},
		Face: FaceConfig{
			Strategy:         getEnv("FACE_STRATEGY", "poll"),
			PollBaseURL:      getEnv("FACE_POLL_BASE_URL", ""),
			PollAPIKey:       getEnv("FACE_POLL_API_KEY", ""),
			CallbackBaseURL:  getEnv("FACE_CALLBACK_BASE_URL", ""),
			CallbackAPIKey:   getEnv("FACE_CALLBACK_API_KEY", ""),
			CallbackEndpoint: getEnv("FACE_CALLBACK_ENDPOINT", ""),
			PollDelay:        getEnvDuration("FACE_POLL_DELAY", 2*time.Second),
		},
		Media: MediaConfig{
			RootDir:   getEnv("MEDIA_ROOT", "./media"),
			PublicURL: getEnv("MEDIA_PUBLIC_URL", "http://localhost:8080/media"),
			FontPath:  getEnv("COMPOSE_FONT_PATH", ""),
		},
		Pipeline: PipelineConfig{
			CancelAfter:   getEnvDuration("PIPELINE_CANCEL_AFTER", 2*time.Hour),
			CompleteAfter: getEnvDuration("PIPELINE_COMPLETE_AFTER", 24*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
