package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTTTL          time.Duration `mapstructure:"JWT_TTL"`
	ClientOrigin    string        `mapstructure:"CLIENT_ORIGIN"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	AutoMigrate     bool          `mapstructure:"AUTO_MIGRATE"`
	RateLimitPerSec float64       `mapstructure:"RATE_LIMIT_PER_SEC"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AMQPURL   string `mapstructure:"AMQP_URL"`
	AMQPQueue string `mapstructure:"AMQP_QUEUE"`

	MinioEndpoint      string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey     string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey     string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket        string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL        bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicBaseURL string `mapstructure:"MINIO_PUBLIC_BASE_URL"`

	AWSRegion        string `mapstructure:"AWS_REGION"`
	EmailProvider    string `mapstructure:"EMAIL_PROVIDER"` // "ses" or "mailersend"
	EmailFrom        string `mapstructure:"EMAIL_FROM"`
	MailerSendAPIKey string `mapstructure:"MAILERSEND_API_KEY"`
	SMSSenderID      string `mapstructure:"SMS_SENDER_ID"`
	NotifierEnabled  bool   `mapstructure:"NOTIFIER_ENABLED"`
}

var defaults = map[string]any{
	"SERVER_PORT":           "8080",
	"DATABASE_URL":          "",
	"JWT_SECRET":            "",
	"JWT_TTL":               "24h",
	"CLIENT_ORIGIN":         "http://localhost:5173",
	"ENV":                   "development",
	"LOG_LEVEL":             "info",
	"AUTO_MIGRATE":          true,
	"RATE_LIMIT_PER_SEC":    20.0,
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"AMQP_URL":              "",
	"AMQP_QUEUE":            "request_events",
	"MINIO_ENDPOINT":        "",
	"MINIO_ACCESS_KEY":      "",
	"MINIO_SECRET_KEY":      "",
	"MINIO_BUCKET":          "request-images",
	"MINIO_USE_SSL":         false,
	"MINIO_PUBLIC_BASE_URL": "",
	"AWS_REGION":            "ap-south-1",
	"EMAIL_PROVIDER":        "ses",
	"EMAIL_FROM":            "no-reply@quickclean.local",
	"MAILERSEND_API_KEY":    "",
	"SMS_SENDER_ID":         "QCLEAN",
	"NOTIFIER_ENABLED":      true,
}

// LoadConfig reads an optional .env file in path and lets environment
// variables override every key.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	// Unmarshal only sees env vars for keys viper already knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET is required")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
