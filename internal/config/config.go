package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	Env           string
	AdminPassword string
	DatabaseURL   string

	Airtable Airtable
	YooKassa YooKassa
	SendGrid SendGrid
	Kafka    Kafka
	Expiry   Expiry

	TelegramChatLink string
	SuccessURL       string

	MetricsUser string
	MetricsPass string

	RateLimitRPS   float64
	RateLimitBurst int
}

type Airtable struct {
	Token     string
	BaseID    string
	TableName string
	APIURL    string
}

func (a Airtable) Configured() bool {
	return a.Token != "" && a.BaseID != ""
}

type YooKassa struct {
	ShopID    string
	SecretKey string
	APIURL    string
}

func (y YooKassa) Configured() bool {
	return y.ShopID != "" && y.SecretKey != ""
}

type SendGrid struct {
	APIKey    string
	APIHost   string
	FromEmail string
	FromName  string
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Expiry configures the lapsed-subscriber sweep. An empty Schedule disables it.
type Expiry struct {
	Schedule string
	Grace    time.Duration
}

// Load reads configuration from the environment, loading .env first outside production.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3333")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("AIRTABLE_TABLE_NAME", "Partners")
	v.SetDefault("YUKASSA_API_URL", "https://api.yookassa.ru/v3")
	v.SetDefault("SENDGRID_API_HOST", "https://api.sendgrid.com")
	v.SetDefault("EMAIL_FROM", "welcome@nomad-hub.com")
	v.SetDefault("EMAIL_FROM_NAME", "НОМАД ХАБ")
	v.SetDefault("TELEGRAM_CHAT_LINK", "https://t.me/nomad_hub")
	v.SetDefault("SUCCESS_URL", "https://nomad-hub.example.com/success")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "payments.audit")
	v.SetDefault("EXPIRY_GRACE", "72h")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 30)

	cfg := &Config{
		Port:          v.GetString("PORT"),
		Env:           v.GetString("APP_ENV"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		Airtable: Airtable{
			Token:     v.GetString("AIRTABLE_TOKEN"),
			BaseID:    v.GetString("AIRTABLE_BASE_ID"),
			TableName: v.GetString("AIRTABLE_TABLE_NAME"),
			APIURL:    v.GetString("AIRTABLE_API_URL"),
		},
		YooKassa: YooKassa{
			ShopID:    v.GetString("YUKASSA_SHOP_ID"),
			SecretKey: v.GetString("YUKASSA_SECRET_KEY"),
			APIURL:    v.GetString("YUKASSA_API_URL"),
		},
		SendGrid: SendGrid{
			APIKey:    v.GetString("SENDGRID_API_KEY"),
			APIHost:   v.GetString("SENDGRID_API_HOST"),
			FromEmail: v.GetString("EMAIL_FROM"),
			FromName:  v.GetString("EMAIL_FROM_NAME"),
		},
		Kafka: Kafka{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			AuditTopic: v.GetString("KAFKA_AUDIT_TOPIC"),
		},
		Expiry: Expiry{
			Schedule: v.GetString("EXPIRY_SWEEP_SCHEDULE"),
			Grace:    v.GetDuration("EXPIRY_GRACE"),
		},
		TelegramChatLink: v.GetString("TELEGRAM_CHAT_LINK"),
		SuccessURL:       v.GetString("SUCCESS_URL"),
		MetricsUser:      v.GetString("METRICS_USER"),
		MetricsPass:      v.GetString("METRICS_PASS"),
		RateLimitRPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:   v.GetInt("RATE_LIMIT_BURST"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
