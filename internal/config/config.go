package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host            string   `yaml:"host"`
		Port            int      `yaml:"port"`
		Env             string   `yaml:"env"`
		ShutdownTimeout int      `yaml:"shutdown_timeout"` // секунды
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // postgres, mysql, sqlite
		DSN    string `yaml:"url"`
	} `yaml:"database"`

	Email struct {
		Provider     string `yaml:"provider"` // smtp, mock
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		UseTLS       bool   `yaml:"use_tls"`
		OperatorTo   string `yaml:"operator_email"` // куда слать алерты о битых подписках
	} `yaml:"email"`

	JWT struct {
		Secret     string `yaml:"secret"`
		TTL        int    `yaml:"ttl"`         // минуты
		RefreshTTL int    `yaml:"refresh_ttl"` // часы
	} `yaml:"jwt"`

	Razorpay struct {
		KeyID         string `yaml:"key_id"`
		KeySecret     string `yaml:"key_secret"`
		WebhookSecret string `yaml:"webhook_secret"`
		Currency      string `yaml:"currency"`
	} `yaml:"razorpay"`

	OTP struct {
		Store       string `yaml:"store"` // memory, valkey
		TTL         int    `yaml:"ttl"`   // секунды
		MaxAttempts int    `yaml:"max_attempts"`
	} `yaml:"otp"`

	Valkey struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"valkey"`

	Subscription struct {
		Timezone      string `yaml:"timezone"`
		MaxPausedDays int    `yaml:"max_paused_days"`
		WorkerEnabled bool   `yaml:"worker_enabled"`
		SweepInterval int    `yaml:"sweep_interval"` // минуты
		ExpiringDays  int    `yaml:"expiring_days"`  // окно "скоро истекает" в дашборде
	} `yaml:"subscription"`

	Admin struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
}

var AppConfig *Config

// LoadConfig грузит .env, затем config.yaml или, если задан DATABASE_URL, только переменные окружения
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load - то же, что LoadConfig, но с возвратом ошибки (для CLI и тестов)
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	var cfg Config

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		log.Println("✅ Загрузка конфигурации из ПЕРЕМЕННЫХ ОКРУЖЕНИЯ")
		fromEnv(&cfg, dbURL)
		applyDefaults(&cfg)
		return &cfg, nil
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка из %s", configPath)

	if err := loadFile(&cfg, configPath); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file at %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file at %s: %w", path, err)
	}
	return nil
}

func fromEnv(cfg *Config, dbURL string) {
	cfg.Database.DSN = dbURL
	cfg.Database.Driver = os.Getenv("DATABASE_DRIVER")
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")

	cfg.Email.Provider = os.Getenv("EMAIL_PROVIDER")
	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort, _ = strconv.Atoi(os.Getenv("SMTP_PORT"))
	cfg.Email.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.Email.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Email.FromEmail = os.Getenv("SMTP_FROM")
	cfg.Email.OperatorTo = os.Getenv("OPERATOR_EMAIL")

	cfg.Razorpay.KeyID = os.Getenv("RAZORPAY_KEY_ID")
	cfg.Razorpay.KeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	cfg.Razorpay.WebhookSecret = os.Getenv("RAZORPAY_WEBHOOK_SECRET")

	cfg.OTP.Store = os.Getenv("OTP_STORE")
	cfg.Valkey.Addr = os.Getenv("VALKEY_ADDR")
	cfg.Valkey.Password = os.Getenv("VALKEY_PASSWORD")

	cfg.Subscription.Timezone = os.Getenv("SUBSCRIPTION_TIMEZONE")
	cfg.Subscription.WorkerEnabled, _ = strconv.ParseBool(os.Getenv("SUBSCRIPTION_WORKER_ENABLED"))

	cfg.Admin.Email = os.Getenv("ADMIN_EMAIL")
	cfg.Admin.Password = os.Getenv("ADMIN_PASSWORD")
	cfg.Admin.Name = os.Getenv("ADMIN_NAME")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.JWT.RefreshTTL == 0 {
		cfg.JWT.RefreshTTL = 24 * 7
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "mock"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Milk Delivery"
	}
	if cfg.Razorpay.Currency == "" {
		cfg.Razorpay.Currency = "INR"
	}
	if cfg.OTP.Store == "" {
		cfg.OTP.Store = "memory"
	}
	if cfg.OTP.TTL == 0 {
		cfg.OTP.TTL = 300
	}
	if cfg.OTP.MaxAttempts == 0 {
		cfg.OTP.MaxAttempts = 5
	}
	if cfg.Subscription.Timezone == "" {
		cfg.Subscription.Timezone = "Asia/Kolkata"
	}
	if cfg.Subscription.MaxPausedDays == 0 {
		cfg.Subscription.MaxPausedDays = 365
	}
	if cfg.Subscription.SweepInterval == 0 {
		cfg.Subscription.SweepInterval = 60
	}
	if cfg.Subscription.ExpiringDays == 0 {
		cfg.Subscription.ExpiringDays = 3
	}
}

// Location - часовой пояс, в котором считаются календарные дни подписки
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Subscription.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Subscription.Timezone, err)
	}
	return loc, nil
}

func (c *Config) AccessTTL() time.Duration  { return time.Duration(c.JWT.TTL) * time.Minute }
func (c *Config) RefreshTTL() time.Duration { return time.Duration(c.JWT.RefreshTTL) * time.Hour }
func (c *Config) OTPTTL() time.Duration     { return time.Duration(c.OTP.TTL) * time.Second }

func (c *Config) IsProduction() bool { return c.Server.Env == "production" }
