package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the ordering backend
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Log           LogConfig          `mapstructure:"log"`
	Database      DatabaseConfig     `mapstructure:"database"`
	RabbitMQ      RabbitMQConfig     `mapstructure:"rabbitmq"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Pricing       PricingConfig      `mapstructure:"pricing"`
	Payment       PaymentConfig      `mapstructure:"payment"`
	Orders        OrdersConfig       `mapstructure:"orders"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// PricingConfig carries the order pricing constants. Money values are strings
// so they never pass through float64.
type PricingConfig struct {
	DeliveryFee string        `mapstructure:"delivery_fee"`
	TaxRate     string        `mapstructure:"tax_rate"`
	DeliveryETA time.Duration `mapstructure:"delivery_eta"`
}

type PaymentConfig struct {
	GatewayURL string        `mapstructure:"gateway_url"`
	KeyID      string        `mapstructure:"key_id"`
	KeySecret  string        `mapstructure:"key_secret"`
	Currency   string        `mapstructure:"currency"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type OrdersConfig struct {
	NumberRetryLimit int `mapstructure:"number_retry_limit"`
}

type NotificationConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cafe")
	v.SetDefault("database.password", "cafe")
	v.SetDefault("database.database", "cafe_orders")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")

	v.SetDefault("pricing.delivery_fee", "49")
	v.SetDefault("pricing.tax_rate", "0.08")
	v.SetDefault("pricing.delivery_eta", 45*time.Minute)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("payment.gateway_url", "https://api.razorpay.com/v1")
	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.timeout", 15*time.Second)

	v.SetDefault("orders.number_retry_limit", 5)
	v.SetDefault("notifications.buffer_size", 256)
}

// Load reads configuration from filename, or from config.yaml in the default
// search paths when filename is empty. Every key can be overridden with a
// CAFE_ prefixed environment variable, e.g. CAFE_DATABASE_HOST.
func Load(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if filename != "" {
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./deploy/")
		v.AddConfigPath("/etc/cafe-orders/")
	}

	v.SetEnvPrefix("CAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filename != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted sensibly
func (c *Config) Validate() error {
	if _, err := decimal.NewFromString(c.Pricing.DeliveryFee); err != nil {
		return fmt.Errorf("invalid pricing.delivery_fee %q: %w", c.Pricing.DeliveryFee, err)
	}
	if _, err := decimal.NewFromString(c.Pricing.TaxRate); err != nil {
		return fmt.Errorf("invalid pricing.tax_rate %q: %w", c.Pricing.TaxRate, err)
	}
	if c.Orders.NumberRetryLimit < 1 {
		return fmt.Errorf("orders.number_retry_limit must be at least 1")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
