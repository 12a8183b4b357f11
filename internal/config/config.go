package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wekeepgrowing/crowdfund-payment/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. PAYMENT_STRIPE_SECRET_KEY.
const EnvPrefix = "PAYMENT"

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Log       logger.Config   `yaml:"log"`
	JWT       JWTConfig       `yaml:"jwt"`
	Notify    NotifyConfig    `yaml:"notify"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

type JWTConfig struct {
	Secret    string   `yaml:"secret"`
	SkipPaths []string `yaml:"skip_paths"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/payment.yaml"
	}

	// Ensure absolute path
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies PAYMENT_* environment overrides and validates
// the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTargets maps dotted override keys to the fields they replace.
func (c *Config) envTargets() map[string]interface{} {
	return map[string]interface{}{
		"service.environment":        &c.Service.Environment,
		"service.default_currency":   &c.Service.DefaultCurrency,
		"stripe.secret_key":          &c.Service.StripeSecretKey,
		"stripe.webhook_secret":      &c.Service.StripeWebhookSecret,
		"stripe.api_base_url":        &c.Service.Stripe.APIBaseURL,
		"stripe.max_network_retries": &c.Service.Stripe.MaxNetworkRetries,
		"stripe.timeout":             &c.Service.Stripe.Timeout,
		"stripe.webhook_tolerance":   &c.Service.Stripe.WebhookTolerance,
		"database.host":              &c.Database.Host,
		"database.port":              &c.Database.Port,
		"database.name":              &c.Database.Name,
		"database.user":              &c.Database.User,
		"database.password":          &c.Database.Password,
		"database.sslmode":           &c.Database.SSLMode,
		"server.http.port":           &c.Server.HTTP.Port,
		"server.grpc.port":           &c.Server.GRPC.Port,
		"log.level":                  &c.Log.Level,
		"log.format":                 &c.Log.Format,
		"jwt.secret":                 &c.JWT.Secret,
		"notify.driver":              &c.Notify.Driver,
		"notify.redis.addr":          &c.Notify.Redis.Addr,
		"notify.redis.password":      &c.Notify.Redis.Password,
		"notify.amqp.url":            &c.Notify.AMQP.URL,
		"reconcile.stale_after":      &c.Reconcile.StaleAfter,
		"reconcile.batch_size":       &c.Reconcile.BatchSize,
	}
}

func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, target := range c.envTargets() {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
		if !v.IsSet(key) {
			continue
		}
		switch p := target.(type) {
		case *string:
			*p = v.GetString(key)
		case *int:
			*p = v.GetInt(key)
		case *int64:
			*p = v.GetInt64(key)
		case *time.Duration:
			*p = v.GetDuration(key)
		default:
			return fmt.Errorf("unsupported override type for %s", key)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "payment"
	}
	if c.Service.DefaultCurrency == "" {
		c.Service.DefaultCurrency = "usd"
	}
	c.Service.DefaultCurrency = strings.ToLower(c.Service.DefaultCurrency)
	if c.Service.Stripe.Timeout == 0 {
		c.Service.Stripe.Timeout = 30 * time.Second
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = NotifyDriverLog
	}
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = "payment.transitions"
	}
	if c.Notify.AMQP.Exchange == "" {
		c.Notify.AMQP.Exchange = "payment.events"
	}
	if c.Reconcile.StaleAfter == 0 {
		c.Reconcile.StaleAfter = 30 * time.Minute
	}
	if c.Reconcile.BatchSize == 0 {
		c.Reconcile.BatchSize = 100
	}
	if c.Reconcile.ReplayLimit == 0 {
		c.Reconcile.ReplayLimit = 100
	}
}

// Validate reports every missing or inconsistent required field at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Service.GatewayConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Service.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("service.default_currency must be a 3-letter code, got %q", c.Service.DefaultCurrency))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("database host and name are required"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	switch c.Notify.Driver {
	case NotifyDriverLog:
	case NotifyDriverRedis:
		if c.Notify.Redis.Addr == "" {
			errs = append(errs, errors.New("notify.redis.addr is required for the redis driver"))
		}
	case NotifyDriverAMQP:
		if c.Notify.AMQP.URL == "" {
			errs = append(errs, errors.New("notify.amqp.url is required for the amqp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify driver %q", c.Notify.Driver))
	}
	if c.Reconcile.BatchSize < 0 || c.Reconcile.StaleAfter < 0 {
		errs = append(errs, errors.New("reconcile settings must not be negative"))
	}
	return errors.Join(errs...)
}
