package config

import "time"

const (
	NotifyDriverLog   = "log"
	NotifyDriverRedis = "redis"
	NotifyDriverAMQP  = "amqp"
)

// NotifyConfig selects where status transitions are published.
type NotifyConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
	AMQP   AMQPConfig  `yaml:"amqp"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// ReconcileConfig drives the pending sweep and webhook replay job.
type ReconcileConfig struct {
	// StaleAfter is how long a payment may stay PENDING before the sweep
	// asks the gateway about it.
	StaleAfter  time.Duration `yaml:"stale_after"`
	BatchSize   int           `yaml:"batch_size"`
	ReplayLimit int           `yaml:"replay_limit"`
}
