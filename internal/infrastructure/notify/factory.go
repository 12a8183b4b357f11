package notify

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wekeepgrowing/crowdfund-payment/internal/config"
	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	"github.com/wekeepgrowing/crowdfund-payment/pkg/messaging"
)

type closingPublisher interface {
	Publisher
	Close() error
}

// Connection constructors, replaced in tests.
var (
	dialRedis = messaging.NewRedisClient
	dialAMQP  = func(url, exchange string) (closingPublisher, error) {
		return messaging.NewAMQPPublisher(url, exchange)
	}
)

// NewObservers builds the transition observers for cfg. Transitions are
// always logged; the driver adds one broker. The returned func closes the
// broker connection.
func NewObservers(cfg config.NotifyConfig, logger *zap.Logger) ([]usecase.Observer, func() error, error) {
	observers := []usecase.Observer{NewLogObserver(logger)}
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", config.NotifyDriverLog:
		return observers, noop, nil

	case config.NotifyDriverRedis:
		client, err := dialRedis(messaging.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("notify redis: %w", err)
		}
		logger.Info("Publishing payment transitions to redis",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("channel", cfg.Redis.Channel))
		return append(observers, NewRedisObserver(client, cfg.Redis.Channel)), client.Close, nil

	case config.NotifyDriverAMQP:
		publisher, err := dialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("notify amqp: %w", err)
		}
		logger.Info("Publishing payment transitions to amqp",
			zap.String("exchange", cfg.AMQP.Exchange))
		return append(observers, NewAMQPObserver(publisher)), publisher.Close, nil
	}

	return nil, nil, errors.New("unknown notify driver: " + cfg.Driver)
}
