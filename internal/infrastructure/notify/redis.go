package notify

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
	"github.com/wekeepgrowing/crowdfund-payment/pkg/messaging"
)

// RedisObserver publishes transitions on a Redis pub/sub channel.
type RedisObserver struct {
	client  messaging.RedisClient
	channel string
}

func NewRedisObserver(client messaging.RedisClient, channel string) *RedisObserver {
	return &RedisObserver{client: client, channel: channel}
}

func (o *RedisObserver) OnTransition(ctx context.Context, t usecase.Transition) error {
	if err := o.client.Publish(ctx, o.channel, NewTransitionMessage(t)); err != nil {
		return fmt.Errorf("failed to publish transition to redis channel %s: %w", o.channel, err)
	}
	return nil
}
