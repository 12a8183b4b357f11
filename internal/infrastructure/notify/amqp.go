package notify

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/crowdfund-payment/internal/usecase"
)

// Publisher sends a JSON message with a routing key. *messaging.AMQPPublisher
// implements it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}, headers map[string]interface{}) error
}

// AMQPObserver publishes transitions to a topic exchange with routing key
// payment.<status>.
type AMQPObserver struct {
	publisher Publisher
}

func NewAMQPObserver(publisher Publisher) *AMQPObserver {
	return &AMQPObserver{publisher: publisher}
}

func (o *AMQPObserver) OnTransition(ctx context.Context, t usecase.Transition) error {
	routingKey := RoutingKey(t)
	headers := map[string]interface{}{
		"gateway_payment_id": t.Payment.GatewayPaymentID,
		"from":               string(t.From),
		"to":                 string(t.To),
		"source":             string(t.Source),
	}

	if err := o.publisher.Publish(ctx, routingKey, NewTransitionMessage(t), headers); err != nil {
		return fmt.Errorf("failed to publish transition %s: %w", routingKey, err)
	}
	return nil
}
