package usecase

import (
	"context"
	"time"

	"github.com/wekeepgrowing/crowdfund-payment/internal/domain/model"
)

// TransitionSource names what caused a status change.
type TransitionSource string

const (
	SourceCapture TransitionSource = "capture"
	SourceCancel  TransitionSource = "cancel"
	SourceRefund  TransitionSource = "refund"
	SourceWebhook TransitionSource = "webhook"
	SourceSweep   TransitionSource = "sweep"
)

// Transition describes one applied status change.
type Transition struct {
	Payment model.Payment       `json:"payment"`
	From    model.PaymentStatus `json:"from"`
	To      model.PaymentStatus `json:"to"`
	Source  TransitionSource    `json:"source"`
	At      time.Time           `json:"at"`
}

// Observer is notified after a transition has been persisted. It is called
// once per applied transition and never for no-ops. Errors are logged by
// the caller and do not affect the transition.
type Observer interface {
	OnTransition(ctx context.Context, transition Transition) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, transition Transition) error

func (f ObserverFunc) OnTransition(ctx context.Context, transition Transition) error {
	return f(ctx, transition)
}
