package app

import (
	"context"
	"time"

	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/paymybuddy/payment-service/pkg/rabbitmq"
)

const publishTimeout = 5 * time.Second

// eventSink publishes domain events after the state they describe has been
// committed. Failures are logged and never reach the caller.
type eventSink struct {
	producer rabbitmq.Publisher
	exchange string
}

func newEventSink(producer rabbitmq.Publisher, exchange string) eventSink {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return eventSink{producer: producer, exchange: exchange}
}

func (e eventSink) publish(ctx context.Context, routingKey string, body interface{}) {
	if e.producer == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.producer.Publish(pubCtx, e.exchange, routingKey, body); err != nil {
		logger.Log.Warn("event publish failed",
			logger.String("component", "events"),
			logger.String("routing_key", routingKey),
			logger.Error(err),
		)
	}
}
