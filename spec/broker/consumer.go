package broker

import (
	"context"
)

// Delivery is one inbound notification envelope pulled from the broker
type Delivery interface {
	Body() []byte
	Ack() error
	Nack(requeue bool) error
}

// Consumer defines a consumer receiving notification envelopes via message broker
type Consumer interface {
	Close()
	ReceiveNotifications(ctx context.Context, queue string) (<-chan Delivery, error)
}
