package broker

import (
	"context"

	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/spec/broker"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

var _ broker.Producer = &AMQPBroker{}
var _ broker.Consumer = &AMQPBroker{}

// AMQPBroker describes a message broker via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	prefetch   int
}

// NewAMQPBroker returns a Message Broker over RabbitMQ. prefetch bounds the number of unacknowledged notifications per consumer
func NewAMQPBroker(logger *zap.Logger, amqpURI string, prefetch int) (*AMQPBroker, error) {
	if logger == nil {
		return nil, extErrors.New("nil Logger is invalid")
	}
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	if prefetch < 1 {
		prefetch = 1
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
		logger:     logger,
		prefetch:   prefetch,
	}
	if err := broker.setupEventExchange(); err != nil {
		broker.Close()
		return nil, extErrors.Wrap(err, "Cannot declare exchange for subscription events")
	}

	return broker, nil
}

func (a *AMQPBroker) setupEventExchange() error {
	return a.channel.ExchangeDeclare(
		spec.EventExchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

func (a *AMQPBroker) publishViaRoutingKey(exchange, routingKey string, body []byte) error {
	return a.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/x-protobuf",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// PublishEvent will send the domain event to the event exchange, routed by its type
func (a *AMQPBroker) PublishEvent(e *spec.Event) error {
	pb, err := e.ToProto()
	if err != nil {
		return extErrors.Wrap(err, "Cannot convert event into protobuf")
	}
	protoBytes, err := proto.Marshal(pb)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	if err := a.publishViaRoutingKey(spec.EventExchange, e.RoutingKey(), protoBytes); err != nil {
		return extErrors.Wrap(err, "Cannot publish subscription event")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

type amqpDelivery struct {
	d amqp.Delivery
}

func (a *amqpDelivery) Body() []byte {
	return a.d.Body
}

func (a *amqpDelivery) Ack() error {
	return a.d.Ack(false)
}

func (a *amqpDelivery) Nack(requeue bool) error {
	return a.d.Nack(false, requeue)
}

// ReceiveNotifications consumes notification envelopes from the queue. Deliveries must be acknowledged by the receiver
func (a *AMQPBroker) ReceiveNotifications(ctx context.Context, queue string) (<-chan broker.Delivery, error) {
	if err := a.setupQueue(queue); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	if err := a.channel.Qos(a.prefetch, 0, false); err != nil {
		return nil, extErrors.Wrap(err, "Cannot set prefetch")
	}
	msgChan, err := a.channel.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan broker.Delivery)
	go func() {
		defer close(rChan)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgChan:
				if !ok {
					a.logger.Error("Notification delivery channel closed",
						zap.String("Queue", queue),
					)
					return
				}
				select {
				case rChan <- &amqpDelivery{d: d}:
				case <-ctx.Done():
					d.Nack(false, true)
					return
				}
			}
		}
	}()
	return rChan, nil
}
