package task

import (
	"context"
	"fmt"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec/broker"

	extErrors "github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Handler processes one raw notification body
type Handler interface {
	Handle(ctx context.Context, body []byte) (response.Result, error)
}

type NotificationOptions struct {
	Consumer    broker.Consumer
	Handler     Handler
	Logger      *zap.Logger
	Queue       string
	Concurrency int
}

// NotificationTask pulls notifications from the broker and acknowledges them by result
type NotificationTask struct {
	NotificationOptions
}

func NewNotificationTask(option NotificationOptions) (*NotificationTask, error) {
	if option.Consumer == nil {
		return nil, fmt.Errorf("nil Consumer is invalid")
	}
	if option.Handler == nil {
		return nil, fmt.Errorf("nil Handler is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.Queue) == 0 {
		return nil, fmt.Errorf("empty Queue is invalid")
	}
	if option.Concurrency < 1 {
		option.Concurrency = 1
	}
	return &NotificationTask{
		NotificationOptions: option,
	}, nil
}

// settle acks SUCCESS, requeues FAIL and drops propagated errors, which are dead lettered by the broker if configured
func (t *NotificationTask) settle(ctx context.Context, d broker.Delivery) {
	result, err := t.Handler.Handle(ctx, d.Body())

	var ackErr error
	switch {
	case err != nil:
		t.Logger.Error("Notification rejected",
			zap.Error(err),
		)
		ackErr = d.Nack(false)
	case result == response.SUCCESS:
		ackErr = d.Ack()
	default:
		ackErr = d.Nack(true)
	}
	if ackErr != nil {
		t.Logger.Error("Cannot settle delivery",
			zap.String("Result", result.String()),
			zap.Error(ackErr),
		)
	}
}

// Run consumes until ctx is done or the delivery channel closes, then waits for in-flight notifications
func (t *NotificationTask) Run(ctx context.Context) error {
	dChan, err := t.Consumer.ReceiveNotifications(ctx, t.Queue)
	if err != nil {
		return extErrors.Wrap(err, "Cannot get notification channel")
	}

	p := pool.New().WithMaxGoroutines(t.Concurrency)
	defer p.Wait()

	for d := range dChan {
		d := d
		p.Go(func() {
			// finish in-flight work even after shutdown is requested
			t.settle(context.WithoutCancel(ctx), d)
		})
	}
	return nil
}
