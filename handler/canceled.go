package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// CanceledHandler schedules the end of a subscription at expiry, or ends it now when the
// purchase already lapsed or was replaced
type CanceledHandler struct {
	base
}

var _ Handler = &CanceledHandler{}

func (h *CanceledHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)
	snapshot := args.Snapshot

	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	expired := snapshot.ExpiredAt(h.now())
	until := snapshot.ExpiryDate()

	if sub.Status == subscription.StatusExpired && expired {
		logger.Info("Subscription already expired, nothing to cancel",
			zap.String("SubscriptionID", sub.ID),
		)
		return response.SUCCESS, nil
	}
	if sub.Status == subscription.StatusActive && subscription.SameDay(sub.ValidUntil, until) {
		logger.Info("Cancellation already scheduled",
			zap.String("SubscriptionID", sub.ID),
		)
		return response.SUCCESS, nil
	}
	if !subscription.CanCancel(sub) {
		return response.FAIL, response.ErrSubscriptionCannotCancel(sub.ID, string(sub.Status))
	}

	immediate := expired || snapshot.IsImmediateCancel()
	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		err := h.transition(ctx, tx, sub, func(s *subscription.Subscription) {
			if immediate {
				subscription.Expire(s, until, subscription.ReasonGoogleCanceledImmediately)
			} else {
				subscription.Cancel(s, until, subscription.ReasonGoogleCanceled)
			}
		})
		if err != nil {
			return err
		}
		payment, err := tx.GetPayment(ctx, snapshot.OrderID)
		if err != nil {
			return err
		}
		if payment == nil {
			return nil
		}
		payment.Payload = spec.Payload(snapshot.Raw)
		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription canceled",
		zap.String("SubscriptionID", sub.ID),
		zap.Bool("Immediate", immediate),
		zap.Time("ValidUntil", until),
	)
	h.publish(args, eventFor(spec.EventSubscriptionCanceled, sub, snapshot.CountryCode))
	return response.SUCCESS, nil
}
