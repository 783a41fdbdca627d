package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// RecoveredHandler handles a renewal that went through after an account hold or grace period
type RecoveredHandler struct {
	base
}

var _ Handler = &RecoveredHandler{}

func (h *RecoveredHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if sub.Status != subscription.StatusExpired && !subscription.CanActivate(sub) {
		return response.FAIL, response.ErrSubscriptionCannotResubscribe(sub.ID, string(sub.Status))
	}
	exists, err := PaymentExists(ctx, h.Repository, args.Snapshot.OrderID)
	if err != nil {
		return response.FAIL, err
	}
	if exists {
		logger.Info("Recovery already recorded")
		return response.SUCCESS, nil
	}

	recovered := sub
	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		// Expired is terminal, the recovered purchase starts a new subscription
		if sub.Status == subscription.StatusExpired {
			plan, err := h.plan(args.SubscriptionID)
			if err != nil {
				return err
			}
			recovered, _, err = h.create(ctx, tx, creation{
				UserID:   sub.UserID,
				Token:    args.PurchaseToken,
				Plan:     plan,
				Snapshot: args.Snapshot,
				Reason:   subscription.ReasonGoogleRecovered,
				Category: subscription.CategoryRenewal,
			})
			return err
		}
		err := h.transition(ctx, tx, sub, func(s *subscription.Subscription) {
			subscription.Activate(s, subscription.ReasonGoogleRecovered)
		})
		if err != nil {
			return err
		}
		return tx.CreatePayment(ctx, newPayment(sub, args.Snapshot, subscription.CategoryRenewal))
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription recovered",
		zap.String("SubscriptionID", recovered.ID),
		zap.Bool("NewSubscription", recovered.ID != sub.ID),
	)
	h.publish(args, eventFor(spec.EventSubscriptionSuccessfulRenewal, recovered, args.Snapshot.CountryCode))
	return response.SUCCESS, nil
}
