package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// RenewedHandler extends the live subscription of the token with a renewal payment
type RenewedHandler struct {
	base
}

var _ Handler = &RenewedHandler{}

func (h *RenewedHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	downgrade, err := ClassifyUpgrade(ctx, h.Repository, args.PurchaseToken, args.Snapshot)
	if err != nil {
		return response.FAIL, err
	}
	if downgrade {
		return h.changePlan(ctx, args, downgradeChange)
	}

	logger := h.logger(args)

	active, err := h.active(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if active == nil {
		return h.restartLineage(ctx, args)
	}

	if args.Snapshot.ExpiredAt(h.now()) {
		until := args.Snapshot.ExpiryDate()
		err := h.transition(ctx, h.Repository, active, func(s *subscription.Subscription) {
			subscription.Expire(s, until, subscription.ReasonGoogleRenewInPast)
		})
		if err != nil {
			return response.FAIL, err
		}
		logger.Info("Renewal is already in the past, subscription expired",
			zap.String("SubscriptionID", active.ID),
		)
		return response.SUCCESS, nil
	}

	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		err := h.transition(ctx, tx, active, func(s *subscription.Subscription) {
			subscription.Activate(s, subscription.ReasonGoogleRenewed)
		})
		if err != nil {
			return err
		}
		payment, err := tx.GetPayment(ctx, args.Snapshot.OrderID)
		if err != nil {
			return err
		}
		if payment != nil {
			payment.PaidUntil = args.Snapshot.ExpiryTime
			payment.Status = paymentStatus(args.Snapshot)
			payment.Payload = spec.Payload(args.Snapshot.Raw)
			return tx.UpdatePayment(ctx, payment)
		}
		return tx.CreatePayment(ctx, newPayment(active, args.Snapshot, subscription.CategoryRenewal))
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription renewed",
		zap.String("SubscriptionID", active.ID),
		zap.Time("PaidUntil", args.Snapshot.ExpiryTime),
	)
	h.publish(args, eventFor(spec.EventSubscriptionSuccessfulRenewal, active, args.Snapshot.CountryCode))
	return response.SUCCESS, nil
}

// restartLineage creates a fresh subscription when the token has nothing live left to renew
func (h *RenewedHandler) restartLineage(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	exists, err := PaymentExists(ctx, h.Repository, args.Snapshot.OrderID)
	if err != nil {
		return response.FAIL, err
	}
	if exists {
		logger.Info("Renewal already recorded")
		return response.SUCCESS, nil
	}
	plan, err := h.plan(args.SubscriptionID)
	if err != nil {
		return response.FAIL, err
	}

	var sub *subscription.Subscription
	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		pm, err := tx.GetPaymentMethod(ctx, args.PurchaseToken)
		if err != nil {
			return err
		}
		if pm == nil {
			return response.ErrPaymentMethodNotFound(args.PurchaseToken)
		}
		sub, _, err = h.create(ctx, tx, creation{
			UserID:   pm.UserID,
			Token:    args.PurchaseToken,
			Plan:     plan,
			Snapshot: args.Snapshot,
			Reason:   subscription.ReasonGoogleRenewed,
			Category: subscription.CategoryRenewal,
		})
		return err
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Renewal started a new subscription",
		zap.String("SubscriptionID", sub.ID),
	)
	h.publish(args, eventFor(spec.EventSubscriptionSuccessfulRenewal, sub, args.Snapshot.CountryCode))
	return response.SUCCESS, nil
}
