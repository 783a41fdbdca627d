package handler

import (
	"context"
	"time"

	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// RevokedHandler refunds a payment. Access ends at the coverage of the previous approved payment
type RevokedHandler struct {
	base
}

var _ Handler = &RevokedHandler{}

func (h *RevokedHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if !subscription.CanExpire(sub) && sub.Status != subscription.StatusExpired {
		return response.FAIL, response.ErrSubscriptionCannotCancel(sub.ID, string(sub.Status))
	}
	payment, err := h.Repository.GetPayment(ctx, args.Snapshot.OrderID)
	if err != nil {
		return response.FAIL, err
	}
	if payment == nil {
		return response.FAIL, response.ErrPaymentTransactionNotFound(args.Snapshot.OrderID)
	}
	payments, err := h.Repository.ListPayments(ctx, sub.ID)
	if err != nil {
		return response.FAIL, err
	}
	until := revokedUntil(sub, payment, payments)

	if payment.Status == subscription.PaymentCanceled &&
		sub.Status == subscription.StatusExpired && subscription.SameDay(sub.ValidUntil, until) {
		logger.Info("Revocation already recorded")
		return response.SUCCESS, nil
	}

	wasLive := sub.Status != subscription.StatusExpired
	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		payment.Status = subscription.PaymentCanceled
		payment.Payload = spec.Payload(args.Snapshot.Raw)
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		return h.transition(ctx, tx, sub, func(s *subscription.Subscription) {
			subscription.Expire(s, until, subscription.ReasonGoogleRevoked)
		})
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Payment revoked",
		zap.String("SubscriptionID", sub.ID),
		zap.String("PaymentID", payment.ID),
		zap.Time("ValidUntil", until),
	)
	if wasLive {
		h.publish(args, eventFor(spec.EventSubscriptionCanceled, sub, args.Snapshot.CountryCode))
	}
	return response.SUCCESS, nil
}

// revokedUntil is the paid until date of the newest approved payment other than the revoked one,
// or the start of the subscription when there is none
func revokedUntil(sub *subscription.Subscription, revoked *subscription.PaymentTransaction, payments []subscription.PaymentTransaction) time.Time {
	for _, p := range payments {
		if p.ID == revoked.ID || p.Status != subscription.PaymentApproved {
			continue
		}
		return purchase.Date(p.PaidUntil)
	}
	return purchase.Date(sub.ValidFrom)
}
