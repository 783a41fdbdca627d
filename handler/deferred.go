package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"

	"go.uber.org/zap"
)

// DeferredHandler moves the paid until date of the current payment. No rows are created
type DeferredHandler struct {
	base
}

var _ Handler = &DeferredHandler{}

func (h *DeferredHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	payment, err := h.Repository.GetPayment(ctx, args.Snapshot.OrderID)
	if err != nil {
		return response.FAIL, err
	}
	if payment == nil {
		return response.FAIL, response.ErrPaymentTransactionNotFound(args.Snapshot.OrderID)
	}

	payment.PaidUntil = args.Snapshot.ExpiryTime
	payment.Payload = spec.Payload(args.Snapshot.Raw)
	if err := h.Repository.UpdatePayment(ctx, payment); err != nil {
		return response.FAIL, err
	}

	h.logger(args).Info("Payment deferred",
		zap.String("SubscriptionID", sub.ID),
		zap.String("PaymentID", payment.ID),
		zap.Time("PaidUntil", payment.PaidUntil),
	)
	return response.SUCCESS, nil
}
