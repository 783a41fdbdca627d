package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// PurchasedHandler records a new purchase, or a plan upgrade when the purchase replaces a linked token
type PurchasedHandler struct {
	base
}

var _ Handler = &PurchasedHandler{}

func (h *PurchasedHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	upgrade, err := ClassifyUpgrade(ctx, h.Repository, args.PurchaseToken, args.Snapshot)
	if err != nil {
		return response.FAIL, err
	}
	if upgrade {
		return h.changePlan(ctx, args, upgradeChange)
	}
	return h.purchase(ctx, args)
}

func (h *PurchasedHandler) purchase(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	exists, err := PaymentExists(ctx, h.Repository, args.Snapshot.OrderID)
	if err != nil {
		return response.FAIL, err
	}
	if exists {
		logger.Info("Purchase already recorded")
		return response.SUCCESS, nil
	}
	active, err := h.active(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}
	if active != nil {
		logger.Info("Purchase token already has a live subscription",
			zap.String("SubscriptionID", active.ID),
		)
		return response.SUCCESS, nil
	}

	plan, err := h.plan(args.SubscriptionID)
	if err != nil {
		return response.FAIL, err
	}

	var (
		sub     *subscription.Subscription
		payment *subscription.PaymentTransaction
	)
	err = h.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		userID, err := h.owner(ctx, tx, args)
		if err != nil {
			return err
		}
		sub, payment, err = h.create(ctx, tx, creation{
			UserID:   userID,
			Token:    args.PurchaseToken,
			Plan:     plan,
			Snapshot: args.Snapshot,
			Reason:   subscription.ReasonGoogleNew,
			Category: subscription.CategoryInitial,
		})
		return err
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription started",
		zap.String("SubscriptionID", sub.ID),
		zap.String("PlanID", sub.PlanID),
		zap.String("PaymentType", string(payment.Type)),
	)

	e := eventFor(spec.EventSubscriptionStarted, sub, args.Snapshot.CountryCode)
	e.Variant = variant(payment)
	h.publish(args, e)
	return response.SUCCESS, nil
}

// owner resolves the user of a purchase from its registered payment method, then the account id set by the app
func (h *PurchasedHandler) owner(ctx context.Context, repo subscription.Repository, args Args) (string, error) {
	pm, err := repo.GetPaymentMethod(ctx, args.PurchaseToken)
	if err != nil {
		return "", err
	}
	if pm != nil {
		return pm.UserID, nil
	}
	if len(args.Snapshot.ExternalAccountID) > 0 {
		return args.Snapshot.ExternalAccountID, nil
	}
	return "", response.ErrPurchaseOwnerUnknown(args.PurchaseToken)
}
