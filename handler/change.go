package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

type planChange struct {
	expireReason subscription.ChangeReason
	newReason    subscription.ChangeReason
	upgrade      bool
}

var (
	upgradeChange = planChange{
		expireReason: subscription.ReasonGoogleUpgradeExpire,
		newReason:    subscription.ReasonGoogleUpgradeNew,
		upgrade:      true,
	}
	downgradeChange = planChange{
		expireReason: subscription.ReasonGoogleDowngradeExpire,
		newReason:    subscription.ReasonGoogleDowngradeNew,
	}
)

// changePlan moves the lineage of the linked token onto the new token: the donor is expired
// today and a renewal subscription is created for the donor's user
func (b *base) changePlan(ctx context.Context, args Args, change planChange) (response.Result, error) {
	logger := b.logger(args).With(
		zap.String("LinkedPurchaseToken", args.Snapshot.LinkedPurchaseToken),
	)

	plan, err := b.plan(args.SubscriptionID)
	if err != nil {
		return response.FAIL, err
	}

	var (
		donor *subscription.Subscription
		sub   *subscription.Subscription
	)
	err = b.Repository.Transaction(ctx, func(tx subscription.Repository) error {
		var live bool
		var err error
		donor, live, err = LinkedDonor(ctx, tx, args.Snapshot.LinkedPurchaseToken)
		if err != nil {
			return err
		}
		exists, err := PaymentExists(ctx, tx, args.Snapshot.OrderID)
		if err != nil {
			return err
		}
		if exists {
			return response.ErrPaymentTransactionAlreadyExists(args.Snapshot.OrderID)
		}
		if live {
			today := b.today()
			err := b.transition(ctx, tx, donor, func(s *subscription.Subscription) {
				subscription.Expire(s, today, change.expireReason)
			})
			if err != nil {
				return err
			}
		}
		sub, _, err = b.create(ctx, tx, creation{
			UserID:   donor.UserID,
			Token:    args.PurchaseToken,
			Plan:     plan,
			Snapshot: args.Snapshot,
			Reason:   change.newReason,
			Category: subscription.CategoryRenewal,
			Upgrade:  change.upgrade,
		})
		return err
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription plan changed",
		zap.String("PreviousSubscriptionID", donor.ID),
		zap.String("SubscriptionID", sub.ID),
		zap.String("PreviousPlanID", donor.PlanID),
		zap.String("PlanID", sub.PlanID),
	)

	e := eventFor(spec.EventSubscriptionChanged, sub, args.Snapshot.CountryCode)
	e.PreviousPlanID = donor.PlanID
	b.publish(args, e)
	return response.SUCCESS, nil
}
