package handler

import (
	"context"
	"sort"

	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"
)

// orderRank sorts statuses for handleable selection. Unlisted statuses are never handleable
var orderRank = map[subscription.Status]int{
	subscription.StatusActive:      0,
	subscription.StatusGracePeriod: 1,
	subscription.StatusExpired:     2,
}

// PaymentExists reports whether a payment transaction with the order id was already recorded.
// Handlers call it before creating rows so that replays are no-ops
func PaymentExists(ctx context.Context, repo subscription.Repository, orderID string) (bool, error) {
	if len(orderID) == 0 {
		return false, nil
	}
	p, err := repo.GetPayment(ctx, orderID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// SubscriptionForToken picks the subscription a notification for the token applies to:
// Active before GracePeriod before Expired, newest first within a status.
// Without a handleable one the newest subscription of any status is returned, so the
// state rules of the handler reject it. Nil when the token owns no subscription
func SubscriptionForToken(ctx context.Context, repo subscription.Repository, token string) (*subscription.Subscription, error) {
	subs, err := repo.ListByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	handleable := handleableOrder(subs)
	if len(handleable) == 0 {
		return &subs[0], nil
	}
	return &handleable[0], nil
}

func handleableOrder(subs []subscription.Subscription) []subscription.Subscription {
	filtered := make([]subscription.Subscription, 0, len(subs))
	for _, s := range subs {
		if s.IsHandleable() {
			filtered = append(filtered, s)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		ri, rj := orderRank[filtered[i].Status], orderRank[filtered[j].Status]
		if ri != rj {
			return ri < rj
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return filtered
}

// ClassifyUpgrade reports a plan change: the purchase replaces a linked token and
// the new token has no payment method registered yet
func ClassifyUpgrade(ctx context.Context, repo subscription.Repository, token string, snapshot *purchase.Snapshot) (bool, error) {
	if !snapshot.HasLinkedPurchaseToken() {
		return false, nil
	}
	pm, err := repo.GetPaymentMethod(ctx, token)
	if err != nil {
		return false, err
	}
	return pm == nil, nil
}

// LinkedDonor resolves the subscription being replaced by a plan change. Live donors are
// returned for expiry, an already expired donor is returned with live set to false.
// LinkedSubscriptionNotFound when the linked token owns nothing handleable
func LinkedDonor(ctx context.Context, repo subscription.Repository, linkedToken string) (donor *subscription.Subscription, live bool, err error) {
	subs, err := repo.ListByToken(ctx, linkedToken)
	if err != nil {
		return nil, false, err
	}
	subs = handleableOrder(subs)
	if len(subs) == 0 {
		return nil, false, response.ErrLinkedSubscriptionNotFound(linkedToken)
	}
	donor = &subs[0]
	return donor, donor.Status != subscription.StatusExpired, nil
}
