package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/spec"
	"github.com/zllovesuki/rtdn/subscription"

	"github.com/shopspring/decimal"
)

type creation struct {
	UserID   string
	Token    string
	Plan     subscription.Plan
	Snapshot *purchase.Snapshot
	Reason   subscription.ChangeReason
	Category subscription.Category
	// Upgrade payments are not charged by Google until the next renewal
	Upgrade bool
}

// create starts a new subscription lineage for the token: payment method if missing,
// subscription and its first payment. Callers must run it inside a transaction
func (b *base) create(ctx context.Context, repo subscription.Repository, c creation) (*subscription.Subscription, *subscription.PaymentTransaction, error) {
	pm, err := repo.GetPaymentMethod(ctx, c.Token)
	if err != nil {
		return nil, nil, err
	}
	if pm == nil {
		pm = &subscription.PaymentMethod{
			UserID:              c.UserID,
			Method:              subscription.MethodGoogle,
			ExternalRecurringID: c.Token,
		}
		if err := repo.CreatePaymentMethod(ctx, pm); err != nil {
			return nil, nil, err
		}
	}

	s := c.Snapshot
	sub := &subscription.Subscription{
		UserID:          c.UserID,
		PlanID:          c.Plan.ID,
		Provider:        subscription.ProviderGoogle,
		Status:          subscription.StatusCreated,
		PaymentMethodID: pm.ID,
	}
	subscription.Create(sub, b.today(), c.Reason)
	if !s.AutoRenewing {
		until := s.ExpiryDate()
		sub.ValidUntil = &until
	}
	if s.IsFreeTrial() {
		from, until := purchase.Date(s.StartTime), s.ExpiryDate()
		sub.FreeTrialFrom = &from
		sub.FreeTrialUntil = &until
	}
	if err := repo.Create(ctx, sub); err != nil {
		return nil, nil, err
	}

	payment := newPayment(sub, s, c.Category)
	if c.Upgrade {
		payment.Amount = decimal.Zero
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, nil, err
	}
	return sub, payment, nil
}

// newPayment derives a payment transaction for sub from the snapshot
func newPayment(sub *subscription.Subscription, s *purchase.Snapshot, category subscription.Category) *subscription.PaymentTransaction {
	p := &subscription.PaymentTransaction{
		ExternalTransactionID: s.OrderID,
		SubscriptionID:        sub.ID,
		PlanID:                sub.PlanID,
		UserID:                sub.UserID,
		Amount:                s.Price,
		Currency:              s.Currency,
		Country:               s.CountryCode,
		Status:                paymentStatus(s),
		Category:              category,
		Type:                  subscription.TypePayment,
		PaidUntil:             s.ExpiryTime,
		Payload:               spec.Payload(s.Raw),
	}
	if category != subscription.CategoryInitial {
		p.Amount = s.ChargedPrice()
	}
	switch {
	case s.IsFreeTrial():
		p.Amount = decimal.Zero
		p.Type = subscription.TypeFreeTrial
	case category == subscription.CategoryInitial && s.IntroductoryPrice != nil:
		p.Amount = s.IntroductoryPrice.Amount
		p.Currency = s.IntroductoryPrice.Currency
		p.Type = subscription.TypeIntroductoryPayment
	}
	return p
}

func paymentStatus(s *purchase.Snapshot) subscription.PaymentStatus {
	if s.PaymentState == nil {
		if s.IsAcknowledged() {
			return subscription.PaymentApproved
		}
		return subscription.PaymentPending
	}
	switch *s.PaymentState {
	case purchase.PaymentReceived, purchase.PaymentFreeTrial:
		return subscription.PaymentApproved
	default:
		return subscription.PaymentPending
	}
}

// variant labels the start event with the kind of first payment
func variant(p *subscription.PaymentTransaction) string {
	switch p.Type {
	case subscription.TypeFreeTrial:
		return "free_trial"
	case subscription.TypeIntroductoryPayment:
		return "introductory"
	default:
		return "paid"
	}
}
