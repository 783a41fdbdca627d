package subscription

import "context"

// Repository persists subscriptions, their payment methods and payment transactions.
// Lookups return nil without error when nothing matches
type Repository interface {
	// Transaction runs fn atomically. Nested calls join the outer transaction
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// ListByToken returns Google subscriptions owning the purchase token, newest first
	ListByToken(ctx context.Context, purchaseToken string, statuses ...Status) ([]Subscription, error)
	Create(ctx context.Context, sub *Subscription) error
	// Transition persists the status and dates of sub only if it is still in expected status at the version it was read
	Transition(ctx context.Context, sub *Subscription, expected Status) error

	GetPaymentMethod(ctx context.Context, purchaseToken string) (*PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, pm *PaymentMethod) error

	GetPayment(ctx context.Context, orderID string) (*PaymentTransaction, error)
	ListPayments(ctx context.Context, subscriptionID string) ([]PaymentTransaction, error)
	CreatePayment(ctx context.Context, p *PaymentTransaction) error
	// UpdatePayment may only change status, paid until and the payload
	UpdatePayment(ctx context.Context, p *PaymentTransaction) error
}
