package subscription

import (
	"time"

	"github.com/zllovesuki/rtdn/spec"

	"github.com/shopspring/decimal"
)

// PaymentTransaction is an append-only record of one charge event reported by the provider
type PaymentTransaction struct {
	ID                    string          `json:"id" gorm:"primaryKey"`
	ExternalTransactionID string          `json:"externalTransactionId" gorm:"uniqueIndex;not null"` // Provider's order id, the idempotency key
	SubscriptionID        string          `json:"subscriptionId" gorm:"index;not null"`
	PlanID                string          `json:"planId" gorm:"not null"`
	UserID                string          `json:"userId" gorm:"index;not null"`
	Amount                decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency              string          `json:"currency"`
	Country               string          `json:"country"`
	Status                PaymentStatus   `json:"status" gorm:"not null"`
	Category              Category        `json:"category" gorm:"not null"`
	Type                  PaymentType     `json:"type" gorm:"not null"`
	PaidUntil             time.Time       `json:"paidUntil"` // Date the payment covers through
	Payload               spec.Payload    `json:"payload"`   // Raw provider response
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}
