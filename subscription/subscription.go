package subscription

import "time"

// Subscription is one billing relationship between a user and a provider
type Subscription struct {
	ID               string       `json:"id" gorm:"primaryKey"`
	UserID           string       `json:"userId" gorm:"index;not null"`
	PlanID           string       `json:"planId" gorm:"not null"`
	Provider         Provider     `json:"provider" gorm:"not null"`
	Status           Status       `json:"status" gorm:"index;not null"`
	ValidFrom        time.Time    `json:"validFrom"`
	ValidUntil       *time.Time   `json:"validUntil"`       // Set once a cancellation or expiry is scheduled or has happened
	GracePeriodUntil *time.Time   `json:"gracePeriodUntil"` // Only set while Status is GracePeriod
	FreeTrialFrom    *time.Time   `json:"freeTrialFrom"`
	FreeTrialUntil   *time.Time   `json:"freeTrialUntil"`
	PaymentMethodID  string       `json:"paymentMethodId" gorm:"index;not null"`
	ChangeReason     ChangeReason `json:"changeReason"`
	Version          int64        `json:"-" gorm:"not null;default:0"` // Incremented on every transition, used for conditional updates
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// PaymentMethod holds the provider's recurring handle. For Google it is the purchase token
type PaymentMethod struct {
	ID                  string    `json:"id" gorm:"primaryKey"`
	UserID              string    `json:"userId" gorm:"index;not null"`
	Method              string    `json:"method" gorm:"not null"`
	ExternalRecurringID string    `json:"externalRecurringId" gorm:"uniqueIndex;not null"`
	CreatedAt           time.Time `json:"createdAt"`
}

// IsHandleable reports if notifications may still act on this subscription
func (s *Subscription) IsHandleable() bool {
	switch s.Status {
	case StatusActive, StatusGracePeriod, StatusExpired:
		return true
	}
	return false
}
