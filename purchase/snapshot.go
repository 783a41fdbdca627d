package purchase

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState reported by Google Play for a subscription purchase
type PaymentState int64

const (
	PaymentPending   PaymentState = 0
	PaymentReceived  PaymentState = 1
	PaymentFreeTrial PaymentState = 2
	PaymentDeferred  PaymentState = 3
)

// CancelReason reported by Google Play
type CancelReason int64

const (
	CancelByUser      CancelReason = 0
	CancelBySystem    CancelReason = 1
	CancelReplaced    CancelReason = 2
	CancelByDeveloper CancelReason = 3
)

// AcknowledgementState reported by Google Play
type AcknowledgementState int64

const (
	AcknowledgementPending      AcknowledgementState = 0
	AcknowledgementAcknowledged AcknowledgementState = 1
)

// IntroductoryPrice is present when the subscription was sold with an introductory price
type IntroductoryPrice struct {
	Currency string
	Amount   decimal.Decimal
	Period   string
	Cycles   int64
}

// Snapshot is the verified state of one purchase token at the time of verification
type Snapshot struct {
	StartTime            time.Time
	ExpiryTime           time.Time
	AutoResumeTime       *time.Time
	AutoRenewing         bool
	Currency             string
	Price                decimal.Decimal
	CountryCode          string
	PaymentState         *PaymentState
	CancelReason         *CancelReason
	UserCancellationTime *time.Time
	OrderID              string
	LinkedPurchaseToken  string
	Acknowledgement      AcknowledgementState
	IntroductoryPrice    *IntroductoryPrice
	ExternalAccountID    string

	// Raw is the provider response as received, kept for audit
	Raw map[string]interface{}
}

// FromMillis converts epoch milliseconds into UTC time. Zero means absent
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// FromMicros converts a price in micros into a decimal amount
func FromMicros(micros int64) decimal.Decimal {
	return decimal.New(micros, -6)
}

func (s *Snapshot) IsAcknowledged() bool {
	return s.Acknowledgement == AcknowledgementAcknowledged
}

func (s *Snapshot) IsFreeTrial() bool {
	return s.PaymentState != nil && *s.PaymentState == PaymentFreeTrial
}

func (s *Snapshot) HasLinkedPurchaseToken() bool {
	return len(s.LinkedPurchaseToken) > 0
}

// ExpiredAt reports whether the expiry time is at or before now
func (s *Snapshot) ExpiredAt(now time.Time) bool {
	return !s.ExpiryTime.After(now)
}

// ExpiryDate is the expiry truncated to its UTC day
func (s *Snapshot) ExpiryDate() time.Time {
	return Date(s.ExpiryTime)
}

// ChargedPrice is the price recorded on renewal payments: nothing is charged until the purchase is acknowledged
func (s *Snapshot) ChargedPrice() decimal.Decimal {
	if !s.IsAcknowledged() {
		return decimal.Zero
	}
	return s.Price
}

// Date truncates t to midnight UTC
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsImmediateCancel reports a cancellation that ends access now rather than at expiry
func (s *Snapshot) IsImmediateCancel() bool {
	return s.CancelReason != nil && *s.CancelReason == CancelReplaced
}
