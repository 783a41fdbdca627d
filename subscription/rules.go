package subscription

import (
	"time"

	"github.com/samber/lo"
)

// Rules tell whether a transition is allowed from the current status

func CanActivate(s *Subscription) bool {
	return lo.Contains([]Status{StatusCreated, StatusActive, StatusGracePeriod}, s.Status)
}

// CanCancel requires a live subscription with no end date scheduled yet
func CanCancel(s *Subscription) bool {
	return lo.Contains([]Status{StatusActive, StatusGracePeriod}, s.Status) && s.ValidUntil == nil
}

func CanExpire(s *Subscription) bool {
	return lo.Contains([]Status{StatusActive, StatusGracePeriod}, s.Status)
}

func CanResubscribe(s *Subscription) bool {
	return CanActivate(s)
}

// Actions mutate the subscription in place. They do not persist anything

func Create(s *Subscription, today time.Time, reason ChangeReason) {
	s.Status = StatusActive
	s.ValidFrom = today
	s.ChangeReason = reason
}

func Activate(s *Subscription, reason ChangeReason) {
	s.Status = StatusActive
	s.ValidUntil = nil
	s.GracePeriodUntil = nil
	s.ChangeReason = reason
}

func EnterGracePeriod(s *Subscription, until time.Time, reason ChangeReason) {
	s.Status = StatusGracePeriod
	s.ValidUntil = nil
	s.GracePeriodUntil = &until
	s.ChangeReason = reason
}

// Cancel keeps the subscription usable until the given date
func Cancel(s *Subscription, until time.Time, reason ChangeReason) {
	s.Status = StatusActive
	s.ValidUntil = &until
	s.GracePeriodUntil = nil
	s.ChangeReason = reason
}

func Expire(s *Subscription, until time.Time, reason ChangeReason) {
	s.Status = StatusExpired
	s.ValidUntil = &until
	s.GracePeriodUntil = nil
	s.ChangeReason = reason
}

func Resubscribe(s *Subscription, reason ChangeReason) {
	Activate(s, reason)
}

// SameDay compares two optional dates by their UTC day
func SameDay(a *time.Time, b time.Time) bool {
	if a == nil {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
