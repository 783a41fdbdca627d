package handler

import (
	"github.com/zllovesuki/rtdn/subscription"
)

// Registry maps every notification type to its handler. Types without one resolve to the unknown handler
type Registry struct {
	handlers map[NotificationType]Handler
	unknown  Handler
}

func NewRegistry(option Options) (*Registry, error) {
	if err := option.validate(); err != nil {
		return nil, err
	}
	b := base{Options: option}
	return &Registry{
		handlers: map[NotificationType]Handler{
			TypeRecovered:            &RecoveredHandler{base: b},
			TypeRenewed:              &RenewedHandler{base: b},
			TypeCanceled:             &CanceledHandler{base: b},
			TypePurchased:            &PurchasedHandler{base: b},
			TypeOnHold:               &SuspendHandler{base: b, reason: subscription.ReasonGoogleOnHold},
			TypeInGracePeriod:        &GracePeriodHandler{base: b},
			TypeRestarted:            &RestartedHandler{base: b},
			TypePriceChangeConfirmed: &IgnoreHandler{base: b},
			TypeDeferred:             &DeferredHandler{base: b},
			TypePaused:               &SuspendHandler{base: b, reason: subscription.ReasonGooglePaused},
			TypePauseScheduleChanged: &PauseScheduleHandler{base: b},
			TypeRevoked:              &RevokedHandler{base: b},
			TypeExpired:              &ExpiredHandler{base: b},
		},
		unknown: &UnknownHandler{base: b},
	}, nil
}

// Get never returns nil
func (r *Registry) Get(t NotificationType) Handler {
	if h, ok := r.handlers[t]; ok {
		return h
	}
	return r.unknown
}
