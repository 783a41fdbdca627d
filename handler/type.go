package handler

// NotificationType is the subscription notification kind sent by Google Play
type NotificationType int

const (
	TypeUnknown              NotificationType = -1
	TypeRecovered            NotificationType = 1
	TypeRenewed              NotificationType = 2
	TypeCanceled             NotificationType = 3
	TypePurchased            NotificationType = 4
	TypeOnHold               NotificationType = 5
	TypeInGracePeriod        NotificationType = 6
	TypeRestarted            NotificationType = 7
	TypePriceChangeConfirmed NotificationType = 8
	TypeDeferred             NotificationType = 9
	TypePaused               NotificationType = 10
	TypePauseScheduleChanged NotificationType = 11
	TypeRevoked              NotificationType = 12
	TypeExpired              NotificationType = 13
)

func (t NotificationType) String() string {
	switch t {
	case TypeRecovered:
		return "RECOVERED"
	case TypeRenewed:
		return "RENEWED"
	case TypeCanceled:
		return "CANCELED"
	case TypePurchased:
		return "PURCHASED"
	case TypeOnHold:
		return "ON_HOLD"
	case TypeInGracePeriod:
		return "IN_GRACE_PERIOD"
	case TypeRestarted:
		return "RESTARTED"
	case TypePriceChangeConfirmed:
		return "PRICE_CHANGE_CONFIRMED"
	case TypeDeferred:
		return "DEFERRED"
	case TypePaused:
		return "PAUSED"
	case TypePauseScheduleChanged:
		return "PAUSE_SCHEDULE_CHANGED"
	case TypeRevoked:
		return "REVOKED"
	case TypeExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}
