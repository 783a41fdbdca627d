package response

import "fmt"

// Level is the severity of a notification error, and decides how the processor reports it
type Level int

const (
	// LevelWarning is an expected condition. The notification fails and may be redelivered without alarm
	LevelWarning Level = iota
	// LevelError needs inspection. The notification fails and may be redelivered
	LevelError
	// LevelViolation is a transition that can never succeed. It is surfaced to the caller
	LevelViolation
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	case LevelViolation:
		return "Violation"
	default:
		return "Unknown"
	}
}

// Error is a typed notification error carrying its severity and a stable code
type Error struct {
	Level   Level
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so sentinel comparisons work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

func makeError(level Level, code string) *Error {
	return &Error{
		Level:   level,
		Code:    code,
		Message: code,
	}
}

// -----------------------------------------------
// warnings

func ErrPurchaseTokenAlreadyUsed(token string) *Error {
	return makeError(LevelWarning, "PurchaseTokenAlreadyUsed").
		WithMessage("Purchase token already used, purchase_token=%s", token)
}

func ErrPaymentTransactionNotFound(orderID string) *Error {
	return makeError(LevelWarning, "PaymentTransactionNotFound").
		WithMessage("Payment transaction not found, external_transaction_id=%s", orderID)
}

func ErrSubscriptionPlanNotFound(productID string) *Error {
	return makeError(LevelWarning, "SubscriptionPlanNotFound").
		WithMessage("Subscription plan not found, google_product_id=%s", productID)
}

func ErrPurchaseOwnerUnknown(token string) *Error {
	return makeError(LevelWarning, "PurchaseOwnerUnknown").
		WithMessage("Owner of purchase is unknown, purchase_token=%s", token)
}

func ErrTransitionConflict(id string) *Error {
	return makeError(LevelWarning, "TransitionConflict").
		WithMessage("Subscription was modified concurrently, id=%s", id)
}

// -----------------------------------------------
// errors

func ErrSubscriptionsMultipleActivePurchaseToken(token string) *Error {
	return makeError(LevelError, "SubscriptionsMultipleActivePurchaseToken").
		WithMessage("Multiple active subscriptions found, purchase_token=%s", token)
}

func ErrSubscriptionActiveNotFoundPurchaseToken(token string) *Error {
	return makeError(LevelError, "SubscriptionActiveNotFoundPurchaseToken").
		WithMessage("Active subscription not found, purchase_token=%s", token)
}

func ErrSubscriptionNotFound(token string) *Error {
	return makeError(LevelError, "SubscriptionNotFound").
		WithMessage("Subscription not found, purchase_token=%s", token)
}

func ErrPaymentMethodNotFound(token string) *Error {
	return makeError(LevelError, "PaymentMethodNotFound").
		WithMessage("Payment method not found, purchase_token=%s", token)
}

func ErrPaymentTransactionAlreadyExists(orderID string) *Error {
	return makeError(LevelError, "PaymentTransactionAlreadyExists").
		WithMessage("Payment transaction already exists, order_id=%s", orderID)
}

func ErrInvalidPurchaseToken(token string) *Error {
	return makeError(LevelError, "InvalidPurchaseToken").
		WithMessage("Invalid purchase token, purchase_token=%s", token)
}

// -----------------------------------------------
// state violations

func ErrSubscriptionCannotCancel(id, status string) *Error {
	return makeError(LevelViolation, "SubscriptionCannotCancel").
		WithMessage("Subscription cannot cancel, id=%s, status=%s", id, status)
}

func ErrSubscriptionCannotExpire(id, status string) *Error {
	return makeError(LevelViolation, "SubscriptionCannotExpire").
		WithMessage("Subscription cannot expire, id=%s, status=%s", id, status)
}

func ErrSubscriptionCannotResubscribe(id, status string) *Error {
	return makeError(LevelViolation, "SubscriptionCannotResubscribe").
		WithMessage("Subscription cannot resubscribe, id=%s, status=%s", id, status)
}

func ErrLinkedSubscriptionNotFound(token string) *Error {
	return makeError(LevelViolation, "LinkedSubscriptionNotFound").
		WithMessage("Linked subscription not found, linked_purchase_token=%s", token)
}
