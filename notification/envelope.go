package notification

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/zllovesuki/rtdn/handler"

	"go.uber.org/zap"
)

// Kind is the payload shape of a decoded developer notification
type Kind int

const (
	KindUnknown Kind = iota
	KindSubscription
	KindOneTimePurchase
	KindTest
)

func (k Kind) String() string {
	switch k {
	case KindSubscription:
		return "Subscription"
	case KindOneTimePurchase:
		return "OneTimePurchase"
	case KindTest:
		return "Test"
	default:
		return "Unknown"
	}
}

// PushRequest is the body Pub/Sub posts to a push endpoint
type PushRequest struct {
	Message      *PushMessage `json:"message" validate:"required"`
	Subscription string       `json:"subscription"`
}

type PushMessage struct {
	Data         *string           `json:"data" validate:"required"`
	MessageID    string            `json:"message_id"`
	AltMessageID string            `json:"messageId"`
	PublishTime  string            `json:"publish_time"`
	Attributes   map[string]string `json:"attributes"`
}

// ID prefers message_id, Pub/Sub sends both spellings
func (m *PushMessage) ID() string {
	if len(m.MessageID) > 0 {
		return m.MessageID
	}
	return m.AltMessageID
}

// SubscriptionNotification identifies the purchase a subscription notification is about
type SubscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType" validate:"required"`
	PurchaseToken    string `json:"purchaseToken" validate:"required"`
	SubscriptionID   string `json:"subscriptionId" validate:"required"`
}

func (s *SubscriptionNotification) Type() handler.NotificationType {
	return handler.NotificationType(s.NotificationType)
}

// DeveloperNotification is the decoded data of a push message. At most one notification field is set
type DeveloperNotification struct {
	Version                     string                    `json:"version"`
	PackageName                 string                    `json:"packageName"`
	EventTimeMillis             string                    `json:"eventTimeMillis"`
	SubscriptionNotification    *SubscriptionNotification `json:"subscriptionNotification"`
	OneTimePurchaseNotification json.RawMessage           `json:"oneTimePurchaseNotification"`
	OneTimeProductNotification  json.RawMessage           `json:"oneTimeProductNotification"`
	TestNotification            json.RawMessage           `json:"testNotification"`
}

// Envelope is a decoded push message
type Envelope struct {
	MessageID    string
	Notification DeveloperNotification
}

func (e *Envelope) Kind() Kind {
	n := e.Notification
	switch {
	case n.SubscriptionNotification != nil:
		return KindSubscription
	case present(n.TestNotification):
		return KindTest
	case present(n.OneTimePurchaseNotification), present(n.OneTimeProductNotification):
		return KindOneTimePurchase
	default:
		return KindUnknown
	}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Decoder turns push bodies into envelopes
type Decoder struct {
	Logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) (*Decoder, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Decoder{
		Logger: logger,
	}, nil
}

// Decode returns nil when the body cannot be decoded. Each failure is logged on its own
func (d *Decoder) Decode(body []byte) *Envelope {
	var req PushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		d.Logger.Warn("Push body is not valid JSON",
			zap.Error(err),
		)
		return nil
	}
	return d.DecodeRequest(&req)
}

func (d *Decoder) DecodeRequest(req *PushRequest) *Envelope {
	if req.Message == nil {
		d.Logger.Warn("Push body has no message",
			zap.String("Subscription", req.Subscription),
		)
		return nil
	}
	logger := d.Logger.With(zap.String("MessageID", req.Message.ID()))
	if req.Message.Data == nil {
		logger.Warn("Push message has no data")
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(*req.Message.Data)
	if err != nil {
		logger.Warn("Push message data is not valid base64",
			zap.Error(err),
		)
		return nil
	}
	env := &Envelope{
		MessageID: req.Message.ID(),
	}
	if err := json.Unmarshal(raw, &env.Notification); err != nil {
		logger.Warn("Push message data is not a valid JSON notification",
			zap.Error(err),
		)
		return nil
	}
	return env
}
