package spec

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

type EventType string

// Domain events produced for downstream consumers
const (
	EventSubscriptionStarted           EventType = "subscription_started"
	EventSubscriptionCanceled          EventType = "subscription_canceled"
	EventSubscriptionRenewalError      EventType = "subscription_renewal_error"
	EventSubscriptionChanged           EventType = "subscription_changed"
	EventSubscriptionSuccessfulRenewal EventType = "subscription_successful_renewal"
)

// Event describes a change in a subscription that other systems may react to.
// Fields that do not apply to a given Type are left empty
type Event struct {
	Type           EventType
	SubscriptionID string
	UserID         string
	PlanID         string
	PreviousPlanID string
	Status         string
	Country        string
	Variant        string
	ValidUntil     *time.Time
	OccurredAt     time.Time
}

// RoutingKey is used as the AMQP routing key so consumers can bind by event type
func (e *Event) RoutingKey() string {
	return "subscription." + string(e.Type)
}

func (e *Event) ToProto() (*structpb.Struct, error) {
	m := map[string]interface{}{
		"type":           string(e.Type),
		"subscriptionId": e.SubscriptionID,
		"userId":         e.UserID,
		"planId":         e.PlanID,
		"status":         e.Status,
		"occurredAt":     e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.PreviousPlanID != "" {
		m["previousPlanId"] = e.PreviousPlanID
	}
	if e.Country != "" {
		m["country"] = e.Country
	}
	if e.Variant != "" {
		m["variant"] = e.Variant
	}
	if e.ValidUntil != nil {
		m["validUntil"] = e.ValidUntil.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(m)
}

func (e *Event) FromProto(pb *structpb.Struct) error {
	fields := pb.GetFields()
	str := func(key string) string {
		return fields[key].GetStringValue()
	}
	e.Type = EventType(str("type"))
	e.SubscriptionID = str("subscriptionId")
	e.UserID = str("userId")
	e.PlanID = str("planId")
	e.PreviousPlanID = str("previousPlanId")
	e.Status = str("status")
	e.Country = str("country")
	e.Variant = str("variant")
	occurred, err := time.Parse(time.RFC3339, str("occurredAt"))
	if err != nil {
		return err
	}
	e.OccurredAt = occurred
	if v := str("validUntil"); v != "" {
		until, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		e.ValidUntil = &until
	}
	return nil
}
