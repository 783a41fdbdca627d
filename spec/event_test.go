package spec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEventProtoRoundTrip(t *testing.T) {
	until := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	e := Event{
		Type:           EventSubscriptionChanged,
		SubscriptionID: "sub-new",
		UserID:         "user-1",
		PlanID:         "plan-yearly",
		PreviousPlanID: "plan-monthly",
		Status:         "Active",
		Country:        "SE",
		ValidUntil:     &until,
		OccurredAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	pb, err := e.ToProto()
	require.NoError(t, err)

	b, err := proto.Marshal(pb)
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, proto.Unmarshal(b, &decoded))

	var got Event
	require.NoError(t, got.FromProto(&decoded))
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.PreviousPlanID, got.PreviousPlanID)
	assert.Equal(t, e.Country, got.Country)
	require.NotNil(t, got.ValidUntil)
	assert.True(t, until.Equal(*got.ValidUntil))
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
	assert.Equal(t, "subscription.subscription_changed", e.RoutingKey())
}

func TestPayloadScanValue(t *testing.T) {
	p, err := NewPayload(map[string]interface{}{"orderId": "GPA.1", "autoRenewing": true})
	require.NoError(t, err)

	v, err := p.Value()
	require.NoError(t, err)

	var scanned Payload
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, "GPA.1", scanned["orderId"])
	assert.Equal(t, true, scanned["autoRenewing"])

	var empty Payload
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
}
