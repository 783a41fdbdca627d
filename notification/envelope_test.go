package notification

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/zllovesuki/rtdn/handler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func pushBody(t *testing.T, messageID string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{
		"message": map[string]interface{}{
			"data":       base64.StdEncoding.EncodeToString(raw),
			"message_id": messageID,
		},
		"subscription": "projects/p/subscriptions/rtdn",
	})
	require.NoError(t, err)
	return body
}

func subscriptionData(typ handler.NotificationType, token string) map[string]interface{} {
	return map[string]interface{}{
		"version":         "1.0",
		"packageName":     "com.example.app",
		"eventTimeMillis": "1773144000000",
		"subscriptionNotification": map[string]interface{}{
			"version":          "1.0",
			"notificationType": int(typ),
			"purchaseToken":    token,
			"subscriptionId":   "pro.monthly",
		},
	}
}

func TestDecodeKinds(t *testing.T) {
	d, err := NewDecoder(zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name string
		data interface{}
		kind Kind
	}{
		{"subscription", subscriptionData(handler.TypeRenewed, "token-1"), KindSubscription},
		{"test", map[string]interface{}{"testNotification": map[string]interface{}{"version": "1.0"}}, KindTest},
		{"one time purchase", map[string]interface{}{"oneTimePurchaseNotification": map[string]interface{}{"sku": "coins"}}, KindOneTimePurchase},
		{"one time product", map[string]interface{}{"oneTimeProductNotification": map[string]interface{}{"sku": "coins"}}, KindOneTimePurchase},
		{"null test", map[string]interface{}{"testNotification": nil}, KindUnknown},
		{"unknown", map[string]interface{}{"voidedPurchaseNotification": map[string]interface{}{}}, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := d.Decode(pushBody(t, "m-1", tt.data))
			require.NotNil(t, env)
			assert.Equal(t, "m-1", env.MessageID)
			assert.Equal(t, tt.kind, env.Kind())
		})
	}
}

func TestDecodeSubscriptionNotification(t *testing.T) {
	d, err := NewDecoder(zap.NewNop())
	require.NoError(t, err)

	env := d.Decode(pushBody(t, "m-1", subscriptionData(handler.TypeCanceled, "token-1")))
	require.NotNil(t, env)
	n := env.Notification.SubscriptionNotification
	require.NotNil(t, n)
	assert.Equal(t, handler.TypeCanceled, n.Type())
	assert.Equal(t, "token-1", n.PurchaseToken)
	assert.Equal(t, "pro.monthly", n.SubscriptionID)
	assert.Equal(t, "com.example.app", env.Notification.PackageName)
}

func TestDecodeCamelCaseMessageID(t *testing.T) {
	d, err := NewDecoder(zap.NewNop())
	require.NoError(t, err)

	data := base64.StdEncoding.EncodeToString([]byte(`{"testNotification":{"version":"1.0"}}`))
	env := d.Decode([]byte(`{"message":{"data":"` + data + `","messageId":"m-2"}}`))
	require.NotNil(t, env)
	assert.Equal(t, "m-2", env.MessageID)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		log  string
	}{
		{"not json", `{"message":`, "Push body is not valid JSON"},
		{"no message", `{"subscription":"s"}`, "Push body has no message"},
		{"no data", `{"message":{"message_id":"m-1"}}`, "Push message has no data"},
		{"bad base64", `{"message":{"data":"%%%","message_id":"m-1"}}`, "Push message data is not valid base64"},
		{"data not json", `{"message":{"data":"` + base64.StdEncoding.EncodeToString([]byte("hello")) + `","message_id":"m-1"}}`, "Push message data is not a valid JSON notification"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			d, err := NewDecoder(zap.New(core))
			require.NoError(t, err)

			assert.Nil(t, d.Decode([]byte(tt.body)))
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.log, logs.All()[0].Message)
		})
	}
}
