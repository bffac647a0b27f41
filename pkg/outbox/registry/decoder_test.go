package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
)

func TestDecoderRegistryCustomDecoder(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOfferCreated, 2, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventOfferCreated, 2, json.RawMessage(`{"title":"Weekend"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Weekend"}, output)

	_, err = reg.Decode(enums.EventOfferCreated, 3, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestPayloadDecodersOrderPlaced(t *testing.T) {
	reg := NewPayloadDecoders()
	orderID := uuid.New()
	raw, err := json.Marshal(payloads.OrderPlacedEvent{OrderID: orderID, OrderNumber: "GM1", TotalCents: 1234})
	require.NoError(t, err)

	out, err := reg.Decode(enums.EventOrderPlaced, 1, raw)
	require.NoError(t, err)
	evt, ok := out.(*payloads.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, evt.OrderID)
	assert.Equal(t, int64(1234), evt.TotalCents)
}

func TestPayloadDecodersRejectsMalformed(t *testing.T) {
	reg := NewPayloadDecoders()
	_, err := reg.Decode(enums.EventLowStockDetected, 1, json.RawMessage(`{"products":"nope"}`))
	require.Error(t, err)
}
