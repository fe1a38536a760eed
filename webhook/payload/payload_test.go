package payload

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("success - payment succeeded", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_1",
			"type": "payment.succeeded",
			"timestamp": "2024-01-01T12:00:00Z",
			"data": {
				"order_id": "order_1",
				"amount": "49.90",
				"currency": "USD",
				"customer": {"email": "ana@example.com", "first_name": "Ana"},
				"line_items": [{"title": "Mug", "quantity": 2, "price": 24.95}]
			}
		}`)

		e, err := Parse(body)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", e.ID)
		assert.Equal(t, "payment.succeeded", e.Type)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), e.Timestamp)

		data, err := e.Payment()
		require.NoError(t, err)
		assert.Equal(t, "order_1", data.OrderID)
		assert.True(t, decimal.RequireFromString("49.90").Equal(data.Amount))
		require.Len(t, data.LineItems, 1)
		assert.Equal(t, "24.95", data.LineItems[0].Price.StringFixed(2))
		assert.Nil(t, data.ShippingAddress)
	})

	t.Run("success - order id ignores the rest of data", func(t *testing.T) {
		e, err := Parse([]byte(`{"id":"evt_3","type":"payment.failed","data":{"order_id":1001,"amount":"n/a","metadata":{"attempt":2}}}`))
		require.NoError(t, err)

		id, err := e.OrderID()
		require.NoError(t, err)
		assert.Equal(t, "1001", id)

		_, err = e.Payment()
		assert.Error(t, err, "amount is not a number")
	})

	t.Run("success - metadata values of any type", func(t *testing.T) {
		e, err := Parse([]byte(`{"id":"evt_4","type":"payment.succeeded","data":{"order_id":"o","metadata":{"attempt":2,"channel":"web"}}}`))
		require.NoError(t, err)

		data, err := e.Payment()
		require.NoError(t, err)
		assert.Equal(t, float64(2), data.Metadata["attempt"])
		assert.Equal(t, "web", data.Metadata["channel"])
	})

	t.Run("success - timestamp is optional", func(t *testing.T) {
		e, err := Parse([]byte(`{"id":"evt_2","type":"order.created","data":{"order_id":"o"}}`))
		require.NoError(t, err)
		assert.True(t, e.Timestamp.IsZero())
	})

	t.Run("error - invalid JSON", func(t *testing.T) {
		_, err := Parse([]byte(`{"id":`))
		assert.Error(t, err)
	})

	t.Run("error - missing id", func(t *testing.T) {
		_, err := Parse([]byte(`{"type":"payment.failed","data":{}}`))
		assert.ErrorContains(t, err, "id is required")
	})

	t.Run("error - bad type", func(t *testing.T) {
		_, err := Parse([]byte(`{"id":"evt","type":"payment-failed","data":{}}`))
		assert.ErrorContains(t, err, "type must be hierarchical")
	})

	t.Run("error - missing data", func(t *testing.T) {
		_, err := Parse([]byte(`{"id":"evt","type":"payment.failed"}`))
		assert.ErrorContains(t, err, "data is required")
	})

	t.Run("error - bad timestamp", func(t *testing.T) {
		_, err := Parse([]byte(`{"id":"evt","type":"payment.failed","timestamp":"yesterday","data":{}}`))
		assert.ErrorContains(t, err, "parsing timestamp")
	})
}

func TestNew(t *testing.T) {
	t.Run("success - round trips through Bytes", func(t *testing.T) {
		e, err := New("evt_9", "order.fulfilled", map[string]string{"order_id": "order_9"})
		require.NoError(t, err)

		raw, err := e.Bytes()
		require.NoError(t, err)

		back, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, e.ID, back.ID)
		assert.Equal(t, e.Type, back.Type)
		assert.True(t, e.Timestamp.Equal(back.Timestamp))
	})

	t.Run("error - data cannot be marshaled", func(t *testing.T) {
		_, err := New("evt", "test.event", make(chan int))
		assert.ErrorContains(t, err, "marshaling data")
	})

	t.Run("error - invalid type", func(t *testing.T) {
		_, err := New("evt", "", map[string]string{})
		assert.ErrorContains(t, err, "validating payload")
	})
}

func TestMatchesEventType(t *testing.T) {
	assert.True(t, MatchesEventType("payment.succeeded", nil))
	assert.True(t, MatchesEventType("payment.succeeded", []string{"payment.succeeded"}))
	assert.True(t, MatchesEventType("payment.succeeded", []string{"order.*", "payment.*"}))
	assert.False(t, MatchesEventType("payments.succeeded", []string{"payment.*"}))
	assert.False(t, MatchesEventType("payment", []string{"payment.*"}))
	assert.False(t, MatchesEventType("order.created", []string{"payment.succeeded"}))
}

func TestValidateEventType(t *testing.T) {
	assert.NoError(t, ValidateEventType("payment.succeeded"))
	assert.NoError(t, ValidateEventType("payment.*"))
	assert.Error(t, ValidateEventType(""))
	assert.Error(t, ValidateEventType("orders/create"))
}
