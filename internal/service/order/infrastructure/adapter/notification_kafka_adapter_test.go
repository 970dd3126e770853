package adapter

import (
	"context"
	"encoding/json"
	"testing"

	"backoffice/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestNotificationKafkaAdapter(t *testing.T) {
	writer := &recordingWriter{}
	adapter := NewNotificationKafkaAdapter(writer)

	order := &domain.Order{ID: 12, CustomerID: 4, State: domain.StatePending, Items: []*domain.LineItem{
		{ProductID: 1, Quantity: 3, Price: decimal.RequireFromString("2.50"), Tax: decimal.RequireFromString("0.50")},
	}}
	require.NoError(t, adapter.SendOrderPlaced(context.Background(), order))

	order.State = domain.StateCancelled
	require.NoError(t, adapter.SendOrderCancelled(context.Background(), order))

	require.Len(t, writer.messages, 2)
	assert.Equal(t, "12", string(writer.messages[0].Key))

	var placed, cancelled domain.OrderEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &placed))
	require.NoError(t, json.Unmarshal(writer.messages[1].Value, &cancelled))

	assert.Equal(t, domain.EventOrderPlaced, placed.Type)
	assert.Equal(t, "8.00", placed.Total)
	assert.Equal(t, "2.50", placed.Items[0].Price)
	assert.NotEmpty(t, placed.EventID)

	assert.Equal(t, domain.EventOrderCancelled, cancelled.Type)
	assert.Equal(t, domain.StateCancelled, cancelled.Status)
	assert.NotEqual(t, placed.EventID, cancelled.EventID)
}
