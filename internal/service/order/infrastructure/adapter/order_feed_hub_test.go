package adapter

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/internal/service/order/domain"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOrderFeedHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewOrderFeedHub()
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	all := dialFeed(t, srv, "")
	onlyCustomer9 := dialFeed(t, srv, "?customerId=9")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	order := &domain.Order{ID: 5, CustomerID: 3, State: domain.StatePending, Items: []*domain.LineItem{
		{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(4)},
	}}
	require.NoError(t, hub.SendOrderPlaced(ctx, order))

	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := all.ReadMessage()
	require.NoError(t, err)

	var event domain.OrderEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, domain.EventOrderPlaced, event.Type)
	assert.Equal(t, int64(5), event.OrderID)
	assert.Equal(t, "8.00", event.Total)

	// customerId=9 的订阅者收不到客户 3 的订单
	require.NoError(t, onlyCustomer9.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = onlyCustomer9.ReadMessage()
	assert.Error(t, err)
}

func TestOrderFeedHub_RejectsBadCustomerID(t *testing.T) {
	hub := NewOrderFeedHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?customerId=abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
