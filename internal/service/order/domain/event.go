// internal/service/order/domain/event.go
package domain

import "time"

// OrderEvent 是订单提交或取消成功后对外发布的事件
type OrderEvent struct {
	EventID    string           `json:"eventId"`
	Type       string           `json:"type"`
	OrderID    int64            `json:"orderId"`
	CustomerID int64            `json:"customerId"`
	Status     State            `json:"status"`
	Total      string           `json:"total"`
	Items      []OrderEventItem `json:"items"`
	OccurredAt time.Time        `json:"occurredAt"`
}

type OrderEventItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// NewOrderEvent 由订单聚合生成事件快照
func NewOrderEvent(eventID, eventType string, order *Order) *OrderEvent {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		})
	}
	return &OrderEvent{
		EventID:    eventID,
		Type:       eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.State,
		Total:      order.Total().StringFixed(2),
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}
