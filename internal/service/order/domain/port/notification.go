package port

import (
	"context"

	"backoffice/internal/service/order/domain"
)

// NotificationProducer 是订单事件的出站端口。
// 发送失败不影响已提交的订单，调用方只记录错误。
type NotificationProducer interface {
	// SendOrderPlaced 发送订单创建成功的事件。
	SendOrderPlaced(ctx context.Context, order *domain.Order) error

	// SendOrderCancelled 发送订单取消的事件。
	SendOrderCancelled(ctx context.Context, order *domain.Order) error
}
