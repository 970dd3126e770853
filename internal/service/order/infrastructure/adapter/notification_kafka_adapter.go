package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/domain"

	"github.com/google/uuid"
)

// NotificationKafkaAdapter 实现了 port.NotificationProducer 接口，
// 把订单事件发布到 Kafka，消息 key 为订单 ID。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// SendOrderPlaced 发布 order.placed 事件
func (a *NotificationKafkaAdapter) SendOrderPlaced(ctx context.Context, order *domain.Order) error {
	return a.publish(ctx, domain.EventOrderPlaced, order)
}

// SendOrderCancelled 发布 order.cancelled 事件
func (a *NotificationKafkaAdapter) SendOrderCancelled(ctx context.Context, order *domain.Order) error {
	return a.publish(ctx, domain.EventOrderCancelled, order)
}

func (a *NotificationKafkaAdapter) publish(ctx context.Context, eventType string, order *domain.Order) error {
	event := domain.NewOrderEvent(uuid.NewString(), eventType, order)
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(order.ID, 10)), eventBytes)
}
