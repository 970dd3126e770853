package chain

import (
	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/domain/port"
)

// NotificationHandler 是责任链的最后一步，订单已提交，发送失败只记录日志。
type NotificationHandler struct {
	NextHandler
	notifier port.NotificationProducer
}

func NewNotificationHandler(notifier port.NotificationProducer) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	if h.notifier == nil {
		return h.executeNext(orderCtx)
	}
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.Notification")
	defer span.End()

	if err := h.notifier.SendOrderPlaced(ctx, orderCtx.Order); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", orderCtx.Order.ID).Msg("failed to publish order placed event")
		span.RecordError(err)
	}

	return h.executeNext(orderCtx)
}
