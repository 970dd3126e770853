package chain

import (
	"strings"

	"backoffice/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ValidationHandler 在任何持久化动作之前拒绝无效请求。
type ValidationHandler struct {
	NextHandler
}

func (h *ValidationHandler) Handle(orderCtx *OrderContext) error {
	_, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.Validation")
	defer span.End()

	req := orderCtx.Request
	span.SetAttributes(attribute.Int("order.items", len(req.Items)))

	if req.CustomerID <= 0 && strings.TrimSpace(req.CustomerEmail) == "" {
		span.SetStatus(codes.Error, "customer missing")
		return domain.ErrCustomerRequired
	}
	if err := domain.ValidateItems(req.Items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid items")
		return err
	}

	return h.executeNext(orderCtx)
}
