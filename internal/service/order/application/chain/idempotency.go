package chain

import (
	"context"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// OrderLoader 用于幂等命中时读取已创建的订单
type OrderLoader interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

// IdempotencyHandler 保证同一个 Idempotency-Key 最多创建一个订单。
// 未配置存储或请求未携带幂等键时直接跳过。
type IdempotencyHandler struct {
	NextHandler
	store  port.IdempotencyStore
	orders OrderLoader
}

func NewIdempotencyHandler(store port.IdempotencyStore, orders OrderLoader) *IdempotencyHandler {
	return &IdempotencyHandler{store: store, orders: orders}
}

func (h *IdempotencyHandler) Handle(orderCtx *OrderContext) error {
	key := orderCtx.Request.IdempotencyKey
	if h.store == nil || key == "" {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.Idempotency")
	defer span.End()
	span.SetAttributes(attribute.String("idempotency.key", key))

	orderID, claimed, err := h.store.Claim(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "idempotency claim failed")
		return err
	}
	if !claimed {
		order, err := h.orders.GetOrder(ctx, orderID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		orderCtx.Order = order
		orderCtx.Replayed = true
		span.AddEvent("idempotent replay")
		return nil
	}

	orderCtx.AddCompensation(func(compCtx context.Context) {
		if err := h.store.Release(compCtx, key); err != nil {
			logger.Ctx(compCtx).Error().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
		}
	})

	if err := h.executeNext(orderCtx); err != nil {
		return err
	}

	// 订单已提交，请求截止时间到了也要把结果写回
	if err := h.store.Complete(context.WithoutCancel(ctx), key, orderCtx.Order.ID); err != nil {
		// 记录失败即可，键会在 TTL 后过期
		logger.Ctx(ctx).Error().Err(err).Int64("order_id", orderCtx.Order.ID).Msg("failed to complete idempotency key")
		span.RecordError(err)
	}
	return nil
}
