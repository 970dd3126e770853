// internal/service/order/application/chain/handler.go
package chain

import (
	"context"
	"sync"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/domain"

	"go.opentelemetry.io/otel/trace"
)

// PlacementRequest 是一次下单请求经过校验前的原始输入
type PlacementRequest struct {
	CustomerID     int64
	CustomerEmail  string
	CustomerName   string
	Items          []domain.ItemRequest
	IdempotencyKey string
}

// OrderContext 在下单责任链中传递上下文数据。
type OrderContext struct {
	Ctx     context.Context
	Request *PlacementRequest
	Tracer  trace.Tracer

	Customer *domain.Customer
	Order    *domain.Order

	// Replayed 为 true 表示幂等键命中，Order 为之前已创建的订单
	Replayed bool

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 登记一个失败时执行的补偿，后登记的先执行。
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	if len(c.compensations) == 0 {
		return
	}
	logger.Ctx(ctx).Info().Int("count", len(c.compensations)).Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
