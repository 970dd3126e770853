// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/metrics"
	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application/chain"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderApplicationService 只关注下单与取消的流程编排，
// 库存读写全部委托给 Ledger，原子性由 UnitOfWork 保证。
type OrderApplicationService struct {
	uow               domain.UnitOfWork
	ledger            *ledger.Ledger
	customers         *CustomerResolver
	processingTimeout time.Duration
	policy            retry.Policy
	tracer            trace.Tracer

	// 以下依赖均可为 nil
	idempotency port.IdempotencyStore
	adjuster    port.LineAdjuster
	notifier    port.NotificationProducer
}

func NewOrderApplicationService(uow domain.UnitOfWork, ledger *ledger.Ledger, customers *CustomerResolver, processingTimeout time.Duration, policy retry.Policy, tracer trace.Tracer, idempotency port.IdempotencyStore, adjuster port.LineAdjuster, notifier port.NotificationProducer) *OrderApplicationService {
	return &OrderApplicationService{
		uow: uow, ledger: ledger, customers: customers,
		processingTimeout: processingTimeout, policy: policy, tracer: tracer,
		idempotency: idempotency, adjuster: adjuster, notifier: notifier}
}

// PlaceOrder 执行下单责任链。返回错误时不会留下任何订单、明细或库存变动。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() { metrics.OrderPlacementDuration.Observe(time.Since(start).Seconds()) }()

	processingCtx := ctx
	if s.processingTimeout > 0 {
		var cancel context.CancelFunc
		processingCtx, cancel = context.WithTimeout(ctx, s.processingTimeout)
		defer cancel()
	}

	orderContext := &chain.OrderContext{
		Ctx:     processingCtx,
		Request: req.toPlacementRequest(),
		Tracer:  s.tracer,
	}

	if err := s.buildChain().Handle(orderContext); err != nil {
		metrics.OrdersPlaced.WithLabelValues(resultLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "order placement failed")

		event := logger.Ctx(ctx).Warn()
		if kindOf(err) == "internal" {
			event = logger.Ctx(ctx).Error()
		}
		event.Err(err).Int64("product_id", domain.OffendingProduct(err)).Msg("order placement rejected")

		// 补偿不受请求超时影响，但保留链路信息
		orderContext.TriggerCompensation(context.WithoutCancel(ctx))
		return nil, err
	}

	order := orderContext.Order
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.Bool("order.replayed", orderContext.Replayed),
	)
	if orderContext.Replayed {
		metrics.OrdersPlaced.WithLabelValues("replayed").Inc()
		logger.Ctx(ctx).Info().Int64("order_id", order.ID).Msg("idempotent replay of an existing order")
	} else {
		metrics.OrdersPlaced.WithLabelValues("success").Inc()
		logger.Ctx(ctx).Info().
			Int64("order_id", order.ID).
			Int64("customer_id", order.CustomerID).
			Int("items", len(order.Items)).
			Str("total", order.Total().StringFixed(2)).
			Msg("✅ order placed")
	}

	return &PlaceOrderResult{Order: order, Replayed: orderContext.Replayed}, nil
}

// GetOrder 读取订单及其明细
func (s *OrderApplicationService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	var order *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		order, err = repos.Orders.FindByID(ctx, id)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// ListOrders 返回全部订单，附带所属客户
func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	var views []*OrderView
	err := s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		orders, err := repos.Orders.List(ctx)
		if err != nil {
			return err
		}
		customers := make(map[int64]*domain.Customer)
		views = make([]*OrderView, 0, len(orders))
		for _, order := range orders {
			customer, ok := customers[order.CustomerID]
			if !ok {
				customer, err = repos.Customers.FindByID(ctx, order.CustomerID)
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				customers[order.CustomerID] = customer
			}
			views = append(views, &OrderView{Order: order, Customer: customer})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return views, nil
}

// CancelOrder 把 pending 订单置为 cancelled 并归还每一行的库存，二者在同一个工作单元内完成。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	var cancelled *domain.Order
	err := retry.Do(ctx, s.policy, isConflict,
		func(attempt int, err error) {
			metrics.UnitOfWorkRetries.WithLabelValues("cancel_order").Inc()
			logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Int64("order_id", id).Msg("cancel unit of work conflicted, retrying")
		},
		func() error {
			return s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
				order, err := repos.Orders.FindByIDForUpdate(ctx, id)
				if err != nil {
					return err
				}
				if err := order.Cancel(); err != nil {
					return err
				}
				for _, item := range order.Items {
					if _, err := s.ledger.Restore(ctx, repos.Products, item.ProductID, item.Quantity); err != nil {
						return err
					}
				}
				if err := repos.Orders.UpdateState(ctx, order.ID, order.State); err != nil {
					return err
				}
				cancelled = order
				return nil
			})
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order cancellation failed")
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("order_id", id).Msg("order cancelled, stock restored")

	if s.notifier != nil {
		if err := s.notifier.SendOrderCancelled(ctx, cancelled); err != nil {
			logger.Ctx(ctx).Error().Err(err).Int64("order_id", id).Msg("failed to publish order cancelled event")
			span.RecordError(err)
		}
	}
	return cancelled, nil
}

// RegisterCustomer 是客户注册用例的入口
func (s *OrderApplicationService) RegisterCustomer(ctx context.Context, name, email string) (*domain.Customer, error) {
	return s.customers.Register(ctx, name, email)
}

func (s *OrderApplicationService) buildChain() chain.Handler {
	orderProcessingChain := new(chain.ValidationHandler)
	orderProcessingChain.
		SetNext(chain.NewIdempotencyHandler(s.idempotency, s)).
		SetNext(chain.NewReservationHandler(s.uow, s.customers, s.ledger, s.adjuster, s.policy)).
		SetNext(chain.NewNotificationHandler(s.notifier))

	return orderProcessingChain
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}

func resultLabel(err error) string {
	switch kindOf(err) {
	case "invalid_request":
		return "invalid"
	case "insufficient_stock":
		return "insufficient_stock"
	case "not_found":
		return "not_found"
	default:
		return "error"
	}
}

// kindOf 把错误归入领域错误分类
func kindOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
