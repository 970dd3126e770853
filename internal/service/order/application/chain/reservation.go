// internal/service/order/application/chain/reservation.go
package chain

import (
	"context"
	"errors"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/metrics"
	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StockReserver 是库存账本的预占能力
type StockReserver interface {
	Reserve(ctx context.Context, products domain.ProductRepository, productID int64, quantity int) (*ledger.Reservation, error)
}

// ReservationHandler 在一个工作单元内解析客户、创建订单、逐行预占库存并写入明细。
// 任一步失败则整个工作单元回滚（包括新建的客户）；存储冲突时从头重试。
type ReservationHandler struct {
	NextHandler
	uow       domain.UnitOfWork
	customers CustomerResolver
	reserver  StockReserver
	adjuster  port.LineAdjuster
	policy    retry.Policy
}

func NewReservationHandler(uow domain.UnitOfWork, customers CustomerResolver, reserver StockReserver, adjuster port.LineAdjuster, policy retry.Policy) *ReservationHandler {
	return &ReservationHandler{uow: uow, customers: customers, reserver: reserver, adjuster: adjuster, policy: policy}
}

func (h *ReservationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "chain.Reservation")
	defer span.End()

	var (
		placed   *domain.Order
		customer *domain.Customer
	)
	err := retry.Do(ctx, h.policy, isConflict,
		func(attempt int, err error) {
			metrics.UnitOfWorkRetries.WithLabelValues("place_order").Inc()
			logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("order unit of work conflicted, retrying")
		},
		func() error {
			return h.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
				c, err := resolveCustomer(ctx, orderCtx, h.customers, repos.Customers)
				if err != nil {
					return err
				}
				order, err := domain.NewOrder(c.ID)
				if err != nil {
					return err
				}
				if err := h.reserveAndWrite(ctx, repos, order, c, orderCtx.Request.Items); err != nil {
					return err
				}
				placed, customer = order, c
				return nil
			})
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order unit of work rolled back")
		return err
	}

	orderCtx.Order, orderCtx.Customer = placed, customer
	span.SetAttributes(
		attribute.Int64("order.id", placed.ID),
		attribute.Int64("customer.id", customer.ID),
	)
	span.AddEvent("order committed")

	return h.executeNext(orderCtx)
}

func (h *ReservationHandler) reserveAndWrite(ctx context.Context, repos domain.Repositories, order *domain.Order, customer *domain.Customer, items []domain.ItemRequest) error {
	if err := repos.Orders.Create(ctx, order); err != nil {
		return err
	}
	for _, item := range items {
		reservation, err := h.reserver.Reserve(ctx, repos.Products, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}

		tax, discount := valueOrZero(item.Tax), valueOrZero(item.Discount)
		if h.adjuster != nil {
			t, d, ok, err := h.adjuster.Adjust(ctx, port.LineFacts{
				ProductID:     reservation.ProductID,
				ProductName:   reservation.ProductName,
				Price:         reservation.Price,
				Quantity:      item.Quantity,
				CustomerEmail: customer.Email,
			})
			if err != nil {
				return err
			}
			if ok {
				tax, discount = t, d
			}
		}

		line := &domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     reservation.Price,
			Tax:       tax,
			Discount:  discount,
		}
		order.AddItem(line)
		if err := repos.Orders.AddItem(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
