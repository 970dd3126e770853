// internal/service/order/application/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"strings"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/metrics"
	"backoffice/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reservation 是一次成功预占的结果，Price 为预占瞬间生效的单价。
type Reservation struct {
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	Remaining   int
}

// Ledger 是库存数量与总价值的唯一写入方。
// 所有方法都接收工作单元内的 ProductRepository，自身不开启事务。
type Ledger struct {
	tracer trace.Tracer
}

func NewLedger(tracer trace.Tracer) *Ledger {
	return &Ledger{tracer: tracer}
}

// Reserve 锁定商品行，检查库存并扣减。
// 失败时返回 *domain.ProductError(NotFound) 或 *domain.StockError，整个工作单元应回滚。
func (l *Ledger) Reserve(ctx context.Context, products domain.ProductRepository, productID int64, quantity int) (*Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Reserve")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)

	product, err := products.FindForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.StockReservationFailures.WithLabelValues("not_found").Inc()
			err = &domain.ProductError{ProductID: productID, Err: domain.ErrProductNotFound}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "product lookup failed")
		return nil, err
	}

	if err := product.Withdraw(quantity); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.StockReservationFailures.WithLabelValues("insufficient_stock").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock withdrawal rejected")
		return nil, err
	}

	if err := products.Save(ctx, product); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Debug().
		Int64("product_id", productID).
		Int("reserved", quantity).
		Int("remaining", product.Quantity).
		Msg("stock reserved")

	return &Reservation{
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       product.Price,
		Remaining:   product.Quantity,
	}, nil
}

// Restore 是 Reserve 的逆操作，用于取消订单时归还库存。
func (l *Ledger) Restore(ctx context.Context, products domain.ProductRepository, productID int64, quantity int) (*domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Restore")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("product.quantity", quantity),
	)

	product, err := products.FindForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = &domain.ProductError{ProductID: productID, Err: domain.ErrProductNotFound}
		}
		span.RecordError(err)
		return nil, err
	}
	if err := product.Deposit(quantity); err != nil {
		return nil, err
	}
	if err := products.Save(ctx, product); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return product, nil
}

// Intake 按商品名合并入库：同名商品累加数量并覆盖单价，否则新建一行。
// 并发新建同名商品时存储层返回 domain.ErrConflict，由调用方重试整个工作单元。
func (l *Ledger) Intake(ctx context.Context, products domain.ProductRepository, name string, quantity int, price decimal.Decimal) (*domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Intake")
	defer span.End()

	name = strings.TrimSpace(name)
	span.SetAttributes(
		attribute.String("product.name", name),
		attribute.Int("product.quantity", quantity),
		attribute.String("product.price", price.String()),
	)

	if name == "" {
		return nil, domain.ErrInvalidRequest
	}
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if err := domain.ValidatePrice(price); err != nil {
		return nil, err
	}

	existing, err := products.FindByNameForUpdate(ctx, name)
	switch {
	case err == nil:
		if err := existing.Deposit(quantity); err != nil {
			return nil, err
		}
		if err := existing.Reprice(price); err != nil {
			return nil, err
		}
		if err := products.Save(ctx, existing); err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.AddEvent("merged into existing product")
		return existing, nil
	case errors.Is(err, domain.ErrNotFound):
		product, err := domain.NewProduct(name, quantity, price)
		if err != nil {
			return nil, err
		}
		if err := products.Create(ctx, product); err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.AddEvent("new product created")
		return product, nil
	default:
		span.RecordError(err)
		return nil, err
	}
}
