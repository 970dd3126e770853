// internal/service/order/application/inventory_service.go
package application

import (
	"context"
	"fmt"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/metrics"
	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// InventoryApplicationService 暴露入库、后台扣减与库存查询
type InventoryApplicationService struct {
	uow    domain.UnitOfWork
	ledger *ledger.Ledger
	policy retry.Policy
	tracer trace.Tracer

	listGroup singleflight.Group
}

func NewInventoryApplicationService(uow domain.UnitOfWork, ledger *ledger.Ledger, policy retry.Policy, tracer trace.Tracer) *InventoryApplicationService {
	return &InventoryApplicationService{uow: uow, ledger: ledger, policy: policy, tracer: tracer}
}

// Intake 按商品名合并入库。并发首次入库同名商品时唯一索引冲突，重试后走合并分支。
func (s *InventoryApplicationService) Intake(ctx context.Context, name string, quantity int, price decimal.Decimal) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.Intake")
	defer span.End()

	var product *domain.Product
	err := retry.Do(ctx, s.policy, isConflict,
		func(attempt int, err error) {
			metrics.UnitOfWorkRetries.WithLabelValues("intake").Inc()
			logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Str("product", name).Msg("intake conflicted, retrying")
		},
		func() error {
			return s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
				var err error
				product, err = s.ledger.Intake(ctx, repos.Products, name, quantity, price)
				return err
			})
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "intake failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("product.id", product.ID))
	logger.Ctx(ctx).Info().
		Int64("product_id", product.ID).
		Int("quantity", product.Quantity).
		Str("price", product.Price.StringFixed(2)).
		Msg("stock intake applied")
	return product, nil
}

// AdjustStock 在一个工作单元内扣减多行库存，任一行不足则全部回滚。
func (s *InventoryApplicationService) AdjustStock(ctx context.Context, adjustments []StockAdjustment) ([]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.AdjustStock")
	defer span.End()
	span.SetAttributes(attribute.Int("adjustments", len(adjustments)))

	if len(adjustments) == 0 {
		return nil, fmt.Errorf("%w: inventory updates are required", domain.ErrInvalidRequest)
	}
	for _, adj := range adjustments {
		if adj.ProductID <= 0 {
			return nil, &domain.ProductError{ProductID: adj.ProductID, Err: domain.ErrInvalidRequest}
		}
		if adj.Quantity <= 0 {
			return nil, &domain.ProductError{ProductID: adj.ProductID, Err: domain.ErrInvalidQuantity}
		}
	}

	var updated []*domain.Product
	err := retry.Do(ctx, s.policy, isConflict,
		func(attempt int, err error) {
			metrics.UnitOfWorkRetries.WithLabelValues("adjust_stock").Inc()
			logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("stock adjustment conflicted, retrying")
		},
		func() error {
			return s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
				updated = updated[:0]
				for _, adj := range adjustments {
					if _, err := s.ledger.Reserve(ctx, repos.Products, adj.ProductID, adj.Quantity); err != nil {
						return err
					}
				}
				// 行锁仍由本事务持有，重新读取得到扣减后的状态
				for _, adj := range adjustments {
					product, err := repos.Products.FindForUpdate(ctx, adj.ProductID)
					if err != nil {
						return err
					}
					updated = append(updated, product)
				}
				return nil
			})
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock adjustment rolled back")
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", domain.OffendingProduct(err)).Msg("stock adjustment rejected")
		return nil, err
	}
	return updated, nil
}

// ListProducts 返回全部库存行。
// 后台页面会频繁轮询库存列表，同一时刻的并发查询经 singleflight 合并为一次读取，
// 返回的切片在调用方之间共享，只能读。
func (s *InventoryApplicationService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListProducts")
	defer span.End()

	v, err, shared := s.listGroup.Do("products", func() (interface{}, error) {
		// 合并后的读取不随第一个调用方取消
		readCtx := context.WithoutCancel(ctx)
		var products []*domain.Product
		err := s.uow.Do(readCtx, func(ctx context.Context, repos domain.Repositories) error {
			var err error
			products, err = repos.Products.List(ctx)
			return err
		})
		return products, err
	})
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.([]*domain.Product), nil
}
