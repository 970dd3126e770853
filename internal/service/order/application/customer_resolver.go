// internal/service/order/application/customer_resolver.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backoffice/internal/pkg/logger"
	"backoffice/internal/service/order/domain"

	"go.opentelemetry.io/otel/trace"
)

// CustomerResolver 实现客户的 find-or-create。
// 解析在下单的工作单元内进行：新客户与订单一起提交或一起回滚。
// 并发创建同一邮箱时唯一索引返回 domain.ErrConflict，整个工作单元重试后即可读到已存在的客户。
type CustomerResolver struct {
	uow    domain.UnitOfWork
	tracer trace.Tracer
}

func NewCustomerResolver(uow domain.UnitOfWork, tracer trace.Tracer) *CustomerResolver {
	return &CustomerResolver{uow: uow, tracer: tracer}
}

// ResolveWithin 优先按 customerID 查找；找不到且提供了邮箱时按邮箱查找或创建。
// customers 必须来自调用方的工作单元。
func (r *CustomerResolver) ResolveWithin(ctx context.Context, customers domain.CustomerRepository, customerID int64, email, name string) (*domain.Customer, error) {
	if customerID > 0 {
		customer, err := customers.FindByID(ctx, customerID)
		switch {
		case err == nil:
			return customer, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		case strings.TrimSpace(email) == "":
			return nil, fmt.Errorf("%w: customer %d does not exist", domain.ErrInvalidRequest, customerID)
		}
		logger.Ctx(ctx).Info().Int64("customer_id", customerID).Msg("customer id unknown, falling back to email")
	}

	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrCustomerRequired
	}

	customer, err := customers.FindByEmail(ctx, email)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	customer, err = domain.NewCustomer(name, email)
	if err != nil {
		return nil, err
	}
	if err := customers.Create(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.Ctx(ctx).Info().Str("email", email).Msg("customer created concurrently, unit of work will be retried")
		}
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("customer_id", customer.ID).Msg("customer created during order placement")
	return customer, nil
}

// Register 显式注册客户，邮箱已存在时返回 domain.ErrCustomerExists。
func (r *CustomerResolver) Register(ctx context.Context, name, email string) (*domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "app.RegisterCustomer")
	defer span.End()

	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: name and email are required", domain.ErrInvalidRequest)
	}
	customer, err := domain.NewCustomer(name, email)
	if err != nil {
		return nil, err
	}

	err = r.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		_, err := repos.Customers.FindByEmail(ctx, customer.Email)
		if err == nil {
			return domain.ErrCustomerExists
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return repos.Customers.Create(ctx, customer)
	})
	if errors.Is(err, domain.ErrConflict) {
		err = domain.ErrCustomerExists
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("customer_id", customer.ID).Msg("customer registered")
	return customer, nil
}
