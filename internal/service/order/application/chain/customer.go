package chain

import (
	"context"

	"backoffice/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CustomerResolver 按 ID 或邮箱解析客户，邮箱未知时在同一工作单元内创建新客户。
type CustomerResolver interface {
	ResolveWithin(ctx context.Context, customers domain.CustomerRepository, customerID int64, email, name string) (*domain.Customer, error)
}

// resolveCustomer 确定订单归属的客户，必须在工作单元内调用
func resolveCustomer(ctx context.Context, orderCtx *OrderContext, resolver CustomerResolver, customers domain.CustomerRepository) (*domain.Customer, error) {
	ctx, span := orderCtx.Tracer.Start(ctx, "chain.CustomerResolution")
	defer span.End()

	req := orderCtx.Request
	customer, err := resolver.ResolveWithin(ctx, customers, req.CustomerID, req.CustomerEmail, req.CustomerName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer resolution failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int64("customer.id", customer.ID))
	return customer, nil
}
