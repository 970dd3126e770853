// internal/service/order/application/dto.go
package application

import (
	"backoffice/internal/service/order/application/chain"
	"backoffice/internal/service/order/domain"
)

// PlaceOrderRequest 是下单用例的输入数据
type PlaceOrderRequest struct {
	CustomerID     int64
	CustomerEmail  string
	CustomerName   string
	Items          []domain.ItemRequest
	IdempotencyKey string
}

// PlaceOrderResult 是下单用例的输出；Replayed 表示命中了幂等键
type PlaceOrderResult struct {
	Order    *domain.Order
	Replayed bool
}

// OrderView 是订单连同所属客户的只读视图
type OrderView struct {
	Order    *domain.Order
	Customer *domain.Customer
}

// StockAdjustment 是后台直接扣减库存的一行
type StockAdjustment struct {
	ProductID int64
	Quantity  int
}

func (req *PlaceOrderRequest) toPlacementRequest() *chain.PlacementRequest {
	return &chain.PlacementRequest{
		CustomerID:     req.CustomerID,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		Items:          req.Items,
		IdempotencyKey: req.IdempotencyKey,
	}
}
