// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Order 是订单聚合的根实体
type Order struct {
	ID         int64
	CustomerID int64
	State      State
	Items      []*LineItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineItem 的单价在预占库存时从账本冻结，创建后不可修改。
type LineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	Tax       decimal.Decimal
	Discount  decimal.Decimal
}

// ItemRequest 是调用方请求的一行商品；Price 仅供参考，不会被使用。
type ItemRequest struct {
	ProductID int64
	Quantity  int
	Price     *decimal.Decimal
	Tax       *decimal.Decimal
	Discount  *decimal.Decimal
}

// 工厂函数: NewOrder 创建一个处于 pending 状态、尚未包含明细的订单
func NewOrder(customerID int64) (*Order, error) {
	if customerID <= 0 {
		return nil, errors.New("cannot create order without a customer")
	}
	now := time.Now()
	return &Order{
		CustomerID: customerID,
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ValidateItems 在任何持久化动作之前校验请求明细
func ValidateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range items {
		if item.ProductID <= 0 {
			return &ProductError{ProductID: item.ProductID, Err: ErrInvalidRequest}
		}
		if item.Quantity <= 0 {
			return &ProductError{ProductID: item.ProductID, Err: ErrInvalidQuantity}
		}
		for _, v := range []*decimal.Decimal{item.Tax, item.Discount} {
			if v == nil {
				continue
			}
			if err := ValidatePrice(*v); err != nil {
				return &ProductError{ProductID: item.ProductID, Err: err}
			}
		}
	}
	return nil
}

// AddItem 追加一条已预占的明细
func (o *Order) AddItem(item *LineItem) {
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
}

// Total = Σ(price × quantity + tax − discount)
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line).Add(item.Tax).Sub(item.Discount)
	}
	return total
}

// Cancel 取消订单，只有 pending 的订单可以被取消
func (o *Order) Cancel() error {
	if o.State != StatePending {
		return ErrOrderNotPending
	}
	o.State = StateCancelled
	o.UpdatedAt = time.Now()
	return nil
}
