// internal/service/order/domain/product.go
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product 是库存行，库存数量与总价值只能通过下面的方法修改。
type Product struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	Quantity   int
	TotalValue decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProduct 用于首次入库
func NewProduct(name string, quantity int, price decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidRequest
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}
	p := &Product{
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
	p.recompute()
	return p, nil
}

// Withdraw 扣减库存，库存不足时返回 *StockError 且不修改任何字段。
func (p *Product) Withdraw(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Quantity {
		return &StockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   quantity,
			Available:   p.Quantity,
		}
	}
	p.Quantity -= quantity
	p.recompute()
	return nil
}

// Deposit 增加库存，不做任何充足性检查
func (p *Product) Deposit(quantity int) error {
	if quantity < 0 || quantity > math.MaxInt-p.Quantity {
		return ErrInvalidQuantity
	}
	p.Quantity += quantity
	p.recompute()
	return nil
}

// Reprice 覆盖单价并重算总价值
func (p *Product) Reprice(price decimal.Decimal) error {
	if err := ValidatePrice(price); err != nil {
		return err
	}
	p.Price = price
	p.recompute()
	return nil
}

// PriceScale 是单价允许的最大小数位数，与持久化列的精度一致
const PriceScale = 2

// ValidatePrice 拒绝负数以及小数位超过 PriceScale 的单价
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() || !price.Equal(price.Round(PriceScale)) {
		return ErrInvalidPrice
	}
	return nil
}

func (p *Product) recompute() {
	p.TotalValue = p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
	p.UpdatedAt = time.Now()
}
