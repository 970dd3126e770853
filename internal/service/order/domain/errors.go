// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// 错误分类。调用方通过 errors.Is 判断类别，接口层据此映射 HTTP 状态码。
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict 表示存储层的并发冲突（唯一键冲突、死锁、锁等待超时），可重试。
	ErrConflict = errors.New("conflict")
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)

	ErrCustomerExists   = fmt.Errorf("%w: customer already exists", ErrInvalidRequest)
	ErrOrderNotPending  = fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidRequest)
	ErrEmptyOrder       = fmt.Errorf("%w: order items are required", ErrInvalidRequest)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be positive", ErrInvalidRequest)
	ErrInvalidPrice     = fmt.Errorf("%w: price must be non-negative with at most two decimal places", ErrInvalidRequest)
	ErrCustomerRequired = fmt.Errorf("%w: customer id or email is required", ErrInvalidRequest)
	ErrInvalidEmail     = fmt.Errorf("%w: invalid email", ErrInvalidRequest)
)

// StockError 携带库存不足的具体商品信息
type StockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// ProductError 把"找不到商品"与具体商品 ID 绑定
type ProductError struct {
	ProductID int64
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

// OffendingProduct 从错误链中提取出问题商品的 ID，没有则返回 0。
func OffendingProduct(err error) int64 {
	var se *StockError
	if errors.As(err, &se) {
		return se.ProductID
	}
	var pe *ProductError
	if errors.As(err, &pe) {
		return pe.ProductID
	}
	return 0
}
