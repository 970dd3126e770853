// internal/service/order/domain/repository.go
package domain

import "context"

// ProductRepository 是库存行的持久化接口。
// 带 ForUpdate 的方法必须在工作单元内调用，并持有行锁直到事务结束。
type ProductRepository interface {
	FindForUpdate(ctx context.Context, id int64) (*Product, error)
	FindByNameForUpdate(ctx context.Context, name string) (*Product, error)
	Create(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
	List(ctx context.Context) ([]*Product, error)
}

// CustomerRepository 在邮箱唯一键冲突时返回 ErrConflict。
type CustomerRepository interface {
	FindByID(ctx context.Context, id int64) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	Create(ctx context.Context, customer *Customer) error
}

// OrderRepository 定义了订单聚合的持久化接口。
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	AddItem(ctx context.Context, item *LineItem) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*Order, error)
	UpdateState(ctx context.Context, id int64, state State) error
	List(ctx context.Context) ([]*Order, error)
}

// Repositories 是一个工作单元内可见的全部仓储
type Repositories struct {
	Products  ProductRepository
	Customers CustomerRepository
	Orders    OrderRepository
}

// UnitOfWork 在一个原子事务里执行 fn：fn 返回错误或 ctx 被取消时全部回滚。
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
