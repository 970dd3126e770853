package infrastructure

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/service/order/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// GormUnitOfWork 用一个数据库事务承载整个工作单元。
// fn 返回错误或 ctx 被取消时事务回滚。
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, domain.Repositories{
			Products:  &GormProductRepository{db: tx},
			Customers: &GormCustomerRepository{db: tx},
			Orders:    &GormOrderRepository{db: tx},
		})
	})
	return classify(err)
}

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func (r *GormProductRepository) FindForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Clauses(lockForUpdate).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, classify(err)
	}
	return ToDomainProduct(&model), nil
}

// FindByNameForUpdate 在名称不存在时同样会持有唯一索引上的间隙锁
func (r *GormProductRepository) FindByNameForUpdate(ctx context.Context, name string) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Clauses(lockForUpdate).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, classify(err)
	}
	return ToDomainProduct(&model), nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *domain.Product) error {
	model := FromDomainProduct(product)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return classify(err)
	}
	product.ID = model.ID
	return nil
}

// Save 只更新库存相关的字段
func (r *GormProductRepository) Save(ctx context.Context, product *domain.Product) error {
	updateData := map[string]interface{}{
		"price":       product.Price,
		"quantity":    product.Quantity,
		"total_value": product.TotalValue,
		"updated_at":  product.UpdatedAt,
	}
	result := r.db.WithContext(ctx).Model(&ProductModel{}).Where("id = ?", product.ID).Updates(updateData)
	if result.Error != nil {
		return classify(result.Error)
	}
	return nil
}

func (r *GormProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, classify(err)
	}
	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, ToDomainProduct(&models[i]))
	}
	return products, nil
}

// GormCustomerRepository 是 CustomerRepository 的 GORM 实现
type GormCustomerRepository struct {
	db *gorm.DB
}

func (r *GormCustomerRepository) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var model CustomerModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, classify(err)
	}
	return ToDomainCustomer(&model), nil
}

func (r *GormCustomerRepository) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var model CustomerModel
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, classify(err)
	}
	return ToDomainCustomer(&model), nil
}

// Create 在邮箱唯一索引冲突时返回 domain.ErrConflict
func (r *GormCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	model := FromDomainCustomer(customer)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return classify(err)
	}
	customer.ID = model.ID
	return nil
}

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := FromDomainOrder(order)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return classify(err)
	}
	order.ID = model.ID
	return nil
}

func (r *GormOrderRepository) AddItem(ctx context.Context, item *domain.LineItem) error {
	model := FromDomainLineItem(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return classify(err)
	}
	item.ID = model.ID
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(lockForUpdate), id)
}

func (r *GormOrderRepository) find(db *gorm.DB, id int64) (*domain.Order, error) {
	var model OrderModel
	// 使用 Preload 来预加载订单明细
	err := db.Preload("Items", orderByID).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, classify(err)
	}
	return ToDomainOrder(&model), nil
}

func (r *GormOrderRepository) UpdateState(ctx context.Context, id int64, state domain.State) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(state), "updated_at": time.Now()})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *GormOrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).Preload("Items", orderByID).Order("id").Find(&models).Error; err != nil {
		return nil, classify(err)
	}
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders, nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

// Migrate 创建或更新表结构
func Migrate(db *gorm.DB) error {
	return classify(db.AutoMigrate(AllModels()...))
}
