package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductModel 对应 products 表。name 使用二进制排序规则，商品名区分大小写。
type ProductModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	Name       string          `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;uniqueIndex;not null"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity   int             `gorm:"not null"`
	TotalValue decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

// CustomerModel 对应 customers 表，email 已在领域层归一化为小写
type CustomerModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(191);uniqueIndex;not null"`
	CreatedAt time.Time
}

func (CustomerModel) TableName() string {
	return "customers"
}

// OrderModel 对应 orders 表
type OrderModel struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	CustomerID int64  `gorm:"index;not null"`
	Status     string `gorm:"type:varchar(16);not null;default:pending"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// 关联关系
	Items []LineItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// LineItemModel 对应 order_line_items 表，创建后不再更新
type LineItemModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	OrderID   int64           `gorm:"index;not null"`
	ProductID int64           `gorm:"index;not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Tax       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Discount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
}

func (LineItemModel) TableName() string {
	return "order_line_items"
}

// AllModels 供 AutoMigrate 使用
func AllModels() []interface{} {
	return []interface{}{&ProductModel{}, &CustomerModel{}, &OrderModel{}, &LineItemModel{}}
}
