package infrastructure

import (
	"backoffice/internal/service/order/domain"
)

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:         model.ID,
		Name:       model.Name,
		Price:      model.Price,
		Quantity:   model.Quantity,
		TotalValue: model.TotalValue,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func FromDomainProduct(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price,
		Quantity:   p.Quantity,
		TotalValue: p.TotalValue,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func ToDomainCustomer(model *CustomerModel) *domain.Customer {
	if model == nil {
		return nil
	}
	return &domain.Customer{
		ID:        model.ID,
		Name:      model.Name,
		Email:     model.Email,
		CreatedAt: model.CreatedAt,
	}
}

func FromDomainCustomer(c *domain.Customer) *CustomerModel {
	return &CustomerModel{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

// ToDomainOrder 连同已预加载的明细一起转换
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	order := &domain.Order{
		ID:         model.ID,
		CustomerID: model.CustomerID,
		State:      domain.State(model.Status),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
		Items:      make([]*domain.LineItem, 0, len(model.Items)),
	}
	for i := range model.Items {
		order.Items = append(order.Items, ToDomainLineItem(&model.Items[i]))
	}
	return order
}

// FromDomainOrder 只转换订单头，明细通过 AddItem 单独写入
func FromDomainOrder(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.State),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func ToDomainLineItem(model *LineItemModel) *domain.LineItem {
	return &domain.LineItem{
		ID:        model.ID,
		OrderID:   model.OrderID,
		ProductID: model.ProductID,
		Quantity:  model.Quantity,
		Price:     model.Price,
		Tax:       model.Tax,
		Discount:  model.Discount,
	}
}

func FromDomainLineItem(item *domain.LineItem) *LineItemModel {
	return &LineItemModel{
		ID:        item.ID,
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     item.Price,
		Tax:       item.Tax,
		Discount:  item.Discount,
	}
}
