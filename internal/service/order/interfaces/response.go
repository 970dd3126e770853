package interfaces

import (
	"time"

	"backoffice/internal/service/order/domain"
)

type lineItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Tax       string `json:"tax"`
	Discount  string `json:"discount"`
}

type customerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderResponse struct {
	ID         int64              `json:"id"`
	CustomerID int64              `json:"customerId"`
	Customer   *customerResponse  `json:"customer,omitempty"`
	Status     domain.State       `json:"status"`
	CreatedAt  time.Time          `json:"createdAt"`
	Items      []lineItemResponse `json:"items"`
	Total      string             `json:"total"`
}

type productResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Quantity   int    `json:"quantity"`
	TotalValue string `json:"totalValue"`
}

// 金额统一输出为两位小数的字符串
func toOrderResponse(order *domain.Order, customer *domain.Customer) orderResponse {
	resp := orderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     order.State,
		CreatedAt:  order.CreatedAt,
		Items:      make([]lineItemResponse, 0, len(order.Items)),
		Total:      order.Total().StringFixed(2),
	}
	if customer != nil {
		c := toCustomerResponse(customer)
		resp.Customer = &c
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
			Tax:       item.Tax.StringFixed(2),
			Discount:  item.Discount.StringFixed(2),
		})
	}
	return resp
}

func toCustomerResponse(c *domain.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price.StringFixed(2),
		Quantity:   p.Quantity,
		TotalValue: p.TotalValue.StringFixed(2),
	}
}

func toProductResponses(products []*domain.Product) []productResponse {
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	return resp
}
