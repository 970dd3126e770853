// internal/service/order/domain/customer.go
package domain

import (
	"strings"
	"time"
)

// Customer 以邮箱作为自然键，同名不同邮箱视为不同客户。
type Customer struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// NormalizeEmail 去除首尾空白并转为小写，邮箱唯一性因此不区分大小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewCustomer 创建客户；name 为空时取邮箱 @ 之前的部分。
func NewCustomer(name, email string) (*Customer, error) {
	email = NormalizeEmail(email)
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" || domainPart == "" || strings.Contains(domainPart, "@") {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = local
	}
	return &Customer{
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}, nil
}
