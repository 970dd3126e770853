package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineFacts 是计算单行税费与折扣时可见的事实
type LineFacts struct {
	ProductID     int64
	ProductName   string
	Price         decimal.Decimal
	Quantity      int
	CustomerEmail string
}

// LineAdjuster 在服务端计算明细的税费与折扣。
// ok=false 表示未配置规则，此时沿用请求中的值。
type LineAdjuster interface {
	Adjust(ctx context.Context, facts LineFacts) (tax, discount decimal.Decimal, ok bool, err error)
}
