package port

import (
	"context"
	"errors"
)

// ErrRequestInFlight 表示相同幂等键的请求仍在处理中
var ErrRequestInFlight = errors.New("request with the same idempotency key is in progress")

// IdempotencyStore 是订单提交幂等键的出站端口。
type IdempotencyStore interface {
	// Claim 占用幂等键。若该键已完成，返回之前创建的订单 ID 且 claimed=false；
	// 若仍在处理中，返回 ErrRequestInFlight。
	Claim(ctx context.Context, key string) (orderID int64, claimed bool, err error)

	// Complete 记录幂等键对应的订单。
	Complete(ctx context.Context, key string, orderID int64) error

	// Release 在提交失败后释放幂等键，允许调用方重试。
	Release(ctx context.Context, key string) error
}
