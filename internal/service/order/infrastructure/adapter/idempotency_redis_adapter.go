package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"backoffice/internal/pkg/redis"
	"backoffice/internal/service/order/domain/port"
)

const (
	claimScriptName   = "idempotency_claim"
	releaseScriptName = "idempotency_release"

	pendingMarker = "pending"
)

// IdempotencyRedisAdapter 是 port.IdempotencyStore 的 Redis 实现。
// 键的值为 "pending"（处理中）或订单 ID（已完成）。
type IdempotencyRedisAdapter struct {
	redisClient *redis.Client
	pendingTTL  time.Duration
	ttl         time.Duration
}

// NewIdempotencyRedisAdapter 在创建时加载所需的 Lua 脚本。
// pendingTTL 应大于一次下单的处理超时，进程崩溃后占用的键会在此之后过期。
func NewIdempotencyRedisAdapter(redisClient *redis.Client, pendingTTL, ttl time.Duration) (*IdempotencyRedisAdapter, error) {
	if pendingTTL < time.Millisecond || ttl < time.Millisecond {
		return nil, fmt.Errorf("idempotency TTLs must be at least 1ms, got pending=%s ttl=%s", pendingTTL, ttl)
	}
	if err := redisClient.LoadScriptFromContent(claimScriptName, claimScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency claim script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load idempotency release script: %w", err)
	}
	return &IdempotencyRedisAdapter{redisClient: redisClient, pendingTTL: pendingTTL, ttl: ttl}, nil
}

func (a *IdempotencyRedisAdapter) Claim(ctx context.Context, key string) (int64, bool, error) {
	result, err := a.redisClient.RunScript(ctx, claimScriptName, []string{redisKey(key)}, a.pendingTTL.Milliseconds())
	if err != nil {
		return 0, false, fmt.Errorf("idempotency adapter failed to run claim script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	switch {
	case code == 0:
		return 0, true, nil
	case code < 0:
		return 0, false, port.ErrRequestInFlight
	default:
		return code, false, nil
	}
}

func (a *IdempotencyRedisAdapter) Complete(ctx context.Context, key string, orderID int64) error {
	return a.redisClient.GetClient().Set(ctx, redisKey(key), strconv.FormatInt(orderID, 10), a.ttl).Err()
}

func (a *IdempotencyRedisAdapter) Release(ctx context.Context, key string) error {
	_, err := a.redisClient.RunScript(ctx, releaseScriptName, []string{redisKey(key)}, pendingMarker)
	return err
}

func redisKey(key string) string {
	return fmt.Sprintf("idempotency:order:{%s}", key)
}

var claimScript = `
-- KEYS[1]: 幂等键, 例如: idempotency:order:{abc}
-- ARGV[1]: 处理中状态的过期时间(毫秒)

local v = redis.call('get', KEYS[1])
if not v then
    redis.call('set', KEYS[1], 'pending', 'PX', ARGV[1])
    return 0 -- 占用成功
end
if v == 'pending' then
    return -1 -- 处理中
end
return tonumber(v) -- 已完成, 返回订单 ID
`

var releaseScript = `
-- 只释放仍处于处理中的键, 已完成的键不受影响
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
