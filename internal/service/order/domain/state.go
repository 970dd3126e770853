// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态
type State string

const (
	StatePending   State = "pending"   // 已创建，库存已预占
	StateFulfilled State = "fulfilled" // 已履约
	StateCancelled State = "cancelled" // 已取消，库存已归还
)
