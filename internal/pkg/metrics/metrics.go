// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlaced 按结果统计下单请求: success / invalid / insufficient_stock / not_found / error
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Order placement requests partitioned by result.",
	}, []string{"result"})

	StockReservationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservation_failures_total",
		Help: "Failed stock reservations partitioned by reason.",
	}, []string{"reason"})

	UnitOfWorkRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unit_of_work_retries_total",
		Help: "Units of work retried after a store conflict.",
	}, []string{"operation"})

	OrderPlacementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_placement_duration_seconds",
		Help:    "Latency of order placement including retries.",
		Buckets: prometheus.DefBuckets,
	})
)
