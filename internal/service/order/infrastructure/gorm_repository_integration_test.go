//go:build integration
// +build integration

package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"backoffice/internal/pkg/bootstrap"
	"backoffice/internal/pkg/database"
	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
)

// setupTestDB 启动一个 MySQL 容器并完成建表
func setupTestDB(t *testing.T) *gorm.DB {
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("backoffice"),
		mysql.WithUsername("backoffice"),
		mysql.WithPassword("backoffice"),
	)
	if err != nil {
		t.Fatalf("Failed to start MySQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4", "loc=UTC")
	require.NoError(t, err)

	db, err := database.OpenMySQL(bootstrap.DatabaseConfig{DSN: dsn, MaxOpenConns: 32, MaxIdleConns: 8})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

type services struct {
	uow       *GormUnitOfWork
	orders    *application.OrderApplicationService
	inventory *application.InventoryApplicationService
}

func newServices(db *gorm.DB) *services {
	tracer := noop.NewTracerProvider().Tracer("integration")
	uow := NewGormUnitOfWork(db)
	l := ledger.NewLedger(tracer)
	policy := retry.Policy{MaxAttempts: 10, InitialInterval: 5 * time.Millisecond, MaxInterval: 100 * time.Millisecond}
	customers := application.NewCustomerResolver(uow, tracer)
	return &services{
		uow:       uow,
		orders:    application.NewOrderApplicationService(uow, l, customers, 30*time.Second, policy, tracer, nil, nil, nil),
		inventory: application.NewInventoryApplicationService(uow, l, policy, tracer),
	}
}

func TestGormStore_Integration(t *testing.T) {
	db := setupTestDB(t)
	svc := newServices(db)
	ctx := context.Background()

	t.Run("intake merges on name", func(t *testing.T) {
		_, err := svc.inventory.Intake(ctx, "bolt", 5, decimal.NewFromInt(10))
		require.NoError(t, err)
		p, err := svc.inventory.Intake(ctx, "bolt", 3, decimal.NewFromInt(12))
		require.NoError(t, err)
		assert.Equal(t, 8, p.Quantity)
		assert.True(t, p.TotalValue.Equal(decimal.NewFromInt(96)))

		// 商品名区分大小写
		other, err := svc.inventory.Intake(ctx, "Bolt", 1, decimal.NewFromInt(1))
		require.NoError(t, err)
		assert.NotEqual(t, p.ID, other.ID)
	})

	t.Run("stored prices match the returned product", func(t *testing.T) {
		_, err := svc.inventory.Intake(ctx, "washer", 7, decimal.RequireFromString("9.999"))
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)

		p, err := svc.inventory.Intake(ctx, "washer", 7, decimal.RequireFromString("9.99"))
		require.NoError(t, err)

		products, err := svc.inventory.ListProducts(ctx)
		require.NoError(t, err)
		var stored *domain.Product
		for _, sp := range products {
			if sp.ID == p.ID {
				stored = sp
			}
		}
		require.NotNil(t, stored)
		assert.True(t, stored.Price.Equal(p.Price), "price = %s", stored.Price)
		assert.True(t, stored.TotalValue.Equal(p.TotalValue), "total value = %s", stored.TotalValue)
		assert.Equal(t, "69.93", stored.TotalValue.StringFixed(2))
	})

	t.Run("round trip and price freezing", func(t *testing.T) {
		p, err := svc.inventory.Intake(ctx, "nut", 10, decimal.RequireFromString("5.00"))
		require.NoError(t, err)

		clientPrice := decimal.NewFromInt(1)
		res, err := svc.orders.PlaceOrder(ctx, &application.PlaceOrderRequest{
			CustomerEmail: "Round.Trip@Example.com",
			Items:         []domain.ItemRequest{{ProductID: p.ID, Quantity: 2, Price: &clientPrice}},
		})
		require.NoError(t, err)
		require.Len(t, res.Order.Items, 1)
		assert.True(t, res.Order.Items[0].Price.Equal(decimal.RequireFromString("5.00")))

		stored, err := svc.orders.GetOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatePending, stored.State)
		require.Len(t, stored.Items, 1)

		products, err := svc.inventory.ListProducts(ctx)
		require.NoError(t, err)
		for _, prod := range products {
			if prod.ID == p.ID {
				assert.Equal(t, 8, prod.Quantity)
				assert.True(t, prod.TotalValue.Equal(decimal.RequireFromString("40.00")))
			}
		}
	})

	t.Run("atomicity", func(t *testing.T) {
		a, err := svc.inventory.Intake(ctx, "gear", 5, decimal.NewFromInt(3))
		require.NoError(t, err)
		b, err := svc.inventory.Intake(ctx, "chain", 1, decimal.NewFromInt(3))
		require.NoError(t, err)

		before, err := svc.orders.ListOrders(ctx)
		require.NoError(t, err)

		_, err = svc.orders.PlaceOrder(ctx, &application.PlaceOrderRequest{
			CustomerEmail: "atomic@example.com",
			Items: []domain.ItemRequest{
				{ProductID: a.ID, Quantity: 2},
				{ProductID: b.ID, Quantity: 2},
			},
		})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, b.ID, domain.OffendingProduct(err))

		after, err := svc.orders.ListOrders(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))

		require.NoError(t, svc.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			got, err := repos.Products.FindForUpdate(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, got.Quantity)
			return nil
		}))
	})

	t.Run("no oversell under concurrency", func(t *testing.T) {
		const q, n = 5, 8
		p, err := svc.inventory.Intake(ctx, "last-units", q, decimal.NewFromInt(2))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.orders.PlaceOrder(ctx, &application.PlaceOrderRequest{
					CustomerEmail: "race@example.com",
					Items:         []domain.ItemRequest{{ProductID: p.ID, Quantity: q}},
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
		assert.Equal(t, 1, succeeded)

		require.NoError(t, svc.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			got, err := repos.Products.FindForUpdate(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Quantity)
			return nil
		}))
	})

	t.Run("concurrent orders for a new email create one customer", func(t *testing.T) {
		p, err := svc.inventory.Intake(ctx, "spring", 50, decimal.NewFromInt(1))
		require.NoError(t, err)

		var wg sync.WaitGroup
		ids := make([]int64, 6)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := svc.orders.PlaceOrder(ctx, &application.PlaceOrderRequest{
					CustomerEmail: "same@example.com",
					Items:         []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}},
				})
				if assert.NoError(t, err) {
					ids[i] = res.Order.CustomerID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("cancel restores stock", func(t *testing.T) {
		p, err := svc.inventory.Intake(ctx, "washer", 4, decimal.NewFromInt(1))
		require.NoError(t, err)
		res, err := svc.orders.PlaceOrder(ctx, &application.PlaceOrderRequest{
			CustomerEmail: "cancel@example.com",
			Items:         []domain.ItemRequest{{ProductID: p.ID, Quantity: 3}},
		})
		require.NoError(t, err)

		cancelled, err := svc.orders.CancelOrder(ctx, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateCancelled, cancelled.State)

		_, err = svc.orders.CancelOrder(ctx, res.Order.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotPending)

		adjusted, err := svc.inventory.AdjustStock(ctx, []application.StockAdjustment{{ProductID: p.ID, Quantity: 4}})
		require.NoError(t, err)
		assert.Equal(t, 0, adjusted[0].Quantity)
	})
}
