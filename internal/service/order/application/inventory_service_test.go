package application

import (
	"context"
	"math"
	"sync"
	"testing"

	"backoffice/internal/service/order/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntake_MergesOnName(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	first := f.intake(t, "widget", 5, "10")
	merged := f.intake(t, "widget", 3, "12")

	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 8, merged.Quantity)
	assert.True(t, merged.Price.Equal(decimal.NewFromInt(12)))
	assert.True(t, merged.TotalValue.Equal(decimal.NewFromInt(96)))

	trimmed := f.intake(t, "  widget ", 1, "12")
	assert.Equal(t, first.ID, trimmed.ID)

	other := f.intake(t, "Widget", 1, "1")
	assert.NotEqual(t, first.ID, other.ID, "names are case-sensitive")

	products, err := f.inventory.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestIntake_Validation(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	_, err := f.inventory.Intake(ctx, " ", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = f.inventory.Intake(ctx, "x", -1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.inventory.Intake(ctx, "x", 1, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	zero, err := f.inventory.Intake(ctx, "placeholder", 0, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, 0, zero.Quantity)
}

func TestIntake_RejectsQuantityOverflow(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	full := f.intake(t, "widget", math.MaxInt, "1.00")

	_, err := f.inventory.Intake(ctx, "widget", 2, decimal.RequireFromString("1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	stored := f.product(t, full.ID)
	assert.Equal(t, math.MaxInt, stored.Quantity)
	assert.False(t, stored.TotalValue.IsNegative())
}

func TestIntake_RejectsSubCentPrice(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	_, err := f.inventory.Intake(ctx, "gadget", 7, decimal.RequireFromString("9.999"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	created := f.intake(t, "gadget", 7, "9.99")
	assert.Equal(t, "69.93", created.TotalValue.StringFixed(2))

	_, err = f.inventory.Intake(ctx, "gadget", 1, decimal.RequireFromString("1.005"))
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	stored := f.product(t, created.ID)
	assert.Equal(t, 7, stored.Quantity, "a rejected merge leaves the row untouched")
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("9.99")))
	assert.True(t, stored.TotalValue.Equal(stored.Price.Mul(decimal.NewFromInt(int64(stored.Quantity)))))
}

func TestAdjustStock_AllOrNothing(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	a := f.intake(t, "a", 5, "2.00")
	b := f.intake(t, "b", 1, "3.00")
	ctx := context.Background()

	_, err := f.inventory.AdjustStock(ctx, []StockAdjustment{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 2},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, b.ID, domain.OffendingProduct(err))
	assert.Equal(t, 5, f.product(t, a.ID).Quantity)

	updated, err := f.inventory.AdjustStock(ctx, []StockAdjustment{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 3, updated[0].Quantity)
	assert.True(t, updated[0].TotalValue.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 0, updated[1].Quantity)
	assert.True(t, updated[1].TotalValue.IsZero())
}

func TestAdjustStock_Validation(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	a := f.intake(t, "a", 5, "2.00")
	ctx := context.Background()

	_, err := f.inventory.AdjustStock(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.inventory.AdjustStock(ctx, []StockAdjustment{{ProductID: a.ID, Quantity: 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.inventory.AdjustStock(ctx, []StockAdjustment{{ProductID: 77, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(77), domain.OffendingProduct(err))
}

func TestListProducts_ConcurrentCallers(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.intake(t, "a", 1, "1")
	f.intake(t, "b", 2, "1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			products, err := f.inventory.ListProducts(context.Background())
			if assert.NoError(t, err) {
				assert.Len(t, products, 2)
			}
		}()
	}
	wg.Wait()
}
