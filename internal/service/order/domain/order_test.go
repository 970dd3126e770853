package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func TestOrder_Total(t *testing.T) {
	o, err := NewOrder(1)
	require.NoError(t, err)
	assert.Equal(t, StatePending, o.State)
	assert.True(t, o.Total().IsZero())

	o.AddItem(&LineItem{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00"), Tax: decimal.RequireFromString("1.50")})
	o.AddItem(&LineItem{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5.00"), Discount: decimal.RequireFromString("0.50")})

	assert.Equal(t, "26.00", o.Total().StringFixed(2))
}

func TestOrder_Cancel(t *testing.T) {
	o, err := NewOrder(1)
	require.NoError(t, err)

	require.NoError(t, o.Cancel())
	assert.Equal(t, StateCancelled, o.State)
	assert.ErrorIs(t, o.Cancel(), ErrOrderNotPending)
	assert.ErrorIs(t, o.Cancel(), ErrInvalidRequest)
}

func TestNewOrder_RequiresCustomer(t *testing.T) {
	_, err := NewOrder(0)
	assert.Error(t, err)
}

func TestValidateItems(t *testing.T) {
	tests := []struct {
		name    string
		items   []ItemRequest
		wantErr error
		product int64
	}{
		{name: "empty", items: nil, wantErr: ErrEmptyOrder},
		{name: "bad product id", items: []ItemRequest{{ProductID: 0, Quantity: 1}}, wantErr: ErrInvalidRequest},
		{name: "zero quantity", items: []ItemRequest{{ProductID: 3, Quantity: 0}}, wantErr: ErrInvalidQuantity, product: 3},
		{name: "negative discount", items: []ItemRequest{{ProductID: 4, Quantity: 1, Discount: d("-1")}}, wantErr: ErrInvalidPrice, product: 4},
		{name: "sub-cent tax", items: []ItemRequest{{ProductID: 6, Quantity: 1, Tax: d("0.125")}}, wantErr: ErrInvalidPrice, product: 6},
		{name: "ok", items: []ItemRequest{{ProductID: 5, Quantity: 2, Tax: d("0"), Price: d("-9")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItems(tt.items)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.product, OffendingProduct(err))
		})
	}
}
