package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCategories(t *testing.T) {
	stock := fmt.Errorf("reserve: %w", &StockError{ProductID: 9, ProductName: "x", Requested: 2, Available: 1})
	assert.ErrorIs(t, stock, ErrInsufficientStock)
	assert.Equal(t, int64(9), OffendingProduct(stock))

	missing := &ProductError{ProductID: 7, Err: ErrProductNotFound}
	assert.ErrorIs(t, missing, ErrNotFound)
	assert.Equal(t, int64(7), OffendingProduct(missing))

	assert.ErrorIs(t, ErrCustomerExists, ErrInvalidRequest)
	assert.Zero(t, OffendingProduct(errors.New("boom")))
}
