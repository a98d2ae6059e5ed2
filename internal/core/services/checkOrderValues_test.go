package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

func validOrder() domain.Order {
	return domain.Order{
		StoreID:     "s-1",
		PhoneNumber: "010-1234-5678",
		TotalAmount: 12000,
		Items: []domain.OrderItem{
			{MenuItemID: "burger", Quantity: 1, Price: 8000},
			{MenuItemID: "coke", Quantity: 2, Price: 2000},
		},
	}
}

func TestCheckOrderValues(t *testing.T) {
	require.NoError(t, CheckOrderValues(validOrder()))

	tests := map[string]struct {
		mutate func(o *domain.Order)
		field  string
	}{
		"no store":       {func(o *domain.Order) { o.StoreID = "" }, "store_id"},
		"no phone":       {func(o *domain.Order) { o.PhoneNumber = "" }, "phone_number"},
		"bad phone":      {func(o *domain.Order) { o.PhoneNumber = "010 1234 5678" }, "phone_number"},
		"no items":       {func(o *domain.Order) { o.Items = nil; o.TotalAmount = 0 }, "items"},
		"zero quantity":  {func(o *domain.Order) { o.Items[1].Quantity = 0 }, "items"},
		"negative price": {func(o *domain.Order) { o.Items[0].Price = -1 }, "items"},
		"wrong total":    {func(o *domain.Order) { o.TotalAmount = 1 }, "total_amount"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o := validOrder()
			o.Items = append([]domain.OrderItem(nil), o.Items...)
			tc.mutate(&o)

			var verr *domain.ValidationError
			require.ErrorAs(t, CheckOrderValues(o), &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCheckMenuItem(t *testing.T) {
	item := domain.MenuItem{Name: "Burger", Price: 8000, Image: "https://cdn.example/b.png"}
	require.NoError(t, CheckMenuItem(item))

	long := item
	long.Name = strings.Repeat("버", 101)
	assert.True(t, domain.IsValidation(CheckMenuItem(long)))

	noImage := item
	noImage.Image = ""
	assert.True(t, domain.IsValidation(CheckMenuItem(noImage)))
}
