package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

func TestMenuCommandsRequireStore(t *testing.T) {
	f := newFixture(t)
	cmd := domain.AddMenuItem{Name: "Fries", Price: 3000, Image: "https://cdn.example/fries.png"}

	_, err := f.commands.Execute(f.ctx, newCustomer(), "", cmd)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.commands.Execute(f.ctx, nil, "", cmd)
	assert.ErrorIs(t, err, domain.ErrAuthRequired)

	out, err := f.commands.Execute(f.ctx, f.owner, "", cmd)
	require.NoError(t, err)
	item := out.(*domain.MenuItem)
	assert.Equal(t, 2, item.DisplayOrder)
	assert.True(t, item.IsActive)
	assert.Equal(t, f.store.ID, item.ProfileID)
}

func TestMenuCommandsEditReorderDelete(t *testing.T) {
	f := newFixture(t)
	price := 9000
	inactive := false

	out, err := f.commands.Execute(f.ctx, f.owner, "", domain.EditMenuItem{ID: f.burger.ID, Price: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 9000, out.(*domain.MenuItem).Price)

	active, err := f.menu.ListActive(f.ctx, f.store.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, f.coke.ID, active[0].ID)

	_, err = f.commands.Execute(f.ctx, f.owner, "", domain.ReorderMenu{IDs: []string{f.coke.ID, f.burger.ID}})
	require.NoError(t, err)
	all, err := f.menu.ListAll(f.ctx, f.store)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, f.coke.ID, all[0].ID)

	_, err = f.commands.Execute(f.ctx, f.owner, "", domain.ReorderMenu{IDs: []string{f.coke.ID, f.coke.ID}})
	assert.True(t, domain.IsValidation(err))

	_, err = f.commands.Execute(f.ctx, f.owner, "", domain.DeleteMenuItem{ID: f.burger.ID})
	require.NoError(t, err)
	_, err = f.commands.Execute(f.ctx, f.owner, "", domain.DeleteMenuItem{ID: f.burger.ID})
	assert.ErrorIs(t, err, domain.ErrMenuNotFound)
}

func TestMenuCommandsCannotTouchOtherStores(t *testing.T) {
	f := newFixture(t)
	other := f.addStore(t, "burger-barn")
	otherOwner := &domain.Identity{UserID: other.ID}
	price := 1

	_, err := f.commands.Execute(f.ctx, otherOwner, "", domain.EditMenuItem{ID: f.burger.ID, Price: &price})
	assert.ErrorIs(t, err, domain.ErrMenuNotFound)
	_, err = f.commands.Execute(f.ctx, otherOwner, "", domain.ReorderMenu{IDs: []string{f.burger.ID}})
	assert.ErrorIs(t, err, domain.ErrMenuNotFound)
}

func TestAcceptAndLogoutCommands(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, "010-1234-5678")

	out, err := f.commands.Execute(f.ctx, f.owner, "", domain.AcceptOrder{OrderID: order.ID})
	require.NoError(t, err)
	assert.True(t, out.(domain.AcceptResult).Changed)

	_, err = f.commands.Execute(f.ctx, f.owner, "token-1", domain.Logout{})
	require.NoError(t, err)
	assert.Equal(t, []string{"token-1"}, f.auth.signedOut)
}

func TestStorefront(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, f.store.ID, "Hidden", 500, false)

	store, items, err := f.menu.Storefront(f.ctx, "pizza-house")
	require.NoError(t, err)
	assert.Equal(t, f.store.ID, store.ID)
	assert.Len(t, items, 2)

	_, _, err = f.menu.Storefront(f.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}
