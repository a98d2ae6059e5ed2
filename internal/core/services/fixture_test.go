package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/adapters/db/memory"
	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

type fakeAuth struct {
	tokens     map[string]domain.Identity
	session    *domain.Session
	err        error
	signedOut  []string
	verifier   string
	exchangeOK bool
}

var _ ports.AuthProvider = (*fakeAuth)(nil)

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: make(map[string]domain.Identity), verifier: "verifier", exchangeOK: true}
}

func (f *fakeAuth) GetCurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return nil, ports.ErrInvalidToken
	}
	return &id, nil
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAuth) SignOut(ctx context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeAuth) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.Session, error) {
	if !f.exchangeOK || verifier != f.verifier {
		return nil, ports.ErrInvalidCredentials
	}
	return f.session, nil
}

func (f *fakeAuth) SignInWithOAuth(provider, redirectTo string) (ports.OAuthStart, error) {
	return ports.OAuthStart{URL: "https://auth.example/authorize?provider=" + provider, Verifier: f.verifier}, nil
}

type fixture struct {
	ctx      context.Context
	repo     *memory.Repository
	auth     *fakeAuth
	identity *IdentityService
	menu     *MenuService
	orders   *OrderService
	checkout *CheckoutService
	commands *CommandService

	store  *domain.Profile
	owner  *domain.Identity
	burger domain.MenuItem
	coke   domain.MenuItem
}

func testLogger() *logger.Logger {
	return logger.New("test", io.Discard, slog.LevelDebug)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	auth := newFakeAuth()
	log := testLogger()

	f := &fixture{ctx: ctx, repo: repo, auth: auth}
	f.identity = NewIdentityService(auth, repo, log)
	f.menu = NewMenuService(repo, repo, log)
	f.orders = NewOrderService(repo, repo, repo, log)
	f.checkout = NewCheckoutService(repo, f.orders, f.identity, time.Hour, log)
	f.commands = NewCommandService(f.menu, f.orders, f.identity)

	f.store = f.addStore(t, "pizza-house")
	f.owner = &domain.Identity{UserID: f.store.ID, Email: "owner@example.com"}
	f.burger = f.addItem(t, f.store.ID, "Burger", 8000, true)
	f.coke = f.addItem(t, f.store.ID, "Coke", 2000, true)
	return f
}

func (f *fixture) addStore(t *testing.T, name string) *domain.Profile {
	t.Helper()
	now := time.Now().UTC()
	store, err := f.repo.CreateProfile(f.ctx, &domain.Profile{
		ID:          uuid.NewString(),
		DisplayName: name,
		StoreName:   &name,
		Role:        domain.RoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
	return store
}

func (f *fixture) addItem(t *testing.T, storeID, name string, price int, active bool) domain.MenuItem {
	t.Helper()
	now := time.Now().UTC()
	item := domain.MenuItem{
		ID:        uuid.NewString(),
		ProfileID: storeID,
		Name:      name,
		Price:     price,
		Image:     "https://cdn.example/" + name + ".png",
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.repo.CreateMenuItem(f.ctx, &item))
	return item
}

func newCustomer() *domain.Identity {
	return &domain.Identity{UserID: uuid.NewString(), Email: "kim@example.com"}
}

// placeOrder submits burger x1 + coke x2 for a new customer.
func (f *fixture) placeOrder(t *testing.T, phone string) *domain.Order {
	t.Helper()
	cart, err := f.orders.BuildCart(f.ctx, f.store.ID, []ItemRequest{
		{MenuItemID: f.burger.ID, Quantity: 1},
		{MenuItemID: f.coke.ID, Quantity: 2},
	})
	require.NoError(t, err)
	order, err := f.orders.Submit(f.ctx, SubmitInput{
		Caller:      newCustomer(),
		StoreID:     f.store.ID,
		Cart:        cart,
		TotalAmount: cart.Total(),
		PhoneNumber: phone,
	})
	require.NoError(t, err)
	return order
}

func eventsOfType(events []domain.OrderEvent, t domain.EventType) []domain.OrderEvent {
	var out []domain.OrderEvent
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
