package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// ItemRequest is one cart line as posted by the customer; prices come from the catalog.
type ItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type SubmitInput struct {
	Caller      *domain.Identity
	StoreID     string
	Cart        *domain.Cart
	TotalAmount int
	PhoneNumber string
	// DraftID ties the order to the checkout draft it was resumed from.
	DraftID   string
	Automatic bool
}

type OrderService struct {
	orders   ports.OrderRepository
	menus    ports.MenuRepository
	profiles ports.ProfileRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewOrderService(orders ports.OrderRepository, menus ports.MenuRepository, profiles ports.ProfileRepository, logger *logger.Logger) *OrderService {
	return &OrderService{orders: orders, menus: menus, profiles: profiles, logger: logger, now: time.Now}
}

// BuildCart rebuilds the customer's cart from the store's active catalog,
// capturing the current prices.
func (s *OrderService) BuildCart(ctx context.Context, storeID string, lines []ItemRequest) (*domain.Cart, error) {
	if len(lines) == 0 {
		return nil, domain.NewValidationError("items", "cart is empty")
	}
	items, err := s.menus.ListMenu(ctx, storeID, true)
	if err != nil {
		return nil, domain.Persistence("list menu", err)
	}
	catalog := domain.NewCatalog(items)

	cart := domain.NewCart(storeID)
	for i, line := range lines {
		item, ok := catalog[line.MenuItemID]
		if !ok {
			return nil, domain.NewValidationError("items", "item[%d] is not on the menu", i)
		}
		if line.Quantity < 1 || line.Quantity > maxLineQuantity {
			return nil, domain.NewValidationError("items", "item[%d].quantity must be 1 - %d (got %d)", i, maxLineQuantity, line.Quantity)
		}
		for q := 0; q < line.Quantity; q++ {
			cart.Increase(item)
		}
	}
	return cart, nil
}

// Submit persists one order with its items and the order.created event.
func (s *OrderService) Submit(ctx context.Context, in SubmitInput) (*domain.Order, error) {
	if in.Caller == nil {
		return nil, domain.ErrAuthRequired
	}
	store, err := s.store(ctx, in.StoreID)
	if err != nil {
		return nil, err
	}
	if in.Cart == nil || in.Cart.IsEmpty() {
		return nil, domain.NewValidationError("items", "cart is empty")
	}

	if in.DraftID != "" {
		if existing, err := s.orders.FindOrderByDraft(ctx, in.DraftID); err == nil {
			s.logger.Info(existing.Number, "order_draft_replayed", "Draft already produced an order", map[string]interface{}{"draft_id": in.DraftID})
			return existing, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Persistence("find order by draft", err)
		}
	}

	now := s.now().UTC()
	customerID := in.Caller.UserID
	order := &domain.Order{
		ID:          uuid.NewString(),
		StoreID:     store.ID,
		CustomerID:  &customerID,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		TotalAmount: in.TotalAmount,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       in.Cart.OrderItems(),
	}
	if in.DraftID != "" {
		draftID := in.DraftID
		order.DraftID = &draftID
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}

	if err := CheckOrderValues(*order); err != nil {
		return nil, err
	}

	err = s.orders.CreateOrder(ctx, order, s.eventBuilder(domain.EventOrderCreated, store, in.Automatic))
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && in.DraftID != "" {
			if existing, findErr := s.orders.FindOrderByDraft(ctx, in.DraftID); findErr == nil {
				return existing, nil
			}
		}
		s.logger.Error(order.ID, "order_insert_failed", "Order could not be stored", err, map[string]interface{}{"store_id": store.ID})
		return nil, domain.Persistence("create order", err)
	}

	s.logger.Info(order.Number, "order_received", "Order stored", map[string]interface{}{
		"store_id":     store.ID,
		"order_id":     order.ID,
		"total_amount": order.TotalAmount,
		"automatic":    in.Automatic,
	})
	return order, nil
}

// Accept moves an order of the caller's store to ACCEPT. An order of another store,
// or an unknown order, is a no-op reported as Changed=false.
func (s *OrderService) Accept(ctx context.Context, caller *domain.Identity, orderID string) (domain.AcceptResult, error) {
	if caller == nil {
		return domain.AcceptResult{}, domain.ErrAuthRequired
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return domain.AcceptResult{}, domain.NewValidationError("order_id", "invalid order id")
	}

	store, err := s.profiles.GetProfile(ctx, caller.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.AcceptResult{}, domain.Persistence("get profile", err)
	}

	order, changed, err := s.orders.AcceptOrder(ctx, orderID, caller.UserID, s.eventBuilder(domain.EventOrderAccepted, store, false))
	if err != nil {
		s.logger.Error(orderID, "order_accept_failed", "Order could not be accepted", err, nil)
		return domain.AcceptResult{}, domain.Persistence("accept order", err)
	}
	if !changed {
		s.logger.Warn(orderID, "order_accept_noop", "Accept matched no order of the caller's store", map[string]interface{}{"caller_id": caller.UserID})
		return domain.AcceptResult{Changed: false}, nil
	}

	s.logger.Info(order.Number, "order_accepted", "Order accepted", map[string]interface{}{"order_id": order.ID, "store_id": order.StoreID})
	return domain.AcceptResult{Changed: true, Order: order}, nil
}

// ListOrders is the owner dashboard list, always scoped to the caller's store.
func (s *OrderService) ListOrders(ctx context.Context, caller *domain.Identity, filter domain.OrderFilter, page domain.Page) (domain.OrderList, error) {
	if caller == nil {
		return domain.OrderList{}, domain.ErrAuthRequired
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.OrderList{}, domain.NewValidationError("to", "must not be before from")
	}
	filter.Phone = strings.TrimSpace(filter.Phone)

	orders, total, err := s.orders.ListOrders(ctx, caller.UserID, filter, page)
	if err != nil {
		return domain.OrderList{}, domain.Persistence("list orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return domain.OrderList{Orders: orders, TotalCount: total, Page: page.Number, PageSize: page.Size}, nil
}

// GetOrder returns an order to the customer who placed it or to the store that received it.
func (s *OrderService) GetOrder(ctx context.Context, caller *domain.Identity, orderID string) (*domain.Order, error) {
	if caller == nil {
		return nil, domain.ErrAuthRequired
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Persistence("get order", err)
	}
	isCustomer := order.CustomerID != nil && *order.CustomerID == caller.UserID
	if !isCustomer && order.StoreID != caller.UserID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) store(ctx context.Context, storeID string) (*domain.Profile, error) {
	if storeID == "" {
		return nil, domain.ErrStoreNotFound
	}
	store, err := s.profiles.GetProfile(ctx, storeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrStoreNotFound
		}
		return nil, domain.Persistence("get store", err)
	}
	return store, nil
}

func (s *OrderService) eventBuilder(t domain.EventType, store *domain.Profile, automatic bool) ports.EventBuilder {
	return func(order *domain.Order) domain.OrderEvent {
		at := s.now().UTC()
		return domain.OrderEvent{
			ID:        uuid.NewString(),
			Type:      t,
			OrderID:   order.ID,
			StoreID:   order.StoreID,
			Payload:   domain.NewWebhookPayload(t, order, store, automatic, at),
			CreatedAt: at,
		}
	}
}
