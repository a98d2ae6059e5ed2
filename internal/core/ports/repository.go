package ports

import (
	"context"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

// EventBuilder produces the outbox event for an order inside the write transaction,
// after ids and timestamps have been assigned.
type EventBuilder func(order *domain.Order) domain.OrderEvent

type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetStoreByName(ctx context.Context, storeName string) (*domain.Profile, error)
	// CreateProfile inserts the profile unless one exists and returns the stored row.
	CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error)
}

type MenuRepository interface {
	ListMenu(ctx context.Context, storeID string, activeOnly bool) ([]domain.MenuItem, error)
	GetMenuItem(ctx context.Context, storeID, id string) (*domain.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *domain.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error
	DeleteMenuItem(ctx context.Context, storeID, id string) error
	ReorderMenu(ctx context.Context, storeID string, ids []string) error
}

type OrderRepository interface {
	// CreateOrder writes the order, its items and the outbox event atomically.
	CreateOrder(ctx context.Context, order *domain.Order, event EventBuilder) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	FindOrderByDraft(ctx context.Context, draftID string) (*domain.Order, error)
	// AcceptOrder sets ACCEPT on the order when it belongs to storeID. When no row
	// matches it returns (nil, false, nil).
	AcceptOrder(ctx context.Context, orderID, storeID string, event EventBuilder) (*domain.Order, bool, error)
	ListOrders(ctx context.Context, storeID string, filter domain.OrderFilter, page domain.Page) ([]domain.Order, int, error)
}

type DraftRepository interface {
	SaveDraft(ctx context.Context, draft *domain.CheckoutDraft) error
	GetDraft(ctx context.Context, id string) (*domain.CheckoutDraft, error)
	// ClaimDraft moves a staged, unexpired draft to claimed. Anything else is ErrNotFound.
	ClaimDraft(ctx context.Context, id string, now time.Time) (*domain.CheckoutDraft, error)
	ReleaseDraft(ctx context.Context, id string) error
	DeleteDraft(ctx context.Context, id string) error
	PurgeExpiredDrafts(ctx context.Context, now time.Time) (int, error)
}

type OutboxRepository interface {
	// PublishPending hands up to limit unpublished events to fn in sequence order and
	// marks the ones fn accepted as published. It stops at the first failure.
	PublishPending(ctx context.Context, limit int, fn func(ctx context.Context, event domain.OrderEvent) error) (int, error)
}

type DeliveryRecord struct {
	Key       string
	OrderID   string
	Event     domain.EventType
	Delivered bool
	Attempts  int
}

// DeliveryClaim is the result of trying to take an inbox key before sending.
type DeliveryClaim int

const (
	// ClaimAcquired means the caller owns the key until it records an outcome or the lease runs out.
	ClaimAcquired DeliveryClaim = iota
	// ClaimDelivered means the key was already delivered.
	ClaimDelivered
	// ClaimBusy means another worker holds an unexpired lease on the key.
	ClaimBusy
)

type InboxRepository interface {
	ClaimDelivery(ctx context.Context, rec DeliveryRecord, lease time.Duration) (DeliveryClaim, error)
	// RecordDelivery stores the outcome and releases the claim. A delivered key stays delivered.
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
}

// Repository is everything the Postgres adapter provides.
type Repository interface {
	ProfileRepository
	MenuRepository
	OrderRepository
	DraftRepository
	OutboxRepository
	InboxRepository
	Ping(ctx context.Context) error
	Close()
}
