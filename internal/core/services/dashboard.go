package services

import (
	"sync"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

// ToastTTL is how long a new-order toast stays on the dashboard.
const ToastTTL = 10 * time.Second

type NotificationKind string

const (
	NotifyToast   NotificationKind = "toast"
	NotifyRefresh NotificationKind = "refresh"
)

// Notification is one push to a connected owner dashboard.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Event       domain.EventType `json:"event"`
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number,omitempty"`
	ItemCount   int              `json:"item_count,omitempty"`
	TotalAmount int              `json:"total_amount,omitempty"`
	PhoneNumber string           `json:"phone_number,omitempty"`
	Chime       bool             `json:"chime,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

// DashboardSession is the server-side state of one connected dashboard.
type DashboardSession struct {
	StoreID string

	mu     sync.Mutex
	filter domain.OrderFilter
	armed  bool
}

func NewDashboardSession(storeID string, filter domain.OrderFilter) *DashboardSession {
	return &DashboardSession{StoreID: storeID, filter: filter}
}

func (d *DashboardSession) SetFilter(filter domain.OrderFilter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = filter
}

func (d *DashboardSession) Filter() domain.OrderFilter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter
}

// ArmChime records the operator gesture that allows audible alerts for the
// rest of the session.
func (d *DashboardSession) ArmChime() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = true
}

func (d *DashboardSession) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Notify turns a change-feed event into dashboard pushes. Every event of the
// session's store asks for a refresh; a new order inside the active filter
// also raises a toast.
func (d *DashboardSession) Notify(event domain.OrderEvent, now time.Time) []Notification {
	if event.StoreID != d.StoreID {
		return nil
	}
	d.mu.Lock()
	filter, armed := d.filter, d.armed
	d.mu.Unlock()

	out := make([]Notification, 0, 2)
	if event.Type == domain.EventOrderCreated {
		createdAt := event.Payload.Timestamps.CreatedAt
		if createdAt.IsZero() {
			createdAt = event.CreatedAt
		}
		if filter.Matches(createdAt, event.Payload.PhoneNumber) {
			out = append(out, toast(event, armed, now))
		}
	}
	out = append(out, Notification{Kind: NotifyRefresh, Event: event.Type, OrderID: event.OrderID})
	return out
}

func toast(event domain.OrderEvent, chime bool, now time.Time) Notification {
	count := 0
	for _, it := range event.Payload.Items {
		count += it.Quantity
	}
	expires := now.Add(ToastTTL)
	return Notification{
		Kind:        NotifyToast,
		Event:       event.Type,
		OrderID:     event.OrderID,
		OrderNumber: event.Payload.OrderNumber,
		ItemCount:   count,
		TotalAmount: event.Payload.TotalAmount,
		PhoneNumber: event.Payload.PhoneNumber,
		Chime:       chime,
		ExpiresAt:   &expires,
	}
}
