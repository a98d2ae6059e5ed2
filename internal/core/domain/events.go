package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventOrderCreated  EventType = "order.created"
	EventOrderAccepted EventType = "order.accepted"
)

func (t EventType) Valid() bool {
	return t == EventOrderCreated || t == EventOrderAccepted
}

// Short is the last segment of the event type, used in routing keys and subjects.
func (t EventType) Short() string {
	switch t {
	case EventOrderCreated:
		return "created"
	case EventOrderAccepted:
		return "accepted"
	}
	return string(t)
}

// OrderEvent is an outbox row: one state change of an order, published to
// the webhook queue and the realtime feed.
type OrderEvent struct {
	Seq         int64          `json:"seq"`
	ID          string         `json:"event_id"`
	Type        EventType      `json:"event_type"`
	OrderID     string         `json:"order_id"`
	StoreID     string         `json:"store_id"`
	Payload     WebhookPayload `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Attempt     int            `json:"attempt,omitempty"`
}

// IdempotencyKey identifies a delivery on the consumer side.
func (e OrderEvent) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s", e.OrderID, e.Type)
}

// RoutingKey is order.{created|accepted}.{store_id}
func (e OrderEvent) RoutingKey() string {
	return fmt.Sprintf("order.%s.%s", e.Type.Short(), e.StoreID)
}

// Subject is the realtime subject orders.{store_id}.{created|accepted}
func (e OrderEvent) Subject() string {
	return StoreSubject(e.StoreID, e.Type.Short())
}

func StoreSubject(storeID, kind string) string {
	return fmt.Sprintf("orders.%s.%s", storeID, kind)
}

// WebhookPayload is the JSON body posted to the operator automation endpoint.
type WebhookPayload struct {
	Event       EventType        `json:"event"`
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	Status      OrderStatus      `json:"status"`
	Store       WebhookStore     `json:"store"`
	Items       []WebhookItem    `json:"items"`
	TotalAmount int              `json:"total_amount"`
	PhoneNumber string           `json:"phone_number"`
	Automatic   bool             `json:"automatic,omitempty"`
	Timestamps  WebhookTimestamp `json:"timestamps"`
}

type WebhookStore struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

type WebhookItem struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      int    `json:"price"`
}

type WebhookTimestamp struct {
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// NewWebhookPayload assembles the notification body from an order and its store.
func NewWebhookPayload(event EventType, order *Order, store *Profile, automatic bool, at time.Time) WebhookPayload {
	items := make([]WebhookItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, WebhookItem{MenuItemID: it.MenuItemID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	p := WebhookPayload{
		Event:       event,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		Items:       items,
		TotalAmount: order.TotalAmount,
		PhoneNumber: order.PhoneNumber,
		Automatic:   automatic,
		Timestamps:  WebhookTimestamp{CreatedAt: order.CreatedAt},
	}
	if store != nil {
		p.Store = WebhookStore{ID: store.ID, Name: deref(store.StoreName), Number: deref(store.StoreNumber)}
	}
	if event == EventOrderAccepted {
		accepted := at
		p.Timestamps.AcceptedAt = &accepted
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
