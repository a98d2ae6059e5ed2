package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "PENDING"
	StatusAccept  OrderStatus = "ACCEPT"
	// StatusCancel exists in the schema enum; no transition sets it.
	StatusCancel OrderStatus = "CANCEL"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccept, StatusCancel:
		return true
	}
	return false
}

// CanTransition reports whether an order in status s may move to next.
// Accepting an accepted order is allowed and changes nothing.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAccept
	case StatusAccept:
		return next == StatusAccept
	default:
		return false
	}
}

type Order struct {
	ID          string      `json:"id"`
	Number      string      `json:"order_number"` // ORD_YYYYMMDD_NNN
	StoreID     string      `json:"store_id"`
	CustomerID  *string     `json:"customer_id,omitempty"` // nullable
	DraftID     *string     `json:"draft_id,omitempty"`    // nullable
	PhoneNumber string      `json:"phone_number"`
	TotalAmount int         `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Items       []OrderItem `json:"items"`
}

type OrderItem struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      int    `json:"price"` // snapshot at order time
}

func (o *Order) ItemsTotal() int {
	total := 0
	for _, it := range o.Items {
		total += it.Price * it.Quantity
	}
	return total
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// CheckTotal verifies totalAmount against the line items.
func (o *Order) CheckTotal() error {
	if sum := o.ItemsTotal(); sum != o.TotalAmount {
		return NewValidationError("total_amount", "got %d, items sum to %d", o.TotalAmount, sum)
	}
	return nil
}

// OrderFilter narrows the owner dashboard list.
type OrderFilter struct {
	From  *time.Time
	To    *time.Time
	Phone string
}

// Matches reports whether an order created at createdAt with phone falls inside
// the filter. Both bounds are inclusive; the phone matches as a substring.
func (f OrderFilter) Matches(createdAt time.Time, phone string) bool {
	if f.From != nil && createdAt.Before(*f.From) {
		return false
	}
	if f.To != nil && createdAt.After(*f.To) {
		return false
	}
	return f.Phone == "" || strings.Contains(phone, f.Phone)
}

// FormatOrderNumber renders the daily display number ORD_YYYYMMDD_NNN.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD_%s_%03d", day.UTC().Format("20060102"), seq)
}

type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }

type OrderList struct {
	Orders     []Order `json:"orders"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}

// AcceptResult reports whether the accept update matched a row owned by the caller.
type AcceptResult struct {
	Changed bool   `json:"changed"`
	Order   *Order `json:"order,omitempty"`
}

func (r AcceptResult) String() string {
	if !r.Changed {
		return "noop"
	}
	return fmt.Sprintf("accepted %s", r.Order.ID)
}
