package domain

import "time"

type DraftStatus string

const (
	DraftStaged  DraftStatus = "staged"
	DraftClaimed DraftStatus = "claimed"
)

// CheckoutDraft is a staged cart that survives a login or phone-capture redirect.
// ID doubles as the continuation token handed to the client.
type CheckoutDraft struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"store_id"`
	CustomerID  *string     `json:"customer_id,omitempty"`
	Lines       []CartLine  `json:"items"`
	TotalAmount int         `json:"total_amount"`
	PhoneNumber *string     `json:"phone_number,omitempty"`
	Status      DraftStatus `json:"status"`
	ExpiresAt   time.Time   `json:"expires_at"`
	CreatedAt   time.Time   `json:"created_at"`
	ClaimedAt   *time.Time  `json:"claimed_at,omitempty"`
}

func (d *CheckoutDraft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

func (d *CheckoutDraft) Cart() *Cart {
	return RestoreCart(d.StoreID, d.Lines)
}

// CheckoutState is where a customer is in the checkout-across-login flow.
type CheckoutState string

const (
	CheckoutBrowsing       CheckoutState = "browsing"
	CheckoutAwaitingAuth   CheckoutState = "awaiting_auth"
	CheckoutAwaitingPhone  CheckoutState = "awaiting_phone"
	CheckoutAutoSubmitting CheckoutState = "auto_submitting"
	CheckoutCompleted      CheckoutState = "completed"
	CheckoutFailed         CheckoutState = "failed"
	CheckoutAbandoned      CheckoutState = "abandoned"
)

func (s CheckoutState) Terminal() bool {
	switch s {
	case CheckoutCompleted, CheckoutFailed, CheckoutAbandoned:
		return true
	}
	return false
}
