package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

func createdEvent(storeID, phone string, at time.Time) domain.OrderEvent {
	return domain.OrderEvent{
		Type:    domain.EventOrderCreated,
		OrderID: "o-1",
		StoreID: storeID,
		Payload: domain.WebhookPayload{
			OrderNumber: "ORD_20250301_001",
			TotalAmount: 12000,
			PhoneNumber: phone,
			Items: []domain.WebhookItem{
				{Name: "Burger", Quantity: 1, Price: 8000},
				{Name: "Coke", Quantity: 2, Price: 2000},
			},
			Timestamps: domain.WebhookTimestamp{CreatedAt: at},
		},
		CreatedAt: at,
	}
}

func TestNotifyCreatedRaisesToastThenRefresh(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewDashboardSession("s-1", domain.OrderFilter{})

	out := s.Notify(createdEvent("s-1", "010-1234-5678", now), now)
	require.Len(t, out, 2)

	toast := out[0]
	assert.Equal(t, NotifyToast, toast.Kind)
	assert.Equal(t, 3, toast.ItemCount)
	assert.Equal(t, 12000, toast.TotalAmount)
	assert.False(t, toast.Chime)
	require.NotNil(t, toast.ExpiresAt)
	assert.Equal(t, now.Add(ToastTTL), *toast.ExpiresAt)

	assert.Equal(t, NotifyRefresh, out[1].Kind)
}

func TestNotifyChimeOnlyAfterArming(t *testing.T) {
	now := time.Now()
	s := NewDashboardSession("s-1", domain.OrderFilter{})
	s.ArmChime()
	assert.True(t, s.Armed())

	out := s.Notify(createdEvent("s-1", "010-1234-5678", now), now)
	assert.True(t, out[0].Chime)
}

func TestNotifyRespectsFilterAndStore(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewDashboardSession("s-1", domain.OrderFilter{Phone: "9999"})

	out := s.Notify(createdEvent("s-1", "010-1234-5678", now), now)
	require.Len(t, out, 1)
	assert.Equal(t, NotifyRefresh, out[0].Kind)

	yesterday := now.Add(-24 * time.Hour)
	s.SetFilter(domain.OrderFilter{To: &yesterday})
	out = s.Notify(createdEvent("s-1", "010-1234-5678", now), now)
	require.Len(t, out, 1)

	assert.Nil(t, s.Notify(createdEvent("s-2", "010-1234-5678", now), now))
}

func TestNotifyAcceptedOnlyRefreshes(t *testing.T) {
	s := NewDashboardSession("s-1", domain.OrderFilter{})
	out := s.Notify(domain.OrderEvent{Type: domain.EventOrderAccepted, OrderID: "o-1", StoreID: "s-1"}, time.Now())
	require.Len(t, out, 1)
	assert.Equal(t, NotifyRefresh, out[0].Kind)
	assert.Equal(t, domain.EventOrderAccepted, out[0].Event)
}
