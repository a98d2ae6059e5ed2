package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
)

func TestClaimDraftOnlyOnce(t *testing.T) {
	ctx := context.Background()
	r := New()
	now := time.Now().UTC()
	require.NoError(t, r.SaveDraft(ctx, &domain.CheckoutDraft{ID: "d-1", Status: domain.DraftStaged, ExpiresAt: now.Add(time.Hour)}))

	claimed, err := r.ClaimDraft(ctx, "d-1", now)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftClaimed, claimed.Status)

	_, err = r.ClaimDraft(ctx, "d-1", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.ReleaseDraft(ctx, "d-1"))
	_, err = r.ClaimDraft(ctx, "d-1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := r.PurgeExpiredDrafts(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublishPendingStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	r := New()
	for _, id := range []string{"a", "b", "c"} {
		r.appendEvent(domain.OrderEvent{ID: id})
	}

	boom := errors.New("broker down")
	n, err := r.PublishPending(ctx, 10, func(ctx context.Context, e domain.OrderEvent) error {
		if e.ID == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)

	var seen []string
	n, err = r.PublishPending(ctx, 10, func(ctx context.Context, e domain.OrderEvent) error {
		seen = append(seen, e.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestRecordDeliveryNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.RecordDelivery(ctx, ports.DeliveryRecord{Key: "o-1:order.created", Delivered: true, Attempts: 1}))
	require.NoError(t, r.RecordDelivery(ctx, ports.DeliveryRecord{Key: "o-1:order.created", Delivered: false, Attempts: 5}))

	rec, ok := r.Delivery("o-1:order.created")
	require.True(t, ok)
	assert.True(t, rec.Delivered)
	assert.Equal(t, 1, rec.Attempts)

	claim, err := r.ClaimDelivery(ctx, ports.DeliveryRecord{Key: "o-1:order.created"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimDelivered, claim)
}

func TestClaimDeliveryHasOneOwnerUntilLeaseExpires(t *testing.T) {
	ctx := context.Background()
	r := New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	rec := ports.DeliveryRecord{Key: "o-1:order.accepted", OrderID: "o-1", Event: domain.EventOrderAccepted}

	claim, err := r.ClaimDelivery(ctx, rec, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimAcquired, claim)

	claim, err = r.ClaimDelivery(ctx, rec, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimBusy, claim)

	now = now.Add(2 * time.Minute)
	claim, err = r.ClaimDelivery(ctx, rec, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimAcquired, claim, "expired lease is taken over")

	rec.Attempts = 1
	require.NoError(t, r.RecordDelivery(ctx, rec))
	claim, err = r.ClaimDelivery(ctx, rec, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ports.ClaimAcquired, claim, "recording a failure releases the claim")
}
