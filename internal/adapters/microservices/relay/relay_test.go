package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/adapters/db/memory"
	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/adapters/realtime"
	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

type fakeBroker struct {
	published []domain.OrderEvent
	failAfter int
}

func (b *fakeBroker) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	if b.failAfter >= 0 && len(b.published) >= b.failAfter {
		return errors.New("channel closed")
	}
	b.published = append(b.published, event)
	return nil
}

func seed(t *testing.T, repo *memory.Repository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		order := &domain.Order{
			ID:          uuid.NewString(),
			StoreID:     "s-1",
			PhoneNumber: "010-1234-5678",
			TotalAmount: 8000,
			Status:      domain.StatusPending,
			CreatedAt:   time.Now().UTC(),
			Items:       []domain.OrderItem{{MenuItemID: "burger", Quantity: 1, Price: 8000}},
		}
		require.NoError(t, repo.CreateOrder(context.Background(), order, func(o *domain.Order) domain.OrderEvent {
			return domain.OrderEvent{ID: uuid.NewString(), Type: domain.EventOrderCreated, OrderID: o.ID, StoreID: o.StoreID}
		}))
	}
}

func newRelay(repo *memory.Repository, broker *fakeBroker, feed *realtime.MemoryFeed, m *metrics.Metrics, batch int) *RelayService {
	l := logger.New("outbox-relay", io.Discard, slog.LevelInfo)
	return NewRelayService(repo, broker, feed, nil, m, Options{BatchSize: batch, PollInterval: time.Second}, l)
}

func TestDrainPublishesInBatches(t *testing.T) {
	repo := memory.New()
	seed(t, repo, 3)
	broker := &fakeBroker{failAfter: -1}
	feed := realtime.NewMemoryFeed()
	var woken int
	_, err := feed.Subscribe("s-1", func(domain.OrderEvent) { woken++ })
	require.NoError(t, err)
	m := metrics.New()

	r := newRelay(repo, broker, feed, m, 2)
	assert.Equal(t, 2, r.Drain(context.Background()))
	assert.Equal(t, 1, r.Drain(context.Background()))
	assert.Equal(t, 0, r.Drain(context.Background()))

	assert.Len(t, broker.published, 3)
	assert.Equal(t, 3, woken)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.OutboxPublished.WithLabelValues(string(domain.EventOrderCreated))))
	for _, e := range repo.Events() {
		assert.NotNil(t, e.PublishedAt)
	}
}

func TestDrainLeavesUnbrokeredEventsPending(t *testing.T) {
	repo := memory.New()
	seed(t, repo, 3)
	broker := &fakeBroker{failAfter: 1}

	r := newRelay(repo, broker, realtime.NewMemoryFeed(), metrics.New(), 10)
	assert.Equal(t, 1, r.Drain(context.Background()))

	events := repo.Events()
	assert.NotNil(t, events[0].PublishedAt)
	assert.Nil(t, events[1].PublishedAt)
	assert.Nil(t, events[2].PublishedAt)

	broker.failAfter = -1
	assert.Equal(t, 2, r.Drain(context.Background()))
	assert.Equal(t, events[1].ID, broker.published[1].ID)
}
