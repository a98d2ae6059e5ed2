package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

func TestMemoryFeedRoutesByStore(t *testing.T) {
	ctx := context.Background()
	feed := NewMemoryFeed()

	var storeA, all []string
	subA, err := feed.Subscribe("s-a", func(e domain.OrderEvent) { storeA = append(storeA, e.OrderID) })
	require.NoError(t, err)
	_, err = feed.Subscribe("", func(e domain.OrderEvent) { all = append(all, e.OrderID) })
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, domain.OrderEvent{OrderID: "o-1", StoreID: "s-a"}))
	require.NoError(t, feed.Publish(ctx, domain.OrderEvent{OrderID: "o-2", StoreID: "s-b"}))
	assert.Equal(t, []string{"o-1"}, storeA)
	assert.Equal(t, []string{"o-1", "o-2"}, all)

	require.NoError(t, subA.Unsubscribe())
	require.NoError(t, feed.Publish(ctx, domain.OrderEvent{OrderID: "o-3", StoreID: "s-a"}))
	assert.Equal(t, []string{"o-1"}, storeA)
	assert.Len(t, all, 3)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "orders.>", subjectFor(""))
	assert.Equal(t, "orders.s-1.*", subjectFor("s-1"))
}
