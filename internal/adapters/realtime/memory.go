package realtime

import (
	"context"
	"sync"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
)

// MemoryFeed delivers events synchronously to in-process subscribers.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]memorySub
}

type memorySub struct {
	storeID string
	fn      func(domain.OrderEvent)
}

var _ ports.OrderFeed = (*MemoryFeed)(nil)

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]memorySub)}
}

func (f *MemoryFeed) Publish(ctx context.Context, event domain.OrderEvent) error {
	f.mu.RLock()
	targets := make([]func(domain.OrderEvent), 0, len(f.subs))
	for _, s := range f.subs {
		if s.storeID == "" || s.storeID == event.StoreID {
			targets = append(targets, s.fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		fn(event)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(storeID string, fn func(domain.OrderEvent)) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = memorySub{storeID: storeID, fn: fn}
	return unsubscribeFunc(func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
		return nil
	}), nil
}

type unsubscribeFunc func() error

func (u unsubscribeFunc) Unsubscribe() error { return u() }
