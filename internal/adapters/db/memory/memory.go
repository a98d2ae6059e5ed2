// Package memory is an in-process implementation of the repository ports,
// used by tests and by local runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
)

type Repository struct {
	mu         sync.Mutex
	profiles   map[string]domain.Profile
	menu       map[string]domain.MenuItem
	orders     map[string]domain.Order
	orderSeq   map[string]int64
	drafts     map[string]domain.CheckoutDraft
	events     []domain.OrderEvent
	deliveries map[string]ports.DeliveryRecord
	claims     map[string]time.Time
	now        func() time.Time

	// FailCreateOrder, when set, is returned by CreateOrder without writing anything.
	FailCreateOrder error
}

var _ ports.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{
		profiles:   make(map[string]domain.Profile),
		menu:       make(map[string]domain.MenuItem),
		orders:     make(map[string]domain.Order),
		orderSeq:   make(map[string]int64),
		drafts:     make(map[string]domain.CheckoutDraft),
		deliveries: make(map[string]ports.DeliveryRecord),
		claims:     make(map[string]time.Time),
		now:        time.Now,
	}
}

func (r *Repository) Ping(ctx context.Context) error { return nil }

func (r *Repository) Close() {}

// ---------- Profiles ----------

func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *Repository) GetStoreByName(ctx context.Context, storeName string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.StoreName != nil && *p.StoreName == storeName {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *Repository) CreateProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[profile.ID]; ok {
		return &existing, nil
	}
	if profile.StoreName != nil && r.storeNameTaken(*profile.StoreName, profile.ID) {
		return nil, domain.ErrConflict
	}
	r.profiles[profile.ID] = *profile
	stored := *profile
	return &stored, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.StoreName != nil && r.storeNameTaken(*upd.StoreName, id) {
		return nil, domain.ErrConflict
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.StoreName != nil {
		p.StoreName = strPtr(*upd.StoreName)
	}
	if upd.StoreNumber != nil {
		p.StoreNumber = strPtr(*upd.StoreNumber)
	}
	if upd.StoreImage != nil {
		p.StoreImage = strPtr(*upd.StoreImage)
	}
	if upd.PhoneNumber != nil {
		p.PhoneNumber = strPtr(*upd.PhoneNumber)
	}
	p.UpdatedAt = r.now().UTC()
	r.profiles[id] = p
	return &p, nil
}

func (r *Repository) storeNameTaken(name, exceptID string) bool {
	for id, p := range r.profiles {
		if id != exceptID && p.StoreName != nil && *p.StoreName == name {
			return true
		}
	}
	return false
}

// ---------- Menu ----------

func (r *Repository) ListMenu(ctx context.Context, storeID string, activeOnly bool) ([]domain.MenuItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.MenuItem, 0)
	for _, it := range r.menu {
		if it.ProfileID != storeID || (activeOnly && !it.IsActive) {
			continue
		}
		items = append(items, it)
	}
	domain.SortMenu(items)
	return items, nil
}

func (r *Repository) GetMenuItem(ctx context.Context, storeID, id string) (*domain.MenuItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.menu[id]
	if !ok || it.ProfileID != storeID {
		return nil, domain.ErrNotFound
	}
	return &it, nil
}

func (r *Repository) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.menu[item.ID]; ok {
		return domain.ErrConflict
	}
	r.menu[item.ID] = *item
	return nil
}

func (r *Repository) UpdateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.menu[item.ID]
	if !ok || existing.ProfileID != item.ProfileID {
		return domain.ErrNotFound
	}
	r.menu[item.ID] = *item
	return nil
}

func (r *Repository) DeleteMenuItem(ctx context.Context, storeID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.menu[id]
	if !ok || existing.ProfileID != storeID {
		return domain.ErrNotFound
	}
	delete(r.menu, id)
	return nil
}

func (r *Repository) ReorderMenu(ctx context.Context, storeID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	for pos, id := range ids {
		it, ok := r.menu[id]
		if !ok || it.ProfileID != storeID {
			return domain.ErrNotFound
		}
		it.DisplayOrder = pos
		it.UpdatedAt = now
		r.menu[id] = it
	}
	return nil
}

// ---------- Orders ----------

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, event ports.EventBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreateOrder != nil {
		return r.FailCreateOrder
	}
	if _, ok := r.orders[order.ID]; ok {
		return domain.ErrConflict
	}
	if order.DraftID != nil {
		for _, o := range r.orders {
			if o.DraftID != nil && *o.DraftID == *order.DraftID {
				return domain.ErrConflict
			}
		}
	}

	day := order.CreatedAt.UTC().Format("2006-01-02")
	r.orderSeq[day]++
	order.Number = domain.FormatOrderNumber(order.CreatedAt, r.orderSeq[day])

	r.orders[order.ID] = copyOrder(*order)
	r.appendEvent(event(order))
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *Repository) FindOrderByDraft(ctx context.Context, draftID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.DraftID != nil && *o.DraftID == draftID {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *Repository) AcceptOrder(ctx context.Context, orderID, storeID string, event ports.EventBuilder) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.StoreID != storeID || !o.Status.CanTransition(domain.StatusAccept) {
		return nil, false, nil
	}
	o.Status = domain.StatusAccept
	o.UpdatedAt = r.now().UTC()
	r.orders[orderID] = o

	accepted := copyOrder(o)
	r.appendEvent(event(&accepted))
	return &accepted, true, nil
}

func (r *Repository) ListOrders(ctx context.Context, storeID string, filter domain.OrderFilter, page domain.Page) ([]domain.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Order
	for _, o := range r.orders {
		if o.StoreID == storeID && filter.Matches(o.CreatedAt, o.PhoneNumber) {
			matched = append(matched, copyOrder(o))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Number > matched[j].Number
	})

	total := len(matched)
	start := page.Offset()
	if start >= total {
		return []domain.Order{}, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ---------- Drafts ----------

func (r *Repository) SaveDraft(ctx context.Context, draft *domain.CheckoutDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := *draft
	d.Lines = append([]domain.CartLine(nil), draft.Lines...)
	r.drafts[d.ID] = d
	return nil
}

func (r *Repository) GetDraft(ctx context.Context, id string) (*domain.CheckoutDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	d.Lines = append([]domain.CartLine(nil), d.Lines...)
	return &d, nil
}

func (r *Repository) ClaimDraft(ctx context.Context, id string, now time.Time) (*domain.CheckoutDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.Status != domain.DraftStaged || d.Expired(now) {
		return nil, domain.ErrNotFound
	}
	claimedAt := now
	d.Status = domain.DraftClaimed
	d.ClaimedAt = &claimedAt
	r.drafts[id] = d
	d.Lines = append([]domain.CartLine(nil), d.Lines...)
	return &d, nil
}

func (r *Repository) ReleaseDraft(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = domain.DraftStaged
	d.ClaimedAt = nil
	r.drafts[id] = d
	return nil
}

func (r *Repository) DeleteDraft(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	return nil
}

func (r *Repository) PurgeExpiredDrafts(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, d := range r.drafts {
		if d.Expired(now) {
			delete(r.drafts, id)
			n++
		}
	}
	return n, nil
}

// ---------- Outbox / inbox ----------

func (r *Repository) appendEvent(e domain.OrderEvent) {
	e.Seq = int64(len(r.events) + 1)
	r.events = append(r.events, e)
}

func (r *Repository) PublishPending(ctx context.Context, limit int, fn func(ctx context.Context, event domain.OrderEvent) error) (int, error) {
	r.mu.Lock()
	var pending []domain.OrderEvent
	for _, e := range r.events {
		if e.PublishedAt == nil {
			pending = append(pending, e)
			if len(pending) == limit {
				break
			}
		}
	}
	r.mu.Unlock()

	published := 0
	for _, e := range pending {
		if err := fn(ctx, e); err != nil {
			return published, err
		}
		r.mu.Lock()
		at := r.now().UTC()
		r.events[e.Seq-1].PublishedAt = &at
		r.mu.Unlock()
		published++
	}
	return published, nil
}

// Events returns every outbox event written so far, in order.
func (r *Repository) Events() []domain.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OrderEvent(nil), r.events...)
}

func (r *Repository) ClaimDelivery(ctx context.Context, rec ports.DeliveryRecord, lease time.Duration) (ports.DeliveryClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.deliveries[rec.Key]; ok && existing.Delivered {
		return ports.ClaimDelivered, nil
	}
	now := r.now()
	if until, ok := r.claims[rec.Key]; ok && now.Before(until) {
		return ports.ClaimBusy, nil
	}
	r.claims[rec.Key] = now.Add(lease)
	return ports.ClaimAcquired, nil
}

func (r *Repository) RecordDelivery(ctx context.Context, rec ports.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, rec.Key)
	if existing, ok := r.deliveries[rec.Key]; ok && existing.Delivered {
		return nil
	}
	r.deliveries[rec.Key] = rec
	return nil
}

// Delivery returns the inbox record for key.
func (r *Repository) Delivery(key string) (ports.DeliveryRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.deliveries[key]
	return rec, ok
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func strPtr(s string) *string { return &s }
