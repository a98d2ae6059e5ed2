package notifications

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

// NotificationService tails the realtime feed for operators, printing a toast
// line for new orders and a refresh line for every change.
type NotificationService struct {
	feed     ports.OrderFeed
	storeIDs []string
	filter   domain.OrderFilter
	out      io.Writer
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*services.DashboardSession
}

var _ ports.ServiceInterface = (*NotificationService)(nil)

func NewNotificationService(feed ports.OrderFeed, flags services.SubscriberFlags, out io.Writer, m *metrics.Metrics, logger *logger.Logger) *NotificationService {
	n := &NotificationService{
		feed:     feed,
		storeIDs: flags.StoreIDs,
		out:      out,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*services.DashboardSession),
	}
	n.filter.Phone = flags.Phone
	if flags.Since > 0 {
		from := n.now().Add(-flags.Since)
		n.filter.From = &from
	}
	return n
}

func (n *NotificationService) Run(ctx context.Context) error {
	targets := n.storeIDs
	if len(targets) == 0 {
		targets = []string{""}
	}

	subs := make([]ports.Subscription, 0, len(targets))
	defer func() {
		for _, s := range subs {
			if err := s.Unsubscribe(); err != nil {
				n.logger.Warn("", "unsubscribe_failed", "Realtime unsubscribe failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}()
	for _, storeID := range targets {
		sub, err := n.feed.Subscribe(storeID, n.Handle)
		if err != nil {
			return fmt.Errorf("subscribe to store %q: %w", storeID, err)
		}
		subs = append(subs, sub)
	}

	n.logger.Info("", "service_started", "Notification subscriber started", map[string]interface{}{"stores": n.storeIDs})
	<-ctx.Done()
	n.logger.Info("", "graceful_shutdown", "Notification subscriber stopped", nil)
	return nil
}

// Handle prints the notifications an owner dashboard would get for event.
func (n *NotificationService) Handle(event domain.OrderEvent) {
	for _, note := range n.session(event.StoreID).Notify(event, n.now()) {
		n.metrics.RealtimeNotification.WithLabelValues(string(note.Kind)).Inc()
		switch note.Kind {
		case services.NotifyToast:
			fmt.Fprintf(n.out, "[%s] NEW ORDER %s  items=%d total=%d phone=%s\n",
				event.StoreID, note.OrderNumber, note.ItemCount, note.TotalAmount, note.PhoneNumber)
		case services.NotifyRefresh:
			fmt.Fprintf(n.out, "[%s] %s %s refresh\n", event.StoreID, note.Event, note.OrderID)
		}
	}
}

func (n *NotificationService) session(storeID string) *services.DashboardSession {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[storeID]
	if !ok {
		s = services.NewDashboardSession(storeID, n.filter)
		n.sessions[storeID] = s
	}
	return s
}
