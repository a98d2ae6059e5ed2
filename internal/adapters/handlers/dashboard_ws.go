package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
	readLimit  = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientMessage is what a dashboard may send: {"type":"arm_chime"} once the
// operator has interacted with the page, or {"type":"set_filter",...}.
type clientMessage struct {
	Type  string `json:"type"`
	From  string `json:"from"`
	To    string `json:"to"`
	Phone string `json:"phone"`
}

// dashboardSocket streams toast and refresh notifications for the caller's store.
func (h *Handler) dashboardSocket(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	store, err := h.Identity.RequireStore(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(r.URL.Query().Get)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn(reqID, "ws_upgrade_failed", "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	session := services.NewDashboardSession(store.ID, filter)
	send := make(chan services.Notification, sendBuffer)
	push := func(n services.Notification) {
		select {
		case send <- n:
		default:
			h.Logger.Warn(reqID, "ws_notification_dropped", "Dashboard is not keeping up", map[string]interface{}{"store_id": store.ID, "kind": string(n.Kind)})
		}
	}

	sub, err := h.Feed.Subscribe(store.ID, func(event domain.OrderEvent) {
		for _, n := range session.Notify(event, h.now()) {
			push(n)
		}
	})
	if err != nil {
		h.Logger.Error(reqID, "ws_subscribe_failed", "Realtime subscription failed", err, map[string]interface{}{"store_id": store.ID})
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "realtime unavailable"), time.Now().Add(writeWait))
		return
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			h.Logger.Warn(reqID, "ws_unsubscribe_failed", "Realtime unsubscribe failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	h.Logger.Info(reqID, "ws_connected", "Dashboard connected", map[string]interface{}{"store_id": store.ID})
	done := make(chan struct{})
	go h.readDashboard(conn, session, push, done)
	h.writeDashboard(conn, send, done)
	h.Logger.Info(reqID, "ws_disconnected", "Dashboard disconnected", map[string]interface{}{"store_id": store.ID})
}

func (h *Handler) readDashboard(conn *websocket.Conn, session *services.DashboardSession, push func(services.Notification), done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "arm_chime":
			session.ArmChime()
		case "set_filter":
			filter, err := parseFilter(func(key string) string {
				switch key {
				case "from":
					return msg.From
				case "to":
					return msg.To
				}
				return msg.Phone
			})
			if err != nil {
				continue
			}
			session.SetFilter(filter)
			push(services.Notification{Kind: services.NotifyRefresh})
		}
	}
}

func (h *Handler) writeDashboard(conn *websocket.Conn, send <-chan services.Notification, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
			h.Metrics.RealtimeNotification.WithLabelValues(string(n.Kind)).Inc()
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
