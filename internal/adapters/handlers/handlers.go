package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teamworkery/kakao-order/internal/adapters/metrics"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

const (
	accessCookie   = "sb-access-token"
	refreshCookie  = "sb-refresh-token"
	draftCookie    = "checkout_draft"
	verifierCookie = "oauth_verifier"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the order-service HTTP API.
type Deps struct {
	Identity *services.IdentityService
	Menu     *services.MenuService
	Orders   *services.OrderService
	Checkout *services.CheckoutService
	Commands *services.CommandService
	Storage  ports.ObjectStorage
	Feed     ports.OrderFeed
	Health   Pinger
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
	Config   *config.Config
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{Deps: deps, now: time.Now}
}

// Routes builds the order-service router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)
	r.Use(h.identify)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Get("/stores/{store}", h.getStore)
	r.Post("/stores/{store}/orders", h.postOrder)
	r.Get("/orders/{orderID}", h.getOrder)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login/{provider}", h.startOAuth)
		r.Get("/callback", h.oauthCallback)
		r.Post("/login", h.login)
		r.Post("/signup", h.signup)
		r.Post("/logout", h.logout)
	})

	r.Get("/checkout/phone", h.getPhoneCapture)
	r.Post("/checkout/phone", h.postPhoneCapture)

	r.Group(func(r chi.Router) {
		r.Use(requireCaller)
		r.Get("/me", h.me)

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/orders", h.listOrders)
			r.Post("/orders/{orderID}/accept", h.acceptOrder)
			r.Post("/commands", h.command)
			r.Get("/menu", h.listMenu)
			r.Post("/menu/images", h.uploadImage)
			r.Get("/ws", h.dashboardSocket)
		})
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Error(middleware.GetReqID(r.Context()), "health_check_failed", "Datastore ping failed", err, nil)
			services.WriteJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
			return
		}
	}
	services.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
