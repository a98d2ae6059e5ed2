package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
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
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
	"github.com/teamworkery/kakao-order/pkg/config"
	"github.com/teamworkery/kakao-order/pkg/logger"
)

type stubAuth struct {
	tokens map[string]domain.Identity
	// codes maps an authorization code to the access token it exchanges for.
	codes map[string]string
}

func (a *stubAuth) GetCurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	id, ok := a.tokens[token]
	if !ok {
		return nil, ports.ErrInvalidToken
	}
	return &id, nil
}

func (a *stubAuth) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	return nil, ports.ErrInvalidCredentials
}

func (a *stubAuth) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	return nil, errors.New("signup disabled")
}

func (a *stubAuth) SignOut(ctx context.Context, token string) error { return nil }

func (a *stubAuth) ExchangeCodeForSession(ctx context.Context, code, verifier string) (*domain.Session, error) {
	token, ok := a.codes[code]
	if !ok || verifier != "v" {
		return nil, ports.ErrInvalidCredentials
	}
	return &domain.Session{AccessToken: token, RefreshToken: "r-" + token, ExpiresIn: 3600, User: a.tokens[token]}, nil
}

func (a *stubAuth) SignInWithOAuth(provider, redirectTo string) (ports.OAuthStart, error) {
	return ports.OAuthStart{URL: "https://auth.example/authorize?provider=" + provider, Verifier: "v"}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

type server struct {
	t       *testing.T
	repo    *memory.Repository
	feed    *realtime.MemoryFeed
	metrics *metrics.Metrics
	handler http.Handler
	store   *domain.Profile
	burger  domain.MenuItem
}

const (
	ownerToken    = "owner-token"
	customerToken = "customer-token"
	customerCode  = "customer-code"
)

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	log := logger.New("order-service", io.Discard, slog.LevelInfo)
	cfg := config.DefaultConfig()

	name := "pizza-house"
	now := time.Now().UTC()
	store, err := repo.CreateProfile(ctx, &domain.Profile{
		ID: uuid.NewString(), DisplayName: name, StoreName: &name, Role: domain.RoleOwner, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	burger := domain.MenuItem{
		ID: uuid.NewString(), ProfileID: store.ID, Name: "Burger", Price: 8000,
		Image: "https://cdn.example/burger.png", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.CreateMenuItem(ctx, &burger))

	auth := &stubAuth{tokens: map[string]domain.Identity{
		ownerToken:    {UserID: store.ID, Email: "owner@example.com"},
		customerToken: {UserID: uuid.NewString(), Email: "kim@example.com"},
	}, codes: map[string]string{customerCode: customerToken}}

	identity := services.NewIdentityService(auth, repo, log)
	menu := services.NewMenuService(repo, repo, log)
	orders := services.NewOrderService(repo, repo, repo, log)
	checkout := services.NewCheckoutService(repo, orders, identity, cfg.Checkout.DraftTTL, log)
	m := metrics.New()
	feed := realtime.NewMemoryFeed()

	h := NewHandler(Deps{
		Identity: identity,
		Menu:     menu,
		Orders:   orders,
		Checkout: checkout,
		Commands: services.NewCommandService(menu, orders, identity),
		Feed:     feed,
		Health:   repo,
		Metrics:  m,
		Logger:   log,
		Config:   cfg,
	})
	return &server{t: t, repo: repo, feed: feed, metrics: m, handler: h.Routes(), store: store, burger: burger}
}

func (s *server) do(method, path, token string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *server) orderBody() orderRequest {
	return orderRequest{Items: []services.ItemRequest{{MenuItemID: s.burger.ID, Quantity: 2}}}
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthzReportsDatastoreDown(t *testing.T) {
	h := NewHandler(Deps{Health: failingPinger{}, Metrics: metrics.New(), Logger: logger.New("t", io.Discard, slog.LevelInfo), Config: config.DefaultConfig()})
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStore(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/stores/pizza-house", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[storefrontResponse](t, rec)
	assert.Equal(t, "pizza-house", got.Store.StoreName)
	require.Len(t, got.Menu, 1)
	assert.Equal(t, 8000, got.Menu[0].Price)

	rec = s.do(http.MethodGet, "/stores/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnonymousCheckoutStagesDraft(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/stores/pizza-house/orders", "", s.orderBody())
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[errorResponse](t, rec)
	assert.NotEmpty(t, body.DraftToken)
	assert.Equal(t, "/auth/login/kakao?next=%2Fstores%2Fpizza-house", body.LoginURL)

	draft := findCookie(rec, draftCookie)
	require.NotNil(t, draft)
	assert.Equal(t, body.DraftToken, draft.Value)
	assert.True(t, draft.HttpOnly)
}

func TestCheckoutThroughPhoneCapture(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/stores/pizza-house/orders", customerToken, s.orderBody())
	require.Equal(t, http.StatusAccepted, rec.Code)
	staged := decodeBody[services.CheckoutResult](t, rec)
	assert.Equal(t, domain.CheckoutAwaitingPhone, staged.State)
	draft := findCookie(rec, draftCookie)
	require.NotNil(t, draft)

	rec = s.do(http.MethodGet, "/checkout/phone", customerToken, nil, draft)
	require.Equal(t, http.StatusOK, rec.Code)
	capture := decodeBody[phoneCaptureResponse](t, rec)
	assert.Equal(t, 16000, capture.TotalAmount)

	rec = s.do(http.MethodPost, "/checkout/phone", customerToken, phoneCaptureRequest{PhoneNumber: "bad"}, draft)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "phone_number", decodeBody[errorResponse](t, rec).Field)

	rec = s.do(http.MethodPost, "/checkout/phone", customerToken, phoneCaptureRequest{PhoneNumber: "010-1234-5678"}, draft)
	require.Equal(t, http.StatusCreated, rec.Code)
	done := decodeBody[services.CheckoutResult](t, rec)
	assert.Equal(t, domain.CheckoutCompleted, done.State)
	require.NotNil(t, done.Order)
	assert.Equal(t, 16000, done.Order.TotalAmount)
	assert.Equal(t, domain.StatusPending, done.Order.Status)

	cleared := findCookie(rec, draftCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.OrdersSubmitted.WithLabelValues("automatic")))

	rec = s.do(http.MethodGet, "/orders/"+done.Order.ID, customerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/orders/"+done.Order.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutRejectsInconsistentTotal(t *testing.T) {
	s := newServer(t)
	body := s.orderBody()
	wrong := 1
	body.TotalAmount = &wrong
	body.PhoneNumber = "010-1234-5678"

	rec := s.do(http.MethodPost, "/stores/pizza-house/orders", customerToken, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "total_amount", decodeBody[errorResponse](t, rec).Field)
	assert.Empty(t, s.repo.Events())
}

func TestDashboardRequiresCaller(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/me", "/dashboard/orders", "/dashboard/menu"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(http.MethodGet, "/dashboard/orders", "expired-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerListsAndAcceptsOrders(t *testing.T) {
	s := newServer(t)
	body := s.orderBody()
	body.PhoneNumber = "010-1234-5678"
	rec := s.do(http.MethodPost, "/stores/pizza-house/orders", customerToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeBody[services.CheckoutResult](t, rec).Order

	rec = s.do(http.MethodGet, "/dashboard/orders?phone=5678&from=2000-01-01", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[domain.OrderList](t, rec)
	assert.Equal(t, 1, list.TotalCount)

	rec = s.do(http.MethodGet, "/dashboard/orders?from=yesterday", ownerToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/dashboard/orders/"+order.ID+"/accept", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[domain.AcceptResult](t, rec)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.StatusAccept, res.Order.Status)

	// The customer has no store, so the accept is a no-op.
	rec = s.do(http.MethodPost, "/dashboard/commands", customerToken, map[string]any{
		"type":    "accept_order",
		"payload": map[string]string{"order_id": order.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"accept_order","result":{"changed":false}}`, rec.Body.String())

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.OrdersAccepted.WithLabelValues("changed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.OrdersAccepted.WithLabelValues("noop")))
}

func TestCommands(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/dashboard/commands", ownerToken, map[string]any{"type": "bake_pizza"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/dashboard/commands", customerToken, map[string]any{
		"type":    "add_menu_item",
		"payload": map[string]any{"name": "Fries", "price": 3000, "image": "https://cdn.example/fries.png"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/dashboard/commands", ownerToken, map[string]any{
		"type":    "add_menu_item",
		"payload": map[string]any{"name": "Fries", "price": 3000, "image": "https://cdn.example/fries.png"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/dashboard/menu", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fries")

	rec = s.do(http.MethodPost, "/dashboard/commands", ownerToken, map[string]any{"type": "logout"})
	require.Equal(t, http.StatusOK, rec.Code)
	access := findCookie(rec, accessCookie)
	require.NotNil(t, access)
	assert.Negative(t, access.MaxAge)
}

func TestStartOAuthRedirects(t *testing.T) {
	s := newServer(t)
	rec := s.do(http.MethodGet, "/auth/login/kakao?next=//evil.example", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://auth.example/authorize"))
	verifier := findCookie(rec, verifierCookie)
	require.NotNil(t, verifier)
	assert.Equal(t, "v", verifier.Value)
}

// stageAnonymous posts a storefront order without a session and returns the draft cookie.
func (s *server) stageAnonymous(phone string) *http.Cookie {
	s.t.Helper()
	body := s.orderBody()
	body.PhoneNumber = phone
	rec := s.do(http.MethodPost, "/stores/pizza-house/orders", "", body)
	require.Equal(s.t, http.StatusUnauthorized, rec.Code)
	draft := findCookie(rec, draftCookie)
	require.NotNil(s.t, draft)
	return draft
}

func (s *server) callback(next string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	verifier := &http.Cookie{Name: verifierCookie, Value: "v"}
	return s.do(http.MethodGet, "/auth/callback?code="+customerCode+"&next="+url.QueryEscape(next), "", nil, append(cookies, verifier)...)
}

func TestOAuthCallbackCompletesStagedCheckout(t *testing.T) {
	s := newServer(t)
	draft := s.stageAnonymous("010-1234-5678")

	rec := s.callback("/stores/pizza-house", draft)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/orders/"))
	require.NotNil(t, findCookie(rec, accessCookie))
	cleared := findCookie(rec, draftCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.OrdersSubmitted.WithLabelValues("automatic")))
}

func TestOAuthCallbackWithoutPhoneGoesToCapture(t *testing.T) {
	s := newServer(t)
	draft := s.stageAnonymous("")

	rec := s.callback("/stores/pizza-house", draft)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/checkout/phone", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, draftCookie))
}

func TestOAuthCallbackAbandonedDraftGoesHome(t *testing.T) {
	s := newServer(t)
	stale := &http.Cookie{Name: draftCookie, Value: uuid.NewString()}

	rec := s.callback("/stores/pizza-house", stale)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := findCookie(rec, draftCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestOAuthCallbackFailedCheckoutKeepsDraft(t *testing.T) {
	s := newServer(t)
	draft := s.stageAnonymous("010-1234-5678")
	s.repo.FailCreateOrder = errors.New("connection reset")

	rec := s.callback("/stores/pizza-house", draft)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/stores/pizza-house?checkout=failed", rec.Header().Get("Location"))
	assert.Nil(t, findCookie(rec, draftCookie))

	rec = s.callback("/stores/pizza-house?table=3", draft)
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/stores/pizza-house", loc.Path)
	assert.Equal(t, "failed", loc.Query().Get("checkout"))
	assert.Equal(t, "3", loc.Query().Get("table"))
}

func TestOAuthCallbackWithoutDraftFollowsNext(t *testing.T) {
	s := newServer(t)
	rec := s.callback("/dashboard")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/auth/callback?error=access_denied", "", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?auth_error=access_denied", rec.Header().Get("Location"))
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/stores/a?checkout=failed", withQuery("/stores/a", "checkout", "failed"))
	assert.Equal(t, "/?checkout=failed", withQuery("/", "checkout", "failed"))
	assert.Equal(t, "/stores/a?checkout=failed&x=1", withQuery("/stores/a?x=1", "checkout", "failed"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/dashboard", safeNext("/dashboard"))
	assert.Equal(t, "/", safeNext("https://evil.example"))
	assert.Equal(t, "/", safeNext("//evil.example"))
	assert.Equal(t, "/", safeNext(`/\evil.example`))
	assert.Equal(t, "/", safeNext(""))
}

func TestParseBound(t *testing.T) {
	to, err := parseBound("to", "2025-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 23, 59, 59, 999999999, time.UTC), *to)

	from, err := parseBound("from", "2025-03-01T09:00:00+09:00", false)
	require.NoError(t, err)
	assert.Equal(t, 0, from.UTC().Hour())

	none, err := parseBound("from", "", false)
	require.NoError(t, err)
	assert.Nil(t, none)
}
