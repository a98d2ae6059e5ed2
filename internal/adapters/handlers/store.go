package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/services"
)

type storeView struct {
	ID          string  `json:"id"`
	StoreName   string  `json:"store_name"`
	StoreNumber *string `json:"store_number,omitempty"`
	StoreImage  *string `json:"store_image,omitempty"`
}

func newStoreView(p *domain.Profile) storeView {
	v := storeView{ID: p.ID, StoreNumber: p.StoreNumber, StoreImage: p.StoreImage}
	if p.StoreName != nil {
		v.StoreName = *p.StoreName
	}
	return v
}

type storefrontResponse struct {
	Store storeView         `json:"store"`
	Menu  []domain.MenuItem `json:"menu"`
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	store, items, err := h.Menu.Storefront(r.Context(), chi.URLParam(r, "store"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	services.WriteJSON(w, storefrontResponse{Store: newStoreView(store), Menu: items}, http.StatusOK)
}

type orderRequest struct {
	Items       []services.ItemRequest `json:"items"`
	TotalAmount *int                   `json:"total_amount,omitempty"`
	PhoneNumber string                 `json:"phone_number"`
}

// postOrder is the storefront checkout. An anonymous caller gets the cart staged
// and a login prompt; a caller without a phone number is sent to phone capture.
func (h *Handler) postOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := services.ReadJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	store, _, err := h.Menu.Storefront(r.Context(), chi.URLParam(r, "store"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cart, err := h.Orders.BuildCart(r.Context(), store.ID, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total := cart.Total()
	if req.TotalAmount != nil {
		total = *req.TotalAmount
	}

	res, err := h.Checkout.Checkout(r.Context(), services.CheckoutInput{
		Caller:      callerFrom(r.Context()),
		StoreID:     store.ID,
		Cart:        cart,
		TotalAmount: total,
		PhoneNumber: req.PhoneNumber,
	})
	h.writeCheckout(w, r, res, err, "interactive", "/stores/"+url.PathEscape(chi.URLParam(r, "store")))
}

// writeCheckout renders a checkout state and keeps the draft cookie in step with it.
// origin is the page a login started from this checkout returns to.
func (h *Handler) writeCheckout(w http.ResponseWriter, r *http.Request, res services.CheckoutResult, err error, mode, origin string) {
	if res.DraftToken != "" && !res.State.Terminal() {
		h.setCookie(w, draftCookie, res.DraftToken, h.Config.Checkout.DraftTTL)
	}
	if err != nil {
		if res.State == domain.CheckoutAwaitingAuth {
			writeJSONError(w, http.StatusUnauthorized, errorResponse{
				Error:      err.Error(),
				LoginURL:   h.loginURL(origin),
				DraftToken: res.DraftToken,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	switch res.State {
	case domain.CheckoutCompleted:
		h.clearCookie(w, draftCookie)
		h.Metrics.OrdersSubmitted.WithLabelValues(mode).Inc()
		services.WriteJSON(w, res, http.StatusCreated)
	case domain.CheckoutAwaitingPhone:
		services.WriteJSON(w, res, http.StatusAccepted)
	case domain.CheckoutAwaitingAuth:
		writeJSONError(w, http.StatusUnauthorized, errorResponse{
			Error:      domain.ErrAuthRequired.Error(),
			LoginURL:   h.loginURL(origin),
			DraftToken: res.DraftToken,
		})
	default:
		h.clearCookie(w, draftCookie)
		services.WriteJSON(w, res, http.StatusOK)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.GetOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services.WriteJSON(w, order, http.StatusOK)
}

type phoneCaptureResponse struct {
	State       domain.CheckoutState `json:"state"`
	DraftToken  string               `json:"draft_token"`
	Items       []domain.CartLine    `json:"items"`
	TotalAmount int                  `json:"total_amount"`
	ExpiresAt   time.Time            `json:"expires_at"`
}

// getPhoneCapture describes the staged cart waiting for a phone number.
func (h *Handler) getPhoneCapture(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if caller == nil {
		h.writeError(w, r, domain.ErrAuthRequired)
		return
	}
	draft, err := h.Checkout.Draft(r.Context(), caller, cookieValue(r, draftCookie))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services.WriteJSON(w, phoneCaptureResponse{
		State:       domain.CheckoutAwaitingPhone,
		DraftToken:  draft.ID,
		Items:       draft.Lines,
		TotalAmount: draft.TotalAmount,
		ExpiresAt:   draft.ExpiresAt,
	}, http.StatusOK)
}

type phoneCaptureRequest struct {
	PhoneNumber string `json:"phone_number"`
	DraftToken  string `json:"draft_token"`
}

func (h *Handler) postPhoneCapture(w http.ResponseWriter, r *http.Request) {
	var req phoneCaptureRequest
	if err := services.ReadJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	token := req.DraftToken
	if token == "" {
		token = cookieValue(r, draftCookie)
	}
	res, err := h.Checkout.CapturePhone(r.Context(), callerFrom(r.Context()), token, req.PhoneNumber)
	h.writeCheckout(w, r, res, err, "automatic", "/checkout/phone")
}
