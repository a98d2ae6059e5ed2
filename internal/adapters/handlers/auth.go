package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/services"
)

// startOAuth redirects to the identity provider, keeping the PKCE verifier in a cookie.
func (h *Handler) startOAuth(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	redirectTo := h.Config.Server.PublicBaseURL + "/auth/callback?next=" + url.QueryEscape(next)

	start, err := h.Identity.StartOAuth(chi.URLParam(r, "provider"), redirectTo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setCookie(w, verifierCookie, start.Verifier, verifierTTL)
	http.Redirect(w, r, start.URL, http.StatusFound)
}

// oauthCallback finishes the login and resumes a staged checkout when one is pending.
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	q := r.URL.Query()
	next := safeNext(q.Get("next"))

	if e := q.Get("error"); e != "" {
		h.Logger.Warn(reqID, "oauth_denied", "Identity provider returned an error", map[string]interface{}{"error": e})
		http.Redirect(w, r, "/?auth_error="+url.QueryEscape(e), http.StatusFound)
		return
	}

	session, _, err := h.Identity.CompleteOAuth(r.Context(), q.Get("code"), cookieValue(r, verifierCookie))
	h.clearCookie(w, verifierCookie)
	if err != nil {
		h.Logger.Error(reqID, "oauth_callback_failed", "Code exchange failed", err, nil)
		http.Redirect(w, r, "/?auth_error=exchange_failed", http.StatusFound)
		return
	}
	h.setSession(w, session)

	token := cookieValue(r, draftCookie)
	if token == "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	caller := session.User
	res, err := h.Checkout.Resume(r.Context(), &caller, token)
	switch res.State {
	case domain.CheckoutCompleted:
		h.clearCookie(w, draftCookie)
		h.Metrics.OrdersSubmitted.WithLabelValues("automatic").Inc()
		http.Redirect(w, r, "/orders/"+res.Order.ID, http.StatusFound)
	case domain.CheckoutAwaitingPhone:
		http.Redirect(w, r, "/checkout/phone", http.StatusFound)
	case domain.CheckoutFailed:
		h.Logger.Error(reqID, "checkout_resume_failed", "Staged order could not be submitted", err, map[string]interface{}{"draft_id": token})
		http.Redirect(w, r, withQuery(next, "checkout", "failed"), http.StatusFound)
	default:
		h.clearCookie(w, draftCookie)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// withQuery sets key on a site-relative target, keeping whatever query it already has.
func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "/?" + url.Values{key: {value}}.Encode()
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := services.ReadJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, profile, err := h.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSession(w, session)
	services.WriteJSON(w, profile, http.StatusOK)
}

type signupResponse struct {
	User                 domain.Identity `json:"user"`
	ConfirmationRequired bool            `json:"confirmation_required"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := services.ReadJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.Identity.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if session.AccessToken != "" {
		h.setSession(w, session)
	}
	services.WriteJSON(w, signupResponse{User: session.User, ConfirmationRequired: session.AccessToken == ""}, http.StatusCreated)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Identity.Logout(r.Context(), accessToken(r)); err != nil {
		h.Logger.Error(middleware.GetReqID(r.Context()), "logout_failed", "Provider sign-out failed", err, nil)
	}
	h.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Identity.EnsureProfile(r.Context(), *callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services.WriteJSON(w, profile, http.StatusOK)
}
