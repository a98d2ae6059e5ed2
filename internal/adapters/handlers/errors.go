package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/ports"
	"github.com/teamworkery/kakao-order/internal/core/services"
)

const internalErrorMessage = "주문 처리에 실패했습니다"

type errorResponse struct {
	Error      string `json:"error"`
	Field      string `json:"field,omitempty"`
	LoginURL   string `json:"login_url,omitempty"`
	DraftToken string `json:"draft_token,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, body errorResponse) {
	services.WriteJSON(w, body, status)
}

// writeError maps a service error onto a status code. Persistence causes and
// other unexpected errors are logged and replaced by a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		writeJSONError(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), LoginURL: h.loginURL(r.URL.Path)})
	case errors.Is(err, ports.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrStoreNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrMenuNotFound),
		errors.Is(err, domain.ErrDraftNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		writeJSONError(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Message, Field: verr.Field})
	default:
		h.Logger.Error(middleware.GetReqID(r.Context()), "request_failed", r.Method+" "+r.URL.Path, err, nil)
		writeJSONError(w, http.StatusInternalServerError, errorResponse{Error: internalErrorMessage})
	}
}

// loginURL points at the OAuth start route for the configured provider.
func (h *Handler) loginURL(next string) string {
	return "/auth/login/" + url.PathEscape(h.Config.Auth.Provider) + "?next=" + url.QueryEscape(safeNext(next))
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/"
	}
	return next
}
