package services

import (
	"encoding/json"
	"net/http"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

// ---------- Helpers ----------

func WriteJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes a request body of at most 1MB into v.
func ReadJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "cannot decode request: %v", err)
	}
	return nil
}
