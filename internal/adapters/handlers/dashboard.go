package handlers

import (
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teamworkery/kakao-order/internal/core/domain"
	"github.com/teamworkery/kakao-order/internal/core/services"
)

const dateLayout = "2006-01-02"

// parseBound reads an RFC 3339 timestamp or a plain date. A plain date used as
// an upper bound covers the whole day.
func parseBound(field, v string, upper bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, domain.NewValidationError(field, "expected YYYY-MM-DD or RFC 3339, got %q", v)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseFilter(get func(string) string) (domain.OrderFilter, error) {
	from, err := parseBound("from", get("from"), false)
	if err != nil {
		return domain.OrderFilter{}, err
	}
	to, err := parseBound("to", get("to"), true)
	if err != nil {
		return domain.OrderFilter{}, err
	}
	return domain.OrderFilter{From: from, To: to, Phone: get("phone")}, nil
}

func parsePage(q map[string][]string) (domain.Page, error) {
	num := func(key string) (int, error) {
		vals := q[key]
		if len(vals) == 0 || vals[0] == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(vals[0])
		if err != nil {
			return 0, domain.NewValidationError(key, "must be a number")
		}
		return n, nil
	}
	page, err := num("page")
	if err != nil {
		return domain.Page{}, err
	}
	size, err := num("page_size")
	if err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(page, size), nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q.Get)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := parsePage(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.Orders.ListOrders(r.Context(), callerFrom(r.Context()), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	services.WriteJSON(w, list, http.StatusOK)
}

func (h *Handler) acceptOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.Orders.Accept(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.countAccept(res)
	services.WriteJSON(w, res, http.StatusOK)
}

func (h *Handler) countAccept(res domain.AcceptResult) {
	result := "noop"
	if res.Changed {
		result = "changed"
	}
	h.Metrics.OrdersAccepted.WithLabelValues(result).Inc()
}

type commandResponse struct {
	Type   domain.CommandKind `json:"type"`
	Result any                `json:"result,omitempty"`
}

// command runs one dashboard or self-service command posted as {"type", "payload"}.
func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "cannot read request: %v", err))
		return
	}
	cmd, err := domain.DecodeCommand(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.Commands.Execute(r.Context(), callerFrom(r.Context()), accessToken(r), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	switch cmd.Kind() {
	case domain.CmdLogout:
		h.clearSession(w)
	case domain.CmdAcceptOrder:
		if res, ok := result.(domain.AcceptResult); ok {
			h.countAccept(res)
		}
	}
	services.WriteJSON(w, commandResponse{Type: cmd.Kind(), Result: result}, http.StatusOK)
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	store, err := h.Identity.RequireStore(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.Menu.ListAll(r.Context(), store)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.MenuItem{}
	}
	services.WriteJSON(w, items, http.StatusOK)
}

type uploadResponse struct {
	URL string `json:"url"`
}

// uploadImage stores a menu or store image under the owner's folder and returns its public URL.
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	store, err := h.Identity.RequireStore(r.Context(), callerFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := h.Config.Storage.MaxImageSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("file", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.writeError(w, r, domain.NewValidationError("file", "cannot read upload: %v", err))
		return
	}
	if int64(len(data)) > limit {
		h.writeError(w, r, domain.NewValidationError("file", "larger than %d bytes", limit))
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		h.writeError(w, r, domain.NewValidationError("file", "not an image (%s)", contentType))
		return
	}

	bucket := h.Config.Storage.MenuBucket
	if r.FormValue("kind") == "store" {
		bucket = h.Config.Storage.StoreBucket
	}
	ext := strings.ToLower(path.Ext(header.Filename))
	name := store.ID + "/" + uuid.NewString() + ext
	if err := h.Storage.Upload(r.Context(), bucket, name, contentType, data); err != nil {
		h.writeError(w, r, err)
		return
	}
	services.WriteJSON(w, uploadResponse{URL: h.Storage.PublicURL(bucket, name)}, http.StatusCreated)
}
