package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// Handler exposes the sale endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/checkout", h.Checkout)
		r.Get("/lot-selection", h.LotSelection)
		r.Get("/{id}", h.Show)
		r.Post("/{id}/payment", h.FinalizePayment)
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	var operatorID int64
	if sess != nil {
		operatorID = sess.OperatorID
	}
	sale, err := h.service.Checkout(r.Context(), req, operatorID)
	if err != nil {
		h.logger.Error("checkout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) FinalizePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	var req FinalizePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	sale, err := h.service.FinalizePayment(r.Context(), id, req)
	if err != nil {
		h.logger.Error("finalize payment", slog.Any("error", err), slog.Int64("sale_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListSalesRequest{}
	if raw := q.Get("status"); raw != "" {
		status := SaleStatus(raw)
		req.Status = &status
	}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			req.From = &t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			req.To = &t
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	p := shared.NewPagination(page, perPage, 0)
	req.Limit = p.PerPage
	req.Offset = p.Offset()

	sales, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

// LotSelection renders the lot-picker for a product: available lots in
// first-expire-first-out order, each probed for a lot-scoped promotion.
// Passing auto=true pre-selects lots the way the auto-pick button does.
func (h *Handler) LotSelection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Product", "product_id must be numeric")
		return
	}
	quantity, _ := strconv.Atoi(q.Get("quantity"))
	if quantity <= 0 {
		quantity = 1
	}
	autoFEFO := q.Get("auto") == "true"

	lots, err := h.service.LotSelectionView(r.Context(), productID, quantity, autoFEFO)
	if err != nil {
		h.logger.Error("lot selection", slog.Any("error", err), slog.Int64("product_id", productID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}
