package promotions

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Handler exposes promotion endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	lookup  func(r *http.Request, productID int64) (SaleProduct, error)
}

// NewHandler constructs a Handler. lookup adapts the catalog service so the
// resolve endpoint can load product id, laboratory and price.
func NewHandler(logger *slog.Logger, service *Service, lookup func(r *http.Request, productID int64) (SaleProduct, error)) *Handler {
	return &Handler{logger: logger, service: service, lookup: lookup}
}

// MountRoutes registers promotion routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/promotions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/resolve", h.Resolve)
		r.Get("/{id}", h.Show)
		r.Patch("/{id}", h.Update)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	promos, total, err := h.service.List(r.Context(), q.Get("active") == "true", limit, offset)
	if err != nil {
		h.logger.Error("list promotions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"promotions": promos, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "promotion id must be numeric")
		return
	}
	promo, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, promo)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePromotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	promo, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create promotion", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, promo)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "promotion id must be numeric")
		return
	}
	var req UpdatePromotionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	promo, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update promotion", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, promo)
}

// Resolve prices a product, optionally pinned to a specific lot.
// GET /promotions/resolve?product_id=1&lot_id=2
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product_id is required")
		return
	}
	var lotID *int64
	if raw := r.URL.Query().Get("lot_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lot_id must be numeric")
			return
		}
		lotID = &id
	}

	product, err := h.lookup(r, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	promo, discount, err := h.service.Price(r.Context(), product, lotID)
	if err != nil {
		h.logger.Error("resolve promotion", slog.Any("error", err), slog.Int64("product_id", productID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"promotion":  promo,
		"base_price": product.SalePrice,
		"discount":   discount,
	})
}
