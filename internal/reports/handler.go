package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

// Handler exposes the reporting endpoints. Every report answers JSON by
// default and CSV when the request carries format=csv.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/sales-summary", h.SalesSummary)
		r.Get("/top-products", h.TopProducts)
		r.Get("/controlled", h.Controlled)
		r.Get("/near-expiry", h.NearExpiry)
	})
}

func parsePeriod(r *http.Request) Period {
	q := r.URL.Query()
	p := DefaultPeriod(time.Now())
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			p.From = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			p.To = t
		}
	}
	return p
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

func serveCSV(w http.ResponseWriter, filename string, write func() error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_ = write()
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.SalesSummary(r.Context(), parsePeriod(r))
	if err != nil {
		h.logger.Error("sales summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		serveCSV(w, "sales-summary.csv", func() error { return WriteSummaryCSV(w, summary) })
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	top, err := h.service.TopProducts(r.Context(), parsePeriod(r), limit)
	if err != nil {
		h.logger.Error("top products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		serveCSV(w, "top-products.csv", func() error { return WriteTopProductsCSV(w, top) })
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": top})
}

func (h *Handler) Controlled(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ControlledRegister(r.Context(), parsePeriod(r))
	if err != nil {
		h.logger.Error("controlled register", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		serveCSV(w, "controlled-register.csv", func() error { return WriteControlledCSV(w, entries) })
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	window, _ := strconv.Atoi(r.URL.Query().Get("window_days"))
	lots, err := h.service.NearExpiry(r.Context(), window)
	if err != nil {
		h.logger.Error("near expiry report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if wantsCSV(r) {
		serveCSV(w, "near-expiry.csv", func() error { return WriteNearExpiryCSV(w, lots, time.Now()) })
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}
