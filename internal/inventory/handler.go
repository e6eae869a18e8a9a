package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/lots", func(r chi.Router) {
		r.Post("/", h.ReceiveLot)
		r.Post("/adjust", h.Adjust)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/movements", h.Movements)
		r.Get("/near-expiry", h.NearExpiry)
	})
}

// lotView decorates a lot with the expiry helpers the POS screens render.
type lotView struct {
	Lot
	DaysToExpiry int          `json:"days_to_expiry"`
	ExpiryStatus ExpiryStatus `json:"expiry_status"`
}

func newLotView(lot Lot, now time.Time) lotView {
	return lotView{Lot: lot, DaysToExpiry: lot.DaysToExpiry(now), ExpiryStatus: lot.ExpiryStatusAt(now)}
}

func (h *Handler) ReceiveLot(w http.ResponseWriter, r *http.Request) {
	var req ReceiveLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	lot, err := h.service.ReceiveLot(r.Context(), req, actorID(sess))
	if err != nil {
		h.logger.Error("receive lot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newLotView(*lot, time.Now()))
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	sess := shared.SessionFromContext(r.Context())
	lot, err := h.service.AdjustLot(r.Context(), req, actorID(sess))
	if err != nil {
		h.logger.Error("adjust lot", slog.Any("error", err), slog.Int64("lot_id", req.LotID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newLotView(*lot, time.Now()))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lot id must be numeric")
		return
	}
	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newLotView(*lot, time.Now()))
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "lot id must be numeric")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), id, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	window, _ := strconv.Atoi(r.URL.Query().Get("window_days"))
	lots, err := h.service.NearExpiry(r.Context(), window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now()
	views := make([]lotView, 0, len(lots))
	for _, lot := range lots {
		views = append(views, newLotView(lot, now))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": views})
}

func actorID(sess *shared.Session) int64 {
	if sess == nil {
		return 0
	}
	return sess.OperatorID
}
