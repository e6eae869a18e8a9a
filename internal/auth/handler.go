package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// Handler exposes the auth endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions}
}

// MountPublicRoutes registers routes reachable without a session.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// MountRoutes registers routes behind RequireAuth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	r.Post("/auth/operators", h.Register)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	sess, operator, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.logger.Warn("login rejected", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":    sess.Token,
		"operator": operator,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := ""
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 {
		token = strings.TrimSpace(parts[1])
	}
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing session")
		return
	}
	operator, err := h.service.Operator(r.Context(), sess.OperatorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, operator)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	operator, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.logger.Error("register operator", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, operator)
}
