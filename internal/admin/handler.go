package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
)

// Handler wires the maintenance endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	adminKey func(http.Handler) http.Handler
}

// NewHandler constructs admin handler. Every route sits behind adminKey.
func NewHandler(logger *slog.Logger, service *Service, adminKey func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, adminKey: adminKey}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.adminKey)
		r.Post("/admin/purge", h.handlePurge)
	})
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Purge(r.Context())
	if err != nil {
		h.logger.Error("purge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
