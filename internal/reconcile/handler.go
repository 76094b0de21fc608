package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Handler wires HTTP endpoints for per-vehicle reconciliation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reconcile handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reconciliation/{vehicle}", h.handleVehicleReport)
}

func (h *Handler) handleVehicleReport(w http.ResponseWriter, r *http.Request) {
	vehicle := chi.URLParam(r, "vehicle")
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := shared.ParseDate(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	rep, err := h.service.VehicleReport(r.Context(), vehicle, date)
	if err != nil {
		if errors.Is(err, shared.ErrBeforeEpoch) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("vehicle reconciliation", slog.String("vehicle", vehicle), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}
