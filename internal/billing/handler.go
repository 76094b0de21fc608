package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Handler wires HTTP endpoints for billing ingestion and lookups.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs billing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/billing", h.handleIngest)
	r.Get("/billing/{vehicle}", h.handleListVehicle)
}

type ingestRequest struct {
	Events []EventInput `json:"events" validate:"required,min=1,dive"`
}

type ingestResponse struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	events, err := h.service.Ingest(r.Context(), req.Events)
	if err != nil {
		switch {
		case errors.Is(err, ErrVehicleRequired), errors.Is(err, ErrNegativeQuantity), errors.Is(err, ErrEmptyBatch):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("ingest billing", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, ingestResponse{BatchID: events[0].BatchID, Count: len(events)})
}

func (h *Handler) handleListVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle := chi.URLParam(r, "vehicle")
	from, err := shared.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from date required as YYYY-MM-DD")
		return
	}
	to, err := shared.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to date required as YYYY-MM-DD")
		return
	}
	events, err := h.service.ListVehicle(r.Context(), vehicle, from, to)
	if err != nil {
		h.logger.Error("list billing", slog.String("vehicle", vehicle), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}
