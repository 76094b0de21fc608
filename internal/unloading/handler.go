package unloading

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Handler wires HTTP endpoints for delivery ingestion.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	adminKey func(http.Handler) http.Handler
}

// NewHandler constructs unloading handler. adminKey guards destructive routes.
func NewHandler(logger *slog.Logger, service *Service, adminKey func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), adminKey: adminKey}
}

// MountRoutes registers unloading routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/unloading", h.handleIngest)
	r.Get("/unloading/{vehicle}", h.handleListVehicle)
	r.Group(func(r chi.Router) {
		r.Use(h.adminKey)
		r.Delete("/unloading/{id}", h.handleDelete)
	})
}

type ingestRequest struct {
	Events []EventInput `json:"events" validate:"required,min=1,dive"`
}

type ingestResponse struct {
	BatchID    string  `json:"batch_id"`
	Count      int     `json:"count"`
	Unresolved []int64 `json:"unresolved,omitempty"`
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
		case errors.Is(err, ErrExceedsBilled):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Delivery Exceeds Billed", err.Error())
		case errors.Is(err, ErrVehicleRequired), errors.Is(err, ErrNegativeQuantity), errors.Is(err, ErrEmptyBatch):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("ingest unloading", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	resp := ingestResponse{BatchID: events[0].BatchID, Count: len(events)}
	for _, e := range events {
		if e.Rule == RuleDefault {
			resp.Unresolved = append(resp.Unresolved, e.ID)
		}
	}
	httpx.JSON(w, http.StatusCreated, resp)
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
		h.logger.Error("list unloading", slog.String("vehicle", vehicle), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "numeric id required")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "delivery not found")
			return
		}
		h.logger.Error("delete unloading", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
