package ledger

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

// Handler wires HTTP endpoints for dealer money.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	adminKey func(http.Handler) http.Handler
}

// NewHandler constructs ledger handler. adminKey guards destructive routes.
func NewHandler(logger *slog.Logger, service *Service, adminKey func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), adminKey: adminKey}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/collections", h.handleRecord)
	r.Get("/collections/{dealer}/statement", h.handleStatement)
	r.Group(func(r chi.Router) {
		r.Use(h.adminKey)
		r.Delete("/collections/{id}", h.handleRemove)
	})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var in CollectionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	c, err := h.service.Record(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrDealerRequired), errors.Is(err, ErrNonPositiveAmount), errors.Is(err, ErrBadMode):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("record collection", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	dealer := chi.URLParam(r, "dealer")
	q := r.URL.Query()
	st, err := h.service.Statement(r.Context(), dealer, q.Get("name"), q.Get("month"))
	if err != nil {
		switch {
		case errors.Is(err, ErrDealerRequired), errors.Is(err, shared.ErrBeforeEpoch):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("dealer statement", slog.String("dealer", dealer), slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "numeric id required")
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "collection not found")
			return
		}
		h.logger.Error("remove collection", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
