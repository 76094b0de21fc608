package balance

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Handler wires HTTP endpoints for opening balances.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	adminKey func(http.Handler) http.Handler
}

// NewHandler constructs balance handler. adminKey guards manual entry routes.
func NewHandler(logger *slog.Logger, service *Service, adminKey func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), adminKey: adminKey}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balances/vehicle/{vehicle}", h.handleVehicleOpening)
	r.Get("/balances/vehicles", h.handleListVehicle)
	r.Get("/balances/dealer", h.handleDealerOpening)
	r.Get("/balances/dealers", h.handleListDealer)
	r.Get("/balances/monetary/{dealer}", h.handleMonetaryOpening)
	r.Group(func(r chi.Router) {
		r.Use(h.adminKey)
		r.Post("/balances/vehicle", h.handleSetVehicle)
		r.Post("/balances/dealer", h.handleSetDealer)
		r.Post("/balances/monetary", h.handleSetMonetary)
	})
}

func (h *Handler) respondSetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrVehicleRequired), errors.Is(err, ErrDealerRequired),
		errors.Is(err, ErrMonthRequired), errors.Is(err, shared.ErrBeforeEpoch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("set opening", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleSetVehicle(w http.ResponseWriter, r *http.Request) {
	var in VehicleOpeningInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	o, err := h.service.SetVehicleOpening(r.Context(), in)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) handleVehicleOpening(w http.ResponseWriter, r *http.Request) {
	vehicle := chi.URLParam(r, "vehicle")
	month := r.URL.Query().Get("month")
	o, err := h.service.VehicleOpening(r.Context(), vehicle, month)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) handleListVehicle(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	out, err := h.service.ListVehicleOpenings(r.Context(), month)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetDealer(w http.ResponseWriter, r *http.Request) {
	var in DealerOpeningInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	o, err := h.service.SetDealerOpening(r.Context(), in)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) handleDealerOpening(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	o, err := h.service.DealerOpening(r.Context(), q.Get("code"), q.Get("name"), q.Get("month"))
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) handleListDealer(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	out, err := h.service.ListDealerOpenings(r.Context(), month)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleSetMonetary(w http.ResponseWriter, r *http.Request) {
	var in MonetaryOpeningInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	o, err := h.service.SetMonetaryOpening(r.Context(), in)
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) handleMonetaryOpening(w http.ResponseWriter, r *http.Request) {
	dealer := chi.URLParam(r, "dealer")
	q := r.URL.Query()
	o, err := h.service.MonetaryOpening(r.Context(), dealer, q.Get("name"), q.Get("month"))
	if err != nil {
		h.respondSetError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}
