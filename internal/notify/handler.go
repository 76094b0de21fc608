package notify

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Handler wires HTTP endpoints for dealer messages.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs notify handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notify routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/messages/billing", h.handleBillingMessages)
	r.Get("/messages/billing/{dealer}", h.handleBillingMessage)
	r.Get("/messages/unloading/{dealer}", h.handleUnloadingMessage)
	r.Get("/messages/reminder/{dealer}", h.handleReminder)
}

func (h *Handler) handleUnloadingMessage(w http.ResponseWriter, r *http.Request) {
	dealer := chi.URLParam(r, "dealer")
	date, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date required as YYYY-MM-DD")
		return
	}
	msg, err := h.service.UnloadingMessage(r.Context(), dealer, date)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no deliveries for dealer on date")
			return
		}
		h.logger.Error("unloading message", slog.String("dealer", dealer), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msg)
}

func (h *Handler) handleBillingMessage(w http.ResponseWriter, r *http.Request) {
	dealer := chi.URLParam(r, "dealer")
	date, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date required as YYYY-MM-DD")
		return
	}
	msg, err := h.service.BillingMessage(r.Context(), dealer, date)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no billing for dealer on date")
			return
		}
		h.logger.Error("billing message", slog.String("dealer", dealer), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msg)
}

func (h *Handler) handleBillingMessages(w http.ResponseWriter, r *http.Request) {
	date, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date required as YYYY-MM-DD")
		return
	}
	msgs, err := h.service.BillingMessagesForDate(r.Context(), date)
	if err != nil {
		h.logger.Error("billing messages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleReminder(w http.ResponseWriter, r *http.Request) {
	dealer := chi.URLParam(r, "dealer")
	date, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date required as YYYY-MM-DD")
		return
	}
	msg, err := h.service.PaymentReminder(r.Context(), dealer, r.URL.Query().Get("name"), date)
	if err != nil {
		h.logger.Error("payment reminder", slog.String("dealer", dealer), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msg)
}
