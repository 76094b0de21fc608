package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cemtrack/cemtrack/internal/platform/httpx"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

// Fallback recomputes a balance when no materialized row exists yet for the
// requested day. Satisfied by the reconcile service.
type Fallback interface {
	Balance(ctx context.Context, vehicleNo string, date time.Time) (product.Quantities, error)
}

// Enqueuer submits rebuild tasks to the queue.
type Enqueuer interface {
	EnqueueSnapshotRebuild(ctx context.Context, through string) error
}

// Handler wires HTTP endpoints for daily balances.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	fallback Fallback
	enqueuer Enqueuer
	adminKey func(http.Handler) http.Handler
}

// NewHandler constructs snapshot handler. adminKey guards the rebuild trigger.
func NewHandler(logger *slog.Logger, repo *Repository, fallback Fallback, enqueuer Enqueuer, adminKey func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, repo: repo, fallback: fallback, enqueuer: enqueuer, adminKey: adminKey}
}

// MountRoutes registers snapshot routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/snapshots", h.handleListDay)
	r.Get("/snapshots/{vehicle}", h.handleVehicleDay)
	r.Group(func(r chi.Router) {
		r.Use(h.adminKey)
		r.Post("/snapshots/rebuild", h.handleRebuild)
	})
}

func (h *Handler) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return dateOnly(time.Now().UTC()), true
	}
	date, err := shared.ParseDate(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) handleListDay(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}
	rows, err := h.repo.ListForDate(r.Context(), date)
	if err != nil {
		h.logger.Error("list snapshots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleVehicleDay(w http.ResponseWriter, r *http.Request) {
	vehicle := chi.URLParam(r, "vehicle")
	date, ok := h.parseDate(w, r)
	if !ok {
		return
	}
	b, err := h.repo.Get(r.Context(), date, vehicle)
	if err == nil {
		httpx.JSON(w, http.StatusOK, b)
		return
	}
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("get snapshot", slog.String("vehicle", vehicle), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// No materialized row: either the balance was zero or the fold has not
	// reached this day yet. Recompute live so the answer is still correct.
	qty, err := h.fallback.Balance(r.Context(), vehicle, date)
	if err != nil {
		if errors.Is(err, shared.ErrBeforeEpoch) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("snapshot fallback", slog.String("vehicle", vehicle), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DayBalance{Date: date, VehicleNo: vehicle, Qty: qty})
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	through := r.URL.Query().Get("through")
	if through != "" {
		if _, err := shared.ParseDate(through); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "through must be YYYY-MM-DD")
			return
		}
	}
	if err := h.enqueuer.EnqueueSnapshotRebuild(r.Context(), through); err != nil {
		h.logger.Error("enqueue snapshot rebuild", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
