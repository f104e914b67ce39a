/*
handlers.go - Admin HTTP handlers

PURPOSE:
  Read-only view of the stored birthdays plus a manual trigger for the
  reconciliation cycle. Nothing here writes has_role directly; the run
  endpoint goes through the scheduler like the timed loop does.

ENDPOINTS:
  GET    /healthz                     Liveness and database ping
  GET    /api/birthdays               List stored birthdays
  GET    /api/birthdays/{userID}      One member's birthday
  POST   /api/reconciliation/run      Run one reconciliation cycle now
  GET    /metrics                     Prometheus metrics

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed user id
  - 404: No birthday stored
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Bind http_addr to a private interface.

SEE ALSO:
  - dto.go: Response structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/birthday-engine/birthday"
	"github.com/warp/birthday-engine/bot"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// BirthdayReader is the read side of the birthday store.
type BirthdayReader interface {
	Find(ctx context.Context, userID int64) (*birthday.Record, error)
	List(ctx context.Context) ([]birthday.Record, error)
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CycleRunner runs one reconciliation cycle.
type CycleRunner interface {
	RunNow(ctx context.Context) bot.CycleReport
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     BirthdayReader
	DB        Pinger
	Scheduler CycleRunner
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(store BirthdayReader, db Pinger, scheduler CycleRunner, logger *slog.Logger) *Handler {
	return &Handler{
		Store:     store,
		DB:        db,
		Scheduler: scheduler,
		Now:       func() time.Time { return time.Now().UTC() },
		Logger:    logger.With("component", "api"),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "degraded", Database: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", Database: "ok"})
}

// =============================================================================
// BIRTHDAYS
// =============================================================================

// ListBirthdays returns every stored birthday.
// GET /api/birthdays
func (h *Handler) ListBirthdays(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.List(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to list birthdays", err)
		return
	}

	now := h.Now()
	dtos := make([]BirthdayDTO, len(records))
	for i, rec := range records {
		dtos[i] = toBirthdayDTO(rec, now)
	}
	writeJSON(w, http.StatusOK, ListBirthdaysResponse{Birthdays: dtos, Count: len(dtos)})
}

// GetBirthday returns one member's birthday.
// GET /api/birthdays/{userID}
func (h *Handler) GetBirthday(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "Invalid user id", err)
		return
	}

	rec, err := h.Store.Find(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "Failed to get birthday", err)
		return
	}
	if rec == nil {
		h.writeError(w, r, http.StatusNotFound, "Birthday not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toBirthdayDTO(*rec, h.Now()))
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// RunReconciliation runs one cycle synchronously and returns its report.
// POST /api/reconciliation/run
func (h *Handler) RunReconciliation(w http.ResponseWriter, r *http.Request) {
	report := h.Scheduler.RunNow(r.Context())
	h.Logger.InfoContext(r.Context(), "manual reconciliation", "cycle_id", report.CycleID)
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
	}
	writeJSON(w, status, resp)
}
