package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/telemetry"
)

// SystemHandler serves health, metrics and scheduler control.
type SystemHandler struct {
	scheduler SweepRunner
	store     Pinger
}

// Health handles GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := map[string]interface{}{"status": "ok", "service": "homeinv"}
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

// Metrics handles GET /api/metrics
func (h *SystemHandler) Metrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, telemetry.Default().Snapshot())
}

// SchedulerStatus handles GET /api/scheduler
func (h *SystemHandler) SchedulerStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.scheduler == nil {
		writeError(w, r, apperrors.NotFound("scheduler is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// RunSweeps handles POST /api/scheduler/run. It runs both sweeps for
// today and returns the result; a run already in progress is a Conflict.
func (h *SystemHandler) RunSweeps(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.scheduler == nil {
		writeError(w, r, apperrors.NotFound("scheduler is not configured"))
		return
	}
	result, err := h.scheduler.RunNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
