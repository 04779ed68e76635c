// Package handlers exposes the inventory services as a JSON API.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/julienschmidt/httprouter"

	apperrors "github.com/kimhsiao/homeinv/backend/internal/errors"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/scheduler"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// OwnerHeader carries the owning household of every request.
const OwnerHeader = "X-Owner-ID"

const maxBodyBytes = 1 << 20

// SweepRunner is the part of the scheduler the API drives.
type SweepRunner interface {
	RunNow(ctx context.Context) (*scheduler.RunResult, error)
	Status() scheduler.Status
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API. Scheduler, Store and Events are
// optional.
type Deps struct {
	Trees     *services.TreeService
	Items     *services.ItemService
	Lendings  *services.LendingService
	Reminders *services.ReminderService
	Scheduler SweepRunner
	Store     Pinger
	Events    http.Handler
}

// NewRouter registers every route.
func NewRouter(d Deps) *httprouter.Router {
	r := httprouter.New()

	tree := &TreeHandler{trees: d.Trees}
	r.GET("/api/tree/:kind", tree.GetTree)
	r.POST("/api/tree/:kind/rebuild", tree.Rebuild)
	r.GET("/api/tree/:kind/verify", tree.Verify)
	r.POST("/api/nodes/:kind", tree.Insert)
	r.PUT("/api/nodes/:kind/:id", tree.Rename)
	r.DELETE("/api/nodes/:kind/:id", tree.Delete)
	r.POST("/api/nodes/:kind/:id/move", tree.Move)
	r.GET("/api/nodes/:kind/:id/ancestors", tree.Ancestors)
	r.PUT("/api/nodes/:kind/:id/tags", tree.SetTags)
	r.GET("/api/nodes/:kind/:id/images", tree.Images)
	r.POST("/api/nodes/:kind/:id/images", tree.AddImage)

	items := &ItemHandler{items: d.Items, reminders: d.Reminders}
	r.POST("/api/items", items.Create)
	r.GET("/api/items/:id", items.Get)
	r.PUT("/api/items/:id", items.Update)
	r.POST("/api/items/:id/reminders", items.GenerateReminders)

	lendings := &LendingHandler{lendings: d.Lendings}
	r.GET("/api/lendings", lendings.List)
	r.POST("/api/lendings", lendings.Create)
	r.GET("/api/lendings/:id", lendings.Get)
	r.PUT("/api/lendings/:id", lendings.Update)
	r.DELETE("/api/lendings/:id", lendings.Delete)
	r.POST("/api/lendings/:id/return", lendings.Return)

	reminders := &ReminderHandler{reminders: d.Reminders}
	r.GET("/api/reminders", reminders.List)
	r.POST("/api/reminders", reminders.Create)
	r.POST("/api/reminders/:id/processed", reminders.MarkProcessed)

	system := &SystemHandler{scheduler: d.Scheduler, store: d.Store}
	r.GET("/api/health", system.Health)
	r.GET("/api/metrics", system.Metrics)
	r.GET("/api/scheduler", system.SchedulerStatus)
	r.POST("/api/scheduler/run", system.RunSweeps)

	if d.Events != nil {
		r.Handler(http.MethodGet, "/ws", d.Events)
	}

	r.PanicHandler = func(w http.ResponseWriter, req *http.Request, v interface{}) {
		logging.Error("handler panic", nil, map[string]interface{}{
			"path":  req.URL.Path,
			"panic": v,
		})
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: string(apperrors.ErrInternal), Message: "internal error"})
	}
	return r
}

// =====================================================
// Request and response helpers
// =====================================================

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrConflict:
		return http.StatusConflict
	case apperrors.ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status == http.StatusInternalServerError {
		logging.ErrorWithCode("request failed", string(code), err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Code: string(code), Message: message})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation("invalid request body: %v", err)
	}
	return nil
}

func owner(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

// parentRef turns the wire form of a parent id into a reference. Empty and
// "0" mean the root.
func parentRef(s string) *models.UUID {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil
	}
	id := models.UUID(s)
	return &id
}

// kindParam accepts both singular and plural kind names.
func kindParam(ps httprouter.Params) (models.NodeKind, error) {
	switch ps.ByName("kind") {
	case "space", "spaces":
		return models.KindSpace, nil
	case "entity", "entities":
		return models.KindEntity, nil
	}
	return "", apperrors.Validation("unknown node kind %q", ps.ByName("kind"))
}

func idParam(ps httprouter.Params) models.UUID {
	return models.UUID(ps.ByName("id"))
}

func dateQuery(r *http.Request, key string) (models.Date, error) {
	d, err := models.ParseDate(r.URL.Query().Get(key))
	if err != nil {
		return models.Date{}, apperrors.Validation("invalid %s: %v", key, err)
	}
	return d, nil
}
