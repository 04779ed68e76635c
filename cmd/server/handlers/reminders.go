package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// ReminderHandler handles reminders.
type ReminderHandler struct {
	reminders *services.ReminderService
}

// List handles GET /api/reminders?item_id=&type=&status=&from=&to=
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, err := dateQuery(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := dateQuery(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	reminders, err := h.reminders.List(r.Context(), owner(r), services.ReminderQuery{
		ItemID: models.UUID(q.Get("item_id")),
		Type:   models.ReminderType(q.Get("type")),
		Status: models.ReminderStatus(q.Get("status")),
		From:   from,
		To:     to,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

// Create handles POST /api/reminders for maintenance and expiry reminders.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		ItemID     models.UUID         `json:"item_id"`
		Type       models.ReminderType `json:"type"`
		Title      string              `json:"title"`
		Content    string              `json:"content"`
		RemindDate models.Date         `json:"remind_date"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rem, err := h.reminders.Create(r.Context(), owner(r), &models.Reminder{
		ItemID:     req.ItemID,
		Type:       req.Type,
		Title:      req.Title,
		Content:    req.Content,
		RemindDate: req.RemindDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// MarkProcessed handles POST /api/reminders/:id/processed
func (h *ReminderHandler) MarkProcessed(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rem, err := h.reminders.MarkProcessed(r.Context(), owner(r), idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}
