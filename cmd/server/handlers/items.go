package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// ItemHandler handles inventory item operations.
type ItemHandler struct {
	items     *services.ItemService
	reminders *services.ReminderService
}

type itemRequest struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	ParentID        string            `json:"parent_id"`
	SpaceID         string            `json:"space_id"`
	Status          models.ItemStatus `json:"status"`
	PurchaseDate    models.Date       `json:"purchase_date"`
	WarrantyMonths  int               `json:"warranty_months"`
	WarrantyEndDate models.Date       `json:"warranty_end_date"`
	ExpiryDate      models.Date       `json:"expiry_date"`
}

func (req *itemRequest) item() *models.Item {
	return &models.Item{
		Node:            models.Node{Name: req.Name, Description: req.Description},
		SpaceID:         parentRef(req.SpaceID),
		Status:          req.Status,
		PurchaseDate:    req.PurchaseDate,
		WarrantyMonths:  req.WarrantyMonths,
		WarrantyEndDate: req.WarrantyEndDate,
		ExpiryDate:      req.ExpiryDate,
	}
}

// Create handles POST /api/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req itemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.items.Create(r.Context(), owner(r), req.item(), parentRef(req.ParentID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Get handles GET /api/items/:id
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := h.items.Get(r.Context(), owner(r), idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update handles PUT /api/items/:id. The tree position is changed through
// the move endpoint, so parent_id is ignored here.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req itemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item := req.item()
	item.ID = idParam(ps)

	updated, err := h.items.Update(r.Context(), owner(r), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GenerateReminders handles POST /api/items/:id/reminders and returns the
// reminders that did not exist yet.
func (h *ItemHandler) GenerateReminders(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	created, err := h.reminders.GenerateForItem(r.Context(), owner(r), idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if created == nil {
		created = []*models.Reminder{}
	}
	writeJSON(w, http.StatusOK, created)
}
