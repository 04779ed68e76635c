package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// LendingHandler handles lending records.
type LendingHandler struct {
	lendings *services.LendingService
}

type lendingRequest struct {
	ItemID             models.UUID `json:"item_id"`
	Borrower           string      `json:"borrower"`
	BorrowerContact    string      `json:"borrower_contact"`
	LendDate           models.Date `json:"lend_date"`
	ExpectedReturnDate models.Date `json:"expected_return_date"`
	Note               string      `json:"note"`
}

func (req *lendingRequest) record() *models.LendingRecord {
	return &models.LendingRecord{
		ItemID:             req.ItemID,
		Borrower:           req.Borrower,
		BorrowerContact:    req.BorrowerContact,
		LendDate:           req.LendDate,
		ExpectedReturnDate: req.ExpectedReturnDate,
		Note:               req.Note,
	}
}

// List handles GET /api/lendings?item_id=&status=
func (h *LendingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	records, err := h.lendings.List(r.Context(), owner(r), services.LendingQuery{
		ItemID: models.UUID(q.Get("item_id")),
		Status: models.LendingStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Create handles POST /api/lendings
func (h *LendingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req lendingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.lendings.Create(r.Context(), owner(r), req.record())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Get handles GET /api/lendings/:id
func (h *LendingHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := h.lendings.Get(r.Context(), owner(r), idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update handles PUT /api/lendings/:id
func (h *LendingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req lendingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec := req.record()
	rec.ID = idParam(ps)

	updated, err := h.lendings.Update(r.Context(), owner(r), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Return handles POST /api/lendings/:id/return. An empty body returns the
// item today.
func (h *LendingHandler) Return(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		ActualReturnDate models.Date `json:"actual_return_date"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	rec, err := h.lendings.Return(r.Context(), owner(r), idParam(ps), req.ActualReturnDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/lendings/:id
func (h *LendingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.lendings.Delete(r.Context(), owner(r), idParam(ps)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
