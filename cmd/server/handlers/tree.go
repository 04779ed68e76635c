package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/kimhsiao/homeinv/backend/internal/models"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// TreeHandler handles space and entity tree operations.
type TreeHandler struct {
	trees *services.TreeService
}

type nodeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
}

// Insert handles POST /api/nodes/:kind
func (h *TreeHandler) Insert(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req nodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	node, err := h.trees.Insert(r.Context(), owner(r), &models.Node{
		Kind:        kind,
		Name:        req.Name,
		Description: req.Description,
	}, parentRef(req.ParentID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// Rename handles PUT /api/nodes/:kind/:id
func (h *TreeHandler) Rename(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req nodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	node, err := h.trees.Rename(r.Context(), owner(r), kind, idParam(ps), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Move handles POST /api/nodes/:kind/:id/move
func (h *TreeHandler) Move(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		ParentID string `json:"parent_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	node, err := h.trees.Move(r.Context(), owner(r), kind, idParam(ps), parentRef(req.ParentID))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Delete handles DELETE /api/nodes/:kind/:id
func (h *TreeHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.trees.Delete(r.Context(), owner(r), kind, idParam(ps)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTree handles GET /api/tree/:kind
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	roots, err := h.trees.GetTree(r.Context(), owner(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

// Ancestors handles GET /api/nodes/:kind/:id/ancestors
func (h *TreeHandler) Ancestors(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.trees.AncestorPath(r.Context(), owner(r), kind, idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// SetTags handles PUT /api/nodes/:kind/:id/tags
func (h *TreeHandler) SetTags(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tags, err := h.trees.SetTags(r.Context(), owner(r), kind, idParam(ps), req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags})
}

// Images handles GET /api/nodes/:kind/:id/images
func (h *TreeHandler) Images(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	images, err := h.trees.Images(r.Context(), owner(r), kind, idParam(ps))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

// AddImage handles POST /api/nodes/:kind/:id/images. Only the stored file
// path is recorded; uploads are handled elsewhere.
func (h *TreeHandler) AddImage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		FilePath string `json:"file_path"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	img, err := h.trees.AddImage(r.Context(), owner(r), kind, idParam(ps), req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// Rebuild handles POST /api/tree/:kind/rebuild
func (h *TreeHandler) Rebuild(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changed, err := h.trees.Rebuild(r.Context(), owner(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"repaired": changed})
}

// Verify handles GET /api/tree/:kind/verify
func (h *TreeHandler) Verify(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	kind, err := kindParam(ps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	violations, err := h.trees.Verify(r.Context(), owner(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"consistent": len(violations) == 0,
		"violations": violations,
	})
}
