package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Live-to-Role/grimoire/internal/library"
)

type folderDTO struct {
	ID              string    `json:"id"`
	Path            string    `json:"path"`
	Label           string    `json:"label"`
	Enabled         bool      `json:"enabled"`
	IsSourceOfTruth bool      `json:"is_source_of_truth"`
	CreatedAt       time.Time `json:"created_at"`
}

func toFolderDTO(f *library.WatchedFolder) folderDTO {
	return folderDTO{
		ID:              f.ID,
		Path:            f.Path,
		Label:           f.Label,
		Enabled:         f.Enabled,
		IsSourceOfTruth: f.IsSourceOfTruth,
		CreatedAt:       f.CreatedAt,
	}
}

func (a *API) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := a.service.ListFolders()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]folderDTO, 0, len(folders))
	for _, f := range folders {
		out = append(out, toFolderDTO(f))
	}
	a.writeJSON(w, http.StatusOK, out)
}

type createFolderRequest struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

func (a *API) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	folder, err := a.service.AddFolder(req.Path, req.Label)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toFolderDTO(folder))
}

type patchFolderRequest struct {
	Label           *string `json:"label"`
	Enabled         *bool   `json:"enabled"`
	IsSourceOfTruth *bool   `json:"is_source_of_truth"`
}

// handlePatchFolder applies partial folder updates. The at-most-one
// source-of-truth invariant is enforced here server-side regardless of
// client behavior.
func (a *API) handlePatchFolder(w http.ResponseWriter, r *http.Request) {
	var req patchFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	folder, err := a.service.UpdateFolder(chi.URLParam(r, "id"), library.FolderPatch{
		Label:           req.Label,
		Enabled:         req.Enabled,
		IsSourceOfTruth: req.IsSourceOfTruth,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toFolderDTO(folder))
}

func (a *API) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := a.service.RemoveFolder(chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
