package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Live-to-Role/grimoire/internal/library"
)

// fileDTO is the wire shape of a tracked file.
type fileDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path"`
	FileSize  int64     `json:"file_size"`
	FolderID  string    `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toFileDTO(f *library.TrackedFile) fileDTO {
	return fileDTO{
		ID:        f.ID,
		Title:     f.Title,
		FilePath:  f.FilePath,
		FileSize:  f.FileSize,
		FolderID:  f.FolderID,
		CreatedAt: f.CreatedAt,
	}
}

func toFileDTOs(files []*library.TrackedFile) []fileDTO {
	out := make([]fileDTO, 0, len(files))
	for _, f := range files {
		out = append(out, toFileDTO(f))
	}
	return out
}

type groupDTO struct {
	ContentHash      string    `json:"content_hash"`
	TotalMembers     int       `json:"total_members"`
	Canonical        fileDTO   `json:"canonical"`
	KeepReason       string    `json:"keep_reason"`
	Duplicates       []fileDTO `json:"duplicates"`
	WastedSpaceBytes int64     `json:"wasted_space_bytes"`
}

type statsDTO struct {
	TotalProducts         int     `json:"total_products"`
	DuplicateCount        int     `json:"duplicate_count"`
	UniqueDuplicateGroups int     `json:"unique_duplicate_groups"`
	WastedSpaceBytes      int64   `json:"wasted_space_bytes"`
	WastedSpaceMB         float64 `json:"wasted_space_mb"`
}

type planEntryDTO struct {
	ContentHash     string    `json:"content_hash"`
	Keep            fileDTO   `json:"keep"`
	KeepReason      string    `json:"keep_reason"`
	Delete          []fileDTO `json:"delete"`
	SpaceFreedBytes int64     `json:"space_freed_bytes"`
}

type planDTO struct {
	Entries          []planEntryDTO `json:"entries"`
	TotalGroups      int            `json:"total_groups"`
	TotalDuplicates  int            `json:"total_duplicates"`
	TotalSpaceBytes  int64          `json:"total_space_bytes"`
	HasSourceOfTruth bool           `json:"has_source_of_truth"`
}

type executionDTO struct {
	GroupsProcessed int            `json:"groups_processed"`
	FilesRemoved    int            `json:"files_removed"`
	FilesDeleted    int            `json:"files_deleted"`
	AlreadyMissing  int            `json:"already_missing"`
	BytesFreed      int64          `json:"bytes_freed"`
	Errors          []fileErrorDTO `json:"errors"`
}

type fileErrorDTO struct {
	FilePath string `json:"file_path"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message"`
}

func toExecutionDTO(res *library.ExecutionResult) executionDTO {
	dto := executionDTO{
		GroupsProcessed: res.GroupsProcessed,
		FilesRemoved:    res.FilesRemoved,
		FilesDeleted:    res.FilesDeleted,
		AlreadyMissing:  res.AlreadyMissing,
		BytesFreed:      res.BytesFreed,
		Errors:          []fileErrorDTO{},
	}
	for _, e := range res.Errors {
		dto.Errors = append(dto.Errors, fileErrorDTO{
			FilePath: e.FilePath,
			Outcome:  e.Outcome.String(),
			Message:  e.Message,
		})
	}
	return dto
}

// handleListDuplicates returns every duplicate group with canonical
// selection applied.
func (a *API) handleListDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := a.service.ListDuplicates()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	out := make([]groupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupDTO{
			ContentHash:      g.ContentHash,
			TotalMembers:     len(g.Duplicates) + 1,
			Canonical:        toFileDTO(g.Canonical),
			KeepReason:       string(g.KeepReason),
			Duplicates:       toFileDTOs(g.Duplicates),
			WastedSpaceBytes: g.WastedSpaceBytes,
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

// handleStats returns aggregate duplicate statistics.
func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, statsDTO{
		TotalProducts:         stats.TotalProducts,
		DuplicateCount:        stats.DuplicateCount,
		UniqueDuplicateGroups: stats.UniqueDuplicateGroups,
		WastedSpaceBytes:      stats.WastedSpaceBytes,
		WastedSpaceMB:         stats.WastedSpaceMB,
	})
}

type scanDTO struct {
	FilesSeen     int `json:"files_seen"`
	FilesAdded    int `json:"files_added"`
	FilesUpdated  int `json:"files_updated"`
	FilesRemoved  int `json:"files_removed"`
	FilesExcluded int `json:"files_excluded"`
}

// handleScan runs a library scan synchronously and reports the result.
func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Scan(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, scanDTO{
		FilesSeen:     res.FilesSeen,
		FilesAdded:    res.FilesAdded,
		FilesUpdated:  res.FilesUpdated,
		FilesRemoved:  res.FilesRemoved,
		FilesExcluded: res.FilesExcluded,
	})
}

type bulkDeleteRequest struct {
	ProductIDs  []string `json:"product_ids"`
	DeleteFiles bool     `json:"delete_files"`
}

// handleBulkDelete removes a user-selected set of file records, outside of
// canonical selection.
func (a *API) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.ProductIDs) == 0 {
		a.writeError(w, http.StatusBadRequest, "product_ids required")
		return
	}

	res, err := a.service.BulkDelete(r.Context(), req.ProductIDs, req.DeleteFiles)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toExecutionDTO(res))
}

// handleResolveGroup resolves the single duplicate group identified by its
// content hash using canonical selection.
func (a *API) handleResolveGroup(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	deleteFiles := r.URL.Query().Get("delete_files") == "true"

	res, err := a.service.ResolveGroup(r.Context(), hash, deleteFiles)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toExecutionDTO(res))
}

// handlePreview returns the full dry-run resolution plan. Read-only; safe
// to call repeatedly.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	plan, err := a.service.BuildPreview()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	dto := planDTO{
		Entries:          []planEntryDTO{},
		TotalGroups:      plan.TotalGroups,
		TotalDuplicates:  plan.TotalDuplicates,
		TotalSpaceBytes:  plan.TotalSpaceBytes,
		HasSourceOfTruth: plan.HasSourceOfTruth,
	}
	for _, e := range plan.Entries {
		dto.Entries = append(dto.Entries, planEntryDTO{
			ContentHash:     e.ContentHash,
			Keep:            toFileDTO(e.Keep),
			KeepReason:      string(e.KeepReason),
			Delete:          toFileDTOs(e.Delete),
			SpaceFreedBytes: e.SpaceFreedBytes,
		})
	}
	a.writeJSON(w, http.StatusOK, dto)
}

type executeRequest struct {
	DeleteFiles bool `json:"delete_files"`
}

// handleExecute runs full duplicate resolution. This is the only endpoint
// with irreversible side effects; it never runs implicitly.
func (a *API) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := a.service.Execute(r.Context(), req.DeleteFiles)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toExecutionDTO(res))
}
