package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Live-to-Role/grimoire/internal/httpapi"
	"github.com/Live-to-Role/grimoire/internal/library"
	"github.com/Live-to-Role/grimoire/internal/testutil"
)

type testAPI struct {
	handler http.Handler
	svc     *library.Service
	fsmgr   *testutil.MockFilesystemManager
	clock   *testutil.FakeClock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := testutil.NewTestStore(t)
	fsmgr := testutil.NewMockFilesystemManager()
	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := library.NewService(store, fsmgr, nil, library.NewNopLogger(), clock, &testutil.SequentialIDGenerator{}, []string{".pdf"})
	api := httpapi.NewAPI(svc, library.NewNopLogger())
	return &testAPI{handler: api.Router(), svc: svc, fsmgr: fsmgr, clock: clock}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// seedDuplicates puts the same bytes at three paths across two folders and
// scans, leaving one duplicate group behind.
func (a *testAPI) seedDuplicates(t *testing.T) {
	t.Helper()
	if _, err := a.svc.AddFolder("/library", ""); err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	if _, err := a.svc.AddFolder("/downloads", ""); err != nil {
		t.Fatalf("AddFolder() error = %v", err)
	}
	content := []byte("the same adventure module")
	a.fsmgr.AddFile("/library/adventure.pdf", content)
	a.fsmgr.AddFile("/downloads/adventure.pdf", content)
	a.fsmgr.AddFile("/downloads/adventure (1).pdf", content)
	if _, err := a.svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
}

func TestAPI_Health(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestAPI_Folders(t *testing.T) {
	t.Run("create returns 201 with the folder", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/library"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["path"] != "/library" {
			t.Errorf("path = %v, want /library", body["path"])
		}
		if body["enabled"] != true {
			t.Errorf("enabled = %v, want true", body["enabled"])
		}
	})

	t.Run("relative path returns 400", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "library"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("duplicate path returns 409", func(t *testing.T) {
		a := newTestAPI(t)
		a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/library"})
		rec := a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/library"})
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("patch moves the source-of-truth flag", func(t *testing.T) {
		a := newTestAPI(t)
		first := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/library"}))
		second := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/downloads"}))

		rec := a.do(t, http.MethodPatch, fmt.Sprintf("/api/folders/%s", first["id"]), map[string]any{"is_source_of_truth": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("first patch status = %d: %s", rec.Code, rec.Body.String())
		}
		rec = a.do(t, http.MethodPatch, fmt.Sprintf("/api/folders/%s", second["id"]), map[string]any{"is_source_of_truth": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("second patch status = %d: %s", rec.Code, rec.Body.String())
		}

		list := decode[[]map[string]any](t, a.do(t, http.MethodGet, "/api/folders", nil))
		var flagged []string
		for _, f := range list {
			if f["is_source_of_truth"] == true {
				flagged = append(flagged, f["id"].(string))
			}
		}
		if len(flagged) != 1 || flagged[0] != second["id"] {
			t.Errorf("flagged = %v, want only %v", flagged, second["id"])
		}
	})

	t.Run("patch unknown folder returns 404", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPatch, "/api/folders/missing", map[string]any{"enabled": false})
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("delete returns 204", func(t *testing.T) {
		a := newTestAPI(t)
		folder := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/folders", map[string]string{"path": "/library"}))
		rec := a.do(t, http.MethodDelete, fmt.Sprintf("/api/folders/%s", folder["id"]), nil)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestAPI_Exclusions(t *testing.T) {
	t.Run("create and list", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/exclusions", map[string]any{
			"rule_type": "filename",
			"pattern":   "*.bak",
			"priority":  40,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}

		list := decode[[]map[string]any](t, a.do(t, http.MethodGet, "/api/exclusions", nil))
		if len(list) != 1 || list[0]["pattern"] != "*.bak" {
			t.Errorf("list = %v, want one *.bak rule", list)
		}
	})

	t.Run("invalid regex returns 400", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/exclusions", map[string]any{
			"rule_type": "regex",
			"pattern":   "[unclosed",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("deleting a default rule returns 400", func(t *testing.T) {
		a := newTestAPI(t)
		if err := a.svc.EnsureDefaultRules(); err != nil {
			t.Fatalf("EnsureDefaultRules() error = %v", err)
		}
		list := decode[[]map[string]any](t, a.do(t, http.MethodGet, "/api/exclusions", nil))
		if len(list) == 0 {
			t.Fatal("no default rules seeded")
		}
		rec := a.do(t, http.MethodDelete, fmt.Sprintf("/api/exclusions/%s", list[0]["id"]), nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("update disables a rule", func(t *testing.T) {
		a := newTestAPI(t)
		rule := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/exclusions", map[string]any{
			"rule_type": "filename",
			"pattern":   "*.bak",
		}))
		rec := a.do(t, http.MethodPut, fmt.Sprintf("/api/exclusions/%s", rule["id"]), map[string]any{"enabled": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["enabled"] != false {
			t.Errorf("enabled = %v, want false", body["enabled"])
		}
	})
}

func TestAPI_Duplicates(t *testing.T) {
	t.Run("scan then list groups", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		list := decode[[]map[string]any](t, a.do(t, http.MethodGet, "/api/duplicates", nil))
		if len(list) != 1 {
			t.Fatalf("groups = %d, want 1", len(list))
		}
		if list[0]["total_members"] != float64(3) {
			t.Errorf("total_members = %v, want 3", list[0]["total_members"])
		}
	})

	t.Run("scan endpoint reports counters", func(t *testing.T) {
		a := newTestAPI(t)
		a.svc.AddFolder("/library", "")
		a.fsmgr.AddFile("/library/module.pdf", []byte("content"))

		rec := a.do(t, http.MethodPost, "/api/duplicates/scan", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["files_added"] != float64(1) {
			t.Errorf("files_added = %v, want 1", body["files_added"])
		}
	})

	t.Run("stats", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		body := decode[map[string]any](t, a.do(t, http.MethodGet, "/api/duplicates/stats", nil))
		if body["total_products"] != float64(3) {
			t.Errorf("total_products = %v, want 3", body["total_products"])
		}
		if body["unique_duplicate_groups"] != float64(1) {
			t.Errorf("unique_duplicate_groups = %v, want 1", body["unique_duplicate_groups"])
		}
		if body["duplicate_count"] != float64(2) {
			t.Errorf("duplicate_count = %v, want 2", body["duplicate_count"])
		}
	})

	t.Run("preview never mutates", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		for i := 0; i < 2; i++ {
			body := decode[map[string]any](t, a.do(t, http.MethodGet, "/api/duplicates/resolve/preview", nil))
			if body["total_groups"] != float64(1) {
				t.Errorf("total_groups = %v, want 1 on call %d", body["total_groups"], i+1)
			}
			if body["has_source_of_truth"] != false {
				t.Errorf("has_source_of_truth = %v, want false", body["has_source_of_truth"])
			}
		}
	})

	t.Run("execute resolves and is idempotent", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		rec := a.do(t, http.MethodPost, "/api/duplicates/resolve/execute", map[string]any{"delete_files": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["groups_processed"] != float64(1) || body["files_deleted"] != float64(2) {
			t.Errorf("execute = %v, want 1 group, 2 deleted", body)
		}

		rec = a.do(t, http.MethodPost, "/api/duplicates/resolve/execute", map[string]any{"delete_files": true})
		body = decode[map[string]any](t, rec)
		if body["groups_processed"] != float64(0) {
			t.Errorf("second execute groups_processed = %v, want 0", body["groups_processed"])
		}
	})

	t.Run("execute without delete_files keeps bytes", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		rec := a.do(t, http.MethodPost, "/api/duplicates/resolve/execute", map[string]any{"delete_files": false})
		body := decode[map[string]any](t, rec)
		if body["files_deleted"] != float64(0) {
			t.Errorf("files_deleted = %v, want 0", body["files_deleted"])
		}
		if !a.fsmgr.Exists("/downloads/adventure.pdf") {
			t.Error("file deleted from disk on metadata-only run")
		}
	})

	t.Run("resolve single group by hash", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)
		hash := testutil.Hash([]byte("the same adventure module"))

		rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/duplicates/group/%s/delete-duplicates?delete_files=true", hash), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["groups_processed"] != float64(1) {
			t.Errorf("groups_processed = %v, want 1", body["groups_processed"])
		}
	})

	t.Run("bulk delete requires ids", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/duplicates/bulk-delete", map[string]any{"product_ids": []string{}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bulk delete removes selected files", func(t *testing.T) {
		a := newTestAPI(t)
		a.seedDuplicates(t)

		list := decode[[]map[string]any](t, a.do(t, http.MethodGet, "/api/duplicates", nil))
		dups := list[0]["duplicates"].([]any)
		id := dups[0].(map[string]any)["id"].(string)

		rec := a.do(t, http.MethodPost, "/api/duplicates/bulk-delete", map[string]any{
			"product_ids":  []string{id},
			"delete_files": false,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[map[string]any](t, rec)
		if body["files_removed"] != float64(1) {
			t.Errorf("files_removed = %v, want 1", body["files_removed"])
		}
	})

	t.Run("unknown body field returns 400", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(t, http.MethodPost, "/api/duplicates/resolve/execute", map[string]any{"delete": true})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
