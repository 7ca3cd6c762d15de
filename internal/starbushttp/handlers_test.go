// internal/starbushttp/handlers_test.go
package starbushttp

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/docstore"
	"github.com/starbus/coordinator/internal/starbus"
)

type noopExecutor struct{}

func (noopExecutor) Start(workspaceID, profile string) error { return nil }

func setupTestRouter(t *testing.T) (*mux.Router, func()) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(starbus.WorkspaceRootEnvVar, dir)

	dbFile, err := os.CreateTemp("", "handlers-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := sql.Open("sqlite", dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}

	docs := docstore.NewStore(db)
	if err := docs.Init(); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		t.Fatal(err)
	}

	engine := starbus.NewEngine(starbus.NewStore(docs), cat, noopExecutor{})
	handler := NewHandler(engine, nil)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	cleanup := func() {
		db.Close()
		os.Remove(dbFile.Name())
	}
	return router, cleanup
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIntakeCreateEndpoint(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	includeDeps := true
	w := doJSON(t, router, http.MethodPost, "/starbus/intake/create", starbus.IntakeRequest{
		Title:                  "Build API",
		Priority:               "P1",
		IncludeRecommendedDeps: &includeDeps,
		SetActive:              true,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool               `json:"success"`
		Data    starbus.TaskState `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatal("expected success=true")
	}
	if resp.Data.Status != starbus.StatusQueued {
		t.Errorf("expected QUEUED, got %s", resp.Data.Status)
	}
}

func TestIntakePreflightMissingTitle(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doJSON(t, router, http.MethodPost, "/starbus/intake/preflight", starbus.IntakeRequest{Priority: "P1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 (preflight reports via body, not status), got %d", w.Code)
	}

	var resp struct {
		Data starbus.PreflightResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.OK {
		t.Error("expected ok=false for missing title")
	}
}

func TestTransitionIllegalReturnsBadRequest(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	includeDeps := true
	createW := doJSON(t, router, http.MethodPost, "/starbus/intake/create", starbus.IntakeRequest{
		Title: "t", Priority: "P1", IncludeRecommendedDeps: &includeDeps,
	})
	var created struct {
		Data starbus.TaskState `json:"data"`
	}
	json.NewDecoder(createW.Body).Decode(&created)

	w := doJSON(t, router, http.MethodPost, "/starbus/state/transition", starbus.TransitionRequest{
		TaskID: created.Data.TaskID, Status: "DONE",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var errResp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&errResp)
	if errResp.Success {
		t.Error("expected success=false on illegal transition")
	}
}

func TestStatusMappingEndpoint(t *testing.T) {
	router, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doJSON(t, router, http.MethodGet, "/starbus/status-mapping", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
