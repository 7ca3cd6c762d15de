package execprofile

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
)

func TestProcessExecutorUnknownProfile(t *testing.T) {
	e := NewProcessExecutor(Default(), nil, t.TempDir(), t.TempDir())
	if err := e.Start("ws-1", "nonexistent"); err == nil {
		t.Fatal("expected an error for an unregistered profile")
	}
}

func TestProcessExecutorStartsConfiguredCommand(t *testing.T) {
	dbFile, err := os.CreateTemp("", "exec-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(dbFile.Name())
	dbFile.Close()

	db, err := sql.Open("sqlite", dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		t.Fatal(err)
	}

	task := &catalog.Task{ID: "task-1", ProjectID: "proj-1", Title: "t", Status: "Todo"}
	if err := cat.CreateTask(task); err != nil {
		t.Fatal(err)
	}
	ws := &catalog.Workspace{ID: "ws-1", TaskID: "task-1", AttemptID: "att-1", Branch: "task/att-1"}
	if err := cat.CreateWorkspace(ws, nil); err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "workspaces", "ws-1"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Profiles: []Profile{{Name: "echo-profile", Cmd: "true", Args: []string{"{{workspace_dir}}"}}}}
	e := NewProcessExecutor(cfg, cat, root, t.TempDir())

	if err := e.Start("ws-1", "echo-profile"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Give the detached process a moment to finish and close its log file.
	time.Sleep(100 * time.Millisecond)
}

func TestProcessExecutorUnknownWorkspace(t *testing.T) {
	dbFile, err := os.CreateTemp("", "exec-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(dbFile.Name())
	dbFile.Close()

	db, err := sql.Open("sqlite", dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		t.Fatal(err)
	}

	e := NewProcessExecutor(Default(), cat, t.TempDir(), t.TempDir())
	if err := e.Start("missing-ws", "claude"); err == nil {
		t.Fatal("expected an error for an unknown workspace")
	}
}
