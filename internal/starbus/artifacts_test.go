// internal/starbus/artifacts_test.go
package starbus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTaskSkeletonCreatesFiles(t *testing.T) {
	root := t.TempDir()

	in := IntakeSkeletonInput{
		TaskID:   "task-1",
		Title:    `Say "hi"`,
		Priority: "",
		Status:   StatusQueued,
	}
	if err := WriteTaskSkeleton(root, in); err != nil {
		t.Fatalf("WriteTaskSkeleton failed: %v", err)
	}

	dir := TaskDir(root, "task-1")
	for _, name := range []string{"task.md", "context.md", "playbook.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "task.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "priority: P1") {
		t.Errorf("expected default priority P1 in task.md, got: %s", data)
	}
	if strings.Contains(string(data), `"`) {
		t.Errorf("expected quotes escaped to single quotes in task.md, got: %s", data)
	}
}

func TestRemoveTaskSkeleton(t *testing.T) {
	root := t.TempDir()
	in := IntakeSkeletonInput{TaskID: "task-1", Title: "x", Status: StatusQueued}
	if err := WriteTaskSkeleton(root, in); err != nil {
		t.Fatal(err)
	}
	if err := RemoveTaskSkeleton(root, "task-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(TaskDir(root, "task-1")); !os.IsNotExist(err) {
		t.Error("expected task dir to be removed")
	}
}

func TestDiscoverWorkspaceRootEnvOverride(t *testing.T) {
	t.Setenv(WorkspaceRootEnvVar, "/some/override")
	root, err := DiscoverWorkspaceRoot()
	if err != nil {
		t.Fatal(err)
	}
	if root != "/some/override" {
		t.Errorf("expected env override, got %q", root)
	}
}
