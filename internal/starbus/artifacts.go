// internal/starbus/artifacts.go
package starbus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkspaceRootEnvVar overrides root discovery when set.
const WorkspaceRootEnvVar = "STARBUS_WORKSPACE_ROOT"

// DiscoverWorkspaceRoot resolves the filesystem root artifacts are
// written under. If STARBUS_WORKSPACE_ROOT is set it wins outright;
// otherwise it walks ancestors of cwd looking first for a ".git" entry,
// then for an ancestor containing both "tasks/" and "artifacts/", and
// falls back to cwd itself.
func DiscoverWorkspaceRoot() (string, error) {
	if root := os.Getenv(WorkspaceRootEnvVar); root != "" {
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", filesystemFailure("discover workspace root: %v", err)
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	dir = cwd
	for {
		_, tasksErr := os.Stat(filepath.Join(dir, "tasks"))
		_, artifactsErr := os.Stat(filepath.Join(dir, "artifacts"))
		if tasksErr == nil && artifactsErr == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd, nil
}

// TaskDir returns the per-task artifact directory under root.
func TaskDir(root, taskID string) string {
	return filepath.Join(root, "docs", "starbus", "runs", taskID)
}

// taskFrontmatter is the YAML block written at the top of task.md.
type taskFrontmatter struct {
	TaskID                 string   `yaml:"task_id"`
	Title                  string   `yaml:"title"`
	Priority               string   `yaml:"priority"`
	Status                 string   `yaml:"status"`
	DomainRoles            []string `yaml:"domain_roles,omitempty"`
	IncludeRecommendedDeps bool     `yaml:"include_recommended_deps"`
	Tags                   []string `yaml:"tags,omitempty"`
}

const contextMD = `# Context

The database is the source of truth for this task's state. This file is
a static reference; consult the coordinator API for the live record.
`

const playbookMD = `# Playbook

## Gate0
Requirement clarification and planning.

## Gate1
Design review and audit scope.

## Gate2
Implementation and test/evidence validation.

## Gate3
Final audit and release decision.
`

// IntakeSkeletonInput is the subset of an intake request the materializer
// needs to render task.md.
type IntakeSkeletonInput struct {
	TaskID                 string
	Title                  string
	Priority               string
	Status                 Status
	DomainRoles            []string
	IncludeRecommendedDeps bool
	Tags                   []string
	Description            string
	Acceptance             string
}

// WriteTaskSkeleton writes task.md, context.md, and playbook.md under
// TaskDir(root, in.TaskID), creating the directory if needed. A write
// failure aborts and leaves whatever was written so far for the caller
// to roll back (the directory is reused, not cleaned, on retry).
func WriteTaskSkeleton(root string, in IntakeSkeletonInput) error {
	dir := TaskDir(root, in.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return filesystemFailure("create task dir %s: %v", dir, err)
	}

	priority := in.Priority
	if priority == "" {
		priority = "P1"
	}

	fm := taskFrontmatter{
		TaskID:                 in.TaskID,
		Title:                  strings.ReplaceAll(in.Title, `"`, `'`),
		Priority:               priority,
		Status:                 string(in.Status),
		DomainRoles:            in.DomainRoles,
		IncludeRecommendedDeps: in.IncludeRecommendedDeps,
		Tags:                   in.Tags,
	}
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return filesystemFailure("marshal task frontmatter: %v", err)
	}

	description := in.Description
	if description == "" {
		description = "TBD"
	}
	acceptance := in.Acceptance
	if acceptance == "" {
		acceptance = "TBD"
	}

	taskMD := fmt.Sprintf("---\n%s---\n\n# Goal\n%s\n\n# Acceptance\n%s\n", fmBytes, description, acceptance)

	if err := os.WriteFile(filepath.Join(dir, "task.md"), []byte(taskMD), 0o644); err != nil {
		return filesystemFailure("write task.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "context.md"), []byte(contextMD), 0o644); err != nil {
		return filesystemFailure("write context.md: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "playbook.md"), []byte(playbookMD), 0o644); err != nil {
		return filesystemFailure("write playbook.md: %v", err)
	}
	return nil
}

// RemoveTaskSkeleton deletes the per-task artifact directory. Called to
// roll back a skeleton write when the paired DB write subsequently fails.
func RemoveTaskSkeleton(root, taskID string) error {
	if err := os.RemoveAll(TaskDir(root, taskID)); err != nil {
		return filesystemFailure("remove task dir for %s: %v", taskID, err)
	}
	return nil
}
