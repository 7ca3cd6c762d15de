package execprofile

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/starbus/coordinator/internal/catalog"
)

// ProcessExecutor starts each actor as a detached child process, resolving
// the workspace's on-disk directory from the catalog and substituting it
// into the profile's argv template.
type ProcessExecutor struct {
	Profiles *Config
	Catalog  *catalog.Catalog
	RootDir  string
	LogDir   string
}

// NewProcessExecutor wires a ProcessExecutor over an already-initialized
// catalog. logDir receives one log file per started process; it is
// created on first use if missing.
func NewProcessExecutor(profiles *Config, cat *catalog.Catalog, rootDir, logDir string) *ProcessExecutor {
	return &ProcessExecutor{Profiles: profiles, Catalog: cat, RootDir: rootDir, LogDir: logDir}
}

// Start implements starbus.Executor. It looks up the workspace by ID,
// resolves its working directory under RootDir, and launches the actor's
// configured command with its output redirected to LogDir.
func (e *ProcessExecutor) Start(workspaceID, profile string) error {
	prof, ok := e.Profiles.Find(profile)
	if !ok {
		return fmt.Errorf("no executor profile registered for %q", profile)
	}

	ws, err := e.Catalog.GetWorkspace(workspaceID)
	if err != nil {
		return fmt.Errorf("resolving workspace %s: %w", workspaceID, err)
	}
	dir := e.workspaceDir(ws)

	args := make([]string, len(prof.Args))
	for i, a := range prof.Args {
		args[i] = strings.ReplaceAll(a, "{{workspace_dir}}", dir)
	}

	if err := os.MkdirAll(e.LogDir, 0o755); err != nil {
		return fmt.Errorf("creating executor log dir: %w", err)
	}
	logPath := filepath.Join(e.LogDir, fmt.Sprintf("%s-%d.log", workspaceID, time.Now().UnixNano()))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating executor log file: %w", err)
	}

	cmd := exec.Command(prof.Cmd, args...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("starting %s for workspace %s: %w", prof.Cmd, workspaceID, err)
	}

	go func() {
		cmd.Wait()
		logFile.Close()
	}()

	return nil
}

// workspaceDir places each workspace at RootDir/workspaces/<workspace id>,
// with AgentWorkingDir (if set and not "none") appended as the final
// component.
func (e *ProcessExecutor) workspaceDir(ws *catalog.Workspace) string {
	base := filepath.Join(e.RootDir, "workspaces", ws.ID)
	if ws.AgentWorkingDir != "" && ws.AgentWorkingDir != "none" {
		return filepath.Join(base, ws.AgentWorkingDir)
	}
	return base
}
