// internal/catalog/catalog.go
package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// Catalog is a SQLite-backed implementation of the coarse Task / Project /
// Workspace / WorkspaceRepo / ExecutionProcess catalog the spec treats as
// an opaque external collaborator. It is intentionally simple: callers
// never see SQL, only the typed methods below.
type Catalog struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB. Init must be called once before use.
func New(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// Init creates the catalog tables if they do not already exist.
func (c *Catalog) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_tasks_project ON catalog_tasks(project_id)`,
		`CREATE TABLE IF NOT EXISTS catalog_repos (
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			default_target_branch TEXT NOT NULL DEFAULT 'main',
			default_working_dir TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (project_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_workspaces (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			attempt_id TEXT NOT NULL,
			branch TEXT NOT NULL,
			agent_working_dir TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_workspaces_task ON catalog_workspaces(task_id)`,
		`CREATE TABLE IF NOT EXISTS catalog_workspace_repos (
			workspace_id TEXT NOT NULL,
			repo_name TEXT NOT NULL,
			target_branch TEXT NOT NULL,
			PRIMARY KEY (workspace_id, repo_name)
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_execution_processes (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_processes_workspace ON catalog_execution_processes(workspace_id, started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("catalog: init schema: %w", err)
		}
	}
	return nil
}

// ErrTaskNotFound is returned when a coarse Task does not exist.
var ErrTaskNotFound = fmt.Errorf("catalog: task not found")

// GetTask returns the coarse Task with id, or ErrTaskNotFound.
func (c *Catalog) GetTask(id string) (*Task, error) {
	row := c.db.QueryRow(`SELECT id, project_id, title, description, status, created_at, updated_at
		FROM catalog_tasks WHERE id = ?`, id)
	var t Task
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("catalog: get task %s: %w", id, err)
	}
	return &t, nil
}

// CreateTask inserts a new coarse Task.
func (c *Catalog) CreateTask(t *Task) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := c.db.Exec(`INSERT INTO catalog_tasks (id, project_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: create task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTaskStatus mirrors a new coarse status onto an existing Task.
func (c *Catalog) UpdateTaskStatus(id, status string) error {
	res, err := c.db.Exec(`UPDATE catalog_tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("catalog: update task status %s: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a coarse Task. Used to roll back intake on a paired
// document-store failure.
func (c *Catalog) DeleteTask(id string) error {
	_, err := c.db.Exec(`DELETE FROM catalog_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete task %s: %w", id, err)
	}
	return nil
}

// ListProjectTasks returns every coarse Task belonging to projectID.
func (c *Catalog) ListProjectTasks(projectID string) ([]Task, error) {
	rows, err := c.db.Query(`SELECT id, project_id, title, description, status, created_at, updated_at
		FROM catalog_tasks WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list project tasks %s: %w", projectID, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListRepos returns every repo registered for projectID.
func (c *Catalog) ListRepos(projectID string) ([]Repo, error) {
	rows, err := c.db.Query(`SELECT project_id, name, default_target_branch, default_working_dir
		FROM catalog_repos WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list repos %s: %w", projectID, err)
	}
	defer rows.Close()

	var repos []Repo
	for rows.Next() {
		var r Repo
		if err := rows.Scan(&r.ProjectID, &r.Name, &r.DefaultTargetBranch, &r.DefaultWorkingDir); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// PutRepo registers (or updates) a repo under a project.
func (c *Catalog) PutRepo(r Repo) error {
	_, err := c.db.Exec(`INSERT INTO catalog_repos (project_id, name, default_target_branch, default_working_dir)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, name) DO UPDATE SET
			default_target_branch = excluded.default_target_branch,
			default_working_dir = excluded.default_working_dir`,
		r.ProjectID, r.Name, r.DefaultTargetBranch, r.DefaultWorkingDir)
	if err != nil {
		return fmt.Errorf("catalog: put repo %s/%s: %w", r.ProjectID, r.Name, err)
	}
	return nil
}

// CreateWorkspace persists a new Workspace and its repo checkouts.
func (c *Catalog) CreateWorkspace(ws *Workspace, repos []WorkspaceRepo) error {
	ws.CreatedAt = time.Now().UTC()
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin create workspace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO catalog_workspaces (id, task_id, attempt_id, branch, agent_working_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.TaskID, ws.AttemptID, ws.Branch, ws.AgentWorkingDir, ws.CreatedAt); err != nil {
		return fmt.Errorf("catalog: insert workspace %s: %w", ws.ID, err)
	}
	for _, r := range repos {
		if _, err := tx.Exec(`INSERT INTO catalog_workspace_repos (workspace_id, repo_name, target_branch)
			VALUES (?, ?, ?)`, ws.ID, r.RepoName, r.TargetBranch); err != nil {
			return fmt.Errorf("catalog: insert workspace repo %s/%s: %w", ws.ID, r.RepoName, err)
		}
	}
	return tx.Commit()
}

// ErrWorkspaceNotFound is returned when a Workspace does not exist.
var ErrWorkspaceNotFound = fmt.Errorf("catalog: workspace not found")

// GetWorkspace returns the Workspace with id, or ErrWorkspaceNotFound.
func (c *Catalog) GetWorkspace(id string) (*Workspace, error) {
	var w Workspace
	row := c.db.QueryRow(`SELECT id, task_id, attempt_id, branch, agent_working_dir, created_at
		FROM catalog_workspaces WHERE id = ?`, id)
	if err := row.Scan(&w.ID, &w.TaskID, &w.AttemptID, &w.Branch, &w.AgentWorkingDir, &w.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("catalog: get workspace %s: %w", id, err)
	}
	return &w, nil
}

// ListWorkspacesForTask returns every Workspace created for taskID,
// oldest first.
func (c *Catalog) ListWorkspacesForTask(taskID string) ([]Workspace, error) {
	rows, err := c.db.Query(`SELECT id, task_id, attempt_id, branch, agent_working_dir, created_at
		FROM catalog_workspaces WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list workspaces %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.TaskID, &w.AttemptID, &w.Branch, &w.AgentWorkingDir, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RecordExecutionProcess inserts a new execution-process record for a
// workspace.
func (c *Catalog) RecordExecutionProcess(p *ExecutionProcess) error {
	p.StartedAt = time.Now().UTC()
	_, err := c.db.Exec(`INSERT INTO catalog_execution_processes (id, workspace_id, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)`, p.ID, p.WorkspaceID, p.Status, p.StartedAt, p.FinishedAt)
	if err != nil {
		return fmt.Errorf("catalog: record execution process %s: %w", p.ID, err)
	}
	return nil
}

// LatestExecutionProcess returns the most recently started
// ExecutionProcess for workspaceID, or nil if none exists.
func (c *Catalog) LatestExecutionProcess(workspaceID string) (*ExecutionProcess, error) {
	row := c.db.QueryRow(`SELECT id, workspace_id, status, started_at, finished_at
		FROM catalog_execution_processes WHERE workspace_id = ?
		ORDER BY started_at DESC LIMIT 1`, workspaceID)
	var p ExecutionProcess
	var finishedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Status, &p.StartedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: latest execution process %s: %w", workspaceID, err)
	}
	if finishedAt.Valid {
		p.FinishedAt = &finishedAt.Time
	}
	return &p, nil
}
