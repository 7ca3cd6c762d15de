// internal/starbus/dispatch.go
package starbus

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/starbus/coordinator/internal/catalog"
)

// AutoStartWorkspace implements the auto-start workspace procedure
// (§4.6): map actor to an executor profile, reuse the task's first
// existing workspace or create one, invoke the executor, and retry once
// with a fresh workspace+branch if the executor reports a name
// collision.
func (e *Engine) AutoStartWorkspace(taskID, actor string) (started bool, workspaceID string, note string, err error) {
	profile := ActorToExecutorProfile(actor)
	if profile == "" {
		return false, "", fmt.Sprintf("%s is manual-only", actor), nil
	}

	task, err := e.Catalog.GetTask(taskID)
	if err != nil {
		return false, "", "", storageFailure("auto-start: load task %s: %v", taskID, err)
	}

	repos, err := e.Catalog.ListRepos(task.ProjectID)
	if err != nil {
		return false, "", "", storageFailure("auto-start: list repos for %s: %v", task.ProjectID, err)
	}
	if len(repos) == 0 {
		return false, "", "no repositories", nil
	}

	ws, err := e.resolveOrCreateWorkspace(taskID, task.Title, repos, nil)
	if err != nil {
		return false, "", "", err
	}

	startErr := e.Executor.Start(ws.ID, profile)
	if startErr == nil {
		return true, ws.ID, "", nil
	}
	if !isAlreadyExistsError(startErr) {
		return false, ws.ID, startErr.Error(), nil
	}

	fresh, err := e.createWorkspace(taskID, task.Title, repos, nil)
	if err != nil {
		return false, ws.ID, "", err
	}
	if retryErr := e.Executor.Start(fresh.ID, profile); retryErr != nil {
		return false, fresh.ID, retryErr.Error(), nil
	}
	return true, fresh.ID, "", nil
}

// resolveOrCreateWorkspace reuses the task's first existing workspace if
// one exists, otherwise creates a new one.
func (e *Engine) resolveOrCreateWorkspace(taskID, title string, repos []catalog.Repo, targetBranchOverride map[string]string) (catalog.Workspace, error) {
	existing, err := e.Catalog.ListWorkspacesForTask(taskID)
	if err != nil {
		return catalog.Workspace{}, storageFailure("list workspaces for %s: %v", taskID, err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	return e.createWorkspace(taskID, title, repos, targetBranchOverride)
}

// createWorkspace allocates a fresh attempt id and branch, computes
// agent_working_dir (the single repo's default working dir, or "none"
// for multi-repo workspaces), and persists the Workspace and its repos.
func (e *Engine) createWorkspace(taskID, title string, repos []catalog.Repo, targetBranchOverride map[string]string) (catalog.Workspace, error) {
	attemptID := e.newID()
	branch := BranchName(attemptID, title)

	agentWorkingDir := "none"
	if len(repos) == 1 {
		if repos[0].DefaultWorkingDir != "" {
			agentWorkingDir = repos[0].Name + "/" + repos[0].DefaultWorkingDir
		} else {
			agentWorkingDir = repos[0].Name
		}
	}

	ws := &catalog.Workspace{
		ID:              e.newID(),
		TaskID:          taskID,
		AttemptID:       attemptID,
		Branch:          branch,
		AgentWorkingDir: agentWorkingDir,
	}

	repoRows := make([]catalog.WorkspaceRepo, 0, len(repos))
	for _, r := range repos {
		targetBranch := r.DefaultTargetBranch
		if targetBranch == "" {
			targetBranch = "main"
		}
		if override, ok := targetBranchOverride[r.Name]; ok && override != "" {
			targetBranch = override
		}
		repoRows = append(repoRows, catalog.WorkspaceRepo{WorkspaceID: ws.ID, RepoName: r.Name, TargetBranch: targetBranch})
	}

	if err := e.Catalog.CreateWorkspace(ws, repoRows); err != nil {
		return catalog.Workspace{}, storageFailure("create workspace for %s: %v", taskID, err)
	}
	return *ws, nil
}

// DispatchTask implements dispatch_task (§4.6): infers role/status/gate
// from the title, optionally routes through a HITL actor-selection
// decision, writes the prompt artifact, and optionally auto-starts.
func (e *Engine) DispatchTask(req DispatchRequest) (DispatchResponse, error) {
	task, err := e.Catalog.GetTask(req.TaskID)
	if err != nil {
		return DispatchResponse{}, storageFailure("dispatch: load task %s: %v", req.TaskID, err)
	}

	actor := strings.ToUpper(strings.TrimSpace(req.Actor))
	if actor == "" {
		actor = string(ActorClaude)
	}
	hitl := req.HitlSelectActor && req.Actor == ""

	inferred := InferDispatchFromTitle(task.Title)
	role := inferred.Role
	status := inferred.Status
	if req.RoleOverride != "" {
		role = req.RoleOverride
		status = InitialStatusForRole(role)
	}
	action := inferred.Action
	if req.ActionOverride != "" {
		action = req.ActionOverride
	}
	gate := inferred.Gate

	root, err := e.WorkspaceRoot()
	if err != nil {
		return DispatchResponse{}, err
	}
	dir := TaskDir(root, req.TaskID)
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		if err := WriteTaskSkeleton(root, IntakeSkeletonInput{
			TaskID: req.TaskID,
			Title:  task.Title,
			Status: status,
		}); err != nil {
			return DispatchResponse{}, err
		}
	}

	promptPath, err := e.resolvePromptPath(root, req.TaskID, task.Title, role, action)
	if err != nil {
		return DispatchResponse{}, err
	}

	ts, err := e.loadOrInitTaskState(req.TaskID, task.Title, status, gate)
	if err != nil {
		return DispatchResponse{}, err
	}

	ts.ActiveRole = role
	na := &NextAction{
		Role:    role,
		Action:  action,
		Inputs:  []string{promptPath, "task.md", "context.md"},
		Outputs: []string{"03-dev.md", "04-test.md", "06-audit.md"},
	}
	ts.Gate = gate

	var resp DispatchResponse
	resp.PromptPath = promptPath

	if hitl {
		ts.ActiveActor = string(ActorHuman)
		na.Actor = string(ActorHuman)
		ts.Status = StatusBlockedHuman

		options := req.ActorOptions
		if len(options) == 0 {
			options = DefaultActorOptions()
		} else {
			options = dedupeUpper(options)
		}

		ts.DecisionRequests = append(ts.DecisionRequests, DecisionRequest{
			ID:          fmt.Sprintf("DR-ACTOR-%d", e.now().UnixMilli()),
			Question:    "Select execution actor before auto start",
			Options:     options,
			Recommended: string(ActorClaude),
			ContextRefs: []string{
				HITLActorSelectTag,
				"GATE:" + string(gate),
				"RESUME_STATUS:" + string(status),
				"ROLE:" + role,
				"ACTION:" + action,
			},
		})
	} else {
		ts.ActiveActor = actor
		na.Actor = actor
		ts.Status = status
	}
	ts.NextAction = na
	ts.History = append(ts.History, HistoryEntry{TS: e.now(), Actor: "ORCHESTRATOR", Note: "dispatched"})
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		return DispatchResponse{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	resp.State = ts

	if req.AutoStart && !hitl {
		started, workspaceID, note, err := e.AutoStartWorkspace(req.TaskID, actor)
		if err != nil {
			log.Printf("starbus: dispatch auto-start failed for %s: %v", req.TaskID, err)
			resp.Note = err.Error()
		} else {
			resp.Started = started
			resp.WorkspaceID = workspaceID
			resp.Note = note
		}
	}

	return resp, nil
}

// RunRoleTask implements run_role_task (§4.4/SUPPLEMENTED): a simpler,
// non-retrying dispatch variant that always provisions a new workspace,
// defaults gate to Gate1 and priority to "P1".
func (e *Engine) RunRoleTask(req RunRoleTaskRequest) (RunRoleTaskResponse, error) {
	task, err := e.Catalog.GetTask(req.TaskID)
	if err != nil {
		return RunRoleTaskResponse{}, storageFailure("run-role-task: load task %s: %v", req.TaskID, err)
	}

	role := req.Role
	if role == "" {
		role = InferDispatchFromTitle(task.Title).Role
	}
	status := InitialStatusForRole(role)

	actor := strings.ToUpper(strings.TrimSpace(req.Actor))
	if actor == "" {
		actor = string(ActorClaude)
	}

	root, err := e.WorkspaceRoot()
	if err != nil {
		return RunRoleTaskResponse{}, err
	}
	if err := WriteTaskSkeleton(root, IntakeSkeletonInput{
		TaskID:   req.TaskID,
		Title:    task.Title,
		Priority: "P1",
		Status:   status,
	}); err != nil {
		return RunRoleTaskResponse{}, err
	}

	ts, err := e.loadOrInitTaskState(req.TaskID, task.Title, status, Gate1)
	if err != nil {
		_ = RemoveTaskSkeleton(root, req.TaskID)
		return RunRoleTaskResponse{}, err
	}
	if ts.Priority == "" {
		ts.Priority = "P1"
	}
	ts.ActiveRole = role
	ts.ActiveActor = actor
	ts.Gate = Gate1
	ts.Status = status
	ts.NextAction = &NextAction{Actor: actor, Role: role, Action: InferDispatchFromTitle(task.Title).Action}
	ts.History = append(ts.History, HistoryEntry{TS: e.now(), Actor: "ORCHESTRATOR", Note: "run-role-task dispatched"})
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		_ = RemoveTaskSkeleton(root, req.TaskID)
		return RunRoleTaskResponse{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	repos, err := e.Catalog.ListRepos(task.ProjectID)
	if err != nil {
		return RunRoleTaskResponse{}, storageFailure("run-role-task: list repos: %v", err)
	}
	if len(repos) == 0 {
		return RunRoleTaskResponse{State: ts, Note: "no repositories"}, nil
	}

	ws, err := e.createWorkspace(req.TaskID, task.Title, repos, nil)
	if err != nil {
		return RunRoleTaskResponse{}, err
	}
	profile := ActorToExecutorProfile(actor)
	if profile == "" {
		return RunRoleTaskResponse{State: ts, WorkspaceID: ws.ID, Note: fmt.Sprintf("%s is manual-only", actor)}, nil
	}
	if err := e.Executor.Start(ws.ID, profile); err != nil {
		return RunRoleTaskResponse{State: ts, WorkspaceID: ws.ID, Note: err.Error()}, nil
	}
	return RunRoleTaskResponse{State: ts, Started: true, WorkspaceID: ws.ID}, nil
}

// loadOrInitTaskState loads the existing TaskState for taskID, or builds
// a fresh one seeded at status/gate if none exists yet.
func (e *Engine) loadOrInitTaskState(taskID, title string, status Status, gate Gate) (TaskState, error) {
	ts, err := e.Store.GetTask(taskID)
	if err == nil {
		return ts, nil
	}
	if !IsKind(err, KindNotFound) {
		return TaskState{}, err
	}
	return TaskState{
		TaskID: taskID,
		Title:  title,
		Status: status,
		Gate:   gate,
	}, nil
}

// promptTemplateRelPath returns the relative path a pre-authored prompt
// template would live at for a title, per the same keyword buckets as
// InferDispatchFromTitle.
func promptTemplateRelPath(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "req") || strings.Contains(lower, "clarif"):
		return "docs/guides/prompts/v2-i1-req-prompt.md"
	case strings.Contains(lower, "test") || strings.Contains(lower, "evidence") || strings.Contains(lower, "contract"):
		return "docs/guides/prompts/v2-i1-test-prompt.md"
	case strings.Contains(lower, "accept") || strings.Contains(lower, "audit") || strings.Contains(lower, "release"):
		return "docs/guides/prompts/v2-i1-accept-prompt.md"
	default:
		return "docs/guides/prompts/v2-i1-dev-prompt.md"
	}
}

// resolvePromptPath returns a pre-authored template's relative path if it
// exists on disk under root; otherwise it renders and writes a synthetic
// dispatch-prompt.md inside the task directory and returns that relative
// path instead.
func (e *Engine) resolvePromptPath(root, taskID, title, role, action string) (string, error) {
	relPath := promptTemplateRelPath(title)
	if _, err := os.Stat(filepath.Join(root, relPath)); err == nil {
		return relPath, nil
	}

	prompt := fmt.Sprintf("# Dispatch prompt\n\nTitle: %s\nRole: %s\nAction: %s\n", title, role, action)
	dispatchPath := filepath.Join(TaskDir(root, taskID), "dispatch-prompt.md")
	if err := os.WriteFile(dispatchPath, []byte(prompt), 0o644); err != nil {
		return "", filesystemFailure("write dispatch-prompt.md: %v", err)
	}
	return filepath.Join("docs", "starbus", "runs", taskID, "dispatch-prompt.md"), nil
}

func dedupeUpper(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
