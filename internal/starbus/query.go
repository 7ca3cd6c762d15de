// internal/starbus/query.go
package starbus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starbus/coordinator/internal/catalog"
)

// canonicalStatuses is the fixed list exposed by get_status_mapping.
var canonicalStatuses = []string{
	string(StatusQueued), string(StatusDesigning), string(StatusAuditing),
	string(StatusExecuting), string(StatusVerifying), string(StatusDone),
	string(StatusBlockedHuman), string(StatusFailed),
}

// allowedBlockedResumeTargets is the fixed list of statuses a
// BLOCKED_HUMAN task may resume into.
var allowedBlockedResumeTargets = []string{
	string(StatusDesigning), string(StatusAuditing), string(StatusExecuting), string(StatusVerifying),
}

// GetState implements get_starbus_state (§4.7): lists all TaskStates,
// optionally filtered by project membership, active_only, and a
// comma-separated case-insensitive set of title prefixes.
func (e *Engine) GetState(projectID string, activeOnly bool, titlePrefixCSV string) (StateResponse, error) {
	records, err := e.Store.ListTaskStates()
	if err != nil {
		return StateResponse{}, err
	}

	gs, err := e.Store.HealActive()
	if err != nil {
		return StateResponse{}, err
	}

	prefixes := splitCSVLower(titlePrefixCSV)

	var tasks []TaskState
	for _, r := range records {
		if projectID != "" && r.State.ProjectID != projectID {
			continue
		}
		if activeOnly && r.State.TaskID != gs.ActiveTaskID {
			continue
		}
		if len(prefixes) > 0 && !hasAnyPrefix(strings.ToLower(r.State.Title), prefixes) {
			continue
		}
		tasks = append(tasks, r.State)
	}

	return StateResponse{ActiveTaskID: gs.ActiveTaskID, Tasks: tasks}, nil
}

func splitCSVLower(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// GetStatusMapping implements get_status_mapping (§4.7): a static view of
// the coarse mapping, legal BLOCKED_HUMAN resume targets, and the
// canonical status list.
func GetStatusMapping() StatusMappingResponse {
	mapping := make(map[string]string, len(canonicalStatuses))
	for _, s := range canonicalStatuses {
		mapping[s] = string(CoarseStatus(Status(s)))
	}
	return StatusMappingResponse{
		StarbusToTask:               mapping,
		AllowedBlockedResumeTargets: allowedBlockedResumeTargets,
		CanonicalStatuses:           canonicalStatuses,
	}
}

// SyncProjectStatuses implements sync_project_statuses (§4.7).
func (e *Engine) SyncProjectStatuses(req SyncRequest) (SyncResponse, error) {
	projectTasks, err := e.Catalog.ListProjectTasks(req.ProjectID)
	if err != nil {
		return SyncResponse{}, storageFailure("sync: list project tasks: %v", err)
	}
	projectTaskIDs := make(map[string]catalog.Task, len(projectTasks))
	for _, t := range projectTasks {
		projectTaskIDs[t.ID] = t
	}

	records, err := e.Store.ListTaskStates()
	if err != nil {
		return SyncResponse{}, err
	}

	prefixes := make([]string, 0, len(req.TitlePrefixes))
	for _, p := range req.TitlePrefixes {
		prefixes = append(prefixes, strings.ToLower(strings.TrimSpace(p)))
	}

	var resp SyncResponse
	matched := make(map[string]bool)

	for _, r := range records {
		coarse, inProject := projectTaskIDs[r.State.TaskID]
		if !inProject {
			continue
		}
		if len(prefixes) > 0 && !hasAnyPrefix(strings.ToLower(r.State.Title), prefixes) {
			continue
		}
		matched[r.State.TaskID] = true
		resp.MatchedTaskIDs = append(resp.MatchedTaskIDs, r.State.TaskID)

		mapped := string(CoarseStatus(r.State.Status))
		if coarse.Status != mapped {
			resp.UpdatedTaskIDs = append(resp.UpdatedTaskIDs, r.State.TaskID)
			if !req.DryRun {
				if err := e.Catalog.UpdateTaskStatus(r.State.TaskID, mapped); err != nil {
					return SyncResponse{}, storageFailure("sync: mirror status for %s: %v", r.State.TaskID, err)
				}
			}
		}
	}

	if req.PruneNonmatchingScratch {
		for _, r := range records {
			if _, inProject := projectTaskIDs[r.State.TaskID]; !inProject {
				continue
			}
			if matched[r.State.TaskID] {
				continue
			}
			resp.PrunedScratchIDs = append(resp.PrunedScratchIDs, r.State.TaskID)
			if !req.DryRun {
				if err := e.Store.DeleteTask(r.State.TaskID); err != nil {
					return SyncResponse{}, err
				}
			}
		}
	}

	if req.SetActiveToLatest && !req.DryRun {
		var latestID string
		var latestUpdated time.Time
		for id := range matched {
			coarse := projectTaskIDs[id]
			if coarse.UpdatedAt.After(latestUpdated) {
				latestUpdated = coarse.UpdatedAt
				latestID = id
			}
		}
		if latestID != "" {
			if err := e.Store.PutGlobal(GlobalState{ActiveTaskID: latestID}); err != nil {
				return SyncResponse{}, err
			}
			resp.ActiveTaskID = latestID
		}
	}

	return resp, nil
}

// GetRuns implements get_runs (§4.7): joins workspaces for a task with
// the latest execution-process record for each.
func (e *Engine) GetRuns(taskID string) (RunsResponse, error) {
	workspaces, err := e.Catalog.ListWorkspacesForTask(taskID)
	if err != nil {
		return RunsResponse{}, storageFailure("get runs for %s: %v", taskID, err)
	}

	resp := RunsResponse{TaskID: taskID}
	for _, ws := range workspaces {
		view := RunView{WorkspaceID: ws.ID, Branch: ws.Branch}
		proc, err := e.Catalog.LatestExecutionProcess(ws.ID)
		if err != nil {
			return RunsResponse{}, storageFailure("get runs: latest process for %s: %v", ws.ID, err)
		}
		if proc != nil {
			view.ProcessID = proc.ID
			view.Status = string(proc.Status)
			view.IsRunning = proc.Status == catalog.ProcessRunning
		}
		resp.Runs = append(resp.Runs, view)
	}
	return resp, nil
}

// Handoff implements handoff (§4.7): writes a structured markdown
// handoff document, optionally applies a legal status transition
// (silently, on illegal input, per SUPPLEMENTED FEATURES), and always
// appends a "Handoff markdown persisted" history entry.
func (e *Engine) Handoff(req HandoffRequest) (HandoffResponse, error) {
	ts, err := e.Store.GetTask(req.TaskID)
	if err != nil {
		return HandoffResponse{}, err
	}

	root, err := e.WorkspaceRoot()
	if err != nil {
		return HandoffResponse{}, err
	}
	dir := TaskDir(root, req.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return HandoffResponse{}, filesystemFailure("create task dir for handoff: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Handoff\n\n")
	fmt.Fprintf(&b, "Task id: %s\n\n", req.TaskID)
	fmt.Fprintf(&b, "## Summary\n%s\n\n", req.Summary)
	fmt.Fprintf(&b, "## Results\n")
	for _, r := range req.Results {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	fmt.Fprintf(&b, "\n## Next Steps\n")
	for _, n := range req.NextSteps {
		fmt.Fprintf(&b, "- %s\n", n)
	}

	if err := os.WriteFile(filepath.Join(dir, "handoff.md"), []byte(b.String()), 0o644); err != nil {
		return HandoffResponse{}, filesystemFailure("write handoff.md: %v", err)
	}

	if req.Status != "" {
		target := NormalizeStatus(req.Status)
		if IsValidTransition(ts.Status, target) && completionGuard(effectiveActor(ts), target) == nil {
			ts.History = append(ts.History, HistoryEntry{
				TS:         e.now(),
				FromStatus: string(ts.Status),
				ToStatus:   string(target),
				Note:       "handoff status update",
			})
			ts.Status = target
		}
	}
	ts.History = append(ts.History, HistoryEntry{TS: e.now(), Note: "Handoff markdown persisted"})
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		return HandoffResponse{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	return HandoffResponse{
		State:       ts,
		HandoffPath: fmt.Sprintf("docs/starbus/runs/%s/handoff.md", req.TaskID),
	}, nil
}
