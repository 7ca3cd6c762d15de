// internal/starbus/requests.go
package starbus

import "time"

// IntakeRequest is the body of POST /starbus/intake/create and
// /starbus/intake/preflight.
type IntakeRequest struct {
	ProjectID              string   `json:"project_id"`
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	Acceptance             string   `json:"acceptance"`
	Priority               string   `json:"priority"`
	DomainRoles            []string `json:"domain_roles"`
	IncludeRecommendedDeps *bool    `json:"include_recommended_deps"`
	Tags                   []string `json:"tags"`
	SetActive              bool     `json:"set_active"`
}

// PreflightResponse reports intake validation results without committing
// anything.
type PreflightResponse struct {
	OK                bool     `json:"ok"`
	Errors            []string `json:"errors"`
	BlockedHumanReasons []string `json:"blocked_human_reasons"`
}

// NextActionUpdate is the body of POST /starbus/state/next_action.
type NextActionUpdate struct {
	TaskID     string      `json:"task_id"`
	Status     string      `json:"status,omitempty"`
	NextAction *NextAction `json:"next_action,omitempty"`
	SetActive  bool        `json:"set_active"`
}

// TransitionRequest is the body of POST /starbus/state/transition.
type TransitionRequest struct {
	TaskID     string      `json:"task_id"`
	Status     string      `json:"status"`
	Gate       string      `json:"gate,omitempty"`
	Note       string      `json:"note,omitempty"`
	Actor      string      `json:"actor,omitempty"`
	NextAction *NextAction `json:"next_action,omitempty"`
	SetActive  bool        `json:"set_active"`
}

// DecisionResolveRequest is the body of POST /starbus/state/decision/resolve.
type DecisionResolveRequest struct {
	TaskID       string      `json:"task_id"`
	DecisionID   string      `json:"decision_id"`
	Resolution   string      `json:"resolution"`
	ResolvedAt   *time.Time  `json:"resolved_at,omitempty"`
	ResumeStatus string      `json:"resume_status,omitempty"`
	NextAction   *NextAction `json:"next_action,omitempty"`
}

// DispatchRequest is the body of POST /starbus/dispatch.
type DispatchRequest struct {
	TaskID           string   `json:"task_id"`
	Actor            string   `json:"actor,omitempty"`
	HitlSelectActor  bool     `json:"hitl_select_actor"`
	ActorOptions     []string `json:"actor_options,omitempty"`
	RoleOverride     string   `json:"role_override,omitempty"`
	ActionOverride   string   `json:"action_override,omitempty"`
	AutoStart        bool     `json:"auto_start"`
	RepoTargetBranch map[string]string `json:"repo_target_branch,omitempty"`
}

// DispatchResponse is the result of dispatch_task.
type DispatchResponse struct {
	State       TaskState `json:"state"`
	Started     bool      `json:"started"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	PromptPath  string    `json:"prompt_path,omitempty"`
}

// RunRoleTaskRequest is the body of POST /starbus/run-role-task.
type RunRoleTaskRequest struct {
	TaskID string `json:"task_id"`
	Role   string `json:"role"`
	Actor  string `json:"actor,omitempty"`
}

// RunRoleTaskResponse is the result of run_role_task.
type RunRoleTaskResponse struct {
	State       TaskState `json:"state"`
	Started     bool      `json:"started"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// HandoffRequest is the body of POST /starbus/handoff.
type HandoffRequest struct {
	TaskID    string   `json:"task_id"`
	Summary   string   `json:"summary"`
	Results   []string `json:"results,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// HandoffResponse is the result of handoff.
type HandoffResponse struct {
	State       TaskState `json:"state"`
	HandoffPath string    `json:"handoff_path"`
}

// SyncRequest is the body of POST /starbus/state/sync/project-statuses.
type SyncRequest struct {
	ProjectID                string   `json:"project_id"`
	TitlePrefixes            []string `json:"title_prefix,omitempty"`
	DryRun                   bool     `json:"dry_run"`
	PruneNonmatchingScratch  bool     `json:"prune_nonmatching_scratch"`
	SetActiveToLatest        bool     `json:"set_active_to_latest"`
}

// SyncResponse is the result of sync_project_statuses.
type SyncResponse struct {
	MatchedTaskIDs []string `json:"matched_task_ids"`
	UpdatedTaskIDs []string `json:"updated_task_ids"`
	PrunedScratchIDs []string `json:"pruned_scratch_ids"`
	ActiveTaskID   string   `json:"active_task_id,omitempty"`
}

// StateResponse is the result of get_starbus_state.
type StateResponse struct {
	ActiveTaskID string      `json:"active_task_id,omitempty"`
	Tasks        []TaskState `json:"tasks"`
}

// StatusMappingResponse is the result of get_status_mapping.
type StatusMappingResponse struct {
	StarbusToTask             map[string]string `json:"starbus_to_task"`
	AllowedBlockedResumeTargets []string        `json:"allowed_blocked_resume_targets"`
	CanonicalStatuses         []string          `json:"canonical_statuses"`
}

// RunView is one workspace+latest-execution-process pairing for RunsResponse.
type RunView struct {
	WorkspaceID string `json:"workspace_id"`
	Branch      string `json:"branch"`
	ProcessID   string `json:"process_id,omitempty"`
	Status      string `json:"status,omitempty"`
	IsRunning   bool   `json:"is_running"`
}

// RunsResponse is the result of get_runs.
type RunsResponse struct {
	TaskID string    `json:"task_id"`
	Runs   []RunView `json:"runs"`
}
