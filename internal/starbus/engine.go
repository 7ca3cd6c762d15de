// internal/starbus/engine.go
package starbus

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/stringutils"
)

// Engine applies the state-machine operations: intake, next-action
// updates, transitions, and decision resolution. It owns no concurrency
// control beyond what Store and catalog.Catalog already provide (per-row
// upserts); see the spec's concurrency model.
type Engine struct {
	Store         *Store
	Catalog       *catalog.Catalog
	Executor      Executor
	WorkspaceRoot func() (string, error)

	now   func() time.Time
	newID func() string
}

// NewEngine wires a state machine engine over its collaborators.
func NewEngine(store *Store, cat *catalog.Catalog, executor Executor) *Engine {
	return &Engine{
		Store:         store,
		Catalog:       cat,
		Executor:      executor,
		WorkspaceRoot: DiscoverWorkspaceRoot,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
}

// Preflight validates an IntakeRequest without committing anything.
func (e *Engine) Preflight(req IntakeRequest) PreflightResponse {
	var resp PreflightResponse
	if stringutils.IsEmpty(req.Title) {
		resp.Errors = append(resp.Errors, "title is required")
	}
	switch req.Priority {
	case "":
		resp.Errors = append(resp.Errors, "priority is required (P0/P1/P2)")
	case "P0", "P1", "P2":
	default:
		resp.Errors = append(resp.Errors, "priority must be P0/P1/P2")
	}
	if req.IncludeRecommendedDeps == nil {
		resp.Errors = append(resp.Errors, "include_recommended_deps is required")
	}
	if len(req.DomainRoles) > 4 {
		resp.BlockedHumanReasons = append(resp.BlockedHumanReasons, "domain_roles overflow")
	}
	resp.OK = len(resp.Errors) == 0
	return resp
}

// completionGuard enforces that a tool actor never drives a transition
// whose target is DONE or FAILED.
func completionGuard(effectiveActor string, target Status) error {
	if (target == StatusDone || target == StatusFailed) && IsToolActor(effectiveActor) {
		return badRequest("tool actor %s cannot complete a task directly; route through VERIFYING", effectiveActor)
	}
	return nil
}

// effectiveActor prefers active_actor, falling back to next_action.actor.
func effectiveActor(ts TaskState) string {
	if ts.ActiveActor != "" {
		return ts.ActiveActor
	}
	if ts.NextAction != nil {
		return ts.NextAction.Actor
	}
	return ""
}

// defaultNextActionForStatus seeds a NextAction when resume logic needs
// one and the task does not already have one.
func defaultNextActionForStatus(status Status, role string) *NextAction {
	return &NextAction{
		Actor:  string(ActorHuman),
		Role:   role,
		Action: fmt.Sprintf("Continue work for %s", status),
	}
}

// IntakeCreate implements intake_create (§4.4). Preflight must already
// have been validated by the caller (the HTTP layer runs Preflight and
// rejects on !ok before calling IntakeCreate); IntakeCreate itself only
// re-derives the blocked-human routing.
func (e *Engine) IntakeCreate(req IntakeRequest) (TaskState, error) {
	taskID := e.newID()
	now := e.now()

	status := StatusQueued
	gate := Gate0
	var decisions []DecisionRequest
	var nextAction *NextAction

	if len(req.DomainRoles) > 4 {
		status = StatusBlockedHuman
		decisions = append(decisions, DecisionRequest{
			ID:          fmt.Sprintf("DR-%d", now.UnixMilli()),
			Question:    "domain_roles overflow",
			Options:     []string{"Keep first 4 roles", "Manually select 4 roles", "Cancel task"},
			Recommended: "Keep first 4 roles",
		})
		nextAction = &NextAction{Actor: string(ActorHuman), Role: "role-product-manager", Action: "Resolve domain_roles overflow"}
	}

	ts := TaskState{
		TaskID:                 taskID,
		ProjectID:              req.ProjectID,
		Title:                  req.Title,
		Status:                 status,
		Priority:               req.Priority,
		NextAction:             nextAction,
		DecisionRequests:       decisions,
		Gate:                   gate,
		Tags:                   req.Tags,
		DomainRoles:            req.DomainRoles,
		IncludeRecommendedDeps: req.IncludeRecommendedDeps,
		History: []HistoryEntry{{
			TS:         now,
			FromStatus: "VOID",
			ToStatus:   string(status),
			Note:       "intake",
		}},
	}

	root, err := e.WorkspaceRoot()
	if err != nil {
		return TaskState{}, err
	}
	if err := WriteTaskSkeleton(root, IntakeSkeletonInput{
		TaskID:                 taskID,
		Title:                  req.Title,
		Priority:               req.Priority,
		Status:                 status,
		DomainRoles:            req.DomainRoles,
		IncludeRecommendedDeps: req.IncludeRecommendedDeps != nil && *req.IncludeRecommendedDeps,
		Tags:                   req.Tags,
		Description:            req.Description,
		Acceptance:             req.Acceptance,
	}); err != nil {
		return TaskState{}, err
	}

	coarse := &catalog.Task{
		ID:          taskID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      string(CoarseStatus(status)),
	}
	if err := e.Catalog.CreateTask(coarse); err != nil {
		_ = RemoveTaskSkeleton(root, taskID)
		return TaskState{}, storageFailure("create coarse task: %v", err)
	}

	if err := e.Store.PutTask(taskID, ts); err != nil {
		_ = RemoveTaskSkeleton(root, taskID)
		_ = e.Catalog.DeleteTask(taskID)
		return TaskState{}, err
	}

	if req.SetActive {
		if err := e.Store.PutGlobal(GlobalState{ActiveTaskID: taskID}); err != nil {
			log.Printf("starbus: failed to promote %s to active: %v", taskID, err)
		}
	}

	return ts, nil
}

// UpdateNextAction implements update_next_action (§4.4). It intentionally
// does not check the transition table for its optional status field.
func (e *Engine) UpdateNextAction(req NextActionUpdate) (TaskState, error) {
	ts, err := e.Store.GetTask(req.TaskID)
	if err != nil {
		return TaskState{}, err
	}

	if req.Status != "" {
		target := NormalizeStatus(req.Status)
		if err := completionGuard(effectiveActor(ts), target); err != nil {
			return TaskState{}, err
		}
		ts.Status = target
	}
	if req.NextAction != nil {
		ts.NextAction = req.NextAction
	}
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		return TaskState{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	if req.SetActive {
		if err := e.Store.PutGlobal(GlobalState{ActiveTaskID: req.TaskID}); err != nil {
			log.Printf("starbus: failed to promote %s to active: %v", req.TaskID, err)
		}
	}

	return ts, nil
}

// TransitionState implements transition_state (§4.4).
func (e *Engine) TransitionState(req TransitionRequest) (TaskState, error) {
	ts, err := e.Store.GetTask(req.TaskID)
	if err != nil {
		return TaskState{}, err
	}

	target := NormalizeStatus(req.Status)
	if err := completionGuard(effectiveActor(ts), target); err != nil {
		return TaskState{}, err
	}
	if !IsValidTransition(ts.Status, target) {
		return TaskState{}, badRequest("Invalid transition: %s -> %s", ts.Status, target)
	}
	if target == StatusBlockedHuman {
		gate := Gate(req.Gate)
		if gate == "" {
			gate = ts.Gate
		}
		if gate == "" {
			return TaskState{}, badRequest("gate is required to enter BLOCKED_HUMAN")
		}
		ts.Gate = gate
	}

	from := ts.Status
	ts.History = append(ts.History, HistoryEntry{
		TS:         e.now(),
		FromStatus: string(from),
		ToStatus:   string(target),
		Actor:      req.Actor,
		Note:       req.Note,
	})
	ts.Status = target
	if req.NextAction != nil {
		ts.NextAction = req.NextAction
	}
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		return TaskState{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	if req.SetActive {
		if err := e.Store.PutGlobal(GlobalState{ActiveTaskID: req.TaskID}); err != nil {
			log.Printf("starbus: failed to promote %s to active: %v", req.TaskID, err)
		}
	}

	return ts, nil
}

// ResolveDecision implements resolve_decision (§4.4), including the
// actor-selection side effects, the auto-resume rule, and the
// post-resolution auto-start trigger.
func (e *Engine) ResolveDecision(req DecisionResolveRequest) (TaskState, error) {
	ts, err := e.Store.GetTask(req.TaskID)
	if err != nil {
		return TaskState{}, err
	}

	idx := -1
	for i := range ts.DecisionRequests {
		if ts.DecisionRequests[i].ID == req.DecisionID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return TaskState{}, badRequest("decision %s not found", req.DecisionID)
	}

	dr := &ts.DecisionRequests[idx]
	wasActorSelect := dr.IsActorSelect()

	resolution := req.Resolution
	var chosenActor Actor
	if wasActorSelect {
		chosenActor, err = NormalizeActorChoice(req.Resolution)
		if err != nil {
			return TaskState{}, err
		}
		resolution = string(chosenActor)
	}

	resolvedAt := req.ResolvedAt
	if resolvedAt == nil {
		t := e.now()
		resolvedAt = &t
	}
	dr.Resolution = resolution
	dr.ResolvedAt = resolvedAt

	if wasActorSelect {
		ts.ActiveActor = string(chosenActor)
		if ts.NextAction == nil {
			ts.NextAction = defaultNextActionForStatus(ts.Status, ts.ActiveRole)
		}
		ts.NextAction.Actor = string(chosenActor)
		ts.History = append(ts.History, HistoryEntry{
			TS:    e.now(),
			Actor: "ORCHESTRATOR",
			Note:  fmt.Sprintf("actor selected via HITL: %s", chosenActor),
		})
	}

	ts.History = append(ts.History, HistoryEntry{
		TS:   e.now(),
		Note: fmt.Sprintf("decision %s resolved", req.DecisionID),
	})

	resumed := false
	if req.ResumeStatus != "" {
		target := NormalizeStatus(req.ResumeStatus)
		if IsValidTransition(ts.Status, target) && completionGuard(effectiveActor(ts), target) == nil {
			ts.History = append(ts.History, HistoryEntry{
				TS:         e.now(),
				FromStatus: string(ts.Status),
				ToStatus:   string(target),
				Note:       "resume_status applied",
			})
			ts.Status = target
			resumed = true
		}
	} else if ts.Status == StatusBlockedHuman && allResolved(ts.DecisionRequests) {
		target := ResumeStatusForGate(ts.Gate)
		if IsValidTransition(ts.Status, target) && completionGuard(effectiveActor(ts), target) == nil {
			if ts.NextAction == nil {
				ts.NextAction = defaultNextActionForStatus(target, ts.ActiveRole)
			}
			ts.History = append(ts.History, HistoryEntry{
				TS:         e.now(),
				FromStatus: string(ts.Status),
				ToStatus:   string(target),
				Actor:      "ORCHESTRATOR",
				Note:       fmt.Sprintf("auto_resume after all decisions resolved (gate=%s)", ts.Gate),
			})
			ts.Status = target
			resumed = true
		}
	}

	if req.NextAction != nil {
		ts.NextAction = req.NextAction
	}
	ts.StepCount++

	if err := e.Store.PutTask(req.TaskID, ts); err != nil {
		return TaskState{}, err
	}
	e.mirrorCoarseStatus(req.TaskID, ts.Status)

	if wasActorSelect && resumed && ts.Status != StatusBlockedHuman {
		started, workspaceID, note, err := e.AutoStartWorkspace(req.TaskID, string(chosenActor))
		var historyNote string
		if err != nil {
			historyNote = fmt.Sprintf("auto-start skipped: %v", err)
		} else if started {
			historyNote = fmt.Sprintf("auto-start succeeded: workspace %s", workspaceID)
		} else {
			historyNote = fmt.Sprintf("auto-start skipped: %s", note)
		}
		ts.History = append(ts.History, HistoryEntry{TS: e.now(), Actor: "ORCHESTRATOR", Note: historyNote})
		if err := e.Store.PutTask(req.TaskID, ts); err != nil {
			return TaskState{}, err
		}
	}

	return ts, nil
}

func allResolved(decisions []DecisionRequest) bool {
	for _, d := range decisions {
		if d.ResolvedAt == nil {
			return false
		}
	}
	return true
}

// mirrorCoarseStatus is best-effort: failures are logged, not returned,
// per the propagation policy in §7.
func (e *Engine) mirrorCoarseStatus(taskID string, status Status) {
	if err := e.Catalog.UpdateTaskStatus(taskID, string(CoarseStatus(status))); err != nil {
		log.Printf("starbus: coarse status mirror failed for %s: %v", taskID, err)
	}
}
