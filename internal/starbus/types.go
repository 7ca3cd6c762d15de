// internal/starbus/types.go
package starbus

import "time"

// Status is one of the canonical statuses tracked in TaskState.Status.
type Status string

const (
	StatusQueued       Status = "QUEUED"
	StatusDesigning    Status = "DESIGNING"
	StatusAuditing     Status = "AUDITING"
	StatusExecuting    Status = "EXECUTING"
	StatusVerifying    Status = "VERIFYING"
	StatusDone         Status = "DONE"
	StatusBlockedHuman Status = "BLOCKED_HUMAN"
	StatusFailed       Status = "FAILED"
)

// TaskStatus is the coarse, externally-visible status mirrored onto Task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "Todo"
	TaskInProgress TaskStatus = "InProgress"
	TaskInReview   TaskStatus = "InReview"
	TaskDone       TaskStatus = "Done"
	TaskCancelled  TaskStatus = "Cancelled"
)

// Gate is a milestone marker used to infer the resume status out of
// BLOCKED_HUMAN.
type Gate string

const (
	Gate0 Gate = "Gate0"
	Gate1 Gate = "Gate1"
	Gate2 Gate = "Gate2"
	Gate3 Gate = "Gate3"
)

// Actor identifies who is driving a task's next action.
type Actor string

const (
	ActorHuman    Actor = "ACTOR_HUMAN"
	ActorClaude   Actor = "ACTOR_CLAUDE"
	ActorCodex    Actor = "ACTOR_CODEX"
	ActorCursor   Actor = "ACTOR_CURSOR"
	ActorOpencode Actor = "ACTOR_OPENCODE"
	ActorTrae     Actor = "ACTOR_TRAE"
	ActorQoder    Actor = "ACTOR_QODER"
)

// HITLActorSelectTag marks a DecisionRequest's context_refs as an
// actor-selection decision rather than a plain one.
const HITLActorSelectTag = "HITL_ACTOR_SELECT"

// NextAction describes the next unit of work on a task.
type NextAction struct {
	Actor   string   `json:"actor"`
	Role    string   `json:"role"`
	Action  string   `json:"action"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// DecisionRequest is a pending (or resolved) human-in-the-loop decision.
type DecisionRequest struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	Options      []string   `json:"options"`
	Recommended  string     `json:"recommended,omitempty"`
	ContextRefs  []string   `json:"context_refs,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
}

// IsActorSelect reports whether resolving this decision picks an actor.
func (d *DecisionRequest) IsActorSelect() bool {
	for _, ref := range d.ContextRefs {
		if ref == HITLActorSelectTag {
			return true
		}
	}
	return false
}

// HistoryEntry is one append-only record of a state change.
type HistoryEntry struct {
	TS         time.Time `json:"ts"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// TaskState is the authoritative per-task coordinator record.
type TaskState struct {
	TaskID                 string            `json:"task_id"`
	Title                  string            `json:"title"`
	Status                 Status            `json:"status"`
	Priority               string            `json:"priority,omitempty"`
	ActiveActor            string            `json:"active_actor,omitempty"`
	ActiveRole             string            `json:"active_role,omitempty"`
	NextAction             *NextAction       `json:"next_action,omitempty"`
	DecisionRequests       []DecisionRequest `json:"decision_requests,omitempty"`
	History                []HistoryEntry    `json:"history,omitempty"`
	StepCount              int               `json:"step_count"`
	Gate                   Gate              `json:"gate,omitempty"`
	Tags                   []string          `json:"tags,omitempty"`
	DomainRoles            []string          `json:"domain_roles,omitempty"`
	IncludeRecommendedDeps *bool             `json:"include_recommended_deps,omitempty"`
	ProjectID              string            `json:"project_id,omitempty"`
}

// GlobalState is the coordinator-wide singleton document.
type GlobalState struct {
	ActiveTaskID string `json:"active_task_id,omitempty"`
}

// GlobalStateSentinelID is the reserved id GlobalState is stored under.
const GlobalStateSentinelID = "00000000-0000-0000-0000-000000000000"

// TaskRecord pairs a TaskState with document store timestamps, as returned
// by list_task_states.
type TaskRecord struct {
	State     TaskState
	CreatedAt time.Time
	UpdatedAt time.Time
}
