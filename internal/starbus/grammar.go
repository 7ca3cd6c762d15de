// internal/starbus/grammar.go
package starbus

import "strings"

// NormalizeStatus trims and uppercases a status literal for comparison.
func NormalizeStatus(s string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(s)))
}

// validTransitions is the legal from->to table for TaskState.Status, not
// counting the universal "* -> BLOCKED_HUMAN" rule handled separately in
// IsValidTransition.
var validTransitions = map[Status][]Status{
	StatusQueued:       {StatusDesigning},
	StatusDesigning:    {StatusAuditing},
	StatusAuditing:     {StatusExecuting, StatusDesigning},
	StatusExecuting:    {StatusVerifying},
	StatusVerifying:    {StatusDone, StatusExecuting},
	StatusBlockedHuman: {StatusDesigning, StatusAuditing, StatusExecuting, StatusVerifying},
}

// terminalStatuses are the finished statuses; the only transition out of
// them is the universal "-> BLOCKED_HUMAN" rule.
var terminalStatuses = map[Status]bool{
	StatusDone:   true,
	StatusFailed: true,
}

// IsTerminal reports whether status is terminal (DONE, FAILED; CANCELLED
// only ever arrives via the coarse mapping and is not a TaskState.Status
// value, so it is not checked here).
func IsTerminal(status Status) bool {
	return terminalStatuses[status]
}

// IsValidTransition reports whether from->to is legal: either listed in
// validTransitions, or the universal "any -> BLOCKED_HUMAN".
func IsValidTransition(from, to Status) bool {
	if to == StatusBlockedHuman {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CoarseStatus maps a TaskState.Status onto the external coarse Task.Status.
func CoarseStatus(status Status) TaskStatus {
	switch status {
	case StatusQueued:
		return TaskTodo
	case StatusDesigning, StatusExecuting:
		return TaskInProgress
	case StatusAuditing, StatusVerifying, StatusBlockedHuman:
		return TaskInReview
	case StatusDone:
		return TaskDone
	case StatusFailed:
		return TaskCancelled
	default:
		return TaskInProgress
	}
}

// activeStatusPriority ranks statuses for active-task selection; lower
// values are preferred.
var activeStatusPriority = map[Status]int{
	StatusExecuting:    0,
	StatusVerifying:    1,
	StatusAuditing:     2,
	StatusDesigning:    3,
	StatusQueued:       4,
	StatusBlockedHuman: 5,
}

// StatusPriority returns the active-task selection priority for status;
// unrecognized statuses sort last.
func StatusPriority(status Status) int {
	if p, ok := activeStatusPriority[status]; ok {
		return p
	}
	return 6
}

// InitialStatusForRole maps a role to the status a new task enters.
func InitialStatusForRole(role string) Status {
	switch role {
	case "role-product-manager":
		return StatusDesigning
	case "role-qa-security":
		return StatusAuditing
	case "role-project-ops", "role-technology":
		return StatusExecuting
	default:
		return StatusDesigning
	}
}

// ResumeStatusForGate maps a gate to the status resolve_decision auto-resume
// targets out of BLOCKED_HUMAN.
func ResumeStatusForGate(gate Gate) Status {
	switch gate {
	case Gate0:
		return StatusDesigning
	case Gate1:
		return StatusAuditing
	case Gate2:
		return StatusExecuting
	case Gate3:
		return StatusVerifying
	default:
		return StatusVerifying
	}
}

// toolActors are actors forbidden from driving a transition to DONE/FAILED.
var toolActors = map[Actor]bool{
	ActorTrae:  true,
	ActorQoder: true,
}

// IsToolActor reports whether actor is a tool actor subject to the
// completion guard.
func IsToolActor(actor string) bool {
	return toolActors[Actor(strings.ToUpper(strings.TrimSpace(actor)))]
}

// autoStartableActors are the actors the executor may start automatically.
var autoStartableActors = map[Actor]bool{
	ActorClaude:   true,
	ActorCodex:    true,
	ActorCursor:   true,
	ActorOpencode: true,
}

// IsAutoStartable reports whether the executor can start actor on its own.
func IsAutoStartable(actor string) bool {
	return autoStartableActors[Actor(strings.ToUpper(strings.TrimSpace(actor)))]
}

// knownActors is the fixed alphabet normalize_actor_choice validates
// resolutions of HITL_ACTOR_SELECT decisions against.
var knownActors = []Actor{
	ActorHuman, ActorClaude, ActorCodex, ActorCursor, ActorOpencode, ActorTrae, ActorQoder,
}

// NormalizeActorChoice accepts either "ACTOR_X" or bare "X" (case
// insensitive) for one of the seven known actors and returns the
// canonical "ACTOR_X" literal, or an error if choice names none of them.
func NormalizeActorChoice(choice string) (Actor, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(choice))
	if trimmed == "" {
		return "", badRequest("actor choice is required")
	}
	candidate := trimmed
	if !strings.HasPrefix(candidate, "ACTOR_") {
		candidate = "ACTOR_" + candidate
	}
	for _, a := range knownActors {
		if string(a) == candidate {
			return a, nil
		}
	}
	return "", badRequest("unknown actor literal: %q", choice)
}

// DefaultActorOptions is the fallback actor_options set for a HITL
// actor-selection decision request.
func DefaultActorOptions() []string {
	return []string{string(ActorClaude), string(ActorCodex), string(ActorCursor), string(ActorOpencode)}
}

// ActorToExecutorProfile maps an actor to the name of the executor
// profile used to start it. Non-auto-startable actors return "".
func ActorToExecutorProfile(actor string) string {
	switch Actor(strings.ToUpper(strings.TrimSpace(actor))) {
	case ActorClaude:
		return "claude"
	case ActorCodex:
		return "codex"
	case ActorCursor:
		return "cursor"
	case ActorOpencode:
		return "opencode"
	default:
		return ""
	}
}

// DispatchInference is the (role, status, gate, action) tuple selected by
// title-based keyword matching.
type DispatchInference struct {
	Role   string
	Status Status
	Gate   Gate
	Action string
}

// InferDispatchFromTitle picks a dispatch inference from a task title by
// case-insensitive keyword match, first match wins.
func InferDispatchFromTitle(title string) DispatchInference {
	lower := strings.ToLower(title)
	switch {
	case containsAny(lower, "req", "clarif", "gate definition"):
		return DispatchInference{Role: "role-product-manager", Status: StatusDesigning, Gate: Gate0, Action: "Requirement clarification and planning"}
	case containsAny(lower, "test", "evidence", "contract"):
		return DispatchInference{Role: "role-qa-security", Status: StatusAuditing, Gate: Gate2, Action: "Test and evidence validation"}
	case containsAny(lower, "accept", "audit", "release"):
		return DispatchInference{Role: "role-product-manager", Status: StatusVerifying, Gate: Gate3, Action: "Final audit and release decision"}
	case containsAny(lower, "control room", "evidence wall", "ui"):
		return DispatchInference{Role: "role-project-ops", Status: StatusExecuting, Gate: Gate2, Action: "Frontend and control-room implementation"}
	default:
		return DispatchInference{Role: "role-technology", Status: StatusExecuting, Gate: Gate2, Action: "Backend and integration implementation"}
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
