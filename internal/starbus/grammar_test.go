// internal/starbus/grammar_test.go
package starbus

import "testing"

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from  Status
		to    Status
		valid bool
	}{
		{StatusQueued, StatusDesigning, true},
		{StatusQueued, StatusDone, false},
		{StatusAuditing, StatusExecuting, true},
		{StatusAuditing, StatusDesigning, true},
		{StatusVerifying, StatusDone, true},
		{StatusVerifying, StatusExecuting, true},
		{StatusExecuting, StatusDone, false},
		{StatusDesigning, StatusBlockedHuman, true},
		{StatusDone, StatusBlockedHuman, true},
		{StatusBlockedHuman, StatusExecuting, true},
		{StatusBlockedHuman, StatusQueued, false},
	}

	for _, tt := range tests {
		got := IsValidTransition(tt.from, tt.to)
		if got != tt.valid {
			t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestCoarseStatus(t *testing.T) {
	tests := []struct {
		status Status
		want   TaskStatus
	}{
		{StatusQueued, TaskTodo},
		{StatusDesigning, TaskInProgress},
		{StatusExecuting, TaskInProgress},
		{StatusAuditing, TaskInReview},
		{StatusVerifying, TaskInReview},
		{StatusBlockedHuman, TaskInReview},
		{StatusDone, TaskDone},
		{StatusFailed, TaskCancelled},
		{Status("GARBAGE"), TaskInProgress},
	}

	for _, tt := range tests {
		if got := CoarseStatus(tt.status); got != tt.want {
			t.Errorf("CoarseStatus(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestStatusPriorityOrdering(t *testing.T) {
	if StatusPriority(StatusExecuting) >= StatusPriority(StatusVerifying) {
		t.Error("EXECUTING should outrank VERIFYING")
	}
	if StatusPriority(StatusBlockedHuman) >= StatusPriority(Status("UNKNOWN")) {
		t.Error("unknown status should sort last")
	}
}

func TestInitialStatusForRole(t *testing.T) {
	tests := []struct {
		role string
		want Status
	}{
		{"role-product-manager", StatusDesigning},
		{"role-qa-security", StatusAuditing},
		{"role-project-ops", StatusExecuting},
		{"role-technology", StatusExecuting},
		{"role-whatever", StatusDesigning},
	}
	for _, tt := range tests {
		if got := InitialStatusForRole(tt.role); got != tt.want {
			t.Errorf("InitialStatusForRole(%q) = %s, want %s", tt.role, got, tt.want)
		}
	}
}

func TestResumeStatusForGate(t *testing.T) {
	tests := []struct {
		gate Gate
		want Status
	}{
		{Gate0, StatusDesigning},
		{Gate1, StatusAuditing},
		{Gate2, StatusExecuting},
		{Gate3, StatusVerifying},
		{Gate(""), StatusVerifying},
	}
	for _, tt := range tests {
		if got := ResumeStatusForGate(tt.gate); got != tt.want {
			t.Errorf("ResumeStatusForGate(%q) = %s, want %s", tt.gate, got, tt.want)
		}
	}
}

func TestIsToolActor(t *testing.T) {
	if !IsToolActor("actor_trae") {
		t.Error("expected ACTOR_TRAE to be a tool actor")
	}
	if IsToolActor("ACTOR_CLAUDE") {
		t.Error("did not expect ACTOR_CLAUDE to be a tool actor")
	}
}

func TestIsAutoStartable(t *testing.T) {
	if !IsAutoStartable("ACTOR_CLAUDE") {
		t.Error("expected ACTOR_CLAUDE to be auto-startable")
	}
	if IsAutoStartable("ACTOR_HUMAN") {
		t.Error("did not expect ACTOR_HUMAN to be auto-startable")
	}
	if IsAutoStartable("ACTOR_TRAE") {
		t.Error("did not expect ACTOR_TRAE to be auto-startable")
	}
}

func TestNormalizeActorChoice(t *testing.T) {
	tests := []struct {
		in      string
		want    Actor
		wantErr bool
	}{
		{"claude", ActorClaude, false},
		{"ACTOR_CLAUDE", ActorClaude, false},
		{"Codex", ActorCodex, false},
		{"human", ActorHuman, false},
		{"nonsense", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeActorChoice(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeActorChoice(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeActorChoice(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeActorChoice(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInferDispatchFromTitle(t *testing.T) {
	tests := []struct {
		title string
		role  string
		gate  Gate
	}{
		{"Clarify requirements for login", "role-product-manager", Gate0},
		{"Add test coverage for auth", "role-qa-security", Gate2},
		{"Final release acceptance review", "role-product-manager", Gate3},
		{"Build the control room UI", "role-project-ops", Gate2},
		{"Wire up the payment webhook", "role-technology", Gate2},
	}
	for _, tt := range tests {
		got := InferDispatchFromTitle(tt.title)
		if got.Role != tt.role || got.Gate != tt.gate {
			t.Errorf("InferDispatchFromTitle(%q) = %+v, want role=%s gate=%s", tt.title, got, tt.role, tt.gate)
		}
	}
}
