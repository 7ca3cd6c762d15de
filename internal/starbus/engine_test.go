// internal/starbus/engine_test.go
package starbus

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/starbus/coordinator/internal/catalog"
	"github.com/starbus/coordinator/internal/docstore"
)

// fakeExecutor lets tests script Start outcomes without a real executor.
type fakeExecutor struct {
	failFirstWithAlreadyExists bool
	calls                      int
	startedWorkspaceIDs        []string
}

func (f *fakeExecutor) Start(workspaceID, profile string) error {
	f.calls++
	f.startedWorkspaceIDs = append(f.startedWorkspaceIDs, workspaceID)
	if f.failFirstWithAlreadyExists && f.calls == 1 {
		return fmt.Errorf("workspace already exists")
	}
	return nil
}

func setupTestEngine(t *testing.T) (*Engine, *fakeExecutor, func()) {
	t.Helper()
	dir := t.TempDir()

	dbFile, err := os.CreateTemp("", "engine-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()

	db, err := sql.Open("sqlite", dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}

	docs := docstore.NewStore(db)
	if err := docs.Init(); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(db)
	if err := cat.Init(); err != nil {
		t.Fatal(err)
	}

	executor := &fakeExecutor{}
	engine := NewEngine(NewStore(docs), cat, executor)

	counter := 0
	engine.newID = func() string {
		counter++
		return fmt.Sprintf("id-%d", counter)
	}
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixedNow }
	engine.WorkspaceRoot = func() (string, error) { return dir, nil }

	cleanup := func() {
		db.Close()
		os.Remove(dbFile.Name())
	}
	return engine, executor, cleanup
}

func boolPtr(b bool) *bool { return &b }

func TestIntakeCreateHappyPath(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{
		ProjectID:              "proj-1",
		Title:                  "Build API",
		Priority:               "P1",
		DomainRoles:            []string{"a", "b"},
		IncludeRecommendedDeps: boolPtr(true),
		SetActive:              true,
	})
	if err != nil {
		t.Fatalf("IntakeCreate failed: %v", err)
	}

	if ts.Status != StatusQueued {
		t.Errorf("expected QUEUED, got %s", ts.Status)
	}
	if ts.Gate != Gate0 {
		t.Errorf("expected Gate0, got %s", ts.Gate)
	}
	if len(ts.History) != 1 || ts.History[0].FromStatus != "VOID" {
		t.Errorf("expected single VOID->QUEUED history entry, got %+v", ts.History)
	}

	gs, err := engine.Store.GetGlobal()
	if err != nil {
		t.Fatal(err)
	}
	if gs.ActiveTaskID != ts.TaskID {
		t.Errorf("expected active task to be set to %s, got %s", ts.TaskID, gs.ActiveTaskID)
	}
}

func TestIntakeCreateDomainRolesOverflow(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{
		ProjectID:              "proj-1",
		Title:                  "Build API",
		Priority:               "P1",
		DomainRoles:            []string{"a", "b", "c", "d", "e"},
		IncludeRecommendedDeps: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("IntakeCreate failed: %v", err)
	}

	if ts.Status != StatusBlockedHuman {
		t.Errorf("expected BLOCKED_HUMAN, got %s", ts.Status)
	}
	if len(ts.DecisionRequests) != 1 {
		t.Fatalf("expected one decision request, got %d", len(ts.DecisionRequests))
	}
	if ts.DecisionRequests[0].Recommended != "Keep first 4 roles" {
		t.Errorf("unexpected recommendation: %s", ts.DecisionRequests[0].Recommended)
	}
}

func TestTransitionStateHappyPath(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := engine.TransitionState(TransitionRequest{TaskID: ts.TaskID, Status: "designing"})
	if err != nil {
		t.Fatalf("TransitionState failed: %v", err)
	}
	if updated.Status != StatusDesigning {
		t.Errorf("expected DESIGNING, got %s", updated.Status)
	}

	coarse, err := engine.Catalog.GetTask(ts.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if coarse.Status != string(TaskInProgress) {
		t.Errorf("expected coarse InProgress, got %s", coarse.Status)
	}
}

func TestTransitionStateIllegalTransition(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.TransitionState(TransitionRequest{TaskID: ts.TaskID, Status: "DONE"})
	if err == nil {
		t.Fatal("expected illegal transition error")
	}
	if !IsKind(err, KindBadRequest) {
		t.Errorf("expected BadRequest, got %v", err)
	}

	unchanged, err := engine.Store.GetTask(ts.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if unchanged.Status != StatusQueued {
		t.Errorf("state should be unchanged, got %s", unchanged.Status)
	}
}

func TestTransitionStateToolActorCompletionGuard(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	ts.Status = StatusExecuting
	ts.ActiveActor = string(ActorTrae)
	if err := engine.Store.PutTask(ts.TaskID, ts); err != nil {
		t.Fatal(err)
	}

	_, err = engine.TransitionState(TransitionRequest{TaskID: ts.TaskID, Status: "VERIFYING"})
	if err != nil {
		t.Fatalf("EXECUTING->VERIFYING should be legal regardless of actor: %v", err)
	}

	ts.Status = StatusExecuting
	if err := engine.Store.PutTask(ts.TaskID, ts); err != nil {
		t.Fatal(err)
	}
	_, err = engine.TransitionState(TransitionRequest{TaskID: ts.TaskID, Status: "BLOCKED_HUMAN", Gate: "Gate2"})
	if err != nil {
		t.Fatalf("transition to BLOCKED_HUMAN should not trigger completion guard: %v", err)
	}
}

// TestTransitionStateToolActorGuardBeatsInvalidTransition covers scenario
// S5: EXECUTING->DONE is illegal under both the plain transition table and
// the tool-actor completion guard, and the guard must be the one that
// fires, not the generic invalid-transition message.
func TestTransitionStateToolActorGuardBeatsInvalidTransition(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	ts.Status = StatusExecuting
	ts.ActiveActor = string(ActorTrae)
	if err := engine.Store.PutTask(ts.TaskID, ts); err != nil {
		t.Fatal(err)
	}

	_, err = engine.TransitionState(TransitionRequest{TaskID: ts.TaskID, Status: "DONE"})
	if err == nil {
		t.Fatal("expected EXECUTING->DONE under a tool actor to fail")
	}
	se, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if se.Kind != KindBadRequest {
		t.Errorf("expected KindBadRequest, got %v", se.Kind)
	}
	if !strings.Contains(se.Msg, "tool actor") {
		t.Errorf("expected the tool-actor completion guard message, got %q", se.Msg)
	}
}

func TestResolveDecisionAutoResume(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	ts.Status = StatusBlockedHuman
	ts.Gate = Gate2
	ts.DecisionRequests = []DecisionRequest{{ID: "DR-1", Question: "q", Options: []string{"a", "b"}}}
	if err := engine.Store.PutTask(ts.TaskID, ts); err != nil {
		t.Fatal(err)
	}

	resolved, err := engine.ResolveDecision(DecisionResolveRequest{TaskID: ts.TaskID, DecisionID: "DR-1", Resolution: "proceed"})
	if err != nil {
		t.Fatalf("ResolveDecision failed: %v", err)
	}
	if resolved.Status != StatusExecuting {
		t.Errorf("expected auto-resume to EXECUTING, got %s", resolved.Status)
	}

	foundAutoResumeNote := false
	for _, h := range resolved.History {
		if h.Actor == "ORCHESTRATOR" {
			foundAutoResumeNote = true
		}
	}
	if !foundAutoResumeNote {
		t.Error("expected an ORCHESTRATOR auto_resume history entry")
	}
}

func TestResolveDecisionActorSelectTriggersAutoStart(t *testing.T) {
	engine, executor, cleanup := setupTestEngine(t)
	defer cleanup()

	if err := engine.Catalog.PutRepo(catalog.Repo{ProjectID: "proj-1", Name: "app", DefaultTargetBranch: "main"}); err != nil {
		t.Fatal(err)
	}

	ts, err := engine.IntakeCreate(IntakeRequest{ProjectID: "proj-1", Title: "Build API", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	ts.Status = StatusBlockedHuman
	ts.Gate = Gate2
	ts.DecisionRequests = []DecisionRequest{{
		ID:          "DR-ACTOR-1",
		Question:    "Select execution actor before auto start",
		Options:     DefaultActorOptions(),
		ContextRefs: []string{HITLActorSelectTag, "GATE:Gate2"},
	}}
	if err := engine.Store.PutTask(ts.TaskID, ts); err != nil {
		t.Fatal(err)
	}

	resolved, err := engine.ResolveDecision(DecisionResolveRequest{TaskID: ts.TaskID, DecisionID: "DR-ACTOR-1", Resolution: "CLAUDE"})
	if err != nil {
		t.Fatalf("ResolveDecision failed: %v", err)
	}
	if resolved.ActiveActor != string(ActorClaude) {
		t.Errorf("expected active_actor ACTOR_CLAUDE, got %s", resolved.ActiveActor)
	}
	if resolved.Status == StatusBlockedHuman {
		t.Error("expected non-BLOCKED_HUMAN status after resolution")
	}
	if executor.calls == 0 {
		t.Error("expected auto-start to invoke the executor")
	}
}

func TestResolveDecisionDecisionNotFound(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.ResolveDecision(DecisionResolveRequest{TaskID: ts.TaskID, DecisionID: "missing", Resolution: "x"})
	if !IsKind(err, KindBadRequest) {
		t.Errorf("expected BadRequest for missing decision, got %v", err)
	}
}

func TestUpdateNextActionBypassesTransitionTable(t *testing.T) {
	engine, _, cleanup := setupTestEngine(t)
	defer cleanup()

	ts, err := engine.IntakeCreate(IntakeRequest{Title: "t", Priority: "P1", IncludeRecommendedDeps: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := engine.UpdateNextAction(NextActionUpdate{TaskID: ts.TaskID, Status: "DONE"})
	if err != nil {
		t.Fatalf("update_next_action should not check the transition table: %v", err)
	}
	if updated.Status != StatusDone {
		t.Errorf("expected status assigned directly to DONE, got %s", updated.Status)
	}
}
