// internal/starbus/store.go
package starbus

import (
	"encoding/json"
	"errors"

	"github.com/starbus/coordinator/internal/docstore"
)

const (
	kindGlobalState = "STARBUS_GLOBAL_STATE"
	kindTaskState   = "STARBUS_TASK_STATE"
)

// Store is the typed wrapper over the document store the rest of the
// engine talks to: reads and writes of the singleton GlobalState and of
// per-task TaskState documents.
type Store struct {
	docs *docstore.Store
}

// NewStore wraps a document store.
func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs}
}

// GetGlobal returns the singleton GlobalState, or the zero value if it is
// absent or stored under the wrong kind.
func (s *Store) GetGlobal() (GlobalState, error) {
	doc, err := s.docs.Get(GlobalStateSentinelID, kindGlobalState)
	if err == docstore.ErrNotFound {
		return GlobalState{}, nil
	}
	if errors.Is(err, docstore.ErrKindMismatch) {
		return GlobalState{}, nil
	}
	if err != nil {
		return GlobalState{}, storageFailure("get global state: %v", err)
	}
	var gs GlobalState
	if err := json.Unmarshal([]byte(doc.Payload), &gs); err != nil {
		return GlobalState{}, storageFailure("unmarshal global state: %v", err)
	}
	return gs, nil
}

// PutGlobal upserts the singleton GlobalState.
func (s *Store) PutGlobal(gs GlobalState) error {
	payload, err := json.Marshal(gs)
	if err != nil {
		return storageFailure("marshal global state: %v", err)
	}
	if err := s.docs.Put(GlobalStateSentinelID, kindGlobalState, string(payload)); err != nil {
		if errors.Is(err, docstore.ErrKindMismatch) {
			return typeMismatch("global state: %v", err)
		}
		return storageFailure("put global state: %v", err)
	}
	return nil
}

// GetTask returns the TaskState for taskID, or a *Error of kind
// KindNotFound if absent.
func (s *Store) GetTask(taskID string) (TaskState, error) {
	doc, err := s.docs.Get(taskID, kindTaskState)
	if err == docstore.ErrNotFound {
		return TaskState{}, notFound("task %s not found", taskID)
	}
	if errors.Is(err, docstore.ErrKindMismatch) {
		return TaskState{}, typeMismatch("task %s: %v", taskID, err)
	}
	if err != nil {
		return TaskState{}, storageFailure("get task %s: %v", taskID, err)
	}
	var ts TaskState
	if err := json.Unmarshal([]byte(doc.Payload), &ts); err != nil {
		return TaskState{}, storageFailure("unmarshal task %s: %v", taskID, err)
	}
	return ts, nil
}

// PutTask upserts the TaskState under taskID.
func (s *Store) PutTask(taskID string, ts TaskState) error {
	payload, err := json.Marshal(ts)
	if err != nil {
		return storageFailure("marshal task %s: %v", taskID, err)
	}
	if err := s.docs.Put(taskID, kindTaskState, string(payload)); err != nil {
		if errors.Is(err, docstore.ErrKindMismatch) {
			return typeMismatch("task %s: %v", taskID, err)
		}
		return storageFailure("put task %s: %v", taskID, err)
	}
	return nil
}

// ListTaskStates returns every TaskState document, ordered by created_at
// descending, paired with its store timestamps.
func (s *Store) ListTaskStates() ([]TaskRecord, error) {
	docs, err := s.docs.ListByKind(kindTaskState)
	if err != nil {
		return nil, storageFailure("list task states: %v", err)
	}
	records := make([]TaskRecord, 0, len(docs))
	for _, d := range docs {
		var ts TaskState
		if err := json.Unmarshal([]byte(d.Payload), &ts); err != nil {
			return nil, storageFailure("unmarshal task %s: %v", d.ID, err)
		}
		records = append(records, TaskRecord{State: ts, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt})
	}
	return records, nil
}

// DeleteTask removes the TaskState document for taskID. Idempotent.
func (s *Store) DeleteTask(taskID string) error {
	if err := s.docs.Delete(taskID, kindTaskState); err != nil {
		return storageFailure("delete task %s: %v", taskID, err)
	}
	return nil
}

// HealActive recomputes the active task id against the current task list
// and persists the corrected value if it differs from what is stored.
// Any handler reading GlobalState must route through this so stale
// references heal before the result is returned (I4).
func (s *Store) HealActive() (GlobalState, error) {
	gs, err := s.GetGlobal()
	if err != nil {
		return GlobalState{}, err
	}
	records, err := s.ListTaskStates()
	if err != nil {
		return GlobalState{}, err
	}
	healed := SelectActive(gs.ActiveTaskID, records)
	if healed != gs.ActiveTaskID {
		gs.ActiveTaskID = healed
		if err := s.PutGlobal(gs); err != nil {
			return GlobalState{}, err
		}
	}
	return gs, nil
}
