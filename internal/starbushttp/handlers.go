// internal/starbushttp/handlers.go
package starbushttp

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/starbus/coordinator/internal/starbus"
)

// StateNotifier is told about every successful state-machine mutation so
// it can push a live event (websocket hub, NATS subject, ...). Nil-safe:
// callers that do not need live events can leave it unset.
type StateNotifier interface {
	NotifyStateChange(taskID string, status string)
}

// Handler exposes the StarBus HTTP surface (§6.2) over a *mux.Router.
type Handler struct {
	engine   *starbus.Engine
	notifier StateNotifier
}

// NewHandler builds a Handler over engine. notifier may be nil.
func NewHandler(engine *starbus.Engine, notifier StateNotifier) *Handler {
	return &Handler{engine: engine, notifier: notifier}
}

// RegisterRoutes wires every StarBus endpoint onto r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/starbus/state", h.handleGetState).Methods(http.MethodGet)
	r.HandleFunc("/starbus/status-mapping", h.handleStatusMapping).Methods(http.MethodGet)
	r.HandleFunc("/starbus/intake/preflight", h.handleIntakePreflight).Methods(http.MethodPost)
	r.HandleFunc("/starbus/intake/create", h.handleIntakeCreate).Methods(http.MethodPost)
	r.HandleFunc("/starbus/dispatch", h.handleDispatch).Methods(http.MethodPost)
	r.HandleFunc("/starbus/run-role-task", h.handleRunRoleTask).Methods(http.MethodPost)
	r.HandleFunc("/starbus/runs/{task_id}", h.handleGetRuns).Methods(http.MethodGet)
	r.HandleFunc("/starbus/handoff", h.handleHandoff).Methods(http.MethodPost)
	r.HandleFunc("/starbus/state/sync/project-statuses", h.handleSyncProjectStatuses).Methods(http.MethodPost)
	r.HandleFunc("/starbus/state/next_action", h.handleUpdateNextAction).Methods(http.MethodPost)
	r.HandleFunc("/starbus/state/transition", h.handleTransition).Methods(http.MethodPost)
	r.HandleFunc("/starbus/state/decision/resolve", h.handleResolveDecision).Methods(http.MethodPost)
}

func (h *Handler) notify(taskID string, status starbus.Status) {
	if h.notifier != nil {
		h.notifier.NotifyStateChange(taskID, string(status))
	}
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.engine.GetState(q.Get("project_id"), q.Get("active_only") == "true", q.Get("title_prefix"))
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	respondData(w, resp)
}

func (h *Handler) handleStatusMapping(w http.ResponseWriter, r *http.Request) {
	respondData(w, starbus.GetStatusMapping())
}

func (h *Handler) handleIntakePreflight(w http.ResponseWriter, r *http.Request) {
	var req starbus.IntakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	respondData(w, h.engine.Preflight(req))
}

func (h *Handler) handleIntakeCreate(w http.ResponseWriter, r *http.Request) {
	var req starbus.IntakeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pre := h.engine.Preflight(req)
	if !pre.OK {
		respondErr(w, http.StatusBadRequest, "intake preflight failed")
		return
	}
	state, err := h.engine.IntakeCreate(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(state.TaskID, state.Status)
	respondData(w, state)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req starbus.DispatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.DispatchTask(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, resp.State.Status)
	respondData(w, resp)
}

func (h *Handler) handleRunRoleTask(w http.ResponseWriter, r *http.Request) {
	var req starbus.RunRoleTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.RunRoleTask(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, resp.State.Status)
	respondData(w, resp)
}

func (h *Handler) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	resp, err := h.engine.GetRuns(taskID)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	respondData(w, resp)
}

func (h *Handler) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var req starbus.HandoffRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.Handoff(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, resp.State.Status)
	respondData(w, resp)
}

func (h *Handler) handleSyncProjectStatuses(w http.ResponseWriter, r *http.Request) {
	var req starbus.SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.SyncProjectStatuses(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	respondData(w, resp)
}

func (h *Handler) handleUpdateNextAction(w http.ResponseWriter, r *http.Request) {
	var req starbus.NextActionUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.engine.UpdateNextAction(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, state.Status)
	respondData(w, state)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req starbus.TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.engine.TransitionState(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, state.Status)
	respondData(w, state)
}

func (h *Handler) handleResolveDecision(w http.ResponseWriter, r *http.Request) {
	var req starbus.DecisionResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.engine.ResolveDecision(req)
	if err != nil {
		respondStarbusErr(w, err)
		return
	}
	h.notify(req.TaskID, state.Status)
	respondData(w, state)
}
