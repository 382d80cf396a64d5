package handlers

import (
	"net/http"
	"strconv"

	"tendertrack/internal/workflow"
)

// StartWorkflowHandler запускает маршрут согласования по тендеру:
// POST /api/tenders/{tenderId}/workflow?definition=<name>
func (h *Handler) StartWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("definition")
	if name == "" {
		http.Error(w, "Missing definition parameter", http.StatusBadRequest)
		return
	}
	_, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	def, err := h.Store.ActiveDefinition(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	inst, err := h.Engine.Start(r.Context(), def.ID, tender, actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, inst)
}

// AdvanceTaskHandler закрывает текущую задачу экземпляра маршрута
func (h *Handler) AdvanceTaskHandler(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := urlParamInt(r, "instanceId")
	if !ok {
		http.Error(w, "Invalid instanceId", http.StatusBadRequest)
		return
	}
	_, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	inst, err := h.Engine.AdvanceStep(r.Context(), instanceID, actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, inst)
}

// DelegateTaskHandler передает задачу другому сотруднику: PUT .../delegate?to=<id>
func (h *Handler) DelegateTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := urlParamInt(r, "taskId")
	if !ok {
		http.Error(w, "Invalid taskId", http.StatusBadRequest)
		return
	}
	toID, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil || toID <= 0 {
		http.Error(w, "Invalid 'to' parameter", http.StatusBadRequest)
		return
	}
	_, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.Store.EmployeeByID(r.Context(), toID); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Engine.Delegate(r.Context(), taskID, actor.ID, toID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListTenderTasksHandler возвращает задачи маршрутов по тендеру
func (h *Handler) ListTenderTasksHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	tasks, err := h.Store.TasksForTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, tasks)
}

// TaskAssigneesHandler разворачивает назначение шага задачи в сотрудников
func (h *Handler) TaskAssigneesHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	stepID, ok := urlParamInt(r, "stepId")
	if !ok {
		http.Error(w, "Invalid stepId", http.StatusBadRequest)
		return
	}
	_, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	step, err := h.Store.GetStep(r.Context(), stepID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	assignees, err := h.Engine.ResolveAssignees(r.Context(), step, workflow.Context{Tender: tender, Requester: actor})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, assignees)
}
