package handlers

import (
	"encoding/json"
	"net/http"

	"tendertrack/internal/workflow"
	"tendertrack/models"
)

// CreateEmployeeHandler заводит сотрудника; доступно только супер-админу
func (h *Handler) CreateEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	p, _, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !p.SuperAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var e models.Employee
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if e.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	e.IsActive = true

	if err := h.Store.CreateEmployee(r.Context(), &e); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, e)
}

// CreateBondHandler регистрирует обеспечение заявки по тендеру
func (h *Handler) CreateBondHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	p, _, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.Gate.CanEditStage(p, tender, "bond_preparation") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var b models.TenderBond
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if b.ExpiryDate.IsZero() || b.Amount <= 0 {
		http.Error(w, "amount and expiry date are required", http.StatusBadRequest)
		return
	}
	b.TenderID = tenderID
	b.Status = models.BondActive

	if err := h.Store.CreateBond(r.Context(), &b); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, b)
}

// CreateWorkflowStepHandler добавляет шаг в определение маршрута.
// Инвариант назначения проверяется до записи
func (h *Handler) CreateWorkflowStepHandler(w http.ResponseWriter, r *http.Request) {
	definitionID, ok := urlParamInt(r, "definitionId")
	if !ok {
		http.Error(w, "Invalid definitionId", http.StatusBadRequest)
		return
	}
	p, _, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !p.SuperAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var step models.WorkflowStep
	if err := json.NewDecoder(r.Body).Decode(&step); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	step.DefinitionID = definitionID
	if err := workflow.ValidateStep(&step); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.CreateStep(r.Context(), &step); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, step)
}
