package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tendertrack/internal/tenderval"
	"tendertrack/models"
)

// stageRequest загружает тендер, журнал этапа и действующее лицо,
// проверяя права на правку этапа
func (h *Handler) stageRequest(w http.ResponseWriter, r *http.Request) (*models.Tender, *models.StageLog, *models.Employee, bool) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return nil, nil, nil, false
	}
	stageKey := chi.URLParam(r, "stageKey")
	if _, known := h.Catalog.ByKey(stageKey); !known {
		http.Error(w, "Unknown stage", http.StatusNotFound)
		return nil, nil, nil, false
	}
	p, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return nil, nil, nil, false
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return nil, nil, nil, false
	}
	if !h.Gate.CanEditStage(p, tender, stageKey) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, nil, nil, false
	}
	log, err := h.Store.GetStageLog(r.Context(), tenderID, stageKey)
	if err != nil {
		h.writeError(w, err)
		return nil, nil, nil, false
	}
	return tender, log, actor, true
}

// StartStageHandler переводит этап в работу
func (h *Handler) StartStageHandler(w http.ResponseWriter, r *http.Request) {
	_, log, _, ok := h.stageRequest(w, r)
	if !ok {
		return
	}
	if err := h.Machine.Start(r.Context(), log); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, log)
}

type completeStageResponse struct {
	Stage    *models.StageLog `json:"stage"`
	Warnings []string         `json:"warnings,omitempty"`
}

// CompleteStageHandler закрывает этап. Перед закрытием тендер проходит
// проверку дат и полноты; блокирующие ошибки возвращаются с кодом 400,
// предупреждения не мешают переходу и отдаются в ответе
func (h *Handler) CompleteStageHandler(w http.ResponseWriter, r *http.Request) {
	tender, log, actor, ok := h.stageRequest(w, r)
	if !ok {
		return
	}

	res := tenderval.ValidateForTransition(tender, log.StageKey, time.Now())
	if !res.OK() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(res)
		return
	}

	notes := readNotes(r)
	if err := h.Machine.Complete(r.Context(), tender, log, actor.ID, notes); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, completeStageResponse{Stage: log, Warnings: res.Warnings})
}

// SkipStageHandler пропускает необязательный этап
func (h *Handler) SkipStageHandler(w http.ResponseWriter, r *http.Request) {
	tender, log, _, ok := h.stageRequest(w, r)
	if !ok {
		return
	}
	if err := h.Machine.Skip(r.Context(), tender, log, readNotes(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, log)
}

// FailStageHandler помечает этап проваленным
func (h *Handler) FailStageHandler(w http.ResponseWriter, r *http.Request) {
	_, log, _, ok := h.stageRequest(w, r)
	if !ok {
		return
	}
	if err := h.Machine.Fail(r.Context(), log, readNotes(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, log)
}

// StageLogsHandler возвращает журнал этапов тендера
func (h *Handler) StageLogsHandler(w http.ResponseWriter, r *http.Request) {
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
	if !h.Gate.CanAccessStage(p, tender, tender.CurrentStage) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	logs, err := h.Store.GetStageLogs(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, logs)
}

// ProgressHandler отдает сводку готовности тендера
func (h *Handler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	progress, err := h.Machine.Progress(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, progress)
}

// ValidateHandler выполняет проверку без побочных эффектов
func (h *Handler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res := tenderval.ValidateForTransition(tender, tender.CurrentStage, time.Now())
	writeJSON(w, res)
}

// UpdateStatusHandler двигает грубый статус тендера: PUT .../status?status=
func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	target := models.TenderStatus(r.URL.Query().Get("status"))
	if target == "" {
		http.Error(w, "Missing status parameter", http.StatusBadRequest)
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
	if !h.Gate.CanEditStage(p, tender, tender.CurrentStage) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.Machine.AdvanceStatus(r.Context(), tender, target); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, tender)
}

// ResultHandler фиксирует итог вскрытия: PUT .../result?result=won|lost
func (h *Handler) ResultHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	result := r.URL.Query().Get("result")
	if result != "won" && result != "lost" {
		http.Error(w, "result must be 'won' or 'lost'", http.StatusBadRequest)
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
	if !h.Gate.CanEditStage(p, tender, "award_waiting") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := h.Machine.RecordAwardResult(r.Context(), tender, result == "won"); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, tender)
}

// readNotes читает необязательное поле notes из тела запроса
func readNotes(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil || len(body) == 0 {
		return ""
	}
	var input struct {
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		return ""
	}
	return input.Notes
}
