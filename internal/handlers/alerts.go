package handlers

import (
	"net/http"
)

// GetTenderAlertsHandler возвращает оповещения по тендеру
func (h *Handler) GetTenderAlertsHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	alerts, err := h.Store.AlertsForTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, alerts)
}

// ReadAlertHandler помечает оповещение прочитанным
func (h *Handler) ReadAlertHandler(w http.ResponseWriter, r *http.Request) {
	alertID, ok := urlParamInt(r, "alertId")
	if !ok {
		http.Error(w, "Invalid alertId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.MarkAlertRead(r.Context(), alertID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DismissAlertHandler скрывает оповещение
func (h *Handler) DismissAlertHandler(w http.ResponseWriter, r *http.Request) {
	alertID, ok := urlParamInt(r, "alertId")
	if !ok {
		http.Error(w, "Invalid alertId", http.StatusBadRequest)
		return
	}
	if _, _, err := h.principal(r); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Store.DismissAlert(r.Context(), alertID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
