package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tendertrack/internal/authz"
	"tendertrack/internal/stages"
	"tendertrack/internal/workflow"
	"tendertrack/models"
)

// Handler связывает HTTP-слой с движками и хранилищем
type Handler struct {
	Store   StorageInterface
	Machine *stages.Machine
	Gate    *authz.Gate
	Engine  *workflow.Engine
	Catalog *stages.Catalog
	Log     *zap.Logger
}

func NewHandler(store StorageInterface, machine *stages.Machine, gate *authz.Gate, engine *workflow.Engine, catalog *stages.Catalog, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Store: store, Machine: machine, Gate: gate, Engine: engine, Catalog: catalog, Log: log}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// principal находит действующее лицо по ?username= и передает его дальше явно
func (h *Handler) principal(r *http.Request) (*models.Principal, *models.Employee, error) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		return nil, nil, errMissingUsername
	}
	e, err := h.Store.GetEmployeeByUsername(r.Context(), username)
	if err != nil {
		return nil, nil, err
	}
	roles, err := h.Store.RolesForEmployee(r.Context(), e.ID)
	if err != nil {
		return nil, nil, err
	}
	p := &models.Principal{
		ID:         e.ID,
		Username:   e.Username,
		SuperAdmin: e.IsSuperAdmin,
		RoleIDs:    roles,
	}
	return p, e, nil
}

var errMissingUsername = errors.New("missing username parameter")

// writeError переводит доменные ошибки в HTTP-коды
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errMissingUsername):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrPermissionDenied):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrStaleTender):
		http.Error(w, "Tender was modified concurrently, reload and retry", http.StatusConflict)
	case errors.Is(err, models.ErrMandatoryStage),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrDelegationNotAllowed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrUnresolvedAssignment):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, sql.ErrNoRows):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		h.Log.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func urlParamInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
