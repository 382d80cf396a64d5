package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"tendertrack/models"
)

// CreateTenderHandler обрабатывает POST /api/tenders/new: создает тендер
// и инициализирует журнал этапов по справочнику
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	_, actor, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var tender models.Tender
	if err := json.Unmarshal(body, &tender); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if err := validateTenderRequest(&tender); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tender.Status = models.StatusNew
	tender.CreatedBy = actor.ID
	if tender.ValidityPeriod == 0 {
		tender.ValidityPeriod = 90
	}

	if err := h.Store.CreateTender(r.Context(), &tender); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Machine.Initialize(r.Context(), &tender); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, tender)
}

// validateTenderRequest проверяет минимально необходимые поля при создании
func validateTenderRequest(t *models.Tender) error {
	if t.Name == "" || len(t.Name) > 200 {
		return errors.New("name is required and max length 200")
	}
	if t.ReferenceNumber == "" || len(t.ReferenceNumber) > 100 {
		return errors.New("reference number is required and max length 100")
	}
	if t.TenderType == "" {
		return errors.New("tender type is required")
	}
	if t.Method == "" {
		return errors.New("method is required")
	}
	if t.Owner == "" {
		return errors.New("owner is required")
	}
	if t.Status != "" && t.Status != models.StatusNew {
		return errors.New("status must be 'new' on creation")
	}
	return nil
}

// GetTenderHandler возвращает тендер, если у действующего лица есть доступ
// к его текущему этапу
func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, tender)
}

// ListTendersHandler возвращает список тендеров с фильтром по статусу
func (h *Handler) ListTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	// Фильтр status — может быть несколько через query param
	allowed := map[string]bool{
		"new": true, "studying": true, "go_no_go": true, "pricing": true,
		"ready": true, "submitted": true, "opening": true,
		"won": true, "lost": true, "cancelled": true,
	}
	var statuses []string
	for _, v := range r.URL.Query()["status"] {
		if allowed[v] {
			statuses = append(statuses, v)
		}
	}

	tenders, err := h.Store.ListTenders(r.Context(), statuses, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, tenders)
}

// EditTenderHandler правит поля тендера; доступ проверяется по текущему этапу
func (h *Handler) EditTenderHandler(w http.ResponseWriter, r *http.Request) {
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

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var input struct {
		Name                *string    `json:"name"`
		Owner               *string    `json:"owner"`
		PublicationDate     *time.Time `json:"publicationDate"`
		DocumentsSaleStart  *time.Time `json:"documentsSaleStart"`
		DocumentsSaleEnd    *time.Time `json:"documentsSaleEnd"`
		QuestionsDeadline   *time.Time `json:"questionsDeadline"`
		SiteVisitDate       *time.Time `json:"siteVisitDate"`
		PreBidMeetingDate   *time.Time `json:"preBidMeetingDate"`
		SubmissionDeadline  *time.Time `json:"submissionDeadline"`
		OpeningDate         *time.Time `json:"openingDate"`
		EstimatedValue      *float64   `json:"estimatedValue"`
		SubmittedPrice      *float64   `json:"submittedPrice"`
		DocumentsPrice      *float64   `json:"documentsPrice"`
		ValidityPeriod      *int       `json:"validityPeriod"`
		BidBondValidityDays *int       `json:"bidBondValidityDays"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
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

	if input.Name != nil {
		tender.Name = *input.Name
	}
	if input.Owner != nil {
		tender.Owner = *input.Owner
	}
	if input.PublicationDate != nil {
		tender.PublicationDate = input.PublicationDate
	}
	if input.DocumentsSaleStart != nil {
		tender.DocumentsSaleStart = input.DocumentsSaleStart
	}
	if input.DocumentsSaleEnd != nil {
		tender.DocumentsSaleEnd = input.DocumentsSaleEnd
	}
	if input.QuestionsDeadline != nil {
		tender.QuestionsDeadline = input.QuestionsDeadline
	}
	if input.SiteVisitDate != nil {
		tender.SiteVisitDate = input.SiteVisitDate
	}
	if input.PreBidMeetingDate != nil {
		tender.PreBidMeetingDate = input.PreBidMeetingDate
	}
	if input.SubmissionDeadline != nil {
		tender.SubmissionDeadline = input.SubmissionDeadline
	}
	if input.OpeningDate != nil {
		tender.OpeningDate = input.OpeningDate
	}
	if input.EstimatedValue != nil {
		tender.EstimatedValue = *input.EstimatedValue
	}
	if input.SubmittedPrice != nil {
		tender.SubmittedPrice = *input.SubmittedPrice
	}
	if input.DocumentsPrice != nil {
		tender.DocumentsPrice = *input.DocumentsPrice
	}
	if input.ValidityPeriod != nil {
		tender.ValidityPeriod = *input.ValidityPeriod
	}
	if input.BidBondValidityDays != nil {
		tender.BidBondValidityDays = *input.BidBondValidityDays
	}

	if err := h.Store.UpdateTender(r.Context(), tender); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, tender)
}

// RollbackTenderHandler откатывает поля тендера к сохраненной версии
func (h *Handler) RollbackTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := urlParamInt(r, "tenderId")
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	version, ok := urlParamInt(r, "version")
	if !ok {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}
	p, _, err := h.principal(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	current, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !h.Gate.CanEditStage(p, current, current.CurrentStage) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	snapshot, err := h.Store.GetTenderVersion(r.Context(), tenderID, version)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Возвращаем только снимаемые поля; этапы и статус не трогаем
	current.Name = snapshot.Name
	current.Owner = snapshot.Owner
	current.EstimatedValue = snapshot.EstimatedValue
	current.SubmittedPrice = snapshot.SubmittedPrice

	if err := h.Store.UpdateTender(r.Context(), current); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, current)
}
