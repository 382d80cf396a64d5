package stages

import (
	"context"
	"fmt"
	"math"
	"time"

	"tendertrack/models"
)

// Store — персистентность машины этапов; реализуется db.Storage
type Store interface {
	GetTender(ctx context.Context, id int) (*models.Tender, error)
	GetStageLogs(ctx context.Context, tenderID int) ([]models.StageLog, error)
	GetStageLog(ctx context.Context, tenderID int, stageKey string) (*models.StageLog, error)
	// UpdateStageLog пишет журнал только из ожидаемого прежнего статуса;
	// проигравший гонку получает ErrStaleTender
	UpdateStageLog(ctx context.Context, log *models.StageLog, expected models.StageStatus) error
	InitStages(ctx context.Context, t *models.Tender, logs []models.StageLog) error
	// ApplyTransition пишет журнал этапа и тендер одной транзакцией с проверкой версии
	ApplyTransition(ctx context.Context, t *models.Tender, log *models.StageLog, expected models.StageStatus) error
	UpdateTenderProgress(ctx context.Context, t *models.Tender) error
	UpdateTenderStatus(ctx context.Context, t *models.Tender) error
}

// Hooks — внешние побочные эффекты переходов (финансы, проекты)
type Hooks interface {
	BondWithdrawalRequested(ctx context.Context, t *models.Tender) error
	TenderWon(ctx context.Context, t *models.Tender) error
}

type NopHooks struct{}

func (NopHooks) BondWithdrawalRequested(context.Context, *models.Tender) error { return nil }
func (NopHooks) TenderWon(context.Context, *models.Tender) error               { return nil }

// Machine двигает тендер по фиксированному справочнику этапов
type Machine struct {
	store   Store
	catalog *Catalog
	hooks   Hooks
	now     func() time.Time
}

func NewMachine(store Store, catalog *Catalog, hooks Hooks) *Machine {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &Machine{store: store, catalog: catalog, hooks: hooks, now: time.Now}
}

// Разрешенные переходы грубого статуса тендера
var statusEdges = map[models.TenderStatus][]models.TenderStatus{
	models.StatusNew:       {models.StatusStudying, models.StatusCancelled},
	models.StatusStudying:  {models.StatusGoNoGo, models.StatusCancelled},
	models.StatusGoNoGo:    {models.StatusPricing, models.StatusCancelled},
	models.StatusPricing:   {models.StatusReady, models.StatusCancelled},
	models.StatusReady:     {models.StatusSubmitted, models.StatusCancelled},
	models.StatusSubmitted: {models.StatusOpening, models.StatusCancelled},
	models.StatusOpening:   {models.StatusWon, models.StatusLost, models.StatusCancelled},
}

// Initialize идемпотентно создает журнал по каждому этапу справочника.
// Повторный вызов не дублирует строки и не сбрасывает уже продвинутые этапы.
func (m *Machine) Initialize(ctx context.Context, t *models.Tender) error {
	logs := make([]models.StageLog, 0, m.catalog.Total())
	for _, d := range m.catalog.Defs() {
		status := models.StageNotStarted
		if t.IsDirectSale && d.DirectSaleSkip {
			// прямая продажа обрезает под-поток документов и обеспечения
			status = models.StageSkipped
		}
		logs = append(logs, models.StageLog{
			TenderID:    t.ID,
			StageKey:    d.Key,
			StageOrder:  d.Order,
			IsMandatory: d.Mandatory,
			Status:      status,
		})
	}
	if err := m.store.InitStages(ctx, t, logs); err != nil {
		return err
	}

	actual, err := m.store.GetStageLogs(ctx, t.ID)
	if err != nil {
		return err
	}
	t.CurrentStage = m.nextStageKey(actual)
	t.CompletionPercentage = percentage(actual)
	return m.store.UpdateTenderProgress(ctx, t)
}

// Start переводит этап not_started -> in_progress
func (m *Machine) Start(ctx context.Context, log *models.StageLog) error {
	if log.Status != models.StageNotStarted {
		return fmt.Errorf("start stage %s from %s: %w", log.StageKey, log.Status, models.ErrInvalidTransition)
	}
	now := m.now()
	log.Status = models.StageInProgress
	log.StartedAt = &now
	return m.store.UpdateStageLog(ctx, log, models.StageNotStarted)
}

// Complete закрывает этап и пересчитывает current_stage и процент готовности
func (m *Machine) Complete(ctx context.Context, t *models.Tender, log *models.StageLog, actorID int, notes string) error {
	if log.Status != models.StageInProgress {
		return fmt.Errorf("complete stage %s from %s: %w", log.StageKey, log.Status, models.ErrInvalidTransition)
	}
	now := m.now()
	log.Status = models.StageCompleted
	log.CompletedAt = &now
	log.CompletedBy = &actorID
	if notes != "" {
		log.Notes = notes
	}
	return m.applyWithRecompute(ctx, t, log, models.StageInProgress)
}

// Skip пропускает необязательный этап; пропуск учитывается в проценте готовности
func (m *Machine) Skip(ctx context.Context, t *models.Tender, log *models.StageLog, reason string) error {
	if log.IsMandatory {
		return fmt.Errorf("stage %s: %w", log.StageKey, models.ErrMandatoryStage)
	}
	if log.Status != models.StageNotStarted {
		return fmt.Errorf("skip stage %s from %s: %w", log.StageKey, log.Status, models.ErrInvalidTransition)
	}
	log.Status = models.StageSkipped
	if reason != "" {
		log.Notes = reason
	}
	return m.applyWithRecompute(ctx, t, log, models.StageNotStarted)
}

// Fail помечает этап проваленным; current_stage не двигается
func (m *Machine) Fail(ctx context.Context, log *models.StageLog, reason string) error {
	if log.Status != models.StageInProgress {
		return fmt.Errorf("fail stage %s from %s: %w", log.StageKey, log.Status, models.ErrInvalidTransition)
	}
	now := m.now()
	log.Status = models.StageFailed
	log.CompletedAt = &now
	if reason != "" {
		log.Notes = reason
	}
	return m.store.UpdateStageLog(ctx, log, models.StageInProgress)
}

// CurrentStage возвращает этап in_progress, иначе первый не начатый
func (m *Machine) CurrentStage(ctx context.Context, t *models.Tender) (StageDef, error) {
	logs, err := m.store.GetStageLogs(ctx, t.ID)
	if err != nil {
		return StageDef{}, err
	}
	key := m.nextStageKey(logs)
	d, ok := m.catalog.ByKey(key)
	if !ok {
		return StageDef{}, fmt.Errorf("unknown stage key %q", key)
	}
	return d, nil
}

// Progress собирает сводку по журналу этапов
func (m *Machine) Progress(ctx context.Context, tenderID int) (models.StageProgress, error) {
	logs, err := m.store.GetStageLogs(ctx, tenderID)
	if err != nil {
		return models.StageProgress{}, err
	}
	p := models.StageProgress{Total: len(logs)}
	for _, l := range logs {
		switch l.Status {
		case models.StageCompleted:
			p.Completed++
		case models.StageInProgress:
			p.InProgress++
		case models.StageNotStarted:
			p.Pending++
		case models.StageSkipped:
			p.Skipped++
		case models.StageFailed:
			p.Failed++
		}
	}
	p.Percentage = percentage(logs)
	return p, nil
}

// AdvanceStatus двигает грубый статус тендера по разрешенным ребрам
func (m *Machine) AdvanceStatus(ctx context.Context, t *models.Tender, to models.TenderStatus) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("tender %d is already %s: %w", t.ID, t.Status, models.ErrInvalidTransition)
	}
	allowed := false
	for _, next := range statusEdges[t.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("status %s -> %s: %w", t.Status, to, models.ErrInvalidTransition)
	}
	t.Status = to
	return m.store.UpdateTenderStatus(ctx, t)
}

// RecordAwardResult фиксирует результат вскрытия и дергает внешние хуки:
// запрос возврата обеспечения всегда, конверсию в проект — при выигрыше
func (m *Machine) RecordAwardResult(ctx context.Context, t *models.Tender, won bool) error {
	if t.Status != models.StatusSubmitted && t.Status != models.StatusOpening {
		return fmt.Errorf("award result from %s: %w", t.Status, models.ErrInvalidTransition)
	}
	if won {
		t.Status = models.StatusWon
	} else {
		t.Status = models.StatusLost
	}
	if err := m.store.UpdateTenderStatus(ctx, t); err != nil {
		return err
	}
	if !t.IsDirectSale {
		if err := m.hooks.BondWithdrawalRequested(ctx, t); err != nil {
			return err
		}
	}
	if won {
		return m.hooks.TenderWon(ctx, t)
	}
	return nil
}

func (m *Machine) applyWithRecompute(ctx context.Context, t *models.Tender, log *models.StageLog, expected models.StageStatus) error {
	logs, err := m.store.GetStageLogs(ctx, t.ID)
	if err != nil {
		return err
	}
	for i := range logs {
		if logs[i].StageKey == log.StageKey {
			logs[i] = *log
		}
	}
	t.CurrentStage = m.nextStageKey(logs)
	t.CompletionPercentage = percentage(logs)
	return m.store.ApplyTransition(ctx, t, log, expected)
}

// nextStageKey: этап in_progress с минимальным порядком, иначе первый not_started,
// иначе терминальный ключ справочника
func (m *Machine) nextStageKey(logs []models.StageLog) string {
	var inProgress, notStarted *models.StageLog
	for i := range logs {
		l := &logs[i]
		switch l.Status {
		case models.StageInProgress:
			if inProgress == nil || l.StageOrder < inProgress.StageOrder {
				inProgress = l
			}
		case models.StageNotStarted:
			if notStarted == nil || l.StageOrder < notStarted.StageOrder {
				notStarted = l
			}
		}
	}
	if inProgress != nil {
		return inProgress.StageKey
	}
	if notStarted != nil {
		return notStarted.StageKey
	}
	return m.catalog.Terminal().Key
}

// percentage = (completed+skipped)/total*100, два знака после запятой
func percentage(logs []models.StageLog) float64 {
	if len(logs) == 0 {
		return 0
	}
	done := 0
	for _, l := range logs {
		if l.Status == models.StageCompleted || l.Status == models.StageSkipped {
			done++
		}
	}
	return math.Round(float64(done)/float64(len(logs))*100*100) / 100
}
