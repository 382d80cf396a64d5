package stages_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tendertrack/internal/stages"
	"tendertrack/models"
)

// memStore хранит журнал этапов в памяти и повторяет идемпотентность
// вставки InitStages
type memStore struct {
	tender *models.Tender
	logs   map[string]*models.StageLog

	bondWithdrawals int
	wonCalls        int
}

func newMemStore(t *models.Tender) *memStore {
	return &memStore{tender: t, logs: map[string]*models.StageLog{}}
}

func (s *memStore) GetTender(ctx context.Context, id int) (*models.Tender, error) {
	return s.tender, nil
}

func (s *memStore) GetStageLogs(ctx context.Context, tenderID int) ([]models.StageLog, error) {
	out := make([]models.StageLog, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, *l)
	}
	return out, nil
}

func (s *memStore) GetStageLog(ctx context.Context, tenderID int, stageKey string) (*models.StageLog, error) {
	l := *s.logs[stageKey]
	return &l, nil
}

func (s *memStore) UpdateStageLog(ctx context.Context, l *models.StageLog, expected models.StageStatus) error {
	cur, ok := s.logs[l.StageKey]
	if !ok || cur.Status != expected {
		return models.ErrStaleTender
	}
	cp := *l
	s.logs[l.StageKey] = &cp
	return nil
}

func (s *memStore) InitStages(ctx context.Context, t *models.Tender, logs []models.StageLog) error {
	for _, l := range logs {
		if _, exists := s.logs[l.StageKey]; exists {
			continue
		}
		cp := l
		s.logs[l.StageKey] = &cp
	}
	return nil
}

func (s *memStore) ApplyTransition(ctx context.Context, t *models.Tender, l *models.StageLog, expected models.StageStatus) error {
	if err := s.UpdateStageLog(ctx, l, expected); err != nil {
		return err
	}
	s.tender = t
	return nil
}

func (s *memStore) UpdateTenderProgress(ctx context.Context, t *models.Tender) error {
	s.tender = t
	return nil
}

func (s *memStore) UpdateTenderStatus(ctx context.Context, t *models.Tender) error {
	s.tender = t
	return nil
}

func (s *memStore) BondWithdrawalRequested(ctx context.Context, t *models.Tender) error {
	s.bondWithdrawals++
	return nil
}

func (s *memStore) TenderWon(ctx context.Context, t *models.Tender) error {
	s.wonCalls++
	return nil
}

func newMachine(t *models.Tender) (*stages.Machine, *memStore) {
	store := newMemStore(t)
	return stages.NewMachine(store, stages.Default(), store), store
}

func TestInitializeCreatesAllStages(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)

	require.NoError(t, m.Initialize(context.Background(), tender))

	require.Len(t, store.logs, stages.Default().Total())
	require.Equal(t, "discovery", tender.CurrentStage)
	require.Equal(t, 0.0, tender.CompletionPercentage)
}

func TestInitializeDirectSaleSkipsBondStages(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew, IsDirectSale: true}
	m, store := newMachine(tender)

	require.NoError(t, m.Initialize(context.Background(), tender))

	for _, key := range []string{"documents_purchase", "bond_preparation", "bid_bond_withdrawal"} {
		require.Equal(t, models.StageSkipped, store.logs[key].Status, key)
	}
	require.Equal(t, models.StageNotStarted, store.logs["discovery"].Status)
	// 3 из 19 пропущены сразу
	require.InDelta(t, 15.79, tender.CompletionPercentage, 0.001)
}

func TestInitializeIsIdempotent(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()

	require.NoError(t, m.Initialize(ctx, tender))

	// двигаем первый этап и инициализируем повторно
	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))
	require.NoError(t, m.Complete(ctx, tender, log, 7, ""))

	require.NoError(t, m.Initialize(ctx, tender))

	require.Equal(t, models.StageCompleted, store.logs["discovery"].Status)
	require.Equal(t, "initial_review", tender.CurrentStage)
}

func TestStartRequiresNotStarted(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))

	err := m.Start(ctx, log)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	err := m.Complete(ctx, tender, log, 7, "")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCompleteAdvancesCurrentStage(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))
	require.NoError(t, m.Complete(ctx, tender, log, 7, "done"))

	require.Equal(t, "initial_review", tender.CurrentStage)
	require.Equal(t, models.StageCompleted, store.logs["discovery"].Status)
	require.NotNil(t, store.logs["discovery"].CompletedAt)
	require.Equal(t, 7, *store.logs["discovery"].CompletedBy)
	require.InDelta(t, 5.26, tender.CompletionPercentage, 0.001)
}

func TestSkipMandatoryStageFails(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	err := m.Skip(ctx, tender, log, "not needed")
	require.ErrorIs(t, err, models.ErrMandatoryStage)
	require.Equal(t, models.StageNotStarted, store.logs["discovery"].Status)
}

func TestSkipAnyMandatoryStageFails(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	// ни один обязательный этап справочника нельзя пропустить
	for _, d := range stages.Default().Defs() {
		if !d.Mandatory {
			continue
		}
		log, _ := store.GetStageLog(ctx, 1, d.Key)
		err := m.Skip(ctx, tender, log, "")
		require.ErrorIs(t, err, models.ErrMandatoryStage, d.Key)
	}
}

func TestSkipOptionalStageCountsTowardProgress(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "site_visit")
	require.NoError(t, m.Skip(ctx, tender, log, "remote tender"))

	require.Equal(t, models.StageSkipped, store.logs["site_visit"].Status)
	require.Equal(t, "remote tender", store.logs["site_visit"].Notes)
	require.InDelta(t, 5.26, tender.CompletionPercentage, 0.001)
}

func TestFailKeepsCurrentStage(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))
	require.NoError(t, m.Fail(ctx, log, "missing docs"))

	require.Equal(t, models.StageFailed, store.logs["discovery"].Status)
	// проваленный этап не засчитывается в процент
	require.Equal(t, 0.0, store.tender.CompletionPercentage)
}

func TestFailOnStaleSnapshotRejected(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))

	// два участника читают этап одновременно
	snapA, _ := store.GetStageLog(ctx, 1, "discovery")
	snapB, _ := store.GetStageLog(ctx, 1, "discovery")

	require.NoError(t, m.Complete(ctx, tender, snapA, 7, ""))

	// провал по устаревшему снимку не затирает завершение
	err := m.Fail(ctx, snapB, "too late")
	require.ErrorIs(t, err, models.ErrStaleTender)
	require.Equal(t, models.StageCompleted, store.logs["discovery"].Status)
}

func TestStartOnStaleSnapshotRejected(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	snapA, _ := store.GetStageLog(ctx, 1, "discovery")
	snapB, _ := store.GetStageLog(ctx, 1, "discovery")

	require.NoError(t, m.Start(ctx, snapA))

	err := m.Start(ctx, snapB)
	require.ErrorIs(t, err, models.ErrStaleTender)
	require.Equal(t, models.StageInProgress, store.logs["discovery"].Status)
}

func TestProgressSummary(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, store := newMachine(tender)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, tender))

	log, _ := store.GetStageLog(ctx, 1, "discovery")
	require.NoError(t, m.Start(ctx, log))
	require.NoError(t, m.Complete(ctx, tender, log, 1, ""))

	visit, _ := store.GetStageLog(ctx, 1, "site_visit")
	require.NoError(t, m.Skip(ctx, tender, visit, ""))

	p, err := m.Progress(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, stages.Default().Total(), p.Total)
	require.Equal(t, 1, p.Completed)
	require.Equal(t, 1, p.Skipped)
	require.Equal(t, stages.Default().Total()-2, p.Pending)
	require.InDelta(t, 10.53, p.Percentage, 0.001)
}

func TestAdvanceStatusFollowsEdges(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusNew}
	m, _ := newMachine(tender)
	ctx := context.Background()

	require.NoError(t, m.AdvanceStatus(ctx, tender, models.StatusStudying))
	require.Equal(t, models.StatusStudying, tender.Status)

	// перескок через статусы запрещен
	err := m.AdvanceStatus(ctx, tender, models.StatusSubmitted)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Equal(t, models.StatusStudying, tender.Status)
}

func TestAdvanceStatusFromTerminalFails(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusWon}
	m, _ := newMachine(tender)

	err := m.AdvanceStatus(context.Background(), tender, models.StatusCancelled)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRecordAwardResultWon(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusOpening}
	m, store := newMachine(tender)

	require.NoError(t, m.RecordAwardResult(context.Background(), tender, true))

	require.Equal(t, models.StatusWon, tender.Status)
	require.Equal(t, 1, store.bondWithdrawals)
	require.Equal(t, 1, store.wonCalls)
}

func TestRecordAwardResultLostDirectSale(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusSubmitted, IsDirectSale: true}
	m, store := newMachine(tender)

	require.NoError(t, m.RecordAwardResult(context.Background(), tender, false))

	require.Equal(t, models.StatusLost, tender.Status)
	// прямая продажа — обеспечения не было, возврат не запрашивается
	require.Equal(t, 0, store.bondWithdrawals)
	require.Equal(t, 0, store.wonCalls)
}

func TestRecordAwardResultWrongStatus(t *testing.T) {
	tender := &models.Tender{ID: 1, Status: models.StatusStudying}
	m, _ := newMachine(tender)

	err := m.RecordAwardResult(context.Background(), tender, true)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}
