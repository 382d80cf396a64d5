package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tendertrack/models"
)

// Store — персистентность напоминаний; реализуется db.Storage
type Store interface {
	OpenTenders(ctx context.Context) ([]models.Tender, error)
	ActiveBonds(ctx context.Context, tenderID int) ([]models.TenderBond, error)
	// InsertAlert возвращает false, если такое напоминание уже существует
	InsertAlert(ctx context.Context, a *models.TenderAlert) (bool, error)
	PendingAlerts(ctx context.Context, now time.Time) ([]models.TenderAlert, error)
	MarkAlertSent(ctx context.Context, id int) error
}

// Notifier доставляет напоминание; транспорт — внешний коллаборатор
type Notifier interface {
	Send(ctx context.Context, a models.TenderAlert) error
}

// Scheduler выводит напоминания из данных машины этапов и рассылает их
type Scheduler struct {
	store    Store
	notifier Notifier
	leadDays int
	now      func() time.Time
}

func NewScheduler(store Store, notifier Notifier, leadDays int) *Scheduler {
	if leadDays <= 0 {
		leadDays = 3
	}
	return &Scheduler{store: store, notifier: notifier, leadDays: leadDays, now: time.Now}
}

// DeriveAlerts вычисляет кандидатов, ничего не отправляя. Чистая функция.
func (s *Scheduler) DeriveAlerts(t *models.Tender, bonds []models.TenderBond, now time.Time) []models.TenderAlert {
	var out []models.TenderAlert
	lead := time.Duration(s.leadDays) * 24 * time.Hour

	if t.SubmissionDeadline != nil {
		deadline := *t.SubmissionDeadline
		if deadline.After(now) && deadline.Sub(now) <= lead {
			out = append(out, models.TenderAlert{
				TenderID:      t.ID,
				AlertType:     models.AlertDeadlineApproaching,
				Title:         fmt.Sprintf("Submission deadline for %s is approaching", t.ReferenceNumber),
				AlertDate:     now,
				DueDate:       deadline,
				Priority:      urgency(deadline.Sub(now)),
				Status:        models.AlertPending,
				ReferenceCode: uuid.NewString(),
			})
		}
	}
	for _, b := range bonds {
		if b.Status != models.BondActive {
			continue
		}
		if b.ExpiryDate.After(now) && b.ExpiryDate.Sub(now) <= lead {
			out = append(out, models.TenderAlert{
				TenderID:      t.ID,
				AlertType:     models.AlertBondExpiry,
				Title:         fmt.Sprintf("Bid bond for %s expires soon", t.ReferenceNumber),
				AlertDate:     now,
				DueDate:       b.ExpiryDate,
				Priority:      urgency(b.ExpiryDate.Sub(now)),
				Status:        models.AlertPending,
				ReferenceCode: uuid.NewString(),
			})
		}
	}
	return out
}

// Sweep пробегает открытые тендеры и сохраняет новые напоминания.
// Повторный прогон не создает дублей: ключ (tender_id, alert_type, due_date).
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	tenders, err := s.store.OpenTenders(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	created := 0
	for i := range tenders {
		t := &tenders[i]
		bonds, err := s.store.ActiveBonds(ctx, t.ID)
		if err != nil {
			return created, err
		}
		for _, a := range s.DeriveAlerts(t, bonds, now) {
			alert := a
			inserted, err := s.store.InsertAlert(ctx, &alert)
			if err != nil {
				return created, err
			}
			if inserted {
				created++
			}
		}
	}
	return created, nil
}

// Dispatch переводит напоминание pending -> sent через Notifier
func (s *Scheduler) Dispatch(ctx context.Context, a models.TenderAlert) error {
	if a.Status != models.AlertPending {
		return fmt.Errorf("alert %d is %s: %w", a.ID, a.Status, models.ErrInvalidTransition)
	}
	if err := s.notifier.Send(ctx, a); err != nil {
		return err
	}
	return s.store.MarkAlertSent(ctx, a.ID)
}

// DispatchDue отправляет все назревшие напоминания; сбой доставки одного
// не останавливает остальные
func (s *Scheduler) DispatchDue(ctx context.Context) (int, error) {
	pending, err := s.store.PendingAlerts(ctx, s.now())
	if err != nil {
		return 0, err
	}
	sent := 0
	var errs []error
	for _, a := range pending {
		if err := s.Dispatch(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("alert %d: %w", a.ID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

func urgency(left time.Duration) string {
	if left <= 24*time.Hour {
		return models.PriorityUrgent
	}
	return models.PriorityHigh
}
