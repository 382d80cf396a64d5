package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tendertrack/models"
)

// TenderBond (Обеспечение заявки)

func (s *Storage) CreateBond(ctx context.Context, b *models.TenderBond) error {
	query := `
        INSERT INTO tender_bond (tender_id, amount, status, expiry_date)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return s.q.QueryRowContext(ctx, query, b.TenderID, b.Amount, b.Status, b.ExpiryDate).
		Scan(&b.ID, &b.CreatedAt)
}

func (s *Storage) ActiveBonds(ctx context.Context, tenderID int) ([]models.TenderBond, error) {
	bonds := []models.TenderBond{}
	query := `SELECT * FROM tender_bond WHERE tender_id=$1 AND status='active' ORDER BY expiry_date`
	err := s.q.SelectContext(ctx, &bonds, query, tenderID)
	return bonds, err
}

// RequestBondWithdrawal переводит активные гарантии тендера в withdrawn
func (s *Storage) RequestBondWithdrawal(ctx context.Context, tenderID int) error {
	query := `UPDATE tender_bond SET status='withdrawn' WHERE tender_id=$1 AND status='active'`
	_, err := s.q.ExecContext(ctx, query, tenderID)
	return err
}

// TenderAlert (Напоминания)

// InsertAlert сохраняет напоминание; дубликат по (tender_id, alert_type, due_date)
// молча пропускается и возвращает false
func (s *Storage) InsertAlert(ctx context.Context, a *models.TenderAlert) (bool, error) {
	query := `
        INSERT INTO tender_alert
            (tender_id, alert_type, title, alert_date, due_date, priority, status, reference_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (tender_id, alert_type, due_date) DO NOTHING
        RETURNING id, created_at`
	err := s.q.QueryRowContext(ctx, query,
		a.TenderID, a.AlertType, a.Title, a.AlertDate, a.DueDate, a.Priority, a.Status, a.ReferenceCode).
		Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Storage) PendingAlerts(ctx context.Context, now time.Time) ([]models.TenderAlert, error) {
	alerts := []models.TenderAlert{}
	query := `SELECT * FROM tender_alert WHERE status='pending' AND alert_date <= $1 ORDER BY due_date`
	err := s.q.SelectContext(ctx, &alerts, query, now)
	return alerts, err
}

func (s *Storage) AlertsForTender(ctx context.Context, tenderID int) ([]models.TenderAlert, error) {
	alerts := []models.TenderAlert{}
	query := `SELECT * FROM tender_alert WHERE tender_id=$1 ORDER BY due_date`
	err := s.q.SelectContext(ctx, &alerts, query, tenderID)
	return alerts, err
}

func (s *Storage) MarkAlertSent(ctx context.Context, id int) error {
	query := `UPDATE tender_alert SET status='sent' WHERE id=$1 AND status='pending'`
	return s.updateAlertStatus(ctx, query, id)
}

func (s *Storage) MarkAlertRead(ctx context.Context, id int) error {
	query := `UPDATE tender_alert SET status='read' WHERE id=$1 AND status IN ('pending', 'sent')`
	return s.updateAlertStatus(ctx, query, id)
}

func (s *Storage) DismissAlert(ctx context.Context, id int) error {
	query := `UPDATE tender_alert SET status='dismissed' WHERE id=$1 AND status <> 'dismissed'`
	return s.updateAlertStatus(ctx, query, id)
}

// updateAlertStatus: 0 обновленных строк — напоминание не в ожидаемом статусе
func (s *Storage) updateAlertStatus(ctx context.Context, query string, id int) error {
	res, err := s.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alert %d not in expected status: %w", id, models.ErrInvalidTransition)
	}
	return nil
}
