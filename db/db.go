package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"tendertrack/models"
)

// dbtx покрывает *sqlx.DB и *sqlx.Tx, чтобы методы работали и в транзакции
type dbtx interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Storage struct {
	db *sqlx.DB
	q  dbtx
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, q: db}
}

// inTx выполняет fn в одной транзакции
func (s *Storage) inTx(ctx context.Context, fn func(*Storage) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&Storage{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Employee (Пользователь)

func (s *Storage) CreateEmployee(ctx context.Context, e *models.Employee) error {
	query := `
        INSERT INTO employee (username, first_name, last_name, is_active, is_super_admin, manager_id, branch_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`
	return s.q.QueryRowContext(ctx, query,
		e.Username, e.FirstName, e.LastName, e.IsActive, e.IsSuperAdmin, e.ManagerID, e.BranchID).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *Storage) GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	e := &models.Employee{}
	query := `SELECT * FROM employee WHERE username=$1`
	err := s.q.GetContext(ctx, e, query, username)
	return e, err
}

func (s *Storage) EmployeeByID(ctx context.Context, id int) (*models.Employee, error) {
	e := &models.Employee{}
	query := `SELECT * FROM employee WHERE id=$1`
	err := s.q.GetContext(ctx, e, query, id)
	return e, err
}

func (s *Storage) UsersByRole(ctx context.Context, roleID int) ([]models.Employee, error) {
	query := `
        SELECT e.* FROM employee e
        JOIN employee_role er ON er.employee_id = e.id
        WHERE er.role_id = $1 AND e.is_active
        ORDER BY e.id`
	out := []models.Employee{}
	err := s.q.SelectContext(ctx, &out, query, roleID)
	return out, err
}

func (s *Storage) TeamMembers(ctx context.Context, teamID int) ([]models.Employee, error) {
	query := `
        SELECT e.* FROM employee e
        JOIN team_member tm ON tm.employee_id = e.id
        WHERE tm.team_id = $1 AND e.is_active
        ORDER BY e.id`
	out := []models.Employee{}
	err := s.q.SelectContext(ctx, &out, query, teamID)
	return out, err
}

func (s *Storage) BranchManager(ctx context.Context, branchID int) (*models.Employee, error) {
	e := &models.Employee{}
	query := `
        SELECT e.* FROM employee e
        JOIN branch b ON b.manager_id = e.id
        WHERE b.id = $1`
	err := s.q.GetContext(ctx, e, query, branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Storage) RolesForEmployee(ctx context.Context, employeeID int) ([]int, error) {
	ids := []int{}
	query := `SELECT role_id FROM employee_role WHERE employee_id=$1 ORDER BY role_id`
	err := s.q.SelectContext(ctx, &ids, query, employeeID)
	return ids, err
}

// LoadRoles читает справочник ролей и их прав для authz.Catalog
func (s *Storage) LoadRoles(ctx context.Context) ([]models.Role, map[int][]string, error) {
	roles := []models.Role{}
	if err := s.q.SelectContext(ctx, &roles, `SELECT id, name, level FROM role ORDER BY id`); err != nil {
		return nil, nil, err
	}
	rows := []struct {
		RoleID int    `db:"role_id"`
		Code   string `db:"permission_code"`
	}{}
	if err := s.q.SelectContext(ctx, &rows, `SELECT role_id, permission_code FROM role_permission`); err != nil {
		return nil, nil, err
	}
	perms := make(map[int][]string, len(roles))
	for _, r := range rows {
		perms[r.RoleID] = append(perms[r.RoleID], r.Code)
	}
	return roles, perms, nil
}

// UpsertPermissions синхронизирует справочник прав с каталогом этапов
func (s *Storage) UpsertPermissions(ctx context.Context, perms []models.Permission) error {
	return s.inTx(ctx, func(tx *Storage) error {
		query := `
            INSERT INTO permission (code, module, resource, action)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (code) DO NOTHING`
		for _, p := range perms {
			if _, err := tx.q.ExecContext(ctx, query, p.Code, p.Module, p.Resource, p.Action); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tender (Тендер)

func (s *Storage) CreateTender(ctx context.Context, t *models.Tender) error {
	query := `
        INSERT INTO tender
            (name, reference_number, tender_type, method, owner, status, current_stage,
             publication_date, documents_sale_start, documents_sale_end, questions_deadline,
             site_visit_date, pre_bid_meeting_date, submission_deadline, opening_date,
             estimated_value, submitted_price, documents_price, validity_period,
             bid_bond_validity_days, is_direct_sale, branch_id, created_by, version)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
             $16, $17, $18, $19, $20, $21, $22, $23, 1)
        RETURNING id, created_at, updated_at`
	err := s.q.QueryRowContext(ctx, query,
		t.Name, t.ReferenceNumber, t.TenderType, t.Method, t.Owner, t.Status, t.CurrentStage,
		t.PublicationDate, t.DocumentsSaleStart, t.DocumentsSaleEnd, t.QuestionsDeadline,
		t.SiteVisitDate, t.PreBidMeetingDate, t.SubmissionDeadline, t.OpeningDate,
		t.EstimatedValue, t.SubmittedPrice, t.DocumentsPrice, t.ValidityPeriod,
		t.BidBondValidityDays, t.IsDirectSale, t.BranchID, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}
	t.Version = 1
	// Сохраняем первую версию
	return s.SaveTenderVersion(ctx, t)
}

func (s *Storage) GetTender(ctx context.Context, id int) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT * FROM tender WHERE id=$1`
	err := s.q.GetContext(ctx, t, query, id)
	return t, err
}

// UpdateTender пишет редактируемые поля с проверкой версии; проигравший
// гонку получает ErrStaleTender и должен перечитать тендер
func (s *Storage) UpdateTender(ctx context.Context, t *models.Tender) error {
	query := `
        UPDATE tender SET
            name=$1, reference_number=$2, tender_type=$3, method=$4, owner=$5,
            publication_date=$6, documents_sale_start=$7, documents_sale_end=$8,
            questions_deadline=$9, site_visit_date=$10, pre_bid_meeting_date=$11,
            submission_deadline=$12, opening_date=$13, estimated_value=$14,
            submitted_price=$15, documents_price=$16, validity_period=$17,
            bid_bond_validity_days=$18, is_direct_sale=$19, branch_id=$20,
            version=version+1, updated_at=NOW()
        WHERE id=$21 AND version=$22`
	res, err := s.q.ExecContext(ctx, query,
		t.Name, t.ReferenceNumber, t.TenderType, t.Method, t.Owner,
		t.PublicationDate, t.DocumentsSaleStart, t.DocumentsSaleEnd,
		t.QuestionsDeadline, t.SiteVisitDate, t.PreBidMeetingDate,
		t.SubmissionDeadline, t.OpeningDate, t.EstimatedValue,
		t.SubmittedPrice, t.DocumentsPrice, t.ValidityPeriod,
		t.BidBondValidityDays, t.IsDirectSale, t.BranchID,
		t.ID, t.Version)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	t.Version++
	// Сохраняем новую версию
	return s.SaveTenderVersion(ctx, t)
}

func (s *Storage) ListTenders(ctx context.Context, statuses []string, limit, offset int) ([]models.Tender, error) {
	baseQuery := `SELECT * FROM tender`
	var args []interface{}
	filter := ""

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, v := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, v)
		}
		filter = fmt.Sprintf(" WHERE status IN (%s)", strings.Join(placeholders, ", "))
	}

	query := baseQuery + filter + " ORDER BY created_at DESC"
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	tenders := []models.Tender{}
	err := s.q.SelectContext(ctx, &tenders, query, args...)
	return tenders, err
}

// OpenTenders — нетерминальные тендеры для фоновых проходов
func (s *Storage) OpenTenders(ctx context.Context) ([]models.Tender, error) {
	query := `SELECT * FROM tender WHERE status NOT IN ('won', 'lost', 'cancelled') ORDER BY id`
	tenders := []models.Tender{}
	err := s.q.SelectContext(ctx, &tenders, query)
	return tenders, err
}

func (s *Storage) SaveTenderVersion(ctx context.Context, t *models.Tender) error {
	query := `
        INSERT INTO tender_versions
            (tender_id, name, reference_number, tender_type, method, owner, status,
             current_stage, estimated_value, submitted_price, version, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`
	_, err := s.q.ExecContext(ctx, query,
		t.ID, t.Name, t.ReferenceNumber, t.TenderType, t.Method, t.Owner, t.Status,
		t.CurrentStage, t.EstimatedValue, t.SubmittedPrice, t.Version)
	return err
}

func (s *Storage) GetTenderVersion(ctx context.Context, tenderID, version int) (*models.Tender, error) {
	var t models.Tender
	query := `
        SELECT tender_id AS id, name, reference_number, tender_type, method, owner,
               status, current_stage, estimated_value, submitted_price, version, created_at
        FROM tender_versions
        WHERE tender_id = $1 AND version = $2`
	err := s.q.GetContext(ctx, &t, query, tenderID, version)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTenderProgress пишет current_stage и процент готовности с проверкой версии
func (s *Storage) UpdateTenderProgress(ctx context.Context, t *models.Tender) error {
	query := `
        UPDATE tender
        SET current_stage=$1, completion_percentage=$2, version=version+1, updated_at=NOW()
        WHERE id=$3 AND version=$4`
	res, err := s.q.ExecContext(ctx, query, t.CurrentStage, t.CompletionPercentage, t.ID, t.Version)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	t.Version++
	return nil
}

// UpdateTenderStatus пишет грубый статус с проверкой версии
func (s *Storage) UpdateTenderStatus(ctx context.Context, t *models.Tender) error {
	query := `
        UPDATE tender
        SET status=$1, version=version+1, updated_at=NOW()
        WHERE id=$2 AND version=$3`
	res, err := s.q.ExecContext(ctx, query, t.Status, t.ID, t.Version)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	t.Version++
	return s.SaveTenderVersion(ctx, t)
}

// StageLog (Журнал этапов)

func (s *Storage) GetStageLogs(ctx context.Context, tenderID int) ([]models.StageLog, error) {
	logs := []models.StageLog{}
	query := `SELECT * FROM stage_log WHERE tender_id=$1 ORDER BY stage_order`
	err := s.q.SelectContext(ctx, &logs, query, tenderID)
	return logs, err
}

func (s *Storage) GetStageLog(ctx context.Context, tenderID int, stageKey string) (*models.StageLog, error) {
	l := &models.StageLog{}
	query := `SELECT * FROM stage_log WHERE tender_id=$1 AND stage_key=$2`
	err := s.q.GetContext(ctx, l, query, tenderID, stageKey)
	return l, err
}

// UpdateStageLog пишет журнал только из ожидаемого прежнего статуса:
// запись по устаревшему снимку не затирает уже выполненный переход
func (s *Storage) UpdateStageLog(ctx context.Context, l *models.StageLog, expected models.StageStatus) error {
	query := `
        UPDATE stage_log
        SET status=$1, started_at=$2, completed_at=$3, completed_by=$4, notes=$5
        WHERE tender_id=$6 AND stage_key=$7 AND status=$8`
	res, err := s.q.ExecContext(ctx, query,
		l.Status, l.StartedAt, l.CompletedAt, l.CompletedBy, l.Notes, l.TenderID, l.StageKey, expected)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// InitStages создает журнал этапов по справочнику; повтор не дублирует строки
func (s *Storage) InitStages(ctx context.Context, t *models.Tender, logs []models.StageLog) error {
	return s.inTx(ctx, func(tx *Storage) error {
		query := `
            INSERT INTO stage_log (tender_id, stage_key, stage_order, is_mandatory, status)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (tender_id, stage_key) DO NOTHING`
		for _, l := range logs {
			if _, err := tx.q.ExecContext(ctx, query,
				l.TenderID, l.StageKey, l.StageOrder, l.IsMandatory, l.Status); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyTransition пишет журнал этапа и производные поля тендера одной
// транзакцией: current_stage не должен указывать на завершенный этап
// даже при падении между записями
func (s *Storage) ApplyTransition(ctx context.Context, t *models.Tender, l *models.StageLog, expected models.StageStatus) error {
	return s.inTx(ctx, func(tx *Storage) error {
		if err := tx.UpdateStageLog(ctx, l, expected); err != nil {
			return err
		}
		return tx.UpdateTenderProgress(ctx, t)
	})
}

// requireRow переводит "0 строк обновлено" в конфликт версий
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrStaleTender
	}
	return nil
}
