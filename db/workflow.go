package db

import (
	"context"
	"time"

	"tendertrack/models"
)

// WorkflowDefinition / WorkflowStep (Маршруты согласования)

func (s *Storage) ActiveDefinition(ctx context.Context, name string) (*models.WorkflowDefinition, error) {
	d := &models.WorkflowDefinition{}
	query := `
        SELECT * FROM workflow_definition
        WHERE name=$1 AND is_active
        ORDER BY version DESC
        LIMIT 1`
	err := s.q.GetContext(ctx, d, query, name)
	return d, err
}

func (s *Storage) GetStep(ctx context.Context, id int) (*models.WorkflowStep, error) {
	st := &models.WorkflowStep{}
	query := `SELECT * FROM workflow_step WHERE id=$1`
	err := s.q.GetContext(ctx, st, query, id)
	return st, err
}

func (s *Storage) GetStepByOrder(ctx context.Context, definitionID, order int) (*models.WorkflowStep, error) {
	st := &models.WorkflowStep{}
	query := `SELECT * FROM workflow_step WHERE definition_id=$1 AND step_order=$2`
	err := s.q.GetContext(ctx, st, query, definitionID, order)
	return st, err
}

func (s *Storage) CreateStep(ctx context.Context, st *models.WorkflowStep) error {
	query := `
        INSERT INTO workflow_step
            (definition_id, step_order, name, step_type, assignment_type,
             assigned_role_id, assigned_team_id, assigned_user_id, dynamic_assignment,
             required_permission, time_limit_hours, escalation_hours, escalate_to_role_id,
             allow_delegation, is_final)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id`
	return s.q.QueryRowContext(ctx, query,
		st.DefinitionID, st.StepOrder, st.Name, st.StepType, st.AssignmentType,
		st.AssignedRoleID, st.AssignedTeamID, st.AssignedUserID, st.DynamicAssignment,
		st.RequiredPermission, st.TimeLimitHours, st.EscalationHours, st.EscalateToRoleID,
		st.AllowDelegation, st.IsFinal).
		Scan(&st.ID)
}

// WorkflowInstance / StepTask

func (s *Storage) GetInstance(ctx context.Context, id int) (*models.WorkflowInstance, error) {
	inst := &models.WorkflowInstance{}
	query := `SELECT * FROM workflow_instance WHERE id=$1`
	err := s.q.GetContext(ctx, inst, query, id)
	return inst, err
}

func (s *Storage) GetActiveTask(ctx context.Context, instanceID int) (*models.StepTask, error) {
	t := &models.StepTask{}
	query := `SELECT * FROM step_task WHERE instance_id=$1 AND status='active'`
	err := s.q.GetContext(ctx, t, query, instanceID)
	return t, err
}

func (s *Storage) GetTask(ctx context.Context, id int) (*models.StepTask, error) {
	t := &models.StepTask{}
	query := `SELECT * FROM step_task WHERE id=$1`
	err := s.q.GetContext(ctx, t, query, id)
	return t, err
}

func (s *Storage) TasksForTender(ctx context.Context, tenderID int) ([]models.StepTask, error) {
	tasks := []models.StepTask{}
	query := `
        SELECT st.* FROM step_task st
        JOIN workflow_instance wi ON wi.id = st.instance_id
        WHERE wi.tender_id = $1
        ORDER BY st.started_at`
	err := s.q.SelectContext(ctx, &tasks, query, tenderID)
	return tasks, err
}

// CreateInstance создает экземпляр маршрута вместе с первой задачей
func (s *Storage) CreateInstance(ctx context.Context, inst *models.WorkflowInstance, first *models.StepTask) error {
	return s.inTx(ctx, func(tx *Storage) error {
		query := `
            INSERT INTO workflow_instance (definition_id, tender_id, requester_id, status, current_order)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, created_at`
		err := tx.q.QueryRowContext(ctx, query,
			inst.DefinitionID, inst.TenderID, inst.RequesterID, inst.Status, inst.CurrentOrder).
			Scan(&inst.ID, &inst.CreatedAt)
		if err != nil {
			return err
		}
		first.InstanceID = inst.ID
		return tx.insertTask(ctx, first)
	})
}

func (s *Storage) insertTask(ctx context.Context, t *models.StepTask) error {
	query := `
        INSERT INTO step_task
            (instance_id, step_id, status, assigned_role_id, assigned_team_id,
             assigned_user_id, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`
	return s.q.QueryRowContext(ctx, query,
		t.InstanceID, t.StepID, t.Status, t.AssignedRoleID, t.AssignedTeamID,
		t.AssignedUserID, t.StartedAt).
		Scan(&t.ID)
}

// ApplyAdvance закрывает задачу, двигает экземпляр и активирует следующую
// задачу одной транзакцией
func (s *Storage) ApplyAdvance(ctx context.Context, inst *models.WorkflowInstance, done *models.StepTask, next *models.StepTask) error {
	return s.inTx(ctx, func(tx *Storage) error {
		taskQuery := `
            UPDATE step_task
            SET status=$1, completed_at=$2, completed_by=$3
            WHERE id=$4 AND status='active'`
		res, err := tx.q.ExecContext(ctx, taskQuery,
			done.Status, done.CompletedAt, done.CompletedBy, done.ID)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}

		instQuery := `
            UPDATE workflow_instance
            SET status=$1, current_order=$2, completed_at=$3
            WHERE id=$4`
		if _, err := tx.q.ExecContext(ctx, instQuery,
			inst.Status, inst.CurrentOrder, inst.CompletedAt, inst.ID); err != nil {
			return err
		}

		if next != nil {
			return tx.insertTask(ctx, next)
		}
		return nil
	})
}

// ClaimOverdueTasks помечает просроченные активные задачи эскалированными и
// переназначает их на роль эскалации одним запросом; уже захваченные
// задачи не возвращаются повторно
func (s *Storage) ClaimOverdueTasks(ctx context.Context, now time.Time) ([]models.OverdueTask, error) {
	query := `
        UPDATE step_task st
        SET escalated = true,
            escalated_at = $1,
            assigned_role_id = ws.escalate_to_role_id,
            assigned_team_id = NULL,
            assigned_user_id = NULL
        FROM workflow_step ws, workflow_instance wi
        WHERE ws.id = st.step_id
          AND wi.id = st.instance_id
          AND st.status = 'active'
          AND st.escalated = false
          AND ws.escalation_hours > 0
          AND ws.escalate_to_role_id IS NOT NULL
          AND st.started_at + make_interval(hours => ws.escalation_hours) <= $1
        RETURNING st.id AS task_id, st.instance_id, st.step_id, wi.tender_id, ws.escalate_to_role_id`
	claimed := []models.OverdueTask{}
	err := s.q.SelectContext(ctx, &claimed, query, now)
	return claimed, err
}

func (s *Storage) DelegateTask(ctx context.Context, taskID, toUserID int) error {
	query := `
        UPDATE step_task
        SET assigned_user_id=$1, assigned_role_id=NULL, assigned_team_id=NULL
        WHERE id=$2 AND status='active'`
	res, err := s.q.ExecContext(ctx, query, toUserID, taskID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
