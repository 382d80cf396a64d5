package models

import "time"

// Тип шага маршрута согласования
type StepType string

const (
	StepAction       StepType = "action"
	StepApproval     StepType = "approval"
	StepReview       StepType = "review"
	StepNotification StepType = "notification"
)

// Способ назначения исполнителя шага
type AssignmentType string

const (
	AssignRole    AssignmentType = "role"
	AssignTeam    AssignmentType = "team"
	AssignUser    AssignmentType = "user"
	AssignDynamic AssignmentType = "dynamic"
)

// Динамические назначения, разрешаемые из контекста тендера
const (
	DynamicDirectManager = "direct_manager"
	DynamicBranchManager = "branch_manager"
	DynamicCreator       = "creator"
)

// Версионируемое определение маршрута (отдельный слой от журнала этапов)
type WorkflowDefinition struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Version   int       `db:"version" json:"version"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Шаг маршрута: ровно одна цель назначения, согласованная с AssignmentType
type WorkflowStep struct {
	ID                 int            `db:"id" json:"id"`
	DefinitionID       int            `db:"definition_id" json:"definitionId"`
	StepOrder          int            `db:"step_order" json:"stepOrder"`
	Name               string         `db:"name" json:"name"`
	StepType           StepType       `db:"step_type" json:"stepType"`
	AssignmentType     AssignmentType `db:"assignment_type" json:"assignmentType"`
	AssignedRoleID     *int           `db:"assigned_role_id" json:"assignedRoleId,omitempty"`
	AssignedTeamID     *int           `db:"assigned_team_id" json:"assignedTeamId,omitempty"`
	AssignedUserID     *int           `db:"assigned_user_id" json:"assignedUserId,omitempty"`
	DynamicAssignment  string         `db:"dynamic_assignment" json:"dynamicAssignment,omitempty"`
	RequiredPermission string         `db:"required_permission" json:"requiredPermission,omitempty"`
	TimeLimitHours     int            `db:"time_limit_hours" json:"timeLimitHours"`
	EscalationHours    int            `db:"escalation_hours" json:"escalationHours"`
	EscalateToRoleID   *int           `db:"escalate_to_role_id" json:"escalateToRoleId,omitempty"`
	AllowDelegation    bool           `db:"allow_delegation" json:"allowDelegation"`
	IsFinal            bool           `db:"is_final" json:"isFinal"`
}

// Статусы экземпляра маршрута и задач шагов
const (
	InstanceActive    = "active"
	InstanceCompleted = "completed"

	TaskActive   = "active"
	TaskDone     = "done"
	TaskRejected = "rejected"
)

// Запущенный экземпляр маршрута по конкретному тендеру
type WorkflowInstance struct {
	ID           int        `db:"id" json:"id"`
	DefinitionID int        `db:"definition_id" json:"definitionId"`
	TenderID     int        `db:"tender_id" json:"tenderId"`
	RequesterID  int        `db:"requester_id" json:"requesterId"`
	Status       string     `db:"status" json:"status"`
	CurrentOrder int        `db:"current_order" json:"currentOrder"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// Задача по шагу: назначение копируется из шага при активации
type StepTask struct {
	ID             int        `db:"id" json:"id"`
	InstanceID     int        `db:"instance_id" json:"instanceId"`
	StepID         int        `db:"step_id" json:"stepId"`
	Status         string     `db:"status" json:"status"`
	AssignedRoleID *int       `db:"assigned_role_id" json:"assignedRoleId,omitempty"`
	AssignedTeamID *int       `db:"assigned_team_id" json:"assignedTeamId,omitempty"`
	AssignedUserID *int       `db:"assigned_user_id" json:"assignedUserId,omitempty"`
	StartedAt      time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt    *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CompletedBy    *int       `db:"completed_by" json:"completedBy,omitempty"`
	Escalated      bool       `db:"escalated" json:"escalated"`
	EscalatedAt    *time.Time `db:"escalated_at" json:"escalatedAt,omitempty"`
}

// Результат захвата просроченной задачи при эскалации
type OverdueTask struct {
	TaskID           int `db:"task_id" json:"taskId"`
	InstanceID       int `db:"instance_id" json:"instanceId"`
	StepID           int `db:"step_id" json:"stepId"`
	TenderID         int `db:"tender_id" json:"tenderId"`
	EscalateToRoleID int `db:"escalate_to_role_id" json:"escalateToRoleId"`
}
