package workflow

import (
	"context"
	"fmt"
	"time"

	"tendertrack/models"
)

// Store — персистентность маршрутов; реализуется db.Storage
type Store interface {
	GetStep(ctx context.Context, id int) (*models.WorkflowStep, error)
	GetStepByOrder(ctx context.Context, definitionID, order int) (*models.WorkflowStep, error)
	GetInstance(ctx context.Context, id int) (*models.WorkflowInstance, error)
	GetActiveTask(ctx context.Context, instanceID int) (*models.StepTask, error)
	GetTask(ctx context.Context, id int) (*models.StepTask, error)
	CreateInstance(ctx context.Context, inst *models.WorkflowInstance, first *models.StepTask) error
	// ApplyAdvance закрывает задачу, обновляет экземпляр и активирует
	// следующую задачу одной транзакцией
	ApplyAdvance(ctx context.Context, inst *models.WorkflowInstance, done *models.StepTask, next *models.StepTask) error
	// ClaimOverdueTasks атомарно помечает просроченные задачи эскалированными
	// и переназначает их; повторный вызов ничего не захватывает
	ClaimOverdueTasks(ctx context.Context, now time.Time) ([]models.OverdueTask, error)
	DelegateTask(ctx context.Context, taskID, toUserID int) error
}

// Directory — оргструктура для разрешения исполнителей
type Directory interface {
	EmployeeByID(ctx context.Context, id int) (*models.Employee, error)
	UsersByRole(ctx context.Context, roleID int) ([]models.Employee, error)
	TeamMembers(ctx context.Context, teamID int) ([]models.Employee, error)
	BranchManager(ctx context.Context, branchID int) (*models.Employee, error)
}

// Events получает уведомления об эскалациях
type Events interface {
	Escalated(ctx context.Context, task models.OverdueTask)
}

type nopEvents struct{}

func (nopEvents) Escalated(context.Context, models.OverdueTask) {}

// Guard проверяет у пользователя право, требуемое шагом маршрута
type Guard interface {
	Allowed(ctx context.Context, userID int, permission string) (bool, error)
}

type allowAllGuard struct{}

func (allowAllGuard) Allowed(context.Context, int, string) (bool, error) { return true, nil }

// Context тендера для динамических назначений
type Context struct {
	Tender    *models.Tender
	Requester *models.Employee
}

// Engine ведет маршруты согласования поверх журнала этапов, не трогая его
type Engine struct {
	store  Store
	dir    Directory
	events Events
	guard  Guard
	now    func() time.Time
}

func NewEngine(store Store, dir Directory, events Events, guard Guard) *Engine {
	if events == nil {
		events = nopEvents{}
	}
	if guard == nil {
		guard = allowAllGuard{}
	}
	return &Engine{store: store, dir: dir, events: events, guard: guard, now: time.Now}
}

// ResolveAssignees разворачивает назначение шага в конкретных исполнителей
func (e *Engine) ResolveAssignees(ctx context.Context, step *models.WorkflowStep, wctx Context) ([]models.Employee, error) {
	switch step.AssignmentType {
	case models.AssignRole:
		if step.AssignedRoleID == nil {
			return nil, fmt.Errorf("step %d has no role: %w", step.ID, models.ErrUnresolvedAssignment)
		}
		return e.dir.UsersByRole(ctx, *step.AssignedRoleID)

	case models.AssignTeam:
		if step.AssignedTeamID == nil {
			return nil, fmt.Errorf("step %d has no team: %w", step.ID, models.ErrUnresolvedAssignment)
		}
		return e.dir.TeamMembers(ctx, *step.AssignedTeamID)

	case models.AssignUser:
		if step.AssignedUserID == nil {
			return nil, fmt.Errorf("step %d has no user: %w", step.ID, models.ErrUnresolvedAssignment)
		}
		u, err := e.dir.EmployeeByID(ctx, *step.AssignedUserID)
		if err != nil {
			return nil, err
		}
		return []models.Employee{*u}, nil

	case models.AssignDynamic:
		return e.resolveDynamic(ctx, step, wctx)
	}
	return nil, fmt.Errorf("unknown assignment type %q: %w", step.AssignmentType, models.ErrUnresolvedAssignment)
}

func (e *Engine) resolveDynamic(ctx context.Context, step *models.WorkflowStep, wctx Context) ([]models.Employee, error) {
	switch step.DynamicAssignment {
	case models.DynamicCreator:
		if wctx.Tender == nil || wctx.Tender.CreatedBy == 0 {
			return nil, fmt.Errorf("tender has no creator: %w", models.ErrUnresolvedAssignment)
		}
		u, err := e.dir.EmployeeByID(ctx, wctx.Tender.CreatedBy)
		if err != nil {
			return nil, err
		}
		return []models.Employee{*u}, nil

	case models.DynamicBranchManager:
		if wctx.Tender == nil || wctx.Tender.BranchID == nil {
			return nil, fmt.Errorf("tender has no branch: %w", models.ErrUnresolvedAssignment)
		}
		mgr, err := e.dir.BranchManager(ctx, *wctx.Tender.BranchID)
		if err != nil {
			return nil, err
		}
		if mgr == nil {
			return nil, fmt.Errorf("branch %d has no manager: %w", *wctx.Tender.BranchID, models.ErrUnresolvedAssignment)
		}
		return []models.Employee{*mgr}, nil

	case models.DynamicDirectManager:
		if wctx.Requester == nil || wctx.Requester.ManagerID == nil {
			return nil, fmt.Errorf("requester has no manager: %w", models.ErrUnresolvedAssignment)
		}
		mgr, err := e.dir.EmployeeByID(ctx, *wctx.Requester.ManagerID)
		if err != nil {
			return nil, err
		}
		return []models.Employee{*mgr}, nil
	}
	return nil, fmt.Errorf("unknown dynamic assignment %q: %w", step.DynamicAssignment, models.ErrUnresolvedAssignment)
}

// Start запускает активное определение маршрута по тендеру с первой задачей
func (e *Engine) Start(ctx context.Context, definitionID int, t *models.Tender, requesterID int) (*models.WorkflowInstance, error) {
	first, err := e.store.GetStepByOrder(ctx, definitionID, 1)
	if err != nil {
		return nil, err
	}
	now := e.now()
	inst := &models.WorkflowInstance{
		DefinitionID: definitionID,
		TenderID:     t.ID,
		RequesterID:  requesterID,
		Status:       models.InstanceActive,
		CurrentOrder: first.StepOrder,
		CreatedAt:    now,
	}
	task := newTask(first, now)
	if err := e.store.CreateInstance(ctx, inst, task); err != nil {
		return nil, err
	}
	return inst, nil
}

// AdvanceStep закрывает текущую задачу; финальный шаг завершает экземпляр,
// иначе активируется задача следующего по порядку шага
func (e *Engine) AdvanceStep(ctx context.Context, instanceID, actorID int) (*models.WorkflowInstance, error) {
	inst, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status != models.InstanceActive {
		return nil, fmt.Errorf("workflow instance %d is %s: %w", inst.ID, inst.Status, models.ErrInvalidTransition)
	}
	task, err := e.store.GetActiveTask(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	ok, err := e.isAssignee(ctx, task, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d is not assigned to task %d: %w", actorID, task.ID, models.ErrPermissionDenied)
	}
	step, err := e.store.GetStep(ctx, task.StepID)
	if err != nil {
		return nil, err
	}
	if step.RequiredPermission != "" {
		allowed, err := e.guard.Allowed(ctx, actorID, step.RequiredPermission)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("user %d lacks permission %s: %w", actorID, step.RequiredPermission, models.ErrPermissionDenied)
		}
	}

	now := e.now()
	task.Status = models.TaskDone
	task.CompletedAt = &now
	task.CompletedBy = &actorID

	var next *models.StepTask
	if step.IsFinal {
		inst.Status = models.InstanceCompleted
		inst.CompletedAt = &now
	} else {
		nextStep, err := e.store.GetStepByOrder(ctx, inst.DefinitionID, step.StepOrder+1)
		if err != nil {
			return nil, err
		}
		inst.CurrentOrder = nextStep.StepOrder
		next = newTask(nextStep, now)
		next.InstanceID = inst.ID
	}
	if err := e.store.ApplyAdvance(ctx, inst, task, next); err != nil {
		return nil, err
	}
	return inst, nil
}

// Delegate передает активную задачу другому исполнителю без эскалации
func (e *Engine) Delegate(ctx context.Context, taskID, fromID, toID int) error {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != models.TaskActive {
		return fmt.Errorf("task %d is %s: %w", task.ID, task.Status, models.ErrInvalidTransition)
	}
	step, err := e.store.GetStep(ctx, task.StepID)
	if err != nil {
		return err
	}
	if !step.AllowDelegation {
		return fmt.Errorf("step %d: %w", step.ID, models.ErrDelegationNotAllowed)
	}
	ok, err := e.isAssignee(ctx, task, fromID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %d is not assigned to task %d: %w", fromID, task.ID, models.ErrPermissionDenied)
	}
	return e.store.DelegateTask(ctx, taskID, toID)
}

// isAssignee проверяет принадлежность пользователя текущему назначению задачи
func (e *Engine) isAssignee(ctx context.Context, task *models.StepTask, userID int) (bool, error) {
	if task.AssignedUserID != nil {
		return *task.AssignedUserID == userID, nil
	}
	if task.AssignedRoleID != nil {
		members, err := e.dir.UsersByRole(ctx, *task.AssignedRoleID)
		if err != nil {
			return false, err
		}
		return containsEmployee(members, userID), nil
	}
	if task.AssignedTeamID != nil {
		members, err := e.dir.TeamMembers(ctx, *task.AssignedTeamID)
		if err != nil {
			return false, err
		}
		return containsEmployee(members, userID), nil
	}
	return false, nil
}

// CheckEscalations — периодическая проверка просроченных задач.
// Захват и переназначение выполняются одним запросом, поэтому повторный
// запуск (в том числе параллельный) не эскалирует задачу дважды.
func (e *Engine) CheckEscalations(ctx context.Context, now time.Time) (int, error) {
	claimed, err := e.store.ClaimOverdueTasks(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, task := range claimed {
		e.events.Escalated(ctx, task)
	}
	return len(claimed), nil
}

func newTask(step *models.WorkflowStep, now time.Time) *models.StepTask {
	return &models.StepTask{
		StepID:         step.ID,
		Status:         models.TaskActive,
		AssignedRoleID: step.AssignedRoleID,
		AssignedTeamID: step.AssignedTeamID,
		AssignedUserID: step.AssignedUserID,
		StartedAt:      now,
	}
}

func containsEmployee(list []models.Employee, id int) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}
