package handlers

import (
	"context"

	"tendertrack/models"
)

type StorageInterface interface {
	CreateEmployee(ctx context.Context, e *models.Employee) error
	GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error)
	EmployeeByID(ctx context.Context, id int) (*models.Employee, error)
	RolesForEmployee(ctx context.Context, employeeID int) ([]int, error)

	CreateTender(ctx context.Context, t *models.Tender) error
	GetTender(ctx context.Context, id int) (*models.Tender, error)
	UpdateTender(ctx context.Context, t *models.Tender) error
	ListTenders(ctx context.Context, statuses []string, limit, offset int) ([]models.Tender, error)
	SaveTenderVersion(ctx context.Context, t *models.Tender) error
	GetTenderVersion(ctx context.Context, tenderID, version int) (*models.Tender, error)

	GetStageLog(ctx context.Context, tenderID int, stageKey string) (*models.StageLog, error)
	GetStageLogs(ctx context.Context, tenderID int) ([]models.StageLog, error)

	ActiveDefinition(ctx context.Context, name string) (*models.WorkflowDefinition, error)
	GetStep(ctx context.Context, id int) (*models.WorkflowStep, error)
	CreateStep(ctx context.Context, st *models.WorkflowStep) error
	TasksForTender(ctx context.Context, tenderID int) ([]models.StepTask, error)

	CreateBond(ctx context.Context, b *models.TenderBond) error
	AlertsForTender(ctx context.Context, tenderID int) ([]models.TenderAlert, error)
	MarkAlertRead(ctx context.Context, id int) error
	DismissAlert(ctx context.Context, id int) error
}
