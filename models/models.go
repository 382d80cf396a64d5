package models

import "time"

// Статус тендера (грубый жизненный цикл)
type TenderStatus string

const (
	StatusNew       TenderStatus = "new"
	StatusStudying  TenderStatus = "studying"
	StatusGoNoGo    TenderStatus = "go_no_go"
	StatusPricing   TenderStatus = "pricing"
	StatusReady     TenderStatus = "ready"
	StatusSubmitted TenderStatus = "submitted"
	StatusOpening   TenderStatus = "opening"
	StatusWon       TenderStatus = "won"
	StatusLost      TenderStatus = "lost"
	StatusCancelled TenderStatus = "cancelled"
)

// IsTerminal — тендер закрыт, этапы больше не двигаются
func (s TenderStatus) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusCancelled
}

// Статус отдельного этапа
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageSkipped    StageStatus = "skipped"
	StageFailed     StageStatus = "failed"
)

// Сущность Тендера
type Tender struct {
	ID                   int          `db:"id" json:"id"`
	Name                 string       `db:"name" json:"name" validate:"required,max=200"`
	ReferenceNumber      string       `db:"reference_number" json:"referenceNumber" validate:"required,max=100"`
	TenderType           string       `db:"tender_type" json:"tenderType" validate:"required"`
	Method               string       `db:"method" json:"method" validate:"required"`
	Owner                string       `db:"owner" json:"owner" validate:"required,max=200"`
	Status               TenderStatus `db:"status" json:"status"`
	CurrentStage         string       `db:"current_stage" json:"currentStage"`
	CompletionPercentage float64      `db:"completion_percentage" json:"completionPercentage"`
	PublicationDate      *time.Time   `db:"publication_date" json:"publicationDate,omitempty"`
	DocumentsSaleStart   *time.Time   `db:"documents_sale_start" json:"documentsSaleStart,omitempty"`
	DocumentsSaleEnd     *time.Time   `db:"documents_sale_end" json:"documentsSaleEnd,omitempty"`
	QuestionsDeadline    *time.Time   `db:"questions_deadline" json:"questionsDeadline,omitempty"`
	SiteVisitDate        *time.Time   `db:"site_visit_date" json:"siteVisitDate,omitempty"`
	PreBidMeetingDate    *time.Time   `db:"pre_bid_meeting_date" json:"preBidMeetingDate,omitempty"`
	SubmissionDeadline   *time.Time   `db:"submission_deadline" json:"submissionDeadline,omitempty"`
	OpeningDate          *time.Time   `db:"opening_date" json:"openingDate,omitempty"`
	EstimatedValue       float64      `db:"estimated_value" json:"estimatedValue"`
	SubmittedPrice       float64      `db:"submitted_price" json:"submittedPrice"`
	DocumentsPrice       float64      `db:"documents_price" json:"documentsPrice"`
	ValidityPeriod       int          `db:"validity_period" json:"validityPeriod"`
	BidBondValidityDays  int          `db:"bid_bond_validity_days" json:"bidBondValidityDays"`
	IsDirectSale         bool         `db:"is_direct_sale" json:"isDirectSale"`
	BranchID             *int         `db:"branch_id" json:"branchId,omitempty"`
	CreatedBy            int          `db:"created_by" json:"createdBy"`
	Version              int          `db:"version" json:"version"`
	CreatedAt            time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time    `db:"updated_at" json:"-"`
}

// Журнал этапа: одна строка на пару (тендер, этап), создается при инициализации и никогда не удаляется
type StageLog struct {
	ID          int         `db:"id" json:"id"`
	TenderID    int         `db:"tender_id" json:"tenderId"`
	StageKey    string      `db:"stage_key" json:"stageKey"`
	StageOrder  int         `db:"stage_order" json:"stageOrder"`
	IsMandatory bool        `db:"is_mandatory" json:"isMandatory"`
	Status      StageStatus `db:"status" json:"status"`
	StartedAt   *time.Time  `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
	CompletedBy *int        `db:"completed_by" json:"completedBy,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
}

// Прогресс тендера по этапам
type StageProgress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	InProgress int     `json:"inProgress"`
	Pending    int     `json:"pending"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Percentage float64 `json:"percentage"`
}

// Сущность Пользователя
type Employee struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	IsSuperAdmin bool      `db:"is_super_admin" json:"isSuperAdmin"`
	ManagerID    *int      `db:"manager_id" json:"managerId,omitempty"`
	BranchID     *int      `db:"branch_id" json:"branchId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// Филиал компании
type Branch struct {
	ID        int    `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	ManagerID *int   `db:"manager_id" json:"managerId,omitempty"`
}

// Команда (для группового назначения шагов)
type Team struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Право доступа: неизменяемая запись справочника
type Permission struct {
	Code     string `db:"code" json:"code"`
	Module   string `db:"module" json:"module"`
	Resource string `db:"resource" json:"resource"`
	Action   string `db:"action" json:"action"`
}

// Роль: набор прав плюс уровень для эскалации
type Role struct {
	ID    int    `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Level int    `db:"level" json:"level"`
}

// Действующее лицо: всегда передается явно, без глобальной сессии
type Principal struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	SuperAdmin bool   `json:"superAdmin"`
	RoleIDs    []int  `json:"roleIds"`
}
