package models

import "time"

// Статус банковской гарантии (обеспечения заявки)
const (
	BondActive    = "active"
	BondWithdrawn = "withdrawn"
	BondExpired   = "expired"
)

// Обеспечение заявки по тендеру
type TenderBond struct {
	ID         int       `db:"id" json:"id"`
	TenderID   int       `db:"tender_id" json:"tenderId"`
	Amount     float64   `db:"amount" json:"amount"`
	Status     string    `db:"status" json:"status"`
	ExpiryDate time.Time `db:"expiry_date" json:"expiryDate"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Типы и приоритеты напоминаний
const (
	AlertDeadlineApproaching = "deadline_approaching"
	AlertBondExpiry          = "bond_expiry"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"

	AlertPending   = "pending"
	AlertSent      = "sent"
	AlertRead      = "read"
	AlertDismissed = "dismissed"
)

// Напоминание, привязанное к сроку; уникально по (tender_id, alert_type, due_date)
type TenderAlert struct {
	ID            int       `db:"id" json:"id"`
	TenderID      int       `db:"tender_id" json:"tenderId"`
	AlertType     string    `db:"alert_type" json:"alertType"`
	Title         string    `db:"title" json:"title"`
	AlertDate     time.Time `db:"alert_date" json:"alertDate"`
	DueDate       time.Time `db:"due_date" json:"dueDate"`
	Priority      string    `db:"priority" json:"priority"`
	Status        string    `db:"status" json:"status"`
	ReferenceCode string    `db:"reference_code" json:"referenceCode"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
