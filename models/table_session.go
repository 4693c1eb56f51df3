package models

import "time"

// Session status
const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
	SessionStatusPaid   = "paid"
)

// Payment method on a session
const (
	PaymentMethodPending = "pending"
	PaymentMethodOnline  = "online"
	PaymentMethodCounter = "counter"
)

// TableSession spans one dining occasion at one table, from the first
// order until payment or close. At most one active session may exist per
// (restaurant, table); the store enforces this on create.
type TableSession struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	RestaurantID  uint       `gorm:"not null;index:idx_sessions_table" json:"restaurant_id"`
	TableNumber   string     `gorm:"type:varchar(50);not null;index:idx_sessions_table" json:"table_number"`
	SessionToken  string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_token"`
	Status        string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	TotalAmount   float64    `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	PaymentMethod string     `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_method"`
	PaymentStatus string     `gorm:"type:varchar(30)" json:"payment_status"`
	PaymentID     *string    `gorm:"type:varchar(100)" json:"payment_id,omitempty"`
	CustomerName  *string    `gorm:"type:varchar(255)" json:"customer_name,omitempty"`
	CustomerPhone *string    `gorm:"type:varchar(20)" json:"customer_phone,omitempty"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Orders        []Order    `gorm:"foreignKey:SessionID" json:"orders,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// IsTerminal -> closed and paid are terminal, never resumed
func (s *TableSession) IsTerminal() bool {
	return s.Status == SessionStatusClosed || s.Status == SessionStatusPaid
}
