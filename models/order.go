package models

import "time"

// Order status through the kitchen pipeline
const (
	OrderStatusPending   = "pending"
	OrderStatusCooking   = "cooking"
	OrderStatusReady     = "ready"
	OrderStatusServed    = "served"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	RestaurantID  uint          `gorm:"not null;index" json:"restaurant_id"`
	SessionID     *uint         `gorm:"index" json:"session_id,omitempty"`
	Session       *TableSession `gorm:"foreignKey:SessionID" json:"-"`
	Status        string        `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalAmount   float64       `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	IsPaid        bool          `gorm:"not null;default:false" json:"is_paid"`
	PaymentStatus string        `gorm:"type:varchar(30)" json:"payment_status"`
	Notes         string        `gorm:"type:text" json:"notes"`
	OrderItems    []OrderItem   `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

// kitchenPipeline lists the forward-only progression; paid and cancelled
// are terminal and reachable from any non-terminal status.
var kitchenPipeline = map[string]int{
	OrderStatusPending: 0,
	OrderStatusCooking: 1,
	OrderStatusReady:   2,
	OrderStatusServed:  3,
}

// CanTransitionTo reports whether an order status change is allowed.
func (o *Order) CanTransitionTo(next string) bool {
	if o.Status == OrderStatusPaid || o.Status == OrderStatusCancelled {
		return false
	}
	if next == OrderStatusPaid || next == OrderStatusCancelled {
		return true
	}
	from, ok := kitchenPipeline[o.Status]
	to, ok2 := kitchenPipeline[next]
	if !ok || !ok2 {
		return false
	}
	return to > from
}
