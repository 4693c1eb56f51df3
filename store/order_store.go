package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/tableside/dinein/models"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound -> no order matches the id
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition -> requested status change moves backwards or
	// out of a terminal state
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// CartLine is one itemId+quantity pair of a submitted cart.
type CartLine struct {
	MenuID   uint `json:"menu_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,min=1"`
}

// CreateOrder persists a cart as an order under an active session. Item
// name and price are snapshotted from the menu inside the transaction, and
// the session total is recomputed in the same transaction. The session is
// re-verified as active at write time; the client-side check is advisory
// only.
func (s *SessionStore) CreateOrder(sessionToken string, lines []CartLine, notes string) (*models.Order, *models.TableSession, error) {
	if len(lines) == 0 {
		return nil, nil, errors.New("cart is empty")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, fmt.Errorf("invalid quantity %d for menu item %d", line.Quantity, line.MenuID)
		}
	}

	var order models.Order
	var session models.TableSession

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := LockForUpdate(tx).
			Where("session_token = ?", sessionToken).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.IsTerminal() {
			return ErrSessionTerminal
		}

		now := time.Now()
		order = models.Order{
			RestaurantID: session.RestaurantID,
			SessionID:    &session.ID,
			Status:       models.OrderStatusPending,
			Notes:        notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		var total float64
		for _, line := range lines {
			var menu models.Menu
			if err := tx.First(&menu, line.MenuID).Error; err != nil {
				return fmt.Errorf("menu item %d not found", line.MenuID)
			}
			if !menu.Available {
				return fmt.Errorf("menu item %q is not available", menu.Name)
			}
			item := models.OrderItem{
				OrderID:   order.ID,
				MenuID:    menu.ID,
				Name:      menu.Name,
				Quantity:  line.Quantity,
				Price:     menu.Price,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			total += float64(line.Quantity) * menu.Price
			order.OrderItems = append(order.OrderItems, item)
		}

		order.TotalAmount = total
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("total_amount", total).Error; err != nil {
			return err
		}

		sessionTotal, err := s.RecomputeTotal(tx, session.ID)
		if err != nil {
			return err
		}
		session.TotalAmount = sessionTotal
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &order, &session, nil
}

// ListOrdersBySession -> orders with item snapshots, oldest first
func (s *SessionStore) ListOrdersBySession(sessionID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.Preload("OrderItems").
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&orders).Error
	return orders, err
}

// UpdateOrderStatus advances an order through the kitchen pipeline. Only
// forward moves are allowed; paid is reserved for payment reconciliation.
func (s *SessionStore) UpdateOrderStatus(orderID uint, next string) (*models.Order, error) {
	if next == models.OrderStatusPaid {
		return nil, ErrInvalidTransition
	}
	var order models.Order
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if !order.CanTransitionTo(next) {
			return ErrInvalidTransition
		}
		order.Status = next
		order.UpdatedAt = time.Now()
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrdersPaidBySession flips every order under the session to paid.
// Only payment reconciliation calls this; kitchen staff cannot.
func (s *SessionStore) MarkOrdersPaidBySession(tx *gorm.DB, sessionID uint) error {
	if tx == nil {
		tx = s.DB
	}
	return tx.Model(&models.Order{}).
		Where("session_id = ? AND status != ?", sessionID, models.OrderStatusCancelled).
		Updates(map[string]interface{}{
			"is_paid":        true,
			"status":         models.OrderStatusPaid,
			"payment_status": "paid",
			"updated_at":     time.Now(),
		}).Error
}
