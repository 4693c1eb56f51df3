package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/store"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

var (
	// ErrAmountMismatch -> gateway amount disagrees with the session's
	// order totals beyond rounding tolerance
	ErrAmountMismatch = errors.New("paid amount does not match session total")
)

// amountToleranceMinor allows integer rounding only: the webhook amount
// may differ from the order-total sum by at most one minor unit.
const amountToleranceMinor = int64(1)

// PaymentService applies the terminal payment transition to sessions.
// Two independent writers reach it (the client confirmation call after an
// online payment, and the asynchronous gateway webhook) and both must be
// safe in either order or concurrently. Idempotence on the already-paid
// state is what makes that true.
type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// MarkSessionPaid transitions a session to paid, records the payment
// method and gateway id, and marks every order under the session paid.
// Applying it to an already-paid session is a no-op (applied=false).
// paid dominates closed: a late online payment still lands on a session
// the counter flow closed first.
func (s *PaymentService) MarkSessionPaid(sessionID uint, method string, paymentID *string) (*models.TableSession, bool, error) {
	return s.markPaid(sessionID, method, paymentID, nil)
}

// markPaid holds the session row lock for the whole transition. validate,
// when present, runs under that lock after the already-paid check, so any
// amount verification sees exactly the orders the transition will cover.
func (s *PaymentService) markPaid(sessionID uint, method string, paymentID *string, validate func(tx *gorm.DB) error) (*models.TableSession, bool, error) {
	var session models.TableSession
	applied := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := store.LockForUpdate(tx).
			First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrSessionNotFound
			}
			return err
		}
		if session.Status == models.SessionStatusPaid {
			return nil
		}
		if validate != nil {
			if err := validate(tx); err != nil {
				return err
			}
		}

		now := time.Now()
		session.Status = models.SessionStatusPaid
		session.PaymentMethod = method
		session.PaymentStatus = "paid"
		session.PaymentID = paymentID
		session.ClosedAt = &now
		if err := tx.Save(&session).Error; err != nil {
			return err
		}

		sessions := store.NewSessionStore(tx)
		if err := sessions.MarkOrdersPaidBySession(tx, session.ID); err != nil {
			return err
		}

		// The table needs cleaning once the party is done.
		tx.Model(&models.Table{}).
			Where("restaurant_id = ? AND table_number = ?", session.RestaurantID, session.TableNumber).
			Update("status", "dirty")

		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &session, applied, nil
}

// ReconcileOnlinePayment is the webhook-side transition. The paid amount
// is validated against the authoritative sum of the session's order
// totals inside the same transaction that applies the paid state, so an
// order slipping in concurrently cannot be marked paid without being
// covered by the validated amount. A mismatch beyond one minor unit
// rejects the notification and leaves the session untouched.
func (s *PaymentService) ReconcileOnlinePayment(sessionID uint, paymentID string, paidMinorUnits int64) (*models.TableSession, bool, error) {
	return s.markPaid(sessionID, models.PaymentMethodOnline, &paymentID, func(tx *gorm.DB) error {
		var total float64
		row := tx.Model(&models.Order{}).
			Where("session_id = ? AND status != ?", sessionID, models.OrderStatusCancelled).
			Select("COALESCE(SUM(total_amount), 0)").Row()
		if err := row.Scan(&total); err != nil {
			return err
		}

		expected := utils.ToMinorUnits(total)
		if utils.MinorUnitsDiff(expected, paidMinorUnits) > amountToleranceMinor {
			return fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, expected, paidMinorUnits)
		}
		return nil
	})
}

// RequestCounterPayment flags the session for in-person settlement. The
// session stays active until staff confirm receipt.
func (s *PaymentService) RequestCounterPayment(token string) (*models.TableSession, error) {
	sessions := store.NewSessionStore(s.db)
	session, err := sessions.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, store.ErrSessionTerminal
	}

	method := models.PaymentMethodCounter
	status := "pending"
	if err := sessions.Update(session.ID, store.SessionUpdate{
		PaymentMethod: &method,
		PaymentStatus: &status,
	}); err != nil {
		return nil, err
	}
	session.PaymentMethod = method
	session.PaymentStatus = status
	return session, nil
}
