package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tableside/dinein/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSessionNotFound -> no session matches the token or table
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionTerminal -> session is closed or paid and cannot accept writes
	ErrSessionTerminal = errors.New("session is closed, start a new one")
)

// SessionStore is the persistence collaborator for table sessions and
// their orders. All cross-request state lives here; handlers and the
// client-side resolver treat it as the single source of truth.
type SessionStore struct {
	DB *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{DB: db}
}

// LockForUpdate takes a row lock on databases that support it. SQLite
// (tests) serializes writers on its own, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GetByToken -> verification read used by the resolver
func (s *SessionStore) GetByToken(token string) (*models.TableSession, error) {
	var session models.TableSession
	err := s.DB.Where("session_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetActiveByTable returns the active session for (restaurant, table).
func (s *SessionStore) GetActiveByTable(restaurantID uint, tableNumber string) (*models.TableSession, error) {
	var session models.TableSession
	err := s.DB.Where("restaurant_id = ? AND table_number = ? AND status = ?",
		restaurantID, tableNumber, models.SessionStatusActive).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create establishes a session for (restaurant, table). The operation is
// idempotent against concurrency: if an active session already exists, that
// session is returned instead of a duplicate. Multiple devices resolving
// the same table concurrently converge on one token. The second return
// value reports whether a new row was created.
func (s *SessionStore) Create(restaurantID uint, tableNumber string) (*models.TableSession, bool, error) {
	var session models.TableSession
	created := false

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.TableSession
		err := LockForUpdate(tx).
			Where("restaurant_id = ? AND table_number = ? AND status = ?",
				restaurantID, tableNumber, models.SessionStatusActive).
			First(&existing).Error
		if err == nil {
			session = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		session = models.TableSession{
			RestaurantID:  restaurantID,
			TableNumber:   tableNumber,
			SessionToken:  uuid.New().String(),
			Status:        models.SessionStatusActive,
			PaymentMethod: models.PaymentMethodPending,
			StartedAt:     now,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		created = true

		// Mark the table occupied while a session is live.
		tx.Model(&models.Table{}).
			Where("restaurant_id = ? AND table_number = ?", restaurantID, tableNumber).
			Update("status", "occupied")
		return nil
	})
	if err != nil {
		// A concurrent create may have beaten us to the insert (unique
		// token index or the DB-level guard). Re-read and hand back the
		// winner rather than surfacing the conflict.
		if existing, lookupErr := s.GetActiveByTable(restaurantID, tableNumber); lookupErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, created, nil
}

// SessionUpdate carries the mutable payment/lifecycle fields of a session.
type SessionUpdate struct {
	Status        *string
	PaymentMethod *string
	PaymentStatus *string
	PaymentID     *string
	ClosedAt      *time.Time
	TotalAmount   *float64
	CustomerName  *string
	CustomerPhone *string
}

// Update applies the non-nil fields of upd to the session.
func (s *SessionStore) Update(sessionID uint, upd SessionUpdate) error {
	fields := map[string]interface{}{}
	if upd.Status != nil {
		fields["status"] = *upd.Status
	}
	if upd.PaymentMethod != nil {
		fields["payment_method"] = *upd.PaymentMethod
	}
	if upd.PaymentStatus != nil {
		fields["payment_status"] = *upd.PaymentStatus
	}
	if upd.PaymentID != nil {
		fields["payment_id"] = *upd.PaymentID
	}
	if upd.ClosedAt != nil {
		fields["closed_at"] = *upd.ClosedAt
	}
	if upd.TotalAmount != nil {
		fields["total_amount"] = *upd.TotalAmount
	}
	if upd.CustomerName != nil {
		fields["customer_name"] = *upd.CustomerName
	}
	if upd.CustomerPhone != nil {
		fields["customer_phone"] = *upd.CustomerPhone
	}
	if len(fields) == 0 {
		return nil
	}
	return s.DB.Model(&models.TableSession{}).Where("id = ?", sessionID).Updates(fields).Error
}

// RecomputeTotal sets the session total to the sum of its order totals and
// returns the new value. Runs inside tx when one is supplied.
func (s *SessionStore) RecomputeTotal(tx *gorm.DB, sessionID uint) (float64, error) {
	if tx == nil {
		tx = s.DB
	}
	var total float64
	row := tx.Model(&models.Order{}).
		Where("session_id = ? AND status != ?", sessionID, models.OrderStatusCancelled).
		Select("COALESCE(SUM(total_amount), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	if err := tx.Model(&models.TableSession{}).
		Where("id = ?", sessionID).
		Update("total_amount", total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
