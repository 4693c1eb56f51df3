package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Restaurant{},
		&models.Table{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.TableSession{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.Create(&models.Restaurant{Name: "Warung Tengah", Slug: "warung-tengah"})
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "T1", Status: "available"})
	db.Create(&models.MenuCategory{Name: "Mains"})
	db.Create(&models.Menu{RestaurantID: 1, CategoryID: 1, Name: "Nasi Goreng", Price: 35000, Available: true})
	return db
}

func seedSessionWithOrder(t *testing.T, db *gorm.DB) *models.TableSession {
	t.Helper()
	s := store.NewSessionStore(db)
	sess, _, err := s.Create(1, "T1")
	require.NoError(t, err)
	_, sess, err = s.CreateOrder(sess.SessionToken, []store.CartLine{{MenuID: 1, Quantity: 2}}, "")
	require.NoError(t, err)
	return sess
}

func TestMarkSessionPaidIsIdempotent(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	paymentID := "pay_123"
	updated, applied, err := svc.MarkSessionPaid(sess.ID, models.PaymentMethodOnline, &paymentID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.SessionStatusPaid, updated.Status)
	assert.Equal(t, models.PaymentMethodOnline, updated.PaymentMethod)
	require.NotNil(t, updated.PaymentID)
	assert.Equal(t, "pay_123", *updated.PaymentID)
	assert.NotNil(t, updated.ClosedAt)

	// Second application, e.g. webhook after client confirmation.
	otherID := "pay_456"
	again, applied, err := svc.MarkSessionPaid(sess.ID, models.PaymentMethodOnline, &otherID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "pay_123", *again.PaymentID)

	var orders []models.Order
	db.Where("session_id = ?", sess.ID).Find(&orders)
	for _, order := range orders {
		assert.Equal(t, models.OrderStatusPaid, order.Status)
		assert.True(t, order.IsPaid)
	}

	var table models.Table
	db.Where("restaurant_id = ? AND table_number = ?", 1, "T1").First(&table)
	assert.Equal(t, "dirty", table.Status)
}

func TestMarkSessionPaidDominatesClosed(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	// Sweeper or staff closed the session first.
	closed := models.SessionStatusClosed
	require.NoError(t, store.NewSessionStore(db).Update(sess.ID, store.SessionUpdate{Status: &closed}))

	paymentID := "pay_late"
	updated, applied, err := svc.MarkSessionPaid(sess.ID, models.PaymentMethodOnline, &paymentID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.SessionStatusPaid, updated.Status)
}

func TestMarkSessionPaidUnknownSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)

	_, _, err := svc.MarkSessionPaid(999, models.PaymentMethodCounter, nil)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestReconcileOnlinePaymentAmountTolerance(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	// Session total is 70000.00, so 7000000 minor units. One unit off is
	// accepted as rounding.
	updated, applied, err := svc.ReconcileOnlinePayment(sess.ID, "pay_ok", 7000001)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.SessionStatusPaid, updated.Status)
}

func TestReconcileOnlinePaymentRejectsMismatch(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	_, _, err := svc.ReconcileOnlinePayment(sess.ID, "pay_bad", 7000002)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	// No mutation happened.
	var check models.TableSession
	require.NoError(t, db.First(&check, sess.ID).Error)
	assert.Equal(t, models.SessionStatusActive, check.Status)
}

func TestReconcileAmountCheckSeesLateOrders(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	// An order lands after the gateway amount was fixed at checkout.
	// The webhook amount no longer covers the session, so the transition
	// must be refused rather than marking the new order paid for free.
	s := store.NewSessionStore(db)
	_, _, err := s.CreateOrder(sess.SessionToken, []store.CartLine{{MenuID: 1, Quantity: 1}}, "")
	require.NoError(t, err)

	_, _, err = svc.ReconcileOnlinePayment(sess.ID, "pay_stale", 7000000)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	var check models.TableSession
	require.NoError(t, db.First(&check, sess.ID).Error)
	assert.Equal(t, models.SessionStatusActive, check.Status)

	var orders []models.Order
	db.Where("session_id = ?", sess.ID).Find(&orders)
	for _, order := range orders {
		assert.False(t, order.IsPaid)
	}
}

func TestRequestCounterPayment(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	updated, err := svc.RequestCounterPayment(sess.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCounter, updated.PaymentMethod)
	assert.Equal(t, "pending", updated.PaymentStatus)
	// Still active until staff confirm receipt.
	assert.Equal(t, models.SessionStatusActive, updated.Status)
}

func TestRequestCounterPaymentOnTerminalSession(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewPaymentService(db)
	sess := seedSessionWithOrder(t, db)

	_, _, err := svc.MarkSessionPaid(sess.ID, models.PaymentMethodCounter, nil)
	require.NoError(t, err)

	_, err = svc.RequestCounterPayment(sess.SessionToken)
	assert.ErrorIs(t, err, store.ErrSessionTerminal)
}
