package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tableside/dinein/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	db.Create(&models.Menu{RestaurantID: 1, CategoryID: 1, Name: "Es Teh", Price: 8000, Available: true})
	return db
}

func TestCreateSessionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	s := NewSessionStore(db)

	first, created, err := s.Create(1, "T1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.SessionStatusActive, first.Status)
	assert.NotEmpty(t, first.SessionToken)

	second, created, err := s.Create(1, "T1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.SessionToken, second.SessionToken)

	var table models.Table
	db.Where("restaurant_id = ? AND table_number = ?", 1, "T1").First(&table)
	assert.Equal(t, "occupied", table.Status)
}

func TestCreateSessionAfterTerminal(t *testing.T) {
	db := setupTestDB(t)
	s := NewSessionStore(db)

	first, _, err := s.Create(1, "T1")
	require.NoError(t, err)

	status := models.SessionStatusPaid
	require.NoError(t, s.Update(first.ID, SessionUpdate{Status: &status}))

	second, created, err := s.Create(1, "T1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)
}

func TestCreateSessionConcurrent(t *testing.T) {
	db := setupTestDB(t)
	s := NewSessionStore(db)

	const n = 8
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, _, err := s.Create(1, "T1")
			if err == nil {
				tokens[i] = sess.SessionToken
			}
		}(i)
	}
	wg.Wait()

	// All resolvers converge on one token.
	seen := map[string]bool{}
	for _, token := range tokens {
		if token != "" {
			seen[token] = true
		}
	}
	assert.Len(t, seen, 1)

	var count int64
	db.Model(&models.TableSession{}).
		Where("restaurant_id = ? AND table_number = ? AND status = ?", 1, "T1", models.SessionStatusActive).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGetByTokenNotFound(t *testing.T) {
	db := setupTestDB(t)
	s := NewSessionStore(db)

	_, err := s.GetByToken("no-such-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionsOnDifferentTablesAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.Table{RestaurantID: 1, TableNumber: "T2", Status: "available"})
	s := NewSessionStore(db)

	a, _, err := s.Create(1, "T1")
	require.NoError(t, err)
	b, _, err := s.Create(1, "T2")
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionToken, b.SessionToken)
}
