package services

import (
	"time"

	"github.com/tableside/dinein/hub"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/transport"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

// staleWindow is how long an active session may sit without a new order
// before it is presumed abandoned.
const staleWindow = 1 * time.Hour

// SessionSweeper closes abandoned sessions in the background so a table
// whose diners walked out does not block the next party forever. A swept
// session ends closed, never paid; payment only ever comes from the
// reconciliation paths.
type SessionSweeper struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration
	Window   time.Duration
}

func NewSessionSweeper(db *gorm.DB) *SessionSweeper {
	return &SessionSweeper{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 5 * time.Minute,
		Window:   staleWindow,
	}
}

func (sw *SessionSweeper) Start() {
	go func() {
		ticker := time.NewTicker(sw.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := sw.Sweep(); err != nil {
					utils.ErrorLogger.Printf("session sweep failed: %v", err)
				}
			case <-sw.StopChan:
				return
			}
		}
	}()
}

func (sw *SessionSweeper) Stop() {
	close(sw.StopChan)
}

// Sweep closes every active session whose last order (or its start, when
// it has no orders) is older than the window. Staff session listings call
// this on demand too, so a stale session is cleared the moment anyone
// looks, not just on the next tick.
func (sw *SessionSweeper) Sweep() (int, error) {
	cutoff := time.Now().Add(-sw.Window)

	var stale []models.TableSession
	err := sw.DB.
		Where("status = ?", models.SessionStatusActive).
		Where(`COALESCE(
			(SELECT MAX(o.created_at) FROM orders o WHERE o.session_id = table_sessions.id),
			table_sessions.started_at) < ?`, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, session := range stale {
		err := sw.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			res := tx.Model(&models.TableSession{}).
				Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
				Updates(map[string]interface{}{
					"status":    models.SessionStatusClosed,
					"closed_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// A payment landed between the select and here; leave it.
				return nil
			}
			tx.Model(&models.Table{}).
				Where("restaurant_id = ? AND table_number = ?", session.RestaurantID, session.TableNumber).
				Update("status", "dirty")

			session.Status = models.SessionStatusClosed
			session.ClosedAt = &now
			closed++
			return nil
		})
		if err != nil {
			utils.ErrorLogger.Printf("failed to close stale session %d: %v", session.ID, err)
			continue
		}
		if session.Status == models.SessionStatusClosed {
			hub.Publish(transport.ChannelRestaurant(session.RestaurantID), transport.SessionUpdated{Session: session})
			hub.Publish(transport.ChannelSession(session.SessionToken), transport.SessionUpdated{Session: session})
		}
	}

	if closed > 0 {
		utils.InfoLogger.Printf("swept %d stale session(s)", closed)
	}
	return closed, nil
}
