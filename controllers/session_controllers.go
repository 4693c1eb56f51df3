package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/hub"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/services"
	"github.com/tableside/dinein/store"
	"github.com/tableside/dinein/transport"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type SessionController struct {
	DB       *gorm.DB
	Sessions *store.SessionStore
	Payments *services.PaymentService
	Sweeper  *services.SessionSweeper
}

func NewSessionController(db *gorm.DB, sweeper *services.SessionSweeper) *SessionController {
	return &SessionController{
		DB:       db,
		Sessions: store.NewSessionStore(db),
		Payments: services.NewPaymentService(db),
		Sweeper:  sweeper,
	}
}

// VerifySession is the diner-side verification read. Terminal sessions
// are still returned; the client decides what a closed or paid status
// means for its cached token.
func (sc *SessionController) VerifySession(c *gin.Context) {
	token := c.Param("token")

	session, err := sc.Sessions.GetByToken(token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session found", session)
}

// CreateSession opens a session for a table, or returns the one already
// active there. Two devices racing on the same table both land on the
// same session.
func (sc *SessionController) CreateSession(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Param("restaurant_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid restaurant id"))
		return
	}
	tableNumber := c.Param("table_number")
	if tableNumber == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("table number is required"))
		return
	}

	var restaurant models.Restaurant
	if err := sc.DB.First(&restaurant, uint(restaurantID)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("restaurant not found"))
		return
	}

	session, created, err := sc.Sessions.Create(uint(restaurantID), tableNumber)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if created {
		hub.Publish(transport.ChannelRestaurant(session.RestaurantID), &transport.SessionUpdated{Session: *session})
		utils.RespondJSON(c, http.StatusCreated, "Session created", session)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session already active", session)
}

// GetSessionSnapshot returns the session with its orders. This is the
// resource the bill page polls when no push transport is configured.
func (sc *SessionController) GetSessionSnapshot(c *gin.Context) {
	token := c.Param("token")

	var session models.TableSession
	err := sc.DB.Preload("Orders").Preload("Orders.OrderItems").
		Where("session_token = ?", token).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, store.ErrSessionNotFound)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	// Served unenveloped: this is the exact session:updated payload, so
	// the polling transport can decode the body as-is.
	c.JSON(http.StatusOK, transport.SessionUpdated{
		Session:    session,
		OrderCount: len(session.Orders),
	})
}

// ConfirmPayment is the client confirmation leg after an online payment.
// The webhook may have beaten it here; the transition is idempotent so
// that is fine.
func (sc *SessionController) ConfirmPayment(c *gin.Context) {
	token := c.Param("token")

	var input struct {
		PaymentID string `json:"payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.GetByToken(token)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	session, applied, err := sc.Payments.MarkSessionPaid(session.ID, models.PaymentMethodOnline, &input.PaymentID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if applied {
		sc.publishSessionUpdate(session)
	}

	utils.RespondJSON(c, http.StatusOK, "Payment confirmed", session)
}

// RequestCounterPayment flags the session for settlement at the counter
// and tells the staff dashboard about it.
func (sc *SessionController) RequestCounterPayment(c *gin.Context) {
	token := c.Param("token")

	session, err := sc.Payments.RequestCounterPayment(token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		if errors.Is(err, store.ErrSessionTerminal) {
			utils.RespondError(c, http.StatusConflict, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	hub.Publish(transport.ChannelRestaurant(session.RestaurantID), &transport.PaymentCounterRequested{Session: *session})
	hub.Publish(transport.ChannelSession(session.SessionToken), &transport.PaymentCounterRequested{Session: *session})

	utils.RespondJSON(c, http.StatusOK, "Counter payment requested", session)
}

// MarkCounterPaid is the staff confirmation that cash changed hands.
func (sc *SessionController) MarkCounterPaid(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("session_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid session id"))
		return
	}

	session, applied, err := sc.Payments.MarkSessionPaid(uint(sessionID), models.PaymentMethodCounter, nil)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if applied {
		hub.Publish(transport.ChannelRestaurant(session.RestaurantID), &transport.PaymentCounterReceived{Session: *session})
		hub.Publish(transport.ChannelSession(session.SessionToken), &transport.PaymentCounterReceived{Session: *session})
		sc.publishSessionUpdate(session)
	}

	utils.RespondJSON(c, http.StatusOK, "Counter payment received", session)
}

// ListSessions is the staff listing, filterable by status. Stale sessions
// are swept first so the listing never shows a table as busy an hour
// after the diners left.
func (sc *SessionController) ListSessions(c *gin.Context) {
	if sc.Sweeper != nil {
		if _, err := sc.Sweeper.Sweep(); err != nil {
			utils.ErrorLogger.Printf("on-demand sweep failed: %v", err)
		}
	}

	restaurantID := c.GetUint("restaurantID")
	query := sc.DB.Where("restaurant_id = ?", restaurantID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var sessions []models.TableSession
	if err := query.Order("started_at DESC").Find(&sessions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of sessions", sessions)
}

func (sc *SessionController) publishSessionUpdate(session *models.TableSession) {
	var count int64
	sc.DB.Model(&models.Order{}).Where("session_id = ?", session.ID).Count(&count)

	ev := &transport.SessionUpdated{Session: *session, OrderCount: int(count)}
	hub.Publish(transport.ChannelRestaurant(session.RestaurantID), ev)
	hub.Publish(transport.ChannelSession(session.SessionToken), ev)
}
