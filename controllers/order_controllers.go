package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/hub"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/store"
	"github.com/tableside/dinein/transport"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type OrderController struct {
	DB       *gorm.DB
	Sessions *store.SessionStore
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{
		DB:       db,
		Sessions: store.NewSessionStore(db),
	}
}

type orderItemInput struct {
	MenuID   uint `json:"menu_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,gt=0"`
}

type createOrderInput struct {
	Items         []orderItemInput `json:"items" binding:"required,min=1,dive"`
	Notes         string           `json:"notes"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
}

// CreateOrder places an order under a session token. The session's
// liveness is re-checked inside the transaction, so an order can never
// land on a table that already paid.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	token := c.Param("token")

	var input createOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	lines := make([]store.CartLine, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, store.CartLine{MenuID: item.MenuID, Quantity: item.Quantity})
	}

	order, session, err := oc.Sessions.CreateOrder(token, lines, input.Notes)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		case errors.Is(err, store.ErrSessionTerminal):
			utils.RespondError(c, http.StatusConflict, err)
		default:
			utils.RespondError(c, http.StatusBadRequest, err)
		}
		return
	}

	// First order carries the customer identity onto the session.
	if input.CustomerName != "" && session.CustomerName == nil {
		upd := store.SessionUpdate{CustomerName: &input.CustomerName}
		if input.CustomerPhone != "" {
			upd.CustomerPhone = &input.CustomerPhone
		}
		if err := oc.Sessions.Update(session.ID, upd); err != nil {
			utils.ErrorLogger.Printf("failed to record customer identity on session %d: %v", session.ID, err)
		}
	}

	hub.Publish(transport.ChannelRestaurant(order.RestaurantID), &transport.OrderCreated{Order: *order})
	oc.publishSessionUpdate(session)

	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// ListSessionOrders returns every order placed under a session token.
func (oc *OrderController) ListSessionOrders(c *gin.Context) {
	token := c.Param("token")

	session, err := oc.Sessions.GetByToken(token)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	orders, err := oc.Sessions.ListOrdersBySession(session.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// UpdateOrderStatus moves an order along the kitchen pipeline. Staff
// only; the pipeline is forward-only and payment is never set here.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid order id"))
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Sessions.UpdateOrderStatus(uint(orderID), input.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		case errors.Is(err, store.ErrInvalidTransition):
			utils.RespondError(c, http.StatusConflict, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	hub.Publish(transport.ChannelRestaurant(order.RestaurantID), &transport.OrderStatusUpdated{Order: *order})
	if order.SessionID != nil {
		if session, err := oc.sessionByID(*order.SessionID); err == nil {
			hub.Publish(transport.ChannelSession(session.SessionToken), &transport.OrderStatusUpdated{Order: *order})
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// GetKitchenOrders feeds the kitchen display: everything still moving
// through the pipeline, oldest first.
func (oc *OrderController) GetKitchenOrders(c *gin.Context) {
	restaurantID := c.GetUint("restaurantID")

	var orders []models.Order
	err := oc.DB.Preload("OrderItems").
		Where("restaurant_id = ? AND status IN ?", restaurantID,
			[]string{models.OrderStatusPending, models.OrderStatusCooking, models.OrderStatusReady}).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	grouped := map[string][]models.Order{
		models.OrderStatusPending: {},
		models.OrderStatusCooking: {},
		models.OrderStatusReady:   {},
	}
	for _, order := range orders {
		grouped[order.Status] = append(grouped[order.Status], order)
	}

	utils.RespondJSON(c, http.StatusOK, "Kitchen orders", grouped)
}

func (oc *OrderController) sessionByID(id uint) (*models.TableSession, error) {
	var session models.TableSession
	if err := oc.DB.First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (oc *OrderController) publishSessionUpdate(session *models.TableSession) {
	var count int64
	oc.DB.Model(&models.Order{}).Where("session_id = ?", session.ID).Count(&count)

	ev := &transport.SessionUpdated{Session: *session, OrderCount: int(count)}
	hub.Publish(transport.ChannelRestaurant(session.RestaurantID), ev)
	hub.Publish(transport.ChannelSession(session.SessionToken), ev)
}
