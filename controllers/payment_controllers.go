package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/gateway"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/services"
	"github.com/tableside/dinein/store"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type PaymentController struct {
	DB       *gorm.DB
	Sessions *store.SessionStore
	Payments *services.PaymentService
	Gateway  *gateway.Service
}

func NewPaymentController(db *gorm.DB, gw *gateway.Service) *PaymentController {
	return &PaymentController{
		DB:       db,
		Sessions: store.NewSessionStore(db),
		Payments: services.NewPaymentService(db),
		Gateway:  gw,
	}
}

// Checkout opens a gateway payment order for the session's current
// total. The session id rides along as the receipt, which is how the
// webhook finds its way back.
func (pc *PaymentController) Checkout(c *gin.Context) {
	token := c.Param("token")

	session, err := pc.Sessions.GetByToken(token)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if session.IsTerminal() {
		utils.RespondError(c, http.StatusConflict, store.ErrSessionTerminal)
		return
	}

	currency := c.DefaultQuery("currency", "IDR")
	amount := utils.ToMinorUnits(session.TotalAmount)
	if amount <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("session has no payable amount"))
		return
	}

	receipt := strconv.FormatUint(uint64(session.ID), 10)
	order, err := pc.Gateway.CreateCharge(amount, currency, receipt)
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	utils.InfoLogger.Printf("opened gateway order %s for session %d (%d minor units)", order.ID, session.ID, amount)
	utils.RespondJSON(c, http.StatusOK, "Checkout created", order)
}

type webhookPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// HandleWebhook processes asynchronous payment notifications from the
// gateway. Unknown receipts are acknowledged with 200 and logged, never
// retried into mutations; an amount mismatch is rejected outright.
func (pc *PaymentController) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if !pc.Gateway.VerifyWebhookSignature(body, signature) {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if payload.Status != "paid" && payload.Status != "captured" {
		utils.InfoLogger.Printf("ignoring webhook for order %s with status %s", payload.OrderID, payload.Status)
		utils.RespondJSON(c, http.StatusOK, "Webhook ignored", nil)
		return
	}

	gwOrder, err := pc.Gateway.FetchOrder(payload.OrderID)
	if err != nil {
		utils.RespondError(c, http.StatusBadGateway, err)
		return
	}

	sessionID, err := strconv.ParseUint(gwOrder.Receipt, 10, 32)
	if err != nil {
		utils.ErrorLogger.Printf("webhook for order %s carries malformed receipt %q", payload.OrderID, gwOrder.Receipt)
		utils.RespondJSON(c, http.StatusOK, "Webhook acknowledged", nil)
		return
	}

	var session models.TableSession
	if err := pc.DB.First(&session, uint(sessionID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Acknowledge so the gateway stops retrying a receipt we will
			// never be able to resolve.
			utils.ErrorLogger.Printf("webhook for order %s references unknown session %d", payload.OrderID, sessionID)
			utils.RespondJSON(c, http.StatusOK, "Webhook acknowledged", nil)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	amount := payload.Amount
	if amount == 0 {
		amount = gwOrder.Amount
	}
	paymentID := payload.PaymentID
	if paymentID == "" {
		paymentID = payload.OrderID
	}

	updated, applied, err := pc.Payments.ReconcileOnlinePayment(session.ID, paymentID, amount)
	if err != nil {
		if errors.Is(err, services.ErrAmountMismatch) {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if applied {
		pc.publishSessionUpdate(updated)
		utils.InfoLogger.Printf("session %d marked paid via webhook (payment %s)", updated.ID, paymentID)
	}
	utils.RespondJSON(c, http.StatusOK, fmt.Sprintf("Webhook processed for session %d", updated.ID), nil)
}

func (pc *PaymentController) publishSessionUpdate(session *models.TableSession) {
	sc := SessionController{DB: pc.DB}
	sc.publishSessionUpdate(session)
}
