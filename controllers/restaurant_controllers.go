package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type RestaurantController struct {
	DB *gorm.DB
}

func NewRestaurantController(db *gorm.DB) *RestaurantController {
	return &RestaurantController{DB: db}
}

// GetRestaurantBySlug is the public lookup the QR landing page performs.
func (rc *RestaurantController) GetRestaurantBySlug(c *gin.Context) {
	slug := c.Param("slug")

	var restaurant models.Restaurant
	if err := rc.DB.Where("slug = ?", slug).First(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("restaurant not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Restaurant found", restaurant)
}

func (rc *RestaurantController) CreateRestaurant(c *gin.Context) {
	var input struct {
		Name    string `json:"name" binding:"required"`
		Slug    string `json:"slug" binding:"required,lowercase"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	restaurant := models.Restaurant{
		Name:    input.Name,
		Slug:    input.Slug,
		Address: input.Address,
		Phone:   input.Phone,
	}
	if err := rc.DB.Create(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("slug already in use"))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Restaurant created", restaurant)
}

// GetDashboardStats summarizes the staff's restaurant for today.
func (rc *RestaurantController) GetDashboardStats(c *gin.Context) {
	restaurantID := c.GetUint("restaurantID")
	startOfDay := time.Now().Truncate(24 * time.Hour)

	var activeSessions int64
	rc.DB.Model(&models.TableSession{}).
		Where("restaurant_id = ? AND status = ?", restaurantID, models.SessionStatusActive).
		Count(&activeSessions)

	var ordersToday int64
	rc.DB.Model(&models.Order{}).
		Where("restaurant_id = ? AND created_at >= ?", restaurantID, startOfDay).
		Count(&ordersToday)

	var revenueToday float64
	row := rc.DB.Model(&models.TableSession{}).
		Where("restaurant_id = ? AND status = ? AND closed_at >= ?", restaurantID, models.SessionStatusPaid, startOfDay).
		Select("COALESCE(SUM(total_amount), 0)").Row()
	if err := row.Scan(&revenueToday); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var dirtyTables int64
	rc.DB.Model(&models.Table{}).
		Where("restaurant_id = ? AND status = ?", restaurantID, "dirty").
		Count(&dirtyTables)

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", gin.H{
		"active_sessions": activeSessions,
		"orders_today":    ordersToday,
		"revenue_today":   revenueToday,
		"dirty_tables":    dirtyTables,
	})
}
