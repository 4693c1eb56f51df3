package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

func (tc *TableController) GetAllTables(c *gin.Context) {
	restaurantID := c.GetUint("restaurantID")

	var tables []models.Table
	if err := tc.DB.Where("restaurant_id = ?", restaurantID).
		Order("table_number ASC").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var input struct {
		TableNumber string `json:"table_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	restaurantID := c.GetUint("restaurantID")

	var existing models.Table
	err := tc.DB.Where("restaurant_id = ? AND table_number = ?", restaurantID, input.TableNumber).
		First(&existing).Error
	if err == nil {
		utils.RespondError(c, http.StatusConflict, errors.New("table already exists"))
		return
	}

	table := models.Table{
		RestaurantID: restaurantID,
		TableNumber:  input.TableNumber,
		Status:       "available",
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

// UpdateTableStatus is how cleaning staff flip dirty back to available.
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	tableID, err := strconv.ParseUint(c.Param("table_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid table id"))
		return
	}

	var input struct {
		Status string `json:"status" binding:"required,oneof=available occupied dirty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := tc.DB.Where("id = ? AND restaurant_id = ?", uint(tableID), c.GetUint("restaurantID")).
		First(&table).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("table not found"))
		return
	}

	table.Status = input.Status
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// GetTableQR renders the QR code printed on the physical table. It
// encodes the diner-facing URL that seeds the session resolver with the
// restaurant slug and table number.
func (tc *TableController) GetTableQR(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Param("restaurant_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid restaurant id"))
		return
	}
	tableNumber := c.Param("table_number")

	var restaurant models.Restaurant
	if err := tc.DB.First(&restaurant, uint(restaurantID)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("restaurant not found"))
		return
	}

	baseURL := os.Getenv("FRONTEND_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5500"
	}
	target := fmt.Sprintf("%s/r/%s?table=%s", baseURL, restaurant.Slug, tableNumber)

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
