package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetRestaurantMenus lists the catalog diners order from. Unavailable
// items are filtered unless ?all=true (staff views want everything).
func (mc *MenuController) GetRestaurantMenus(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Param("restaurant_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid restaurant id"))
		return
	}

	query := mc.DB.Preload("Category").Where("restaurant_id = ?", uint(restaurantID))
	if c.Query("all") != "true" {
		query = query.Where("available = ?", true)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}

	var menus []models.Menu
	if err := query.Order("name ASC").Find(&menus).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}

type menuInput struct {
	CategoryID  uint    `json:"category_id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Description string  `json:"description"`
	Available   *bool   `json:"available"`
}

// CreateMenu adds an item to the staff's own restaurant catalog.
func (mc *MenuController) CreateMenu(c *gin.Context) {
	var input menuInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	menu := models.Menu{
		RestaurantID: c.GetUint("restaurantID"),
		CategoryID:   input.CategoryID,
		Name:         input.Name,
		Price:        input.Price,
		Description:  input.Description,
		Available:    true,
	}
	if input.Available != nil {
		menu.Available = *input.Available
	}

	if err := mc.DB.Create(&menu).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Menu created", menu)
}

// UpdateMenu edits an item. Past orders keep their snapshots, so price
// changes only affect orders placed from now on.
func (mc *MenuController) UpdateMenu(c *gin.Context) {
	menuID, err := strconv.ParseUint(c.Param("menu_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid menu id"))
		return
	}

	var menu models.Menu
	if err := mc.DB.Where("id = ? AND restaurant_id = ?", uint(menuID), c.GetUint("restaurantID")).
		First(&menu).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("menu not found"))
		return
	}

	var input menuInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	menu.CategoryID = input.CategoryID
	menu.Name = input.Name
	menu.Price = input.Price
	menu.Description = input.Description
	if input.Available != nil {
		menu.Available = *input.Available
	}

	if err := mc.DB.Save(&menu).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Menu updated", menu)
}

func (mc *MenuController) DeleteMenu(c *gin.Context) {
	menuID, err := strconv.ParseUint(c.Param("menu_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid menu id"))
		return
	}

	result := mc.DB.Where("id = ? AND restaurant_id = ?", uint(menuID), c.GetUint("restaurantID")).
		Delete(&models.Menu{})
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("menu not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Menu deleted", nil)
}
