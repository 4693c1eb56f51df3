package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tableside/dinein/config"
	"github.com/tableside/dinein/database"
	"github.com/tableside/dinein/middlewares"
	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/router"
	"github.com/tableside/dinein/services"
	"github.com/tableside/dinein/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}
	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	sweeper := services.NewSessionSweeper(db)
	sweeper.Start()
	defer sweeper.Stop()

	rateLimiter := middlewares.NewRateLimiter(50, 100)

	r := router.SetupRouter(db, sweeper, rateLimiter)
	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Restaurant{},
		&models.User{},
		&models.Table{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.TableSession{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	if err := database.InstallSessionGuard(db); err != nil {
		utils.ErrorLogger.Printf("Error installing session guard: %v", err)
	}
}
