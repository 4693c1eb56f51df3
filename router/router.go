package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tableside/dinein/controllers"
	"github.com/tableside/dinein/gateway"
	"github.com/tableside/dinein/middlewares"
	"github.com/tableside/dinein/services"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, sweeper *services.SessionSweeper, limiter *middlewares.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	// Registered before any route; gin snapshots the handler chain per
	// route at registration time.
	r.Use(limiter.RateLimit())

	userCtrl := controllers.NewUserController(db)
	restaurantCtrl := controllers.NewRestaurantController(db)
	tableCtrl := controllers.NewTableController(db)
	categoryCtrl := controllers.NewMenuCategoryController(db)
	menuCtrl := controllers.NewMenuController(db)
	sessionCtrl := controllers.NewSessionController(db, sweeper)
	orderCtrl := controllers.NewOrderController(db)
	paymentCtrl := controllers.NewPaymentController(db, gateway.GetService())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Real-time event delivery for both diners and staff.
	r.GET("/ws", controllers.HandleWebSocket)

	// Login and register get the strict limiter.
	auth := r.Group("/")
	auth.Use(middlewares.NewStrictRateLimiter())
	{
		auth.POST("/register", userCtrl.Register)
		auth.POST("/login", userCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                DINER ROUTES (session token is the credential)
	// ----------------------------------------------------------------
	// The QR code on the table encodes /r/{slug}?table=N; this is the
	// landing lookup.
	r.GET("/r/:slug", restaurantCtrl.GetRestaurantBySlug)
	r.GET("/r/:slug/categories", categoryCtrl.GetAllCategories)

	r.GET("/restaurants/:restaurant_id/menus", menuCtrl.GetRestaurantMenus)
	r.POST("/restaurants/:restaurant_id/tables/:table_number/session", sessionCtrl.CreateSession)
	r.GET("/restaurants/:restaurant_id/tables/:table_number/qr", tableCtrl.GetTableQR)

	session := r.Group("/sessions/:token")
	{
		session.GET("", sessionCtrl.VerifySession)
		session.GET("/snapshot", sessionCtrl.GetSessionSnapshot)
		session.POST("/orders", orderCtrl.CreateOrder)
		session.GET("/orders", orderCtrl.ListSessionOrders)
		session.POST("/checkout", paymentCtrl.Checkout)
		session.POST("/payment/confirm", sessionCtrl.ConfirmPayment)
		session.POST("/payment/counter", sessionCtrl.RequestCounterPayment)
	}

	// Gateway callback, authenticated by signature rather than JWT.
	r.POST("/payments/webhook", paymentCtrl.HandleWebhook)

	// ----------------------------------------------------------------
	//                STAFF ROUTES
	// ----------------------------------------------------------------
	staff := r.Group("/staff")
	staff.Use(middlewares.AuthMiddleware())
	{
		staff.GET("/profile", userCtrl.Profile)
		staff.GET("/dashboard", restaurantCtrl.GetDashboardStats)

		staff.GET("/sessions", sessionCtrl.ListSessions)
		staff.POST("/sessions/:session_id/paid", middlewares.RequireRole("staff"), sessionCtrl.MarkCounterPaid)

		staff.GET("/kitchen/orders", middlewares.RequireRole("chef", "staff"), orderCtrl.GetKitchenOrders)
		staff.PATCH("/orders/:order_id/status", middlewares.RequireRole("chef", "staff"), orderCtrl.UpdateOrderStatus)

		staff.GET("/tables", tableCtrl.GetAllTables)
		staff.POST("/tables", middlewares.RequireRole("staff"), tableCtrl.CreateTable)
		staff.PATCH("/tables/:table_id/status", middlewares.RequireRole("staff"), tableCtrl.UpdateTableStatus)

		staff.POST("/menus", middlewares.RequireRole("staff"), menuCtrl.CreateMenu)
		staff.PUT("/menus/:menu_id", middlewares.RequireRole("staff"), menuCtrl.UpdateMenu)
		staff.DELETE("/menus/:menu_id", middlewares.RequireRole("staff"), menuCtrl.DeleteMenu)

		staff.POST("/categories", middlewares.RequireRole("staff"), categoryCtrl.CreateCategory)
		staff.DELETE("/categories/:category_id", middlewares.RequireRole("staff"), categoryCtrl.DeleteCategory)
	}

	// Admin-only provisioning.
	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(), middlewares.RequireRole())
	{
		admin.POST("/restaurants", restaurantCtrl.CreateRestaurant)
	}

	return r
}
