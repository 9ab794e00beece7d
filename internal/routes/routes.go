package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/farm2market/internal/chat"
	"github.com/example/farm2market/internal/config"
	"github.com/example/farm2market/internal/handlers"
	"github.com/example/farm2market/internal/middleware"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/ws"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	feed := chat.NewFeed()
	chatStore := services.NewChatStore(db, feed)
	profileStore := services.NewProfileStore(db)
	identity := services.NewIdentityService()
	otp := services.NewOTPService(cfg.OTPExpires, services.LogSender{})
	gateway := services.NewRazorpayService(cfg)
	syncer := chat.NewSynchronizer(chatStore, feed)

	authHandler := handlers.NewAuthHandler(cfg, otp, identity, profileStore)
	cropHandler := handlers.NewCropHandler(db)
	orderHandler := handlers.NewOrderHandler(db, gateway)
	chatHandler := handlers.NewChatHandler(syncer)
	adminHandler := handlers.NewAdminHandler(db)
	wsHandler := ws.NewHandler(cfg, identity, profileStore, chatStore, feed)

	authRequired := middleware.AuthMiddleware(cfg, identity)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/otp/request", authHandler.RequestOTP)
	auth.Post("/otp/verify", authHandler.VerifyOTP)

	authed := auth.Group("", authRequired)
	authed.Get("/session", authHandler.Session)
	authed.Put("/profile", authHandler.SaveProfile)
	authed.Post("/logout", authHandler.Logout)

	farmerOnly := middleware.RequireProfile(profileStore, models.RoleFarmer)

	// Catalog. Browsing is public, listing management is farmer-only.
	// "/mine" is registered before "/:id" so it is not captured as an id.
	crops := api.Group("/crops")
	crops.Get("/", cropHandler.ListCrops)
	crops.Get("/mine", authRequired, farmerOnly, cropHandler.MyCrops)
	crops.Get("/:id", cropHandler.GetCrop)
	crops.Post("/", authRequired, farmerOnly, cropHandler.CreateCrop)
	crops.Put("/:id", authRequired, farmerOnly, cropHandler.UpdateCrop)
	crops.Delete("/:id", authRequired, farmerOnly, cropHandler.DeleteCrop)

	// Orders
	orders := api.Group("/orders", authRequired)
	orders.Post("/checkout", middleware.RequireProfile(profileStore, models.RoleBuyer), orderHandler.Checkout)
	orders.Post("/confirm", middleware.RequireProfile(profileStore, models.RoleBuyer), orderHandler.Confirm)
	orders.Get("/", middleware.RequireProfile(profileStore), orderHandler.ListOrders)
	orders.Get("/:id", middleware.RequireProfile(profileStore), orderHandler.GetOrder)
	orders.Put("/:id/status", middleware.RequireProfile(profileStore), orderHandler.UpdateStatus)

	// Chat threads
	chats := api.Group("/chats", authRequired, middleware.RequireProfile(profileStore))
	chats.Get("/", chatHandler.ListThreads)
	chats.Post("/", chatHandler.OpenThread)
	chats.Get("/:id/messages", chatHandler.ListMessages)
	chats.Post("/:id/messages", chatHandler.SendMessage)

	// Live message stream
	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/chats/:id", wsHandler.Thread())

	// Admin console
	admin := api.Group("/admin", authRequired, middleware.RequireProfile(profileStore, models.RoleAdmin))
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders/recent", adminHandler.RecentOrders)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Put("/orders/:id/status", adminHandler.UpdateAnyOrderStatus)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Put("/users/:id", adminHandler.UpdateUser)
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Get("/crops", adminHandler.ListAllCrops)
	admin.Put("/crops/:id", adminHandler.UpdateAnyCrop)
	admin.Delete("/crops/:id", adminHandler.DeleteAnyCrop)
}
