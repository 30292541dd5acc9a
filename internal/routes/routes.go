package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yuchen-w/CampusMarketBack/internal/config"
	"github.com/yuchen-w/CampusMarketBack/internal/handlers"
	"github.com/yuchen-w/CampusMarketBack/internal/middleware"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
	chatws "github.com/yuchen-w/CampusMarketBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	otpService := services.NewOTPService(cfg.OTPTTL)
	emailSender := services.NewSMTPEmailSender(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.OTPSender,
	)
	authHandler := handlers.NewAuthHandler(
		db,
		userRepo,
		otpService,
		emailSender,
		int(cfg.OTPTTL.Minutes()),
		cfg.JWTSecret,
	)

	listingService := services.NewListingService(listingRepo, storageService)
	listingHandler := handlers.NewListingHandler(listingService)

	chatHub := chatws.NewHub()
	go chatHub.Run()
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, userRepo, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	v1 := api.Group("/v1")

	listings := v1.Group("/listings")
	listings.Get("", listingHandler.ListListings)
	listings.Post("", middleware.AuthRequired(cfg.JWTSecret), listingHandler.CreateListing)
	listings.Get("/user", middleware.AuthRequired(cfg.JWTSecret), listingHandler.ListOwnListings)
	listings.Get("/:id", listingHandler.GetListing)
	listings.Patch("/:id", middleware.AuthRequired(cfg.JWTSecret), listingHandler.UpdateListing)
	listings.Delete("/:id", middleware.AuthRequired(cfg.JWTSecret), listingHandler.DeleteListing)
	listings.Post("/:id/images", middleware.AuthRequired(cfg.JWTSecret), listingHandler.UploadListingImage)

	conversations := v1.Group("/conversations", middleware.AuthRequired(cfg.JWTSecret))
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("/direct", chatHandler.CreateDirectConversation)
	conversations.Get("/:id", chatHandler.GetConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/send", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	api.Use("/v1/ws/chat/:id", chatHandler.WebSocketAuth)
	api.Get("/v1/ws/chat/:id", websocket.New(chatHandler.HandleWebSocket))
}
