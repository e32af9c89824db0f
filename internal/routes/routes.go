package routes

import (
	"context"
	"log"

	"github.com/antonykinuthia/luxliving/internal/config"
	"github.com/antonykinuthia/luxliving/internal/handlers"
	"github.com/antonykinuthia/luxliving/internal/middleware"
	"github.com/antonykinuthia/luxliving/internal/realtime"
	"github.com/antonykinuthia/luxliving/internal/repository"
	"github.com/antonykinuthia/luxliving/internal/services"
	"github.com/antonykinuthia/luxliving/internal/store"
	chatws "github.com/antonykinuthia/luxliving/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, docStore store.DocumentStore, broker realtime.Broker) error {
	userRepo := repository.NewUserRepository(docStore)
	conversationRepo := repository.NewConversationRepository(docStore)
	messageRepo := repository.NewMessageRepository(docStore)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	var pushService services.PushSender
	if cfg.ExpoPushEndpoint != "" {
		pushService = services.NewExpoPushService(cfg.ExpoPushEndpoint)
	}

	chatService := services.NewChatService(conversationRepo, messageRepo, userRepo, broker, storageService, pushService)

	chatHub := chatws.NewHub()
	go chatHub.Run()
	if _, err := chatHub.Bridge(context.Background(), broker); err != nil {
		// Online delivery degrades to client-side polling; the REST
		// surface stays fully functional.
		log.Printf("chat hub bridge unavailable: %v", err)
	}

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	authProtected.Post("/push-token", authHandler.RegisterPushToken)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.OpenConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	authProtected.Post("/messages", chatHandler.SendMessage)
	authProtected.Post("/attachments", chatHandler.UploadAttachment)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	if cfg.DocsEnabled() {
		RegisterDocs(app)
	}

	return nil
}
