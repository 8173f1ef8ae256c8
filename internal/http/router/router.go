package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/http/handlers"
	"github.com/umeyka/umeyka-backend/internal/http/middleware"
)

// Handlers собирает все хэндлеры API.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Profile      *handlers.ProfileHandler
	Skill        *handlers.SkillHandler
	Star         *handlers.StarHandler
	Deal         *handlers.DealHandler
	Chat         *handlers.ChatHandler
	Review       *handlers.ReviewHandler
	Notification *handlers.NotificationHandler
	Media        *handlers.MediaHandler
	WS           *handlers.WSHandler
	Health       *handlers.HealthHandler
}

// SetupRouter регистрирует маршруты. redisClient может быть nil.
func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser, redisClient *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "Idempotent-Replay", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.Health.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	store := middleware.NewLimiterStore(redisClient)
	authRateLimit := middleware.RateLimitMiddleware(store, "auth", 5, cfg.RateLimitPeriod)
	messageRateLimit := middleware.RateLimitMiddleware(store, "messages", cfg.RateLimitLimit, cfg.RateLimitPeriod)
	idempotent := middleware.Idempotency(redisClient)
	auth := middleware.AuthMiddleware(tokens)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/telegram", h.Auth.Telegram)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(auth)
	{
		protectedAuth.POST("/logout", h.Auth.Logout)
		protectedAuth.GET("/sessions", h.Auth.ListSessions)
		protectedAuth.DELETE("/sessions/:id", middleware.UUIDValidator("id"), h.Auth.DeleteSession)
	}

	// Публичные маршруты
	api.GET("/ws", h.WS.Handle)
	api.GET("/skills", h.Skill.List)
	api.GET("/skills/nearby", h.Skill.Nearby)
	api.GET("/skills/categories", h.Skill.Categories)
	api.GET("/skills/:id", middleware.UUIDValidator("id"), middleware.OptionalAuth(tokens), h.Skill.Get)
	api.GET("/skills/:id/reviews", middleware.UUIDValidator("id"), h.Review.ListSkillReviews)
	api.GET("/users/:id", middleware.UUIDValidator("id"), h.Profile.GetUser)
	api.GET("/users/:id/skills", middleware.UUIDValidator("id"), h.Skill.ListByUser)
	api.GET("/users/:id/reviews", middleware.UUIDValidator("id"), h.Review.ListUserReviews)

	protected := api.Group("/")
	protected.Use(auth)
	{
		protected.GET("/profile", h.Profile.GetMe)
		protected.PUT("/profile", h.Profile.UpdateMe)
		protected.GET("/profile/referral", h.Profile.Referral)

		protected.POST("/skills", h.Skill.Create)
		protected.GET("/skills/my", h.Skill.ListMine)
		protected.PUT("/skills/:id", middleware.UUIDValidator("id"), h.Skill.Update)
		protected.DELETE("/skills/:id", middleware.UUIDValidator("id"), h.Skill.Delete)
		protected.POST("/skills/:id/contact", middleware.UUIDValidator("id"), h.Skill.Contact)

		protected.GET("/stars/balance", h.Star.Balance)
		protected.GET("/stars/transactions", h.Star.Transactions)
		protected.POST("/stars/premium", idempotent, h.Star.PurchasePremium)
		protected.POST("/stars/boost", idempotent, h.Star.Boost)

		protected.POST("/deals", idempotent, h.Deal.Create)
		protected.GET("/deals", h.Deal.List)
		protected.GET("/deals/:id", middleware.UUIDValidator("id"), h.Deal.Get)
		protected.PUT("/deals/:id", middleware.UUIDValidator("id"), h.Deal.Update)
		protected.POST("/deals/:id/sign", middleware.UUIDValidator("id"), h.Deal.Sign)
		protected.POST("/deals/:id/complete", middleware.UUIDValidator("id"), h.Deal.Complete)
		protected.POST("/deals/:id/cancel", middleware.UUIDValidator("id"), h.Deal.Cancel)

		protected.POST("/chats", h.Chat.Open)
		protected.GET("/chats", h.Chat.List)
		protected.GET("/chats/:chatId", middleware.UUIDValidator("chatId"), h.Chat.Get)
		protected.GET("/chats/:chatId/messages", middleware.UUIDValidator("chatId"), h.Chat.Messages)
		protected.POST("/chats/:chatId/messages", middleware.UUIDValidator("chatId"), messageRateLimit, h.Chat.Send)
		protected.POST("/chats/:chatId/read", middleware.UUIDValidator("chatId"), h.Chat.Read)
		protected.POST("/chats/:chatId/complete", middleware.UUIDValidator("chatId"), h.Chat.Complete)

		protected.POST("/reviews", h.Review.Create)

		protected.GET("/notifications", h.Notification.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notification.CountUnread)
		protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), h.Notification.DeleteNotification)

		protected.POST("/media/photos", h.Media.UploadPhoto)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), h.Media.DeleteMedia)
	}

	return r
}
