package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/db"
	"github.com/umeyka/umeyka-backend/internal/goroutine"
	httpHandlers "github.com/umeyka/umeyka-backend/internal/http/handlers"
	httpRouter "github.com/umeyka/umeyka-backend/internal/http/router"
	"github.com/umeyka/umeyka-backend/internal/jobs"
	"github.com/umeyka/umeyka-backend/internal/logger"
	"github.com/umeyka/umeyka-backend/internal/repository"
	"github.com/umeyka/umeyka-backend/internal/service"
	"github.com/umeyka/umeyka-backend/internal/storage"
	"github.com/umeyka/umeyka-backend/internal/telegram"
	"github.com/umeyka/umeyka-backend/internal/validation"
	"github.com/umeyka/umeyka-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	log := logger.WithComponent("main")

	if err := validation.RegisterBindings(); err != nil {
		log.WithError(err).Fatal("не удалось зарегистрировать правила валидации")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.WithError(err).Fatal("ошибка миграций")
	}

	redisClient, err := db.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("ошибка подключения к redis")
	}
	if redisClient != nil {
		defer closeRedis(redisClient)
	} else {
		log.Warn("REDIS_ADDR не задан: гео-поиск через SQL, лимиты в памяти, идемпотентность выключена")
	}

	initData := telegram.NewValidator(cfg.Telegram.BotToken, cfg.Telegram.AuthMaxAge)
	if initData.SkipsSignature() {
		log.Warn("TELEGRAM_BOT_TOKEN не задан: подпись init data не проверяется")
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.WithError(err).Fatal("не удалось подготовить файловое хранилище")
	}

	searchCache := cache.NewTTLCache(ctx, 30*time.Second, time.Minute)
	geoIndex := cache.NewSkillGeoIndex(redisClient)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	skillRepo := repository.NewSkillRepository(dbConn)
	starRepo := repository.NewStarRepository(dbConn)
	dealRepo := repository.NewDealRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Вебсокеты и уведомления.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	goroutine.SafeGo(hub.Run)

	// Сервисы.
	authService := service.NewAuthService(userRepo, starRepo, initData, tokenManager, cfg.Economy, hub)
	profileService := service.NewProfileService(userRepo, mediaRepo, cfg.Telegram.BotUsername)
	skillService := service.NewSkillService(skillRepo, userRepo, chatRepo, searchCache, geoIndex, hub, cfg.Economy)
	starService := service.NewStarService(starRepo, searchCache, hub, cfg.Economy)
	dealService := service.NewDealService(dealRepo, chatRepo, skillRepo, userRepo, hub, cfg.Economy)
	chatService := service.NewChatService(chatRepo, skillRepo, userRepo, hub)
	reviewService := service.NewReviewService(reviewRepo, dealRepo, chatRepo, searchCache, hub)
	mediaService := service.NewMediaService(mediaRepo, photoStorage)

	// Фоновые задачи.
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		n, err := skillService.WarmGeoIndex(ctx)
		if err != nil {
			log.WithError(err).Warn("не удалось прогреть гео-индекс")
			return
		}
		if geoIndex != nil {
			log.WithFields(logrus.Fields{"skills": n}).Info("гео-индекс прогрет")
		}
	})
	premiumJob := jobs.NewPremiumExpirationJob(userRepo, cfg.PremiumSweepInterval)
	goroutine.SafeGoWithContext(ctx, premiumJob.Run)

	healthChecks := map[string]httpHandlers.Pinger{"database": dbConn}
	if redisClient != nil {
		healthChecks["redis"] = httpHandlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Auth:         httpHandlers.NewAuthHandler(authService),
		Profile:      httpHandlers.NewProfileHandler(profileService, hub),
		Skill:        httpHandlers.NewSkillHandler(skillService),
		Star:         httpHandlers.NewStarHandler(starService),
		Deal:         httpHandlers.NewDealHandler(dealService),
		Chat:         httpHandlers.NewChatHandler(chatService),
		Review:       httpHandlers.NewReviewHandler(reviewService),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		Media:        httpHandlers.NewMediaHandler(mediaService, photoStorage.MaxBytes()),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:       httpHandlers.NewHealthHandler(healthChecks),
	}, tokenManager, redisClient)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("ошибка остановки http сервера")
		}
	})

	log.WithFields(logrus.Fields{"port": cfg.HTTPPort, "env": cfg.Env}).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("сервер завершился с ошибкой")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.WithComponent("main").WithError(err).Error("ошибка закрытия базы")
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.WithComponent("main").WithError(err).Error("ошибка закрытия redis")
	}
}
