package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"merge-verse-backend/internal/common/cache"
	"merge-verse-backend/internal/common/config"
	"merge-verse-backend/internal/common/logger"
	"merge-verse-backend/internal/common/middleware"
	auctionHTTP "merge-verse-backend/internal/features/auction/delivery/http"
	auctionRepo "merge-verse-backend/internal/features/auction/repository/postgres"
	auctionService "merge-verse-backend/internal/features/auction/service"
	collectionHTTP "merge-verse-backend/internal/features/collection/delivery/http"
	collectionRepo "merge-verse-backend/internal/features/collection/repository/postgres"
	collectionService "merge-verse-backend/internal/features/collection/service"
	giftHTTP "merge-verse-backend/internal/features/gift/delivery/http"
	giftRepo "merge-verse-backend/internal/features/gift/repository/postgres"
	giftService "merge-verse-backend/internal/features/gift/service"
	giveawayHTTP "merge-verse-backend/internal/features/giveaway/delivery/http"
	giveawayRepo "merge-verse-backend/internal/features/giveaway/repository/postgres"
	giveawayService "merge-verse-backend/internal/features/giveaway/service"
	inventoryHTTP "merge-verse-backend/internal/features/inventory/delivery/http"
	inventoryRepo "merge-verse-backend/internal/features/inventory/repository/postgres"
	inventoryService "merge-verse-backend/internal/features/inventory/service"
	packHTTP "merge-verse-backend/internal/features/pack/delivery/http"
	packRepo "merge-verse-backend/internal/features/pack/repository/postgres"
	packService "merge-verse-backend/internal/features/pack/service"
	paymentHTTP "merge-verse-backend/internal/features/payment/delivery/http"
	paymentRepo "merge-verse-backend/internal/features/payment/repository/postgres"
	paymentService "merge-verse-backend/internal/features/payment/service"
	referralHTTP "merge-verse-backend/internal/features/referral/delivery/http"
	referralRepo "merge-verse-backend/internal/features/referral/repository/postgres"
	referralService "merge-verse-backend/internal/features/referral/service"
	userHTTP "merge-verse-backend/internal/features/user/delivery/http"
	userRepo "merge-verse-backend/internal/features/user/repository/postgres"
	userService "merge-verse-backend/internal/features/user/service"
	"merge-verse-backend/internal/platform/mailer"
	"merge-verse-backend/internal/platform/nowpayments"
	"merge-verse-backend/internal/platform/postgres"
	"merge-verse-backend/internal/platform/redis"
	"merge-verse-backend/internal/platform/telegram"
	"merge-verse-backend/internal/platform/tonapi"
	"merge-verse-backend/internal/utils/random"
)

// @title           MergeVerse API
// @version         1.0
// @description     API server for the MergeVerse Telegram Mini App. All endpoints require init_data authentication.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name init_data
// @description Telegram Mini App init_data string for authentication

func main() {
	cfg := config.Load()

	logger.Init("merge-verse-backend", cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("starting merge-verse backend")

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer postgresClient.Close()

	redisClient, err := redis.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewCacheService(redisClient)

	botClient := telegram.NewClient(cfg)
	nowPaymentsClient := nowpayments.NewClient(cfg)
	tonClient := tonapi.NewClient(cfg)
	mailerService := mailer.NewService(cfg)

	rnd := random.NewSeededRand()
	db := postgresClient.GetDB()

	// Репозитории
	giftRepository := giftRepo.NewPostgresRepository(db)
	inventoryRepository := inventoryRepo.NewPostgresRepository(db)
	userRepository := userRepo.NewPostgresRepository(db)
	referralRepository := referralRepo.NewPostgresRepository(db)
	packRepository := packRepo.NewPostgresRepository(db)
	collectionRepository := collectionRepo.NewPostgresRepository(db)
	auctionRepository := auctionRepo.NewPostgresRepository(db)
	giveawayRepository := giveawayRepo.NewPostgresRepository(db)
	paymentRepository := paymentRepo.NewPostgresRepository(db)

	// Сервисы; каталог, цены и настройки загружаются на старте
	giftSvc, err := giftService.NewGiftService(giftRepository, rnd)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize gift service")
	}

	referralSvc, err := referralService.NewReferralService(referralRepository)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize referral service")
	}

	inventorySvc := inventoryService.NewItemService(inventoryRepository)
	userSvc := userService.NewUserService(userRepository, inventoryRepository, giftSvc, cacheService, mailerService, rnd)
	packSvc := packService.NewPackService(packRepository, userRepository, giftSvc)

	collectionSvc, err := collectionService.NewCollectionService(collectionRepository, inventoryRepository, giftSvc, referralSvc, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize collection service")
	}

	auctionSvc := auctionService.NewAuctionService(auctionRepository, giftSvc, cacheService, botClient)

	giveawaySvc, err := giveawayService.NewGiveawayService(giveawayRepository, giftSvc, packSvc, cacheService, botClient, rnd, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize giveaway service")
	}

	paymentSvc := paymentService.NewPaymentService(paymentRepository, userRepository, referralSvc,
		nowPaymentsClient, tonClient, cacheService, mailerService, rnd, cfg)

	// Фоновые воркеры
	streakWorker := userService.NewStreakService(userRepository)
	auctionWorker := auctionService.NewExpirationService(auctionSvc)
	giveawayWorker := giveawayService.NewSchedulerService(giveawaySvc)
	tonWorker := paymentService.NewTonService(paymentSvc)

	streakWorker.Start()
	auctionWorker.Start()
	giveawayWorker.Start()
	tonWorker.Start()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	router.Use(cors.New(corsConfig))

	// Обработчики
	paymentHandler := paymentHTTP.NewPaymentHandler(paymentSvc)

	// Вебхуки провайдеров живут вне авторизации Telegram
	public := router.Group("/")
	paymentHandler.RegisterWebhooks(public)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramAuth(cfg))
	v1.Use(middleware.CheckBanned(cfg, userSvc))
	{
		userHTTP.NewUserHandler(userSvc).RegisterRoutes(v1, cfg)
		giftHTTP.NewGiftHandler(giftSvc).RegisterRoutes(v1, cfg)
		inventoryHTTP.NewItemHandler(inventorySvc).RegisterRoutes(v1, cfg)
		referralHTTP.NewReferralHandler(referralSvc).RegisterRoutes(v1, cfg)
		packHTTP.NewPackHandler(packSvc).RegisterRoutes(v1, cfg)
		collectionHTTP.NewCollectionHandler(collectionSvc).RegisterRoutes(v1, cfg)
		auctionHTTP.NewAuctionHandler(auctionSvc).RegisterRoutes(v1, cfg)
		giveawayHTTP.NewGiveawayHandler(giveawaySvc).RegisterRoutes(v1, cfg)
		paymentHandler.RegisterRoutes(v1, cfg)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "merge-verse-backend",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "redis unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	tonWorker.Stop()
	giveawayWorker.Stop()
	auctionWorker.Stop()
	streakWorker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
