package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"earlyshhAPI/handlers"
	"earlyshhAPI/internal/config"
	"earlyshhAPI/internal/logger"
	"earlyshhAPI/internal/notification"
	"earlyshhAPI/internal/storage"
	"earlyshhAPI/internal/workers"
	"earlyshhAPI/middleware"
	"earlyshhAPI/services"

	_ "net/http/pprof"
)

func openStorage(ctx context.Context, cfg *config.Config) storage.Storage {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, using in-memory storage")
		return storage.NewMemoryStorage()
	}

	pg, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		log.Fatal("Failed to apply schema: ", err)
	}
	log.Println("Successfully connected to Postgres")
	return pg
}

func sessionSecret(cfg *config.Config) string {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal("Failed to generate session secret: ", err)
	}
	log.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	return hex.EncodeToString(buf)
}

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store := openStorage(ctx, cfg)
	if cfg.SeedData {
		if err := storage.Seed(ctx, store, time.Now()); err != nil {
			log.Fatal("Failed to seed data: ", err)
		}
	}
	cancel()

	defer func() {
		log.Println("Closing storage...")
		store.Close()
	}()

	// Realtime delivery
	hub := services.NewNotificationHub()
	go hub.Run()

	dispatcher := services.NewNotificationDispatcher(store, hub)

	fcmCtx, fcmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	fcmService, err := notification.NewFCMService(fcmCtx, cfg.FCMServiceAccountJSON, cfg.FCMCredentialsFile)
	fcmCancel()
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		dispatcher.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	// Services
	notificationService := services.NewNotificationService(store)
	notificationService.SetDispatcher(dispatcher)
	analyticsService := services.NewAnalyticsService(store)
	gamificationService := services.NewGamificationService(store, notificationService)
	campaignService := services.NewCampaignService(store, analyticsService)
	couponService := services.NewCouponService(store, gamificationService, analyticsService, notificationService, cfg.QRBaseURL)
	storyService := services.NewStoryService(store, gamificationService, analyticsService)
	surveyService := services.NewSurveyService(store, gamificationService, analyticsService)
	sessionService := services.NewSessionService(sessionSecret(cfg), cfg.SessionTTL)
	userService := services.NewUserService(store, sessionService, gamificationService)

	var clerkUsers middleware.ClerkUserResolver
	if cfg.ClerkSecretKey != "" {
		clerk.SetKey(cfg.ClerkSecretKey)
		clerkUsers = userService
		log.Println("Clerk initialized successfully")
	}
	auth := middleware.NewAuthenticator(sessionService, clerkUsers).WithAdmins(cfg.AdminUserIDs...)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workers.NewCouponExpiryWorker(store, notificationService).Start(workerCtx, 15*time.Minute)

	middleware.InitPrometheus(services.Collectors()...)

	rt := &handlers.Router{
		Auth:          handlers.NewAuthHandler(userService),
		Campaigns:     handlers.NewCampaignHandler(campaignService, couponService),
		Coupons:       handlers.NewCouponHandler(couponService),
		Users:         handlers.NewUserHandler(userService, gamificationService),
		Stories:       handlers.NewStoryHandler(storyService, surveyService),
		Notifications: handlers.NewNotificationHandler(notificationService, hub, cfg.CORSAllowedOrigins),
		Analytics:     handlers.NewAnalyticsHandler(analyticsService),
		Health:        handlers.NewHealthHandler(store),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)
	stopCleanup := make(chan struct{})
	go limiter.CleanupVisitors(stopCleanup)

	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	metricsAuth := middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)
	r.Handle("/metrics", metricsAuth(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(metricsAuth(http.DefaultServeMux))

	rt.Register(r, auth)

	// CORS configuration
	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "X-Request-ID"}),
		gorillaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port
	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server: ", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stopWorkers()
	close(stopCleanup)
	dispatcher.Stop()
	hub.Stop()

	log.Println("Server shutdown complete")
}
