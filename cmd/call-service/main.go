package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	callHandler "chatlink-backend/internal/handler/http/call"
	wsHandler "chatlink-backend/internal/handler/ws"
	"chatlink-backend/internal/middleware"
	"chatlink-backend/internal/repository/cassandra"
	"chatlink-backend/internal/repository/cockroach"
	redisRepo "chatlink-backend/internal/repository/redis"
	callService "chatlink-backend/internal/service/call"
	sideeffectService "chatlink-backend/internal/service/sideeffect"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/database"
	"chatlink-backend/pkg/env"
	"chatlink-backend/pkg/jwt"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/push"
)

func main() {
	// 1. Logger
	if err := logger.Init(&logger.Config{
		Level:  env.GetString("LOG_LEVEL", "info"),
		Format: env.GetString("LOG_FORMAT", "json"),
		Output: "stdout",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	// 2. JWT manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		logger.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret, env.GetDuration("JWT_TOKEN_DURATION", 15*time.Minute))

	ctx := context.Background()

	// 3. CockroachDB (session store, conversations, notifications)
	cockroachDB, err := database.NewCockroachDB(ctx, &database.CockroachConfig{
		Host:     env.GetString("COCKROACH_HOST", "localhost"),
		Port:     env.GetInt("COCKROACH_PORT", 26257),
		User:     env.GetString("COCKROACH_USER", "root"),
		Password: env.GetStringFromFile("COCKROACH_PASSWORD", ""),
		Database: env.GetString("COCKROACH_DATABASE", "chatlink_db"),
		SSLMode:  env.GetString("COCKROACH_SSLMODE", "disable"),
	})
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}
	defer cockroachDB.Close()
	logger.Info("Connected to CockroachDB")

	// 4. Cassandra (chat history)
	cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    []string{env.GetString("CASSANDRA_HOST", "localhost")},
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "chatlink_ks"),
		Username: env.GetStringFromFile("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("Connected to Cassandra")

	// 5. Redis (presence, room pub/sub, push tokens)
	redisClient, err := database.NewRedisClient(ctx, &database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
		Timeout:  5 * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// 6. Repositories
	callRepo := cockroach.NewCallRepository(cockroachDB.Pool)
	conversationRepo := cockroach.NewConversationRepository(cockroachDB.Pool)
	notificationRepo := cockroach.NewNotificationRepository(cockroachDB.Pool)
	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)
	presenceRepo := redisRepo.NewPresenceRepository(redisClient)
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisClient)

	// 7. Push provider + service
	pushProvider, err := push.NewProvider()
	if err != nil {
		logger.Fatal("Failed to initialize push provider", zap.Error(err))
	}
	pushSvc := push.NewService(pushProvider, pushTokenRepo)

	// 8. Hub, side effects, call engine
	hub := wsHandler.NewHub(redisClient, presenceRepo)

	effectsSvc := sideeffectService.NewService(
		conversationRepo, messageRepo, notificationRepo, callRepo, presenceRepo, pushSvc)

	callSvc := callService.NewService(callRepo, presenceRepo, hub, effectsSvc, callService.Config{
		MaxParticipants: env.GetInt("CALL_MAX_PARTICIPANTS", constants.DefaultMaxCallParticipants),
		RingTimeout:     env.GetDuration("CALL_RING_TIMEOUT", constants.DefaultRingTimeout),
	})

	hub.SetHandler(wsHandler.NewCallHandler(callSvc, hub))

	// 9. HTTP handlers
	callHdlr := callHandler.NewHandler(callSvc, pushSvc)

	// 10. Router
	if env.GetString("ENV", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "call-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/")
	authed.Use(middleware.AuthMiddleware(jwtManager))
	{
		authed.GET("/ws/call", hub.ServeWS)

		v1 := authed.Group("/api/v1")
		{
			v1.GET("/calls", callHdlr.ListCalls)
			v1.GET("/calls/:roomId", callHdlr.GetCall)
			v1.POST("/push/tokens", callHdlr.RegisterPushToken)
			v1.DELETE("/push/tokens/:token", callHdlr.UnregisterPushToken)
		}
	}

	// 11. Start server
	port := env.GetString("PORT", "8083")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		logger.Info("Call service starting",
			zap.String("port", port),
			zap.String("ws_endpoint", "/ws/call"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
