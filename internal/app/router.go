package app

import (
	"log"
	"net/http"
	"time"

	"relgraph/internal/config"
	"relgraph/internal/middleware"
	"relgraph/internal/model"
	"relgraph/internal/repository"
	"relgraph/internal/service"
	"relgraph/internal/util"
	"relgraph/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	// Set Gin mode
	if cfg.ServerPort == "5000" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware(cfg.ClientURL))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}

	// Auto migrate
	if err := db.AutoMigrate(&model.User{}, &model.Friendship{}, &model.FriendRequest{}, &model.Notification{}); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// Initialize Redis with retry logic
	redisClient := initRedisWithRetry(cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	friendshipRepo := repository.NewFriendshipRepository(db, redisClient)
	requestRepo := repository.NewFriendRequestRepository(db, redisClient)
	notificationRepo := repository.NewNotificationRepository(db, redisClient)

	// Initialize RabbitMQ with retry logic
	rabbitMQ := initRabbitMQWithRetry(cfg)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("WebSocket hub started")

	// Initialize services
	notificationService := service.NewNotificationService(notificationRepo, rabbitMQ)
	notificationService.SetWSHub(wsHub)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)

	// Each authenticated actor gets its own relationship service instance,
	// bound and refreshed on first use.
	registry := service.NewSessionRegistry(func() service.RelationshipService {
		return service.NewRelationshipService(requestRepo, friendshipRepo, userRepo, notificationService)
	})

	// Initialize notification worker if RabbitMQ is available
	if rabbitMQ != nil {
		notificationWorker := service.NewNotificationWorker(rabbitMQ, wsHub)
		if err := notificationWorker.Start(); err != nil {
			log.Printf("Warning: Failed to start notification worker: %v", err)
		} else {
			log.Println("Notification worker started successfully")
		}
	}

	// Initialize handlers
	authHandler := NewAuthHandler(authService, registry, cfg.JWTSecret)
	userHandler := NewUserHandler(userRepo)
	relationshipHandler := NewRelationshipHandler(registry, userRepo)
	notificationHandler := NewNotificationHandler(notificationService)

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.AuthMiddleware(), authHandler.Logout)
		}

		// User routes
		users := api.Group("/users")
		{
			users.Use(authHandler.AuthMiddleware())
			{
				users.GET("/search", userHandler.SearchUsers)
				users.GET("/:id", userHandler.GetUser)
			}
		}

		// Relationship routes
		relationships := api.Group("/relationships")
		{
			relationships.Use(authHandler.AuthMiddleware())
			{
				relationships.POST("/requests", relationshipHandler.SendRequest)
				relationships.GET("/requests/incoming", relationshipHandler.ListIncoming)
				relationships.GET("/requests/outgoing", relationshipHandler.ListOutgoing)
				relationships.POST("/requests/:id/accept", relationshipHandler.Accept)
				relationships.POST("/requests/:id/decline", relationshipHandler.Decline)
				relationships.POST("/requests/:id/revoke", relationshipHandler.Revoke)
				relationships.GET("/friends", relationshipHandler.ListFriends)
				relationships.DELETE("/friends/:userID", relationshipHandler.RemoveFriend)
				relationships.GET("/status/:userID", relationshipHandler.Status)
				relationships.POST("/refresh", relationshipHandler.Refresh)
			}
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.Use(authHandler.AuthMiddleware())
			{
				notifications.GET("", notificationHandler.GetNotifications)
				notifications.GET("/unread/count", notificationHandler.GetUnreadCount)
				notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
				notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
			}
		}
	}

	// WebSocket route
	r.GET("/ws", func(c *gin.Context) {
		websocket.ServeWS(wsHub, cfg.JWTSecret).ServeHTTP(c.Writer, c.Request)
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "host=" + cfg.PostgresHost +
			" port=" + cfg.PostgresPort +
			" user=" + cfg.PostgresUser +
			" password=" + cfg.PostgresPassword +
			" dbname=" + cfg.PostgresDB +
			" sslmode=" + cfg.PostgresSSLMode
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(cfg *config.Config) *util.RabbitMQClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			log.Printf("RabbitMQ connected successfully on attempt %d", attempt)
			return rabbitMQ
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to RabbitMQ after %d attempts: %v. Notification delivery will be degraded.", maxRetries, err)
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(cfg *config.Config) *util.RedisClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			log.Printf("Redis connected successfully on attempt %d", attempt)
			return redisClient
		}

		if attempt < maxRetries {
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to Redis (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to Redis after %d attempts: %v. Caching will be disabled.", maxRetries, err)
		}
	}

	return nil
}

// corsMiddleware sets the CORS headers for the configured client origin
func corsMiddleware(clientURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", clientURL)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
