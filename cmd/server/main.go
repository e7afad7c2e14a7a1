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

	"linkup/infrastructure/cache"
	"linkup/infrastructure/db"
	"linkup/infrastructure/media"
	"linkup/infrastructure/push"
	"linkup/infrastructure/ws"
	httpHandler "linkup/internal/delivery/http"
	"linkup/internal/delivery/websocket"
	"linkup/internal/repository"
	"linkup/internal/usecase"
	"linkup/pkg/jwt"
	"linkup/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("godotenv: error loading .env file")
	}

	ctx := context.Background()

	mongoDbHost := os.Getenv("MONGODB_URI")
	mongoDbName := os.Getenv("MONGODB_DATABASE")
	mongoDb, err := db.NewMongoStore(ctx, mongoDbHost, mongoDbName)
	if err != nil {
		panic(err)
	}

	log.Println("Connected to MongoDB")

	// Initialize repositories
	userRepo := repository.NewUserRepository(mongoDb.DB)
	roomRepo := repository.NewChatRoomRepository(mongoDb.DB)
	messageRepo := repository.NewMessageRepository(mongoDb.DB)
	permissionRepo := repository.NewPermissionRepository(mongoDb.DB)
	notificationRepo := repository.NewNotificationRepository(mongoDb.DB)

	for _, ensure := range []func(context.Context) error{
		roomRepo.EnsureIndexes,
		messageRepo.EnsureIndexes,
		permissionRepo.EnsureIndexes,
		notificationRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatalf("ensure indexes: %v", err)
		}
	}

	// Initialize JWT manager (tokens are minted by the auth service; we
	// only validate)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-this-in-production" // Default for development
		log.Println("Warning: Using default JWT secret. Set JWT_SECRET in .env for production")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute)

	// Push provider and media store
	pushClient := push.NewClient(os.Getenv("FCM_ENDPOINT"), os.Getenv("FCM_SERVER_KEY"))
	mediaClient := media.NewClient(os.Getenv("MEDIA_SERVICE_URL"), os.Getenv("MEDIA_SERVICE_KEY"))

	// Per-recipient dispatch throttle: 10 notifications per minute
	limiter := ratelimit.NewSlidingWindow(10, time.Minute, 5*time.Minute)
	defer limiter.Close()

	memCache := cache.NewMemCache(time.Minute)
	defer memCache.Close()

	// Initialize use cases
	notificationUc := usecase.NewNotificationUsecase(notificationRepo, userRepo, pushClient, limiter, memCache)
	chatUc := usecase.NewChatUsecase(roomRepo, messageRepo, userRepo, mediaClient, notificationUc)
	permissionUc := usecase.NewPermissionUsecase(permissionRepo, userRepo, chatUc, notificationUc)
	presenceUc := usecase.NewPresenceUsecase(userRepo, roomRepo)

	// Check if Redis is enabled
	redisAddr := os.Getenv("REDIS_ADDR")

	var hub ws.IHub
	if redisAddr != "" {
		serverID := os.Getenv("SERVER_ID")
		if serverID == "" {
			serverID = "server-1" // Default
		}

		log.Printf("Using Redis hub at %s with server ID: %s", redisAddr, serverID)
		hub = ws.NewRedisHub(redisAddr, serverID)
	} else {
		log.Println("Using in-memory hub (single server)")
		hub = ws.NewHub()
	}

	websocketH := websocket.NewWebsocketHandler(hub, presenceUc, chatUc, jwtManager)
	hub.SetOnClientUnregister(websocketH.HandleDisconnect)

	go hub.Run()

	log.Println("Websocket is running")

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(corsMiddleware)

	httpH := httpHandler.NewHttpHandler(chatUc, permissionUc, notificationUc, hub)
	authMiddleware := httpHandler.NewAuthMiddleware(jwtManager)

	httpHandler.MapHttpRoutes(router, httpH, websocketH, authMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server is running on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := mongoDb.Close(shutdownCtx); err != nil {
		log.Printf("mongo disconnect: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "http://localhost:3000")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
