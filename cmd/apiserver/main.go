package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"plutochat/internal/config"
	"plutochat/internal/handlers/apiserver"
	appKafka "plutochat/internal/kafka"
	"plutochat/internal/middleware"
	appRedis "plutochat/internal/redis"
	"plutochat/internal/services"
	"plutochat/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Println("API server config loaded.")

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Println("API server database connected.")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("warning: database migration failed: %v", err)
	}

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	log.Println("Connected to redis.")

	tokenBlacklist := appRedis.NewTokenBlacklist(redisClient)
	presence := appRedis.NewPresence(redisClient)

	userRepo := storage.NewGormUserRepository(db)
	roomRepo := storage.NewGormRoomRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create kafka producer: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka producer initialized (API server).")

	authService := services.NewAuthService(userRepo, cfg)
	userService := services.NewUserService(userRepo)
	roomService := services.NewRoomService(roomRepo, msgRepo, presence)
	messageService := services.NewMessageService(roomService, kfkProducer, cfg.Kafka)

	storageBaseURL := "/uploads"
	if cfg.Storage.Type != "local" {
		log.Fatalf("unsupported storage type: %s", cfg.Storage.Type)
	}
	blobStore, err := storage.NewLocalBlobStore(cfg.Storage, storageBaseURL)
	if err != nil {
		log.Fatalf("failed to initialize local blob store: %v", err)
	}

	authHandler := apiserver.NewAuthHandler(authService, tokenBlacklist)
	userHandler := apiserver.NewUserHandler(userService)
	roomHandler := apiserver.NewRoomHandler(roomService, messageService)
	photoHandler := apiserver.NewPhotoHandler(roomService, messageService, blobStore, cfg.Storage)

	r := mux.NewRouter()

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth.JWTSecretKey, tokenBlacklist)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", authHandler.LogoutHandler).Methods(http.MethodPost)

	apiRouter.HandleFunc("/users/me", userHandler.GetMyProfileHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMyProfileHandler).Methods(http.MethodPut)

	apiRouter.HandleFunc("/rooms", roomHandler.CreateOrJoinRoomHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/rooms/create", roomHandler.CreateRoomHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/rooms/join", roomHandler.JoinRoomHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/rooms/user", roomHandler.GetUserRoomsHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/rooms/{roomID}", roomHandler.GetRoomHandler).Methods(http.MethodGet)
	apiRouter.HandleFunc("/rooms/{roomID}/messages", roomHandler.AddMessageHandler).Methods(http.MethodPost)
	apiRouter.HandleFunc("/rooms/{roomID}/photos", photoHandler.UploadPhotoHandler).Methods(http.MethodPost)

	staticPath := strings.TrimSuffix(storageBaseURL, "/") + "/"
	r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(http.Dir(cfg.Storage.LocalPath))))
	log.Printf("Serving uploaded files at %s from %s", staticPath, cfg.Storage.LocalPath)

	allowedOrigins := handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins)
	allowedMethods := handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods)
	allowedHeaders := handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders)
	exposedHeaders := handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders)
	maxAge := handlers.MaxAge(cfg.APIServer.CORS.MaxAge)

	corsOptions := []handlers.CORSOption{
		allowedOrigins,
		allowedMethods,
		allowedHeaders,
		exposedHeaders,
		maxAge,
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping API server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API server forced to shut down: %v", err)
	}

	log.Println("API server stopped.")
}
