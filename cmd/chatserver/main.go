package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	redisDriver "github.com/redis/go-redis/v9"

	"plutochat/internal/config"
	"plutochat/internal/handlers/chatserver"
	appKafka "plutochat/internal/kafka"
	appRedis "plutochat/internal/redis"
	"plutochat/internal/services"
	"plutochat/internal/storage"
	appWS "plutochat/internal/websocket"
	"plutochat/internal/wire"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Println("Chat server config loaded.")

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
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

	presence := appRedis.NewPresence(redisClient)
	notifier := chatserver.NewPresenceNotifier(presence)

	hub := appWS.NewHub(notifier)
	go hub.Run()

	roomRepo := storage.NewGormRoomRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	roomService := services.NewRoomService(roomRepo, msgRepo, presence)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create kafka producer: %v", err)
	}
	defer kfkProducer.Close()

	messageService := services.NewMessageService(roomService, kfkProducer, cfg.Kafka)

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	// Persisting consumer: one instance across the fleet wins each message,
	// stores it, and republishes it on the outgoing topic.
	inboundConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create inbound kafka consumer: %v", err)
	}
	defer inboundConsumer.Close()

	go func() {
		topics := []string{cfg.Kafka.RoomMessagesTopic}
		log.Printf("Inbound consumer started, topic: %s, group: %s", cfg.Kafka.RoomMessagesTopic, cfg.Kafka.ConsumerGroup)
		err := inboundConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup, messageService.ProcessInbound)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("inbound consumer error: %v", err)
		}
	}()

	// Fan-out consumer: a unique group per instance so every chat server
	// sees every stored message and can deliver it to local subscribers.
	fanoutConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to create fan-out kafka consumer: %v", err)
	}
	defer fanoutConsumer.Close()

	fanoutGroup := fmt.Sprintf("%s-%s", cfg.Kafka.FanoutGroupPrefix, uuid.NewString())
	go func() {
		topics := []string{cfg.Kafka.RoomOutgoingTopic}
		log.Printf("Fan-out consumer started, topic: %s, group: %s", cfg.Kafka.RoomOutgoingTopic, fanoutGroup)
		err := fanoutConsumer.Consume(consumerCtx, topics, fanoutGroup, func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
			var env wire.Envelope
			if err := json.Unmarshal(kafkaMsg.Value, &env); err != nil {
				log.Printf("fan-out: dropping malformed payload: %v", err)
				return nil
			}
			hub.DeliverRoomMessage(env.Room, &env.Message)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("fan-out consumer error: %v", err)
		}
	}()

	wsHandler := chatserver.NewWebSocketHandler(hub, messageService, cfg)

	httpMux := http.NewServeMux()
	httpMux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           serverAddr,
		Handler:        httpMux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Chat server listening on %s, websocket path %s", serverAddr, cfg.Server.WebSocketPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("chat server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping chat server...")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("chat server forced to shut down: %v", err)
	}

	log.Println("Chat server stopped.")
}
