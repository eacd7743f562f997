package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"plutochat/internal/config"
	appKafka "plutochat/internal/kafka"
	"plutochat/internal/wire"
)

// MessageService runs the room message pipeline: publishes raw messages to
// the broker, and — on the consuming side — persists them, stamps the server
// id, and re-publishes them for fan-out to every chatserver instance.
type MessageService interface {
	// Publish enqueues a client-published message on the room messages topic.
	Publish(ctx context.Context, room string, msg wire.Message) error

	// ProcessInbound is the consumer callback for the room messages topic:
	// persist, stamp, forward to the outgoing topic.
	ProcessInbound(ctx context.Context, kafkaMsg *confluentKafka.Message) error
}

type messageService struct {
	roomService RoomService
	producer    appKafka.MessageProducer
	cfg         config.KafkaConfig
}

// NewMessageService creates a new MessageService instance.
func NewMessageService(roomService RoomService, producer appKafka.MessageProducer, cfg config.KafkaConfig) MessageService {
	return &messageService{roomService: roomService, producer: producer, cfg: cfg}
}

// Publish enqueues a message for the room on the inbound topic. The room
// slug is the partition key, so a room's messages stay ordered.
func (s *messageService) Publish(ctx context.Context, room string, msg wire.Message) error {
	if msg.Sender == "" {
		return fmt.Errorf("message has no sender")
	}
	envelope := wire.Envelope{Room: room, Message: msg}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("serializing message envelope: %w", err)
	}
	if err := s.producer.SendMessage(ctx, s.cfg.RoomMessagesTopic, []byte(room), payload); err != nil {
		return fmt.Errorf("publishing message to broker: %w", err)
	}
	return nil
}

// ProcessInbound persists a consumed message and forwards the stored form
// (now carrying the server-assigned id) to the outgoing topic.
func (s *messageService) ProcessInbound(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
	var envelope wire.Envelope
	if err := json.Unmarshal(kafkaMsg.Value, &envelope); err != nil {
		// Malformed payloads are logged and committed, not retried forever.
		log.Printf("warning: dropping malformed message envelope: %v, raw: %s", err, string(kafkaMsg.Value))
		return nil
	}

	stored, err := s.roomService.AppendMessage(ctx, envelope.Room, envelope.Message)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			// The room vanished between publish and consume; drop.
			return nil
		}
		return fmt.Errorf("persisting message for room %s: %w", envelope.Room, err)
	}

	out := wire.Envelope{Room: envelope.Room, Message: stored.ToWire()}
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("serializing outgoing envelope: %w", err)
	}
	if err := s.producer.SendMessage(ctx, s.cfg.RoomOutgoingTopic, []byte(envelope.Room), payload); err != nil {
		return fmt.Errorf("forwarding message to outgoing topic: %w", err)
	}
	return nil
}
