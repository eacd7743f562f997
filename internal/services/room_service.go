package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"plutochat/internal/models"
	"plutochat/internal/storage"
	"plutochat/internal/wire"
)

var (
	// ErrRoomExists is returned by create-only when the name is taken.
	ErrRoomExists = errors.New("room name already exists")
	// ErrRoomNotFound is returned when the room id matches nothing.
	ErrRoomNotFound = errors.New("room not found")
)

// OnlineLister reports which members are currently subscribed to a room
// topic. Implemented by the Redis presence tracker; may be nil.
type OnlineLister interface {
	Online(ctx context.Context, slug string) ([]string, error)
}

// RoomService handles room lifecycle and snapshots.
type RoomService interface {
	// CreateRoom creates a new room; fails with ErrRoomExists if taken.
	CreateRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error)
	// JoinRoom adds the user to an existing room; ErrRoomNotFound if missing.
	JoinRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error)
	// CreateOrJoin creates the room if needed and joins it either way.
	CreateOrJoin(ctx context.Context, roomID string, userID uint) (*models.Room, error)
	// Get returns the room without its history; ErrRoomNotFound if missing.
	Get(ctx context.Context, roomID string) (*models.Room, error)
	// Snapshot returns the room's members and full ordered history.
	Snapshot(ctx context.Context, roomID string) (*wire.RoomSnapshot, error)
	// RoomsForUser lists the rooms the user has joined.
	RoomsForUser(ctx context.Context, userID uint) ([]*models.Room, error)
	// AppendMessage persists a message to the room's history.
	AppendMessage(ctx context.Context, roomID string, msg wire.Message) (*models.Message, error)
}

type roomService struct {
	roomRepo storage.RoomRepository
	msgRepo  storage.MessageRepository
	online   OnlineLister
}

// NewRoomService creates a new RoomService instance. online may be nil.
func NewRoomService(roomRepo storage.RoomRepository, msgRepo storage.MessageRepository, online OnlineLister) RoomService {
	return &roomService{roomRepo: roomRepo, msgRepo: msgRepo, online: online}
}

// CreateRoom creates a new room and joins the creator.
func (s *roomService) CreateRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	slug := models.RoomSlug(roomID)
	if slug == "" {
		return nil, fmt.Errorf("room id is required")
	}

	if _, err := s.roomRepo.GetBySlug(ctx, slug); err == nil {
		return nil, ErrRoomExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking room: %w", err)
	}

	room := &models.Room{RoomID: roomID, Slug: slug}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}
	if err := s.roomRepo.AddMember(ctx, room.ID, userID); err != nil {
		return nil, fmt.Errorf("adding creator to room: %w", err)
	}
	return room, nil
}

// JoinRoom adds the user to an existing room; joining twice is a no-op.
func (s *roomService) JoinRoom(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetBySlug(ctx, models.RoomSlug(roomID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("looking up room: %w", err)
	}
	if err := s.roomRepo.AddMember(ctx, room.ID, userID); err != nil {
		return nil, fmt.Errorf("adding member to room: %w", err)
	}
	return room, nil
}

// CreateOrJoin creates the room if needed and joins it either way.
func (s *roomService) CreateOrJoin(ctx context.Context, roomID string, userID uint) (*models.Room, error) {
	room, err := s.JoinRoom(ctx, roomID, userID)
	if errors.Is(err, ErrRoomNotFound) {
		room, err = s.CreateRoom(ctx, roomID, userID)
		if errors.Is(err, ErrRoomExists) {
			// Lost the race to another creator; join the winner's room.
			return s.JoinRoom(ctx, roomID, userID)
		}
	}
	return room, err
}

// Get returns the room record without loading its history.
func (s *roomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.roomRepo.GetBySlug(ctx, models.RoomSlug(roomID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("looking up room: %w", err)
	}
	return room, nil
}

// Snapshot returns the members and full ordered message history of a room.
func (s *roomService) Snapshot(ctx context.Context, roomID string) (*wire.RoomSnapshot, error) {
	slug := models.RoomSlug(roomID)
	room, err := s.roomRepo.GetBySlugWithMessages(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("loading room: %w", err)
	}

	members, err := s.roomRepo.MemberNames(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("loading room members: %w", err)
	}

	snapshot := &wire.RoomSnapshot{
		RoomID:   room.RoomID,
		Members:  members,
		Messages: make([]wire.Message, 0, len(room.Messages)),
	}
	for i := range room.Messages {
		snapshot.Messages = append(snapshot.Messages, room.Messages[i].ToWire())
	}

	if s.online != nil {
		online, err := s.online.Online(ctx, slug)
		if err != nil {
			// Presence is best effort; the snapshot stands without it.
			log.Printf("warning: cannot load presence for room %s: %v", slug, err)
		} else {
			snapshot.Online = online
		}
	}
	return snapshot, nil
}

// RoomsForUser lists the rooms the user has joined.
func (s *roomService) RoomsForUser(ctx context.Context, userID uint) ([]*models.Room, error) {
	rooms, err := s.roomRepo.RoomsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	return rooms, nil
}

// AppendMessage persists a message to the room's history, stamping a server
// id if the message does not carry one yet.
func (s *roomService) AppendMessage(ctx context.Context, roomID string, msg wire.Message) (*models.Message, error) {
	room, err := s.roomRepo.GetBySlug(ctx, models.RoomSlug(roomID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("looking up room: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	stored := models.MessageFromWire(room.ID, msg)
	if err := s.msgRepo.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}
	return stored, nil
}
