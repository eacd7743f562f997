package storage

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plutochat/internal/models"
)

// RoomRepository defines the interface for room data operations. Lookups go
// through the lowercased slug so room identity is case-insensitive.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetBySlug(ctx context.Context, slug string) (*models.Room, error)
	GetBySlugWithMessages(ctx context.Context, slug string) (*models.Room, error)
	AddMember(ctx context.Context, roomID, userID uint) error
	MemberNames(ctx context.Context, roomID uint) ([]string, error)
	RoomsForUser(ctx context.Context, userID uint) ([]*models.Room, error)
}

// gormRoomRepository implements RoomRepository using GORM.
type gormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based RoomRepository.
func NewGormRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

// Create creates a new room record in the database.
func (r *gormRoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.Slug == "" {
		room.Slug = models.RoomSlug(room.RoomID)
	}
	return r.db.WithContext(ctx).Create(room).Error
}

// GetBySlug retrieves a room by its normalized identifier.
func (r *gormRoomRepository) GetBySlug(ctx context.Context, slug string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetBySlugWithMessages retrieves a room with its full message history,
// oldest first.
func (r *gormRoomRepository) GetBySlugWithMessages(ctx context.Context, slug string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at ASC, id ASC")
		}).
		Where("slug = ?", slug).First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// AddMember adds a user to a room. Adding an existing member is a no-op.
func (r *gormRoomRepository) AddMember(ctx context.Context, roomID, userID uint) error {
	member := models.RoomMember{RoomID: roomID, UserID: userID, JoinedAt: time.Now()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
}

// MemberNames lists the usernames of a room's members, oldest join first.
func (r *gormRoomRepository) MemberNames(ctx context.Context, roomID uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Joins("JOIN users ON users.id = room_members.user_id").
		Where("room_members.room_id = ?", roomID).
		Order("room_members.joined_at ASC").
		Pluck("users.username", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// RoomsForUser lists the rooms a user has joined.
func (r *gormRoomRepository) RoomsForUser(ctx context.Context, userID uint) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ?", userID).
		Order("rooms.created_at ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
