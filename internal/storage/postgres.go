package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomchat/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Only appends when the id is not already in the array; the row lock taken by
// UPDATE makes concurrent adds of the same id collapse into one.
const addParticipantSQL = `
	UPDATE chat_rooms
	SET participants = array_append(participants, ?::text)
	WHERE room_id = ? AND NOT (?::text = ANY(participants))`

// PostgresStore maps rooms onto chat_rooms and their history onto
// chat_histories (ON DELETE CASCADE).
type PostgresStore struct {
	DB *gorm.DB
}

// NewPostgresStore opens dsn and migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	return NewPostgresStoreFromDB(db)
}

// NewPostgresStoreFromDB wraps an existing connection. TranslateError must be
// enabled on db for foreign key violations to map to ErrRoomNotFound.
func NewPostgresStoreFromDB(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&models.ChatRoom{}, &models.ChatHistory{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var row models.ChatRoom
	err := s.DB.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("seq asc") }).
		Where("room_id = ?", roomID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get room", err)
	}
	return row.ToRoom(), nil
}

func (s *PostgresStore) CreateRoomIfNotExists(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	row := models.ChatRoomFromRoom(room)
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "room_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, false, unavailable("create room", res.Error)
	}

	stored, err := s.GetRoom(ctx, room.RoomID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("create room %s: %w", room.RoomID, ErrRoomNotFound)
	}
	return stored, res.RowsAffected == 1, nil
}

func (s *PostgresStore) AddParticipant(ctx context.Context, roomID, participantID string) error {
	db := s.DB.WithContext(ctx)
	res := db.Exec(addParticipantSQL, participantID, roomID, participantID)
	if res.Error != nil {
		return unavailable("add participant", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Nothing updated: either already a participant or no such room.
	var n int64
	if err := db.Model(&models.ChatRoom{}).Where("room_id = ?", roomID).Count(&n).Error; err != nil {
		return unavailable("add participant", err)
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.ChatHistoryFromMessage(roomID, msg)).Error; err != nil {
			return err
		}
		return tx.Exec(addParticipantSQL, msg.SenderID, roomID, msg.SenderID).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ErrRoomNotFound
	}
	if err != nil {
		return unavailable("append message", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpiredRooms(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.ChatRoom{})
	if res.Error != nil {
		return 0, unavailable("delete expired rooms", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close(context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
