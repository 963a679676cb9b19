package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomchat/backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const roomsCollection = "rooms"

// MongoStore keeps each room as one document in the "rooms" collection,
// keyed by a unique roomId index.
type MongoStore struct {
	client *mongo.Client
	rooms  *mongo.Collection
}

// NewMongoStore connects to uri, verifies connectivity and makes sure the
// collection indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, rooms: client.Database(database).Collection(roomsCollection)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.rooms.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create room indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.rooms.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get room", err)
	}
	if room.Messages == nil {
		room.Messages = []models.Message{}
	}
	if room.Participants == nil {
		room.Participants = []string{}
	}
	return &room, nil
}

// CreateRoomIfNotExists relies on an upsert with $setOnInsert so that only the
// first writer's createdAt/expiresAt ever land in the document.
func (s *MongoStore) CreateRoomIfNotExists(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	messages := room.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	participants := room.Participants
	if participants == nil {
		participants = []string{}
	}

	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"roomId": room.RoomID},
		bson.M{"$setOnInsert": bson.M{
			"messages":     messages,
			"createdAt":    room.CreatedAt,
			"expiresAt":    room.ExpiresAt,
			"participants": participants,
		}},
		options.Update().SetUpsert(true),
	)
	created := false
	switch {
	case mongo.IsDuplicateKeyError(err):
		// Lost a concurrent upsert race against the unique index; the other
		// writer's document is the room.
	case err != nil:
		return nil, false, unavailable("create room", err)
	default:
		created = res.UpsertedCount == 1
	}

	stored, err := s.GetRoom(ctx, room.RoomID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("create room %s: %w", room.RoomID, ErrRoomNotFound)
	}
	return stored, created, nil
}

func (s *MongoStore) AddParticipant(ctx context.Context, roomID, participantID string) error {
	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$addToSet": bson.M{"participants": participantID}},
	)
	if err != nil {
		return unavailable("add participant", err)
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{
			"$push":     bson.M{"messages": msg},
			"$addToSet": bson.M{"participants": msg.SenderID},
		},
	)
	if err != nil {
		return unavailable("append message", err)
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *MongoStore) DeleteExpiredRooms(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.rooms.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now}})
	if err != nil {
		return 0, unavailable("delete expired rooms", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
