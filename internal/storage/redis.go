package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"roomchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "roomchat:"

// Room metadata is created together with its expiry index entry.
var createRoomScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`)

var appendMessageScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[2])
return 1
`)

var addParticipantScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// The score is re-checked so a room re-created after ZRANGEBYSCORE ran is kept.
var deleteRoomScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[4], ARGV[1])
if not score or tonumber(score) >= tonumber(ARGV[2]) then
	return 0
end
local n = redis.call('DEL', KEYS[1])
redis.call('DEL', KEYS[2], KEYS[3])
redis.call('ZREM', KEYS[4], ARGV[1])
return n
`)

type redisRoomMeta struct {
	RoomID    string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RedisStore splits a room across a metadata string, a message list and a
// participant set, plus one sorted set indexing every room by expiry.
type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{Redis: rdb}
}

// DialRedis connects and verifies the server answers PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return NewRedisStore(rdb), nil
}

func metaKey(roomID string) string         { return redisKeyPrefix + "room:" + roomID }
func messagesKey(roomID string) string     { return metaKey(roomID) + ":messages" }
func participantsKey(roomID string) string { return metaKey(roomID) + ":participants" }
func expiryIndexKey() string               { return redisKeyPrefix + "rooms:expiry" }

func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var (
		metaCmd  *redis.StringCmd
		msgsCmd  *redis.StringSliceCmd
		partsCmd *redis.StringSliceCmd
	)
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.Get(ctx, metaKey(roomID))
		msgsCmd = pipe.LRange(ctx, messagesKey(roomID), 0, -1)
		partsCmd = pipe.SMembers(ctx, participantsKey(roomID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("get room", err)
	}

	rawMeta, err := metaCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get room", err)
	}

	var meta redisRoomMeta
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}

	room := &models.Room{
		RoomID:       meta.RoomID,
		CreatedAt:    meta.CreatedAt,
		ExpiresAt:    meta.ExpiresAt,
		Messages:     []models.Message{},
		Participants: []string{},
	}
	for _, raw := range msgsCmd.Val() {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message in room %s: %w", roomID, err)
		}
		room.Messages = append(room.Messages, msg)
	}
	room.Participants = append(room.Participants, partsCmd.Val()...)
	sort.Strings(room.Participants)
	return room, nil
}

func (s *RedisStore) CreateRoomIfNotExists(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	meta, err := json.Marshal(redisRoomMeta{RoomID: room.RoomID, CreatedAt: room.CreatedAt, ExpiresAt: room.ExpiresAt})
	if err != nil {
		return nil, false, err
	}

	created, err := createRoomScript.Run(ctx, s.Redis,
		[]string{metaKey(room.RoomID), expiryIndexKey()},
		string(meta), room.ExpiresAt.UnixMilli(), room.RoomID,
	).Int64()
	if err != nil {
		return nil, false, unavailable("create room", err)
	}

	stored, err := s.GetRoom(ctx, room.RoomID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("create room %s: %w", room.RoomID, ErrRoomNotFound)
	}
	return stored, created == 1, nil
}

func (s *RedisStore) AddParticipant(ctx context.Context, roomID, participantID string) error {
	ok, err := addParticipantScript.Run(ctx, s.Redis,
		[]string{metaKey(roomID), participantsKey(roomID)},
		participantID,
	).Int64()
	if err != nil {
		return unavailable("add participant", err)
	}
	if ok == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *RedisStore) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ok, err := appendMessageScript.Run(ctx, s.Redis,
		[]string{metaKey(roomID), messagesKey(roomID), participantsKey(roomID)},
		string(raw), msg.SenderID,
	).Int64()
	if err != nil {
		return unavailable("append message", err)
	}
	if ok == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// DeleteExpiredRooms removes rooms one by one; a failure part way leaves the
// already-deleted rooms deleted and the rest for the next run.
func (s *RedisStore) DeleteExpiredRooms(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.UnixMilli()
	ids, err := s.Redis.ZRangeByScore(ctx, expiryIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, unavailable("delete expired rooms", err)
	}

	var deleted int64
	for _, id := range ids {
		n, err := deleteRoomScript.Run(ctx, s.Redis,
			[]string{metaKey(id), messagesKey(id), participantsKey(id), expiryIndexKey()},
			id, cutoff,
		).Int64()
		if err != nil {
			return deleted, unavailable("delete expired rooms", err)
		}
		deleted += n
	}
	return deleted, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *RedisStore) Close(context.Context) error {
	return s.Redis.Close()
}
