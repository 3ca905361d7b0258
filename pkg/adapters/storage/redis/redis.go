package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
)

const roomKeyPrefix = "omokpang:room:"

// RoomStore implements ports.RoomStore using Redis
type RoomStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRoomStore creates a new Redis room store
func NewRoomStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RoomStore {
	return &RoomStore{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save writes a snapshot and refreshes its TTL.
func (s *RoomStore) Save(ctx context.Context, snapshot *game.RoomSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := s.client.Set(ctx, getRoomKey(snapshot.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}

	s.logger.Debug("room saved",
		zap.String("room_id", snapshot.ID),
		zap.String("phase", string(snapshot.Phase)))

	return nil
}

// Load retrieves a snapshot.
func (s *RoomStore) Load(ctx context.Context, roomID string) (*game.RoomSnapshot, error) {
	data, err := s.client.Get(ctx, getRoomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, game.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var snapshot game.RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &snapshot, nil
}

// Delete removes a snapshot
func (s *RoomStore) Delete(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, getRoomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	s.logger.Debug("room deleted", zap.String("room_id", roomID))
	return nil
}

// List returns every stored snapshot, oldest first. Keys that expire
// between SCAN and GET are skipped.
func (s *RoomStore) List(ctx context.Context) ([]*game.RoomSnapshot, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, roomKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	rooms := make([]*game.RoomSnapshot, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				s.logger.Warn("failed to read room",
					zap.String("key", key),
					zap.Error(err))
			}
			continue
		}

		var snapshot game.RoomSnapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			s.logger.Warn("skipping malformed room",
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		rooms = append(rooms, &snapshot)
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	return rooms, nil
}

// getRoomKey returns the Redis key for a room
func getRoomKey(roomID string) string {
	return roomKeyPrefix + roomID
}
