package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/omokpang/omokpang/internal/domain/game"
)

// InMemoryRoomStore implements ports.RoomStore using an in-memory map.
// Used by tests and by servers started with OMOK_REDIS_DISABLED.
type InMemoryRoomStore struct {
	rooms map[string][]byte
	mu    sync.RWMutex
}

// NewInMemoryRoomStore creates a new in-memory room store
func NewInMemoryRoomStore() *InMemoryRoomStore {
	return &InMemoryRoomStore{
		rooms: make(map[string][]byte),
	}
}

// Save stores an encoded copy so later mutations of snapshot are not seen.
func (s *InMemoryRoomStore) Save(ctx context.Context, snapshot *game.RoomSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[snapshot.ID] = data
	return nil
}

func (s *InMemoryRoomStore) Load(ctx context.Context, roomID string) (*game.RoomSnapshot, error) {
	s.mu.RLock()
	data, ok := s.rooms[roomID]
	s.mu.RUnlock()

	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return decode(data)
}

func (s *InMemoryRoomStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
	return nil
}

// List returns every stored snapshot, oldest first.
func (s *InMemoryRoomStore) List(ctx context.Context) ([]*game.RoomSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*game.RoomSnapshot, 0, len(s.rooms))
	for _, data := range s.rooms {
		snapshot, err := decode(data)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, snapshot)
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

func decode(data []byte) (*game.RoomSnapshot, error) {
	var snapshot game.RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &snapshot, nil
}
