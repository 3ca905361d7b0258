package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/ports"
	"github.com/omokpang/omokpang/pkg/protocol"
)

// Manager coordinates live rooms
type Manager struct {
	cards     CardDealer
	store     ports.RoomStore
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	rules     Rules
	logger    *zap.Logger

	// Track live rooms and the room of every seated player
	rooms   sync.Map // map[string]*Room
	players sync.Map // map[ports.Player]*Room
	active  atomic.Int64
}

// NewManager creates a new room manager
func NewManager(
	cards CardDealer,
	store ports.RoomStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	rules Rules,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cards:     cards,
		store:     store,
		eventBus:  eventBus,
		metrics:   metrics,
		validator: validator,
		rules:     rules,
		logger:    logger,
	}
}

// closer is implemented by players whose connection can go away.
type closer interface {
	Closed() bool
}

// CreateRoom seats players in order, deals their cards and opens card
// selection. Seat 0 moves first.
func (m *Manager) CreateRoom(mode game.Mode, players []ports.Player) (*Room, error) {
	if err := m.validator.Validate(mode, players); err != nil {
		m.logger.Error("roster validation failed",
			zap.String("mode", string(mode)),
			zap.Error(err))
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	for _, p := range players {
		if _, busy := m.players.Load(p); busy {
			return nil, fmt.Errorf("player %s is already in a room", p.Nickname())
		}
	}

	r := &Room{
		id:        uuid.New().String(),
		mode:      mode,
		rules:     m.rules,
		createdAt: time.Now().UTC(),
		cards:     m.cards,
		store:     m.store,
		events:    m.eventBus,
		metrics:   m.metrics,
		logger:    m.logger,
		onClose:   m.release,
		turn:      -1,
		seats:     make([]*seat, len(players)),
	}
	for i, p := range players {
		r.seats[i] = &seat{index: i, player: p, team: mode.Team(i)}
	}

	m.rooms.Store(r.id, r)
	for _, p := range players {
		m.players.Store(p, r)
	}
	m.metrics.SetActiveRooms(int(m.active.Add(1)))
	m.metrics.RecordGameStarted(string(mode))

	nicknames := make([]string, len(players))
	for i, p := range players {
		nicknames[i] = p.Nickname()
	}
	r.publish(ports.EventTypeGameStarted, map[string]interface{}{
		"mode":    string(mode),
		"players": nicknames,
	})

	r.start()

	// a connection that dropped while the roster was being seated missed
	// its Leave
	for _, p := range players {
		if c, ok := p.(closer); ok && c.Closed() {
			m.logger.Info("player disconnected before the room opened",
				zap.String("room_id", r.id),
				zap.String("nickname", p.Nickname()))
			r.Leave(p)
		}
	}

	m.logger.Info("room created",
		zap.String("room_id", r.id),
		zap.String("mode", string(mode)),
		zap.Strings("players", nicknames))

	return r, nil
}

// RoomOf returns the room a player is seated in.
func (m *Manager) RoomOf(p ports.Player) (*Room, bool) {
	val, ok := m.players.Load(p)
	if !ok {
		return nil, false
	}
	return val.(*Room), true
}

// Get returns a live room by ID.
func (m *Manager) Get(roomID string) (*Room, bool) {
	val, ok := m.rooms.Load(roomID)
	if !ok {
		return nil, false
	}
	return val.(*Room), true
}

// Handle routes a command to the player's room.
func (m *Manager) Handle(p ports.Player, msg protocol.Message) {
	r, ok := m.RoomOf(p)
	if !ok {
		p.Send(protocol.Error(protocol.CodeNotInRoom))
		return
	}
	r.Handle(p, msg)
}

// Leave removes a player from their room, if any.
func (m *Manager) Leave(p ports.Player) {
	r, ok := m.RoomOf(p)
	if !ok {
		return
	}
	m.players.CompareAndDelete(p, r)
	r.Leave(p)
}

// List returns snapshots of every live room, oldest first.
func (m *Manager) List() []*game.RoomSnapshot {
	var rooms []*Room
	m.rooms.Range(func(_, value interface{}) bool {
		rooms = append(rooms, value.(*Room))
		return true
	})

	snaps := make([]*game.RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		snaps = append(snaps, r.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// ActiveRooms returns the number of live rooms.
func (m *Manager) ActiveRooms() int {
	return int(m.active.Load())
}

// release forgets a closed room. It runs under the room's lock.
func (m *Manager) release(r *Room) {
	if _, loaded := m.rooms.LoadAndDelete(r.id); !loaded {
		return
	}
	for _, s := range r.seats {
		m.players.CompareAndDelete(s.player, r)
	}
	m.metrics.SetActiveRooms(int(m.active.Add(-1)))
}

// Shutdown aborts every live room
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down room manager")

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.rooms.Range(func(_, value interface{}) bool {
			value.(*Room).Abort("server shutting down")
			return true
		})
	}()

	select {
	case <-done:
		m.logger.Info("room manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("room manager shutdown: %w", ctx.Err())
	}
}
