// Package ports declares the interfaces between the application layer and
// its adapters.
package ports

import (
	"context"
	"time"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/protocol"
)

// EventType names a game lifecycle event.
type EventType string

const (
	EventTypeGameStarted  EventType = "game.started"
	EventTypeGameFinished EventType = "game.finished"
	EventTypeGameAborted  EventType = "game.aborted"
)

// GameEventsTopic carries every room lifecycle event.
const GameEventsTopic = "game.events"

// Event is a message published on the event bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	RoomID    string                 `json:"room_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes an event. A returned error leaves the event
// unacknowledged.
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes and delivers events by topic.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// Player is a connected participant. Send must not block; a connection
// that cannot keep up is dropped by its transport.
type Player interface {
	Nickname() string
	Send(msg protocol.Message)
}

// RoomStore persists room snapshots.
type RoomStore interface {
	Save(ctx context.Context, snapshot *game.RoomSnapshot) error
	Load(ctx context.Context, roomID string) (*game.RoomSnapshot, error)
	Delete(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]*game.RoomSnapshot, error)
}

// UserRepository is the persistence port for player accounts.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	FindByNickname(ctx context.Context, nickname string) (*user.User, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	ListByPoints(ctx context.Context, limit int) ([]*user.User, error)
	// ApplyResults records all results of one game atomically, once per
	// settlementID. It reports false when settlementID was applied before.
	ApplyResults(ctx context.Context, settlementID string, results []user.PlayerResult) (bool, error)
	GetPoints(ctx context.Context, nickname string) (int, error)
	// DecreasePoints subtracts amount only when the balance covers it and
	// reports whether it did.
	DecreasePoints(ctx context.Context, nickname string, amount int) (bool, error)
}

// MetricsCollector records server metrics.
type MetricsCollector interface {
	RecordGameStarted(mode string)
	RecordGameFinished(mode, outcome string, duration time.Duration)
	RecordMove(kind string)
	SetActiveRooms(count int)
	SetQueueDepth(mode string, depth int)
	SetConnectedClients(count int)
	RecordSettlement(status string)
	SetWorkerStatus(idle, busy int)
}
