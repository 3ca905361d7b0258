package matchmaking

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/ports"
	"github.com/omokpang/omokpang/pkg/protocol"
)

// MatchFunc seats a full roster in a new room.
type MatchFunc func(mode game.Mode, players []ports.Player) error

// Matchmaker keeps one FIFO queue per game mode
type Matchmaker struct {
	match   MatchFunc
	metrics ports.MetricsCollector
	logger  *zap.Logger

	mu     sync.Mutex
	queues map[game.Mode][]ports.Player
}

// NewMatchmaker creates a new matchmaker
func NewMatchmaker(match MatchFunc, metrics ports.MetricsCollector, logger *zap.Logger) *Matchmaker {
	queues := make(map[game.Mode][]ports.Player)
	for _, mode := range game.Modes() {
		queues[mode] = nil
	}
	return &Matchmaker{
		match:   match,
		metrics: metrics,
		logger:  logger,
		queues:  queues,
	}
}

// Enqueue adds p to the queue of mode and replies QUEUED with its 1-based
// position. A nickname that is already waiting anywhere is re-queued. A
// queue that reaches the mode's capacity is matched immediately.
func (m *Matchmaker) Enqueue(p ports.Player, mode game.Mode) error {
	if _, err := game.ParseMode(string(mode)); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", p.Nickname(), err)
	}

	m.mu.Lock()
	for md := range m.queues {
		if m.removeLocked(md, func(q ports.Player) bool { return q.Nickname() == p.Nickname() }) {
			m.logger.Debug("re-queueing player",
				zap.String("nickname", p.Nickname()),
				zap.String("from", string(md)),
				zap.String("to", string(mode)))
		}
	}

	m.queues[mode] = append(m.queues[mode], p)
	position := len(m.queues[mode])
	p.Send(protocol.Queued(mode, position))

	var roster []ports.Player
	if capacity := mode.Capacity(); len(m.queues[mode]) >= capacity {
		roster = append([]ports.Player(nil), m.queues[mode][:capacity]...)
		m.queues[mode] = m.queues[mode][capacity:]
	}
	m.metrics.SetQueueDepth(string(mode), len(m.queues[mode]))
	m.mu.Unlock()

	m.logger.Info("player queued",
		zap.String("nickname", p.Nickname()),
		zap.String("mode", string(mode)),
		zap.Int("position", position))

	if roster != nil {
		m.start(mode, roster)
	}
	return nil
}

func (m *Matchmaker) start(mode game.Mode, roster []ports.Player) {
	if err := m.match(mode, roster); err != nil {
		m.logger.Error("failed to create room",
			zap.String("mode", string(mode)),
			zap.Error(err))
		for _, p := range roster {
			p.Send(protocol.Error(protocol.CodeInternal))
		}
	}
}

// Cancel takes p out of every queue. It reports whether p was waiting.
func (m *Matchmaker) Cancel(p ports.Player) bool {
	removed := m.Remove(p)
	if removed {
		m.logger.Info("player left queue", zap.String("nickname", p.Nickname()))
	}
	return removed
}

// Remove drops the connection p from every queue. Entries re-queued under
// the same nickname by another connection are kept.
func (m *Matchmaker) Remove(p ports.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := false
	for mode := range m.queues {
		if m.removeLocked(mode, func(q ports.Player) bool { return q == p }) {
			removed = true
		}
	}
	return removed
}

// QueueDepth returns the number of players waiting for mode.
func (m *Matchmaker) QueueDepth(mode game.Mode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[mode])
}

// Waiting reports whether p is queued and for which mode.
func (m *Matchmaker) Waiting(p ports.Player) (game.Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for mode, queue := range m.queues {
		for _, q := range queue {
			if q == p {
				return mode, true
			}
		}
	}
	return "", false
}

func (m *Matchmaker) removeLocked(mode game.Mode, match func(ports.Player) bool) bool {
	queue := m.queues[mode]
	kept := queue[:0]
	for _, q := range queue {
		if !match(q) {
			kept = append(kept, q)
		}
	}
	if len(kept) == len(queue) {
		return false
	}
	for i := len(kept); i < len(queue); i++ {
		queue[i] = nil
	}
	m.queues[mode] = kept
	m.metrics.SetQueueDepth(string(mode), len(kept))
	return true
}
