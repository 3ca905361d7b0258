package room

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/adapters/events/memory"
	storemem "github.com/omokpang/omokpang/pkg/adapters/storage/memory"
	"github.com/omokpang/omokpang/pkg/ports"
	"github.com/omokpang/omokpang/pkg/protocol"
)

type fakePlayer struct {
	name   string
	closed bool

	mu    sync.Mutex
	lines []string
}

func newFakePlayer(name string) *fakePlayer {
	return &fakePlayer{name: name}
}

func (p *fakePlayer) Nickname() string { return p.name }

func (p *fakePlayer) Closed() bool { return p.closed }

func (p *fakePlayer) Send(msg protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, msg.String())
}

func (p *fakePlayer) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func (p *fakePlayer) has(line string) bool {
	for _, l := range p.received() {
		if l == line {
			return true
		}
	}
	return false
}

func (p *fakePlayer) last() string {
	lines := p.received()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func (p *fakePlayer) lastWithPrefix(prefix string) string {
	lines := p.received()
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], prefix) {
			return lines[i]
		}
	}
	return ""
}

// fakeDealer hands out the queued hands in seat order.
type fakeDealer struct {
	mu      sync.Mutex
	hands   [][]game.CardType
	rerolls map[string]rerollResult
}

type rerollResult struct {
	card game.CardType
	err  error
}

func (d *fakeDealer) DrawTwo() []game.CardType {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.hands) == 0 {
		return []game.CardType{game.CardTimeLock, game.CardTimeLock}
	}
	h := d.hands[0]
	d.hands = d.hands[1:]
	return append([]game.CardType(nil), h...)
}

func (d *fakeDealer) Reroll(_ context.Context, nickname string) (game.CardType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.rerolls[nickname]
	return res.card, res.err
}

type nopMetrics struct{}

func (nopMetrics) RecordGameStarted(string)                          {}
func (nopMetrics) RecordGameFinished(string, string, time.Duration) {}
func (nopMetrics) RecordMove(string)                                 {}
func (nopMetrics) SetActiveRooms(int)                                {}
func (nopMetrics) SetQueueDepth(string, int)                         {}
func (nopMetrics) SetConnectedClients(int)                           {}
func (nopMetrics) RecordSettlement(string)                           {}
func (nopMetrics) SetWorkerStatus(int, int)                          {}

func testRules() Rules {
	return Rules{
		TurnTimeout:       time.Minute,
		TimeLockTimeout:   3 * time.Second,
		CardSelectTimeout: time.Minute,
		ShieldWindow:      time.Minute,
		WinPoints:         80,
		LosePoints:        40,
	}
}

type harness struct {
	manager *Manager
	store   *storemem.InMemoryRoomStore
	dealer  *fakeDealer
	events  chan ports.Event
}

func newHarness(t *testing.T, rules Rules, hands ...[]game.CardType) *harness {
	t.Helper()

	bus := memory.NewInMemoryEventBus(zap.NewNop())
	events := make(chan ports.Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Subscribe(ctx, ports.GameEventsTopic, func(_ context.Context, ev ports.Event) error {
		events <- ev
		return nil
	}))

	store := storemem.NewInMemoryRoomStore()
	dealer := &fakeDealer{hands: hands, rerolls: make(map[string]rerollResult)}
	m := NewManager(dealer, store, bus, nopMetrics{}, NewValidator(), rules, zap.NewNop())

	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		cancel()
		_ = bus.Close()
	})

	return &harness{manager: m, store: store, dealer: dealer, events: events}
}

// create seats players in order without readying them.
func (h *harness) create(t *testing.T, mode game.Mode, names ...string) (*Room, []*fakePlayer) {
	t.Helper()

	players := make([]*fakePlayer, len(names))
	roster := make([]ports.Player, len(names))
	for i, n := range names {
		players[i] = newFakePlayer(n)
		roster[i] = players[i]
	}

	r, err := h.manager.CreateRoom(mode, roster)
	require.NoError(t, err)
	return r, players
}

// start seats players and readies everyone so seat 0 holds the turn.
func (h *harness) start(t *testing.T, mode game.Mode, names ...string) (*Room, []*fakePlayer) {
	t.Helper()

	r, players := h.create(t, mode, names...)
	for _, p := range players {
		h.manager.Handle(p, protocol.New(protocol.CmdReady))
	}
	return r, players
}

// waitEvent returns the next event of type want.
func (h *harness) waitEvent(t *testing.T, want ports.EventType) ports.Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
			return ports.Event{}
		}
	}
}

func send(h *harness, p *fakePlayer, line string) {
	msg, err := protocol.Parse(line)
	if err != nil {
		panic(err)
	}
	h.manager.Handle(p, msg)
}

func cell(r *Room, row, col int) byte {
	return r.Snapshot().Board[row][col]
}
