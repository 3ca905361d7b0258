package room

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/application/account"
	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
	"github.com/omokpang/omokpang/pkg/protocol"
)

const storeTimeout = 2 * time.Second

// Rules holds the timers and point awards of a game.
type Rules struct {
	TurnTimeout       time.Duration
	TimeLockTimeout   time.Duration
	CardSelectTimeout time.Duration
	ShieldWindow      time.Duration
	WinPoints         int
	LosePoints        int
}

// CardDealer deals opening hands and sells rerolls.
type CardDealer interface {
	DrawTwo() []game.CardType
	Reroll(ctx context.Context, nickname string) (game.CardType, error)
}

type seat struct {
	index    int
	player   ports.Player
	team     int
	hand     []game.CardType
	ready    bool
	left     bool
	defended bool
}

func (s *seat) nickname() string {
	return s.player.Nickname()
}

func (s *seat) send(msg protocol.Message) {
	if !s.left {
		s.player.Send(msg)
	}
}

func (s *seat) holds(card game.CardType) bool {
	for _, c := range s.hand {
		if c == card {
			return true
		}
	}
	return false
}

// take removes one copy of card from the hand.
func (s *seat) take(card game.CardType) bool {
	for i, c := range s.hand {
		if c == card {
			s.hand = append(s.hand[:i:i], s.hand[i+1:]...)
			return true
		}
	}
	return false
}

// pendingShield is an attack waiting for the defender's answer.
type pendingShield struct {
	attacker int
	defender int
	card     game.CardType
	points   []game.Point
	msg      protocol.Message
}

type roomTimer struct {
	t   *time.Timer
	gen uint64
}

func (rt *roomTimer) stop() {
	if rt.t != nil {
		rt.t.Stop()
	}
	rt.gen++
}

// Room is one game in progress.
type Room struct {
	id        string
	mode      game.Mode
	rules     Rules
	createdAt time.Time

	cards   CardDealer
	store   ports.RoomStore
	events  ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	onClose func(*Room)

	mu          sync.Mutex
	phase       game.Phase
	board       game.Board
	seats       []*seat
	turn        int
	moves       int
	cardUsed    bool
	pending     game.CardType
	doubleMove  bool
	timeLock    bool
	shield      *pendingShield
	turnTimer   roomTimer
	shieldTimer roomTimer
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// Mode returns the room's game mode.
func (r *Room) Mode() game.Mode {
	return r.mode
}

// start deals the opening hands and opens card selection.
func (r *Room) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.seats))
	for i, s := range r.seats {
		names[i] = s.nickname()
	}

	for _, s := range r.seats {
		s.hand = r.cards.DrawTwo()
		s.send(protocol.Match(r.mode, names))
		s.send(protocol.Cards(s.hand))
	}

	r.phase = game.PhaseCardSelect
	r.schedule(&r.turnTimer, r.rules.CardSelectTimeout, func() {
		r.logger.Debug("card select timed out", zap.String("room_id", r.id))
		r.startPlaying()
	})
	r.save()
}

// Handle applies a command from a seated player.
func (r *Room) Handle(p ports.Player, msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.seatOf(p)
	if s == nil || s.left {
		p.Send(protocol.Error(protocol.CodeNotInRoom))
		return
	}
	if r.phase == game.PhaseFinished {
		s.send(protocol.Error(protocol.CodeWrongPhase))
		return
	}

	if msg.Command == protocol.CmdCheer {
		if len(msg.Args) > 0 {
			r.broadcast(protocol.Cheer(s.nickname(), strings.Join(msg.Args, " ")), s.index)
		}
		return
	}

	switch r.phase {
	case game.PhaseCardSelect:
		r.handleCardSelect(s, msg)
	case game.PhasePlaying:
		r.handlePlaying(s, msg)
	}
}

func (r *Room) handleCardSelect(s *seat, msg protocol.Message) {
	switch msg.Command {
	case protocol.CmdReroll:
		if s.ready {
			s.send(protocol.Error(protocol.CodeWrongPhase))
			return
		}
		slot, err := msg.Int(0)
		if err != nil || slot < 0 || slot >= len(s.hand) {
			s.send(protocol.Error(protocol.CodeBadArguments))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		card, err := r.cards.Reroll(ctx, s.nickname())
		cancel()
		if err != nil {
			if errors.Is(err, account.ErrInsufficientPoints) {
				s.send(protocol.Error(protocol.CodeInsufficientPoints))
				return
			}
			r.logger.Error("reroll failed",
				zap.String("room_id", r.id),
				zap.String("nickname", s.nickname()),
				zap.Error(err))
			s.send(protocol.Error(protocol.CodeInternal))
			return
		}

		s.hand[slot] = card
		s.send(protocol.Cards(s.hand))
		r.metrics.RecordMove("reroll")
		r.save()

	case protocol.CmdReady:
		s.ready = true
		if r.allReady() {
			r.startPlaying()
			return
		}
		r.save()

	default:
		s.send(protocol.Error(protocol.CodeWrongPhase))
	}
}

func (r *Room) allReady() bool {
	for _, s := range r.seats {
		if !s.left && !s.ready {
			return false
		}
	}
	return true
}

func (r *Room) startPlaying() {
	r.phase = game.PhasePlaying
	r.logger.Info("game started",
		zap.String("room_id", r.id),
		zap.String("mode", string(r.mode)))

	first := r.nextActive(-1)
	if first < 0 {
		r.abort("no players left")
		return
	}
	r.beginTurn(first)
}

// nextActive returns the first seat after from that is still playing.
func (r *Room) nextActive(from int) int {
	n := len(r.seats)
	for i := 1; i <= n; i++ {
		idx := (from + i + n) % n
		if !r.seats[idx].left {
			return idx
		}
	}
	return -1
}

func (r *Room) beginTurn(idx int) {
	r.turn = idx
	r.cardUsed = false
	r.pending = ""
	r.doubleMove = false

	s := r.seats[idx]
	// DEFENSE lasts until its owner's next turn
	s.defended = false

	d := r.rules.TurnTimeout
	if r.timeLock {
		d = r.rules.TimeLockTimeout
		r.timeLock = false
	}

	r.broadcast(protocol.Turn(s.nickname(), seconds(d)), -1)
	r.schedule(&r.turnTimer, d, r.onTurnTimeout)
	r.save()
}

func (r *Room) onTurnTimeout() {
	r.logger.Debug("turn timed out",
		zap.String("room_id", r.id),
		zap.Int("seat", r.turn))

	if r.shield != nil {
		r.passShield()
		if r.phase == game.PhaseFinished {
			return
		}
	}
	r.advance()
}

func (r *Room) advance() {
	next := r.nextActive(r.turn)
	if next < 0 {
		r.abort("no players left")
		return
	}
	r.beginTurn(next)
}

func (r *Room) handlePlaying(s *seat, msg protocol.Message) {
	if r.shield != nil {
		r.handleShieldResponse(s, msg)
		return
	}

	switch msg.Command {
	case protocol.CmdShieldBlockRemove, protocol.CmdShieldBlockSwap, protocol.CmdShieldPass,
		protocol.CmdReady, protocol.CmdReroll:
		s.send(protocol.Error(protocol.CodeWrongPhase))
		return
	}

	if s.index != r.turn {
		s.send(protocol.Error(protocol.CodeNotYourTurn))
		return
	}

	if card, ok := startCards[msg.Command]; ok {
		r.startCard(s, card, msg)
		return
	}
	if card, ok := targetCards[msg.Command]; ok {
		r.target(s, card, msg)
		return
	}

	switch msg.Command {
	case protocol.CmdPlace:
		r.place(s, msg)
	case protocol.CmdTurnEnd:
		r.metrics.RecordMove("turn_end")
		r.advance()
	default:
		s.send(protocol.Error(protocol.CodeWrongPhase))
	}
}

func (r *Room) place(s *seat, msg protocol.Message) {
	if r.pending != "" {
		s.send(protocol.Error(protocol.CodeWrongPhase))
		return
	}

	p, err := msg.Point(0)
	if err != nil {
		s.send(protocol.Error(protocol.CodeBadArguments))
		return
	}
	if err := r.board.Place(p, s.index); err != nil {
		s.send(protocol.Error(boardErrorCode(err)))
		return
	}

	r.moves++
	r.metrics.RecordMove("place")
	r.broadcast(protocol.Placed(p, s.nickname()), s.index)

	if r.board.WinsAt(p, r.mode.TeamMatcher(s.team)) {
		r.finish(s.team)
		return
	}
	if r.board.Full() {
		r.finishDraw()
		return
	}
	if r.doubleMove {
		r.doubleMove = false
		r.save()
		return
	}
	r.advance()
}

// Leave removes a player. The game ends when a single team is left.
func (r *Room) Leave(p ports.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.seatOf(p)
	if s == nil || s.left || r.phase == game.PhaseFinished {
		return
	}

	s.left = true
	r.logger.Info("player left room",
		zap.String("room_id", r.id),
		zap.String("nickname", s.nickname()))

	if r.shield != nil {
		switch s.index {
		case r.shield.defender:
			r.passShield()
			if r.phase == game.PhaseFinished {
				return
			}
		case r.shield.attacker:
			r.shield = nil
			r.shieldTimer.stop()
		}
	}

	if r.mode == game.Mode1v1 {
		r.broadcast(protocol.OpponentLeft(), s.index)
	} else {
		r.broadcast(protocol.PlayerLeft(s.nickname()), s.index)
	}

	teams := r.activeTeams()
	switch len(teams) {
	case 0:
		r.abort("all players left")
		return
	case 1:
		r.finish(teams[0])
		return
	}

	switch r.phase {
	case game.PhaseCardSelect:
		if r.allReady() {
			r.startPlaying()
			return
		}
	case game.PhasePlaying:
		if r.turn == s.index {
			r.advance()
			return
		}
	}
	r.save()
}

func (r *Room) activeTeams() []int {
	seen := make(map[int]bool)
	var teams []int
	for _, s := range r.seats {
		if !s.left && !seen[s.team] {
			seen[s.team] = true
			teams = append(teams, s.team)
		}
	}
	return teams
}

// finish ends the game with team as the winner. Seats that left are ranked
// as losses even when their team wins.
func (r *Room) finish(team int) {
	r.phase = game.PhaseFinished
	r.turnTimer.stop()
	r.shieldTimer.stop()

	var winners []string
	results := make([]user.PlayerResult, 0, len(r.seats))
	for _, s := range r.seats {
		res := user.PlayerResult{Rank: 2, Nickname: s.nickname(), PointDelta: r.rules.LosePoints, Team: s.team}
		if s.team == team && !s.left {
			res.Rank = 1
			res.PointDelta = r.rules.WinPoints
			winners = append(winners, s.nickname())
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })

	r.broadcast(protocol.GameOver(winners), -1)
	r.broadcast(protocol.Result(results), -1)

	r.publish(ports.EventTypeGameFinished, map[string]interface{}{
		"mode":    string(r.mode),
		"winners": winners,
		"results": results,
		"moves":   r.moves,
	})
	r.metrics.RecordGameFinished(string(r.mode), "win", time.Since(r.createdAt))

	r.logger.Info("game finished",
		zap.String("room_id", r.id),
		zap.Strings("winners", winners),
		zap.Int("moves", r.moves))
	r.close()
}

// finishDraw ends a game on a full board. Draws are not recorded.
func (r *Room) finishDraw() {
	r.phase = game.PhaseFinished
	r.turnTimer.stop()
	r.shieldTimer.stop()

	r.broadcast(protocol.GameOver(nil), -1)
	r.publish(ports.EventTypeGameFinished, map[string]interface{}{
		"mode":  string(r.mode),
		"draw":  true,
		"moves": r.moves,
	})
	r.metrics.RecordGameFinished(string(r.mode), "draw", time.Since(r.createdAt))

	r.logger.Info("game ended in a draw", zap.String("room_id", r.id))
	r.close()
}

// abort closes the room without results.
func (r *Room) abort(reason string) {
	r.phase = game.PhaseFinished
	r.turnTimer.stop()
	r.shieldTimer.stop()

	r.broadcast(protocol.Error(protocol.CodeRoomClosed), -1)
	r.publish(ports.EventTypeGameAborted, map[string]interface{}{
		"mode":   string(r.mode),
		"reason": reason,
	})
	r.metrics.RecordGameFinished(string(r.mode), "aborted", time.Since(r.createdAt))

	r.logger.Warn("game aborted",
		zap.String("room_id", r.id),
		zap.String("reason", reason))
	r.close()
}

// Abort ends the room from outside, e.g. on server shutdown.
func (r *Room) Abort(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == game.PhaseFinished {
		return
	}
	r.abort(reason)
}

func (r *Room) close() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.store.Delete(ctx, r.id); err != nil {
		r.logger.Error("failed to delete room snapshot",
			zap.String("room_id", r.id),
			zap.Error(err))
	}
	if r.onClose != nil {
		r.onClose(r)
	}
}

// Snapshot returns the current room state.
func (r *Room) Snapshot() *game.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Room) snapshot() *game.RoomSnapshot {
	snap := &game.RoomSnapshot{
		ID:        r.id,
		Mode:      r.mode,
		Phase:     r.phase,
		Seats:     make([]game.SeatSnapshot, len(r.seats)),
		Board:     r.board.Rows(),
		Moves:     r.moves,
		CreatedAt: r.createdAt,
		UpdatedAt: time.Now().UTC(),
	}
	if r.phase == game.PhasePlaying && r.turn >= 0 {
		snap.Turn = r.seats[r.turn].nickname()
	}
	for i, s := range r.seats {
		snap.Seats[i] = game.SeatSnapshot{
			Seat:     s.index,
			Nickname: s.nickname(),
			Team:     s.team,
			Hand:     append([]game.CardType(nil), s.hand...),
			Ready:    s.ready,
			Left:     s.left,
		}
	}
	return snap
}

func (r *Room) save() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.store.Save(ctx, r.snapshot()); err != nil {
		r.logger.Error("failed to save room snapshot",
			zap.String("room_id", r.id),
			zap.Error(err))
	}
}

func (r *Room) publish(eventType ports.EventType, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	event := ports.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RoomID:    r.id,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := r.events.Publish(ctx, ports.GameEventsTopic, event); err != nil {
		r.logger.Error("failed to publish room event",
			zap.String("room_id", r.id),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// schedule arms rt. Callbacks run under the room lock and are dropped if
// rt was re-armed or stopped in the meantime.
func (r *Room) schedule(rt *roomTimer, d time.Duration, fn func()) {
	if rt.t != nil {
		rt.t.Stop()
	}
	rt.gen++
	gen := rt.gen
	rt.t = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if rt.gen != gen || r.phase == game.PhaseFinished {
			return
		}
		fn()
	})
}

// broadcast sends msg to every seated player except the seat at except.
func (r *Room) broadcast(msg protocol.Message, except int) {
	for _, s := range r.seats {
		if s.index != except {
			s.send(msg)
		}
	}
}

func (r *Room) seatOf(p ports.Player) *seat {
	for _, s := range r.seats {
		if s.player == p {
			return s
		}
	}
	return nil
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func boardErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrOutOfBounds):
		return protocol.CodeOutOfBounds
	case errors.Is(err, game.ErrCellOccupied):
		return protocol.CodeCellOccupied
	case errors.Is(err, game.ErrCellEmpty):
		return protocol.CodeBadTarget
	default:
		return protocol.CodeInternal
	}
}
