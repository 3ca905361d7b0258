package room

import (
	"strings"

	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/protocol"
)

// startCards maps card activation commands to the card they consume.
var startCards = map[protocol.Command]game.CardType{
	protocol.CmdRemoveStart:      game.CardRemove,
	protocol.CmdSwapStart:        game.CardSwap,
	protocol.CmdSharedStoneStart: game.CardSharedStone,
	protocol.CmdBombStart:        game.CardBomb,
	protocol.CmdTimeLockStart:    game.CardTimeLock,
	protocol.CmdDoubleMoveStart:  game.CardDoubleMove,
	protocol.CmdDefenseStart:     game.CardDefense,
}

// targetCards maps target commands to the card that must be pending.
var targetCards = map[protocol.Command]game.CardType{
	protocol.CmdRemoveTarget:      game.CardRemove,
	protocol.CmdSwapTarget:        game.CardSwap,
	protocol.CmdSharedStoneTarget: game.CardSharedStone,
	protocol.CmdBombTarget:        game.CardBomb,
}

func moveKind(card game.CardType) string {
	return "card_" + strings.ToLower(string(card))
}

// startCard consumes a card from the current player's hand. Cards without
// a target take effect immediately; the others wait for a target command.
func (r *Room) startCard(s *seat, card game.CardType, msg protocol.Message) {
	if r.cardUsed {
		s.send(protocol.Error(protocol.CodeCardAlreadyUsed))
		return
	}
	if !s.take(card) {
		s.send(protocol.Error(protocol.CodeNoSuchCard))
		return
	}

	r.cardUsed = true
	r.metrics.RecordMove(moveKind(card))

	switch card {
	case game.CardDoubleMove:
		r.doubleMove = true
	case game.CardTimeLock:
		r.timeLock = true
	case game.CardDefense:
		s.defended = true
	default:
		r.pending = card
	}

	r.logger.Debug("card used",
		zap.String("room_id", r.id),
		zap.String("nickname", s.nickname()),
		zap.String("card", string(card)))

	r.broadcast(protocol.Relay(msg, s.nickname()), s.index)
	r.save()
}

// target validates and applies the pending card. REMOVE and SWAP aimed at
// a shield holder open the shield window instead.
func (r *Room) target(s *seat, card game.CardType, msg protocol.Message) {
	if r.pending != card {
		s.send(protocol.Error(protocol.CodeBadTarget))
		return
	}

	var points []game.Point
	var victim *seat

	switch card {
	case game.CardRemove, game.CardSharedStone:
		p, err := msg.Point(0)
		if err != nil {
			s.send(protocol.Error(protocol.CodeBadArguments))
			return
		}
		owner, code := r.opponentStone(s, p)
		if code != "" {
			s.send(protocol.Error(code))
			return
		}
		points, victim = []game.Point{p}, owner

	case game.CardSwap:
		mine, err := msg.Point(0)
		if err != nil {
			s.send(protocol.Error(protocol.CodeBadArguments))
			return
		}
		theirs, err := msg.Point(2)
		if err != nil {
			s.send(protocol.Error(protocol.CodeBadArguments))
			return
		}
		if !mine.InBounds() {
			s.send(protocol.Error(protocol.CodeOutOfBounds))
			return
		}
		if r.board.At(mine) != game.SeatStone(s.index) {
			s.send(protocol.Error(protocol.CodeBadTarget))
			return
		}
		owner, code := r.opponentStone(s, theirs)
		if code != "" {
			s.send(protocol.Error(code))
			return
		}
		points, victim = []game.Point{mine, theirs}, owner

	case game.CardBomb:
		p, err := msg.Point(0)
		if err != nil {
			s.send(protocol.Error(protocol.CodeBadArguments))
			return
		}
		if code := r.bombTarget(p); code != "" {
			s.send(protocol.Error(code))
			return
		}
		points = []game.Point{p}
	}

	if victim != nil && (card == game.CardRemove || card == game.CardSwap) && victim.holds(game.CardShield) {
		r.openShield(s, victim, card, points, msg)
		return
	}

	r.applyEffect(s, card, points, msg)
}

// opponentStone checks that p holds a stone of an opposing team that is not
// under DEFENSE and returns its owner.
func (r *Room) opponentStone(s *seat, p game.Point) (*seat, string) {
	if !p.InBounds() {
		return nil, protocol.CodeOutOfBounds
	}
	idx := r.board.At(p).Seat()
	if idx < 0 || idx >= len(r.seats) {
		return nil, protocol.CodeBadTarget
	}
	owner := r.seats[idx]
	if owner.team == s.team {
		return nil, protocol.CodeBadTarget
	}
	if owner.defended {
		return nil, protocol.CodeProtected
	}
	return owner, ""
}

// bombTarget requires a stone at p and no defended stone in the blast.
func (r *Room) bombTarget(p game.Point) string {
	if !p.InBounds() {
		return protocol.CodeOutOfBounds
	}
	if r.board.At(p) == game.Empty {
		return protocol.CodeBadTarget
	}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			idx := r.board.At(game.Point{Row: p.Row + dr, Col: p.Col + dc}).Seat()
			if idx >= 0 && idx < len(r.seats) && r.seats[idx].defended {
				return protocol.CodeProtected
			}
		}
	}
	return ""
}

func (r *Room) applyEffect(s *seat, card game.CardType, points []game.Point, msg protocol.Message) {
	var err error
	switch card {
	case game.CardRemove:
		err = r.board.Remove(points[0])
	case game.CardSwap:
		err = r.board.Swap(points[0], points[1])
	case game.CardSharedStone:
		err = r.board.Share(points[0])
	case game.CardBomb:
		_, err = r.board.Bomb(points[0])
	}
	if err != nil {
		// targets were validated under the same lock
		r.logger.Error("card effect failed",
			zap.String("room_id", r.id),
			zap.String("card", string(card)),
			zap.Error(err))
		s.send(protocol.Error(boardErrorCode(err)))
		return
	}

	r.pending = ""
	r.moves++
	r.broadcast(protocol.Relay(msg, s.nickname()), s.index)

	if r.checkFive(s.team) {
		return
	}
	r.save()
}

// checkFive rescans the board after an effect. The acting team is checked
// first, then the others in seat order.
func (r *Room) checkFive(actor int) bool {
	if r.board.HasFive(r.mode.TeamMatcher(actor)) {
		r.finish(actor)
		return true
	}
	for _, team := range r.activeTeams() {
		if team != actor && r.board.HasFive(r.mode.TeamMatcher(team)) {
			r.finish(team)
			return true
		}
	}
	return false
}

func (r *Room) openShield(attacker, defender *seat, card game.CardType, points []game.Point, msg protocol.Message) {
	r.shield = &pendingShield{
		attacker: attacker.index,
		defender: defender.index,
		card:     card,
		points:   points,
		msg:      msg,
	}

	defender.send(protocol.ShieldPrompt(card, points...))
	r.schedule(&r.shieldTimer, r.rules.ShieldWindow, func() {
		r.logger.Debug("shield window expired", zap.String("room_id", r.id))
		r.passShield()
	})
	r.save()
}

// handleShieldResponse accepts only the defender's answer while a shield
// window is open.
func (r *Room) handleShieldResponse(s *seat, msg protocol.Message) {
	sh := r.shield
	if s.index != sh.defender {
		s.send(protocol.Error(protocol.CodeWrongPhase))
		return
	}

	switch msg.Command {
	case protocol.CmdShieldPass:
		r.passShield()
	case protocol.CmdShieldBlockRemove, protocol.CmdShieldBlockSwap:
		want := protocol.CmdShieldBlockRemove
		if sh.card == game.CardSwap {
			want = protocol.CmdShieldBlockSwap
		}
		if msg.Command != want || !s.take(game.CardShield) {
			s.send(protocol.Error(protocol.CodeBadTarget))
			return
		}

		r.shield = nil
		r.shieldTimer.stop()
		r.pending = ""
		r.metrics.RecordMove(moveKind(game.CardShield))
		r.broadcast(protocol.Relay(msg, s.nickname()), s.index)

		r.logger.Debug("attack blocked by shield",
			zap.String("room_id", r.id),
			zap.String("defender", s.nickname()),
			zap.String("card", string(sh.card)))
		r.save()
	default:
		s.send(protocol.Error(protocol.CodeWrongPhase))
	}
}

// passShield lets the pending attack through.
func (r *Room) passShield() {
	sh := r.shield
	if sh == nil {
		return
	}
	r.shield = nil
	r.shieldTimer.stop()
	r.applyEffect(r.seats[sh.attacker], sh.card, sh.points, sh.msg)
}
