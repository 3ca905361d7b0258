package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omokpang/omokpang/internal/application/account"
	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
	"github.com/omokpang/omokpang/pkg/ports"
)

var (
	handRemove = []game.CardType{game.CardRemove, game.CardTimeLock}
	handShield = []game.CardType{game.CardShield, game.CardTimeLock}
	handPlain  = []game.CardType{game.CardTimeLock, game.CardTimeLock}
)

func TestRoom_MatchAndCardSelect(t *testing.T) {
	h := newHarness(t, testRules(), []game.CardType{game.CardBomb, game.CardSwap}, handPlain)
	_, p := h.create(t, game.Mode1v1, "alice", "bob")

	assert.Equal(t, []string{"MATCH 1v1 alice,bob", "CARDS BOMB,SWAP"}, p[0].received())
	assert.Equal(t, "MATCH 1v1 alice,bob", p[1].received()[0])

	send(h, p[0], "PLACE 7 7")
	assert.Equal(t, "ERROR wrong_phase", p[0].last())

	send(h, p[0], "READY")
	assert.Empty(t, p[0].lastWithPrefix("TURN"))

	send(h, p[1], "READY")
	assert.Equal(t, "TURN alice 60", p[0].last())
	assert.Equal(t, "TURN alice 60", p[1].last())

	ev := h.waitEvent(t, ports.EventTypeGameStarted)
	assert.Equal(t, "1v1", ev.Data["mode"])
}

func TestRoom_CardSelectTimeoutStartsGame(t *testing.T) {
	rules := testRules()
	rules.CardSelectTimeout = 20 * time.Millisecond
	h := newHarness(t, rules)
	_, p := h.create(t, game.Mode1v1, "alice", "bob")

	require.Eventually(t, func() bool {
		return p[1].lastWithPrefix("TURN") == "TURN alice 60"
	}, time.Second, 5*time.Millisecond)
}

func TestRoom_Reroll(t *testing.T) {
	h := newHarness(t, testRules(), []game.CardType{game.CardBomb, game.CardSwap}, handPlain)
	h.dealer.rerolls["alice"] = rerollResult{card: game.CardShield}
	h.dealer.rerolls["bob"] = rerollResult{err: account.ErrInsufficientPoints}
	_, p := h.create(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "REROLL 1")
	assert.Equal(t, "CARDS BOMB,SHIELD", p[0].last())

	send(h, p[0], "REROLL 2")
	assert.Equal(t, "ERROR bad_arguments", p[0].last())

	send(h, p[1], "REROLL 0")
	assert.Equal(t, "ERROR insufficient_points", p[1].last())

	send(h, p[0], "READY")
	send(h, p[0], "REROLL 0")
	assert.Equal(t, "ERROR wrong_phase", p[0].last())
}

func TestRoom_OneVsOneWin(t *testing.T) {
	h := newHarness(t, testRules())
	r, p := h.start(t, game.Mode1v1, "alice", "bob")
	alice, bob := p[0], p[1]

	send(h, bob, "PLACE 8 0")
	assert.Equal(t, "ERROR not_your_turn", bob.last())

	for c := 0; c < 4; c++ {
		send(h, alice, "PLACE 7 "+itoa(c))
		assert.Equal(t, "PLACE 7 "+itoa(c)+" alice", bob.received()[len(bob.received())-2])
		assert.Equal(t, "TURN bob 60", bob.last())
		send(h, bob, "PLACE 8 "+itoa(c))
	}

	send(h, bob, "PLACE 9 9")
	assert.Equal(t, "ERROR not_your_turn", bob.last())

	send(h, alice, "PLACE 8 0")
	assert.Equal(t, "ERROR cell_occupied", alice.last())
	send(h, alice, "PLACE 15 0")
	assert.Equal(t, "ERROR out_of_bounds", alice.last())

	send(h, alice, "PLACE 7 4")
	assert.True(t, alice.has("GAME_OVER alice"))
	assert.Equal(t, "RESULT 1:alice:80,2:bob:40", alice.last())
	assert.Equal(t, "RESULT 1:alice:80,2:bob:40", bob.last())

	ev := h.waitEvent(t, ports.EventTypeGameFinished)
	assert.Equal(t, r.ID(), ev.RoomID)
	results, ok := ev.Data["results"].([]user.PlayerResult)
	require.True(t, ok)
	assert.Equal(t, []user.PlayerResult{
		{Rank: 1, Nickname: "alice", PointDelta: 80, Team: 0},
		{Rank: 2, Nickname: "bob", PointDelta: 40, Team: 1},
	}, results)

	_, inRoom := h.manager.RoomOf(alice)
	assert.False(t, inRoom)
	assert.Zero(t, h.manager.ActiveRooms())
	_, err := h.store.Load(context.Background(), r.ID())
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}

func TestRoom_TurnEndAndTimeout(t *testing.T) {
	rules := testRules()
	h := newHarness(t, rules)
	_, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "TURN_END")
	assert.Equal(t, "TURN bob 60", p[0].last())

	rules.TurnTimeout = 20 * time.Millisecond
	h2 := newHarness(t, rules)
	_, q := h2.start(t, game.Mode1v1, "carol", "dave")
	assert.Equal(t, "TURN carol 1", q[0].last())

	require.Eventually(t, func() bool {
		return q[0].lastWithPrefix("TURN") == "TURN dave 1"
	}, time.Second, 5*time.Millisecond)
}

func TestRoom_TimeLockShortensNextTurn(t *testing.T) {
	h := newHarness(t, testRules(), []game.CardType{game.CardTimeLock, game.CardDefense}, handPlain)
	_, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "TIMELOCK_START")
	assert.Equal(t, "TIMELOCK_START alice", p[1].last())

	send(h, p[0], "DEFENSE_START")
	assert.Equal(t, "ERROR card_already_used", p[0].last())

	send(h, p[0], "PLACE 0 0")
	assert.Equal(t, "TURN bob 3", p[1].last())

	// the lock applies to one turn only
	send(h, p[1], "PLACE 1 1")
	assert.Equal(t, "TURN alice 60", p[0].last())
}

func TestRoom_DoubleMoveKeepsTurn(t *testing.T) {
	h := newHarness(t, testRules(), []game.CardType{game.CardDoubleMove, game.CardBomb}, handPlain)
	_, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "DOUBLE_MOVE_START")
	send(h, p[0], "PLACE 0 0")
	assert.Equal(t, "PLACE 0 0 alice", p[1].last())

	send(h, p[0], "PLACE 0 1")
	assert.Equal(t, "TURN bob 60", p[1].last())
}

func TestRoom_CardNotInHand(t *testing.T) {
	h := newHarness(t, testRules(), handPlain, handPlain)
	_, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "BOMB_START")
	assert.Equal(t, "ERROR no_such_card", p[0].last())

	send(h, p[0], "BOMB_TARGET 1 1")
	assert.Equal(t, "ERROR bad_target", p[0].last())
}

func TestRoom_Remove(t *testing.T) {
	h := newHarness(t, testRules(), handRemove, handPlain)
	r, p := h.start(t, game.Mode1v1, "alice", "bob")
	alice, bob := p[0], p[1]

	send(h, alice, "PLACE 0 0")
	send(h, bob, "PLACE 5 5")

	send(h, alice, "REMOVE_START")
	assert.Equal(t, "REMOVE_START alice", bob.last())

	send(h, alice, "PLACE 1 1")
	assert.Equal(t, "ERROR wrong_phase", alice.last())

	send(h, alice, "REMOVE_TARGET 0 0")
	assert.Equal(t, "ERROR bad_target", alice.last())
	send(h, alice, "REMOVE_TARGET 9 9")
	assert.Equal(t, "ERROR bad_target", alice.last())

	send(h, alice, "REMOVE_TARGET 5 5")
	assert.Equal(t, "REMOVE_TARGET 5 5 alice", bob.last())
	assert.Equal(t, byte('.'), cell(r, 5, 5))

	send(h, alice, "PLACE 5 5")
	assert.Equal(t, byte('1'), cell(r, 5, 5))
	assert.Equal(t, "TURN bob 60", bob.last())
}

func TestRoom_ShieldBlocksRemove(t *testing.T) {
	h := newHarness(t, testRules(), handRemove, handShield)
	r, p := h.start(t, game.Mode1v1, "alice", "bob")
	alice, bob := p[0], p[1]

	send(h, alice, "PLACE 0 0")
	send(h, bob, "PLACE 5 5")
	send(h, alice, "REMOVE_START")
	send(h, alice, "REMOVE_TARGET 5 5")
	assert.Equal(t, "SHIELD_PROMPT REMOVE 5 5", bob.last())

	send(h, alice, "PLACE 1 1")
	assert.Equal(t, "ERROR wrong_phase", alice.last())

	send(h, bob, "SHIELD_BLOCK_SWAP")
	assert.Equal(t, "ERROR bad_target", bob.last())

	send(h, bob, "SHIELD_BLOCK_REMOVE")
	assert.Equal(t, "SHIELD_BLOCK_REMOVE bob", alice.last())
	assert.Equal(t, byte('2'), cell(r, 5, 5))

	snap := r.Snapshot()
	assert.Equal(t, []game.CardType{game.CardTimeLock}, snap.Seats[1].Hand)

	// the turn goes on after the block
	send(h, alice, "PLACE 1 1")
	assert.Equal(t, "TURN bob 60", bob.last())
}

func TestRoom_ShieldPassAndTimeout(t *testing.T) {
	h := newHarness(t, testRules(), handRemove, handShield)
	r, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "PLACE 0 0")
	send(h, p[1], "PLACE 5 5")
	send(h, p[0], "REMOVE_START")
	send(h, p[0], "REMOVE_TARGET 5 5")
	send(h, p[1], "SHIELD_PASS")

	assert.Equal(t, "REMOVE_TARGET 5 5 alice", p[1].last())
	assert.Equal(t, byte('.'), cell(r, 5, 5))

	rules := testRules()
	rules.ShieldWindow = 20 * time.Millisecond
	h2 := newHarness(t, rules, handRemove, handShield)
	r2, q := h2.start(t, game.Mode1v1, "carol", "dave")

	send(h2, q[0], "PLACE 0 0")
	send(h2, q[1], "PLACE 5 5")
	send(h2, q[0], "REMOVE_START")
	send(h2, q[0], "REMOVE_TARGET 5 5")

	require.Eventually(t, func() bool {
		return cell(r2, 5, 5) == '.'
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "REMOVE_TARGET 5 5 carol", q[1].last())
}

func TestRoom_DefenseProtectsStones(t *testing.T) {
	h := newHarness(t, testRules(), handRemove, []game.CardType{game.CardDefense, game.CardTimeLock})
	r, p := h.start(t, game.Mode1v1, "alice", "bob")

	send(h, p[0], "PLACE 0 0")
	send(h, p[1], "DEFENSE_START")
	send(h, p[1], "PLACE 5 5")

	send(h, p[0], "REMOVE_START")
	send(h, p[0], "REMOVE_TARGET 5 5")
	assert.Equal(t, "ERROR protected", p[0].last())
	assert.Equal(t, byte('2'), cell(r, 5, 5))

	// defense ends when bob's next turn starts
	send(h, p[0], "TURN_END")
	send(h, p[1], "TURN_END")
	assert.Equal(t, "TURN alice 60", p[0].last())
}

func TestRoom_SwapCompletesFive(t *testing.T) {
	h := newHarness(t, testRules(), []game.CardType{game.CardSwap, game.CardTimeLock}, handPlain)
	_, p := h.start(t, game.Mode1v1, "alice", "bob")
	alice, bob := p[0], p[1]

	moves := [][2]string{
		{"PLACE 3 0", "PLACE 3 4"},
		{"PLACE 3 1", "PLACE 10 0"},
		{"PLACE 3 2", "PLACE 10 1"},
		{"PLACE 3 3", "PLACE 10 2"},
		{"PLACE 12 12", "PLACE 11 5"},
	}
	for _, m := range moves {
		send(h, alice, m[0])
		send(h, bob, m[1])
	}

	send(h, alice, "SWAP_START")
	send(h, alice, "SWAP_TARGET 3 4 12 12")
	assert.Equal(t, "ERROR bad_target", alice.last())

	send(h, alice, "SWAP_TARGET 12 12 3 4")
	assert.True(t, bob.has("SWAP_TARGET 12 12 3 4 alice"))
	assert.True(t, bob.has("GAME_OVER alice"))
}

func TestRoom_SharedStoneAndBomb(t *testing.T) {
	h := newHarness(t, testRules(),
		[]game.CardType{game.CardSharedStone, game.CardTimeLock},
		[]game.CardType{game.CardBomb, game.CardTimeLock})
	r, p := h.start(t, game.Mode1v1, "alice", "bob")
	alice, bob := p[0], p[1]

	send(h, alice, "PLACE 7 7")
	send(h, bob, "PLACE 7 8")

	send(h, alice, "SHARED_STONE_START")
	send(h, alice, "SHARED_STONE_TARGET 7 8")
	assert.Equal(t, byte('*'), cell(r, 7, 8))
	send(h, alice, "PLACE 8 8")

	send(h, bob, "BOMB_START")
	send(h, bob, "BOMB_TARGET 0 0")
	assert.Equal(t, "ERROR bad_target", bob.last())

	send(h, bob, "BOMB_TARGET 7 7")
	assert.Equal(t, "BOMB_TARGET 7 7 bob", alice.last())
	for _, pt := range [][2]int{{7, 7}, {7, 8}, {8, 8}} {
		assert.Equal(t, byte('.'), cell(r, pt[0], pt[1]))
	}
}

func TestRoom_CheerIsRelayedInAnyPhase(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.create(t, game.Mode1v1, "alice", "bob")

	send(h, p[1], "CHEER good luck")
	assert.Equal(t, "CHEER bob good luck", p[0].last())
}

func TestRoom_OpponentLeftWins(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode1v1, "alice", "bob")

	h.manager.Leave(p[1])

	assert.True(t, p[0].has("OPPONENT_LEFT"))
	assert.True(t, p[0].has("GAME_OVER alice"))
	assert.Equal(t, "RESULT 1:alice:80,2:bob:40", p[0].last())

	ev := h.waitEvent(t, ports.EventTypeGameFinished)
	raw, err := json.Marshal(ev.Data["results"])
	require.NoError(t, err)
	var results []user.PlayerResult
	require.NoError(t, json.Unmarshal(raw, &results))
	assert.Len(t, results, 2)
}

func TestRoom_TeamWinIn2v2(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode2v2, "a", "b", "c", "d")

	order := []string{
		"PLACE 0 0", "PLACE 5 0", "PLACE 0 1", "PLACE 6 0",
		"PLACE 0 2", "PLACE 5 1", "PLACE 0 3", "PLACE 6 1",
		"PLACE 0 4",
	}
	for i, line := range order {
		send(h, p[i%4], line)
	}

	assert.True(t, p[1].has("GAME_OVER a,c"))
	assert.Equal(t, "RESULT 1:a:80,1:c:80,2:b:40,2:d:40", p[3].last())
}

func TestRoom_FreeForAllTurnOrderAndLeaving(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode1v1v1v1, "a", "b", "c", "d")

	send(h, p[0], "PLACE 0 0")
	assert.Equal(t, "TURN b 60", p[0].last())

	h.manager.Leave(p[1])
	assert.Equal(t, "TURN c 60", p[0].last())
	assert.True(t, p[2].has("PLAYER_LEFT b"))
	assert.False(t, p[2].has("OPPONENT_LEFT"))

	send(h, p[2], "PLACE 1 1")
	assert.Equal(t, "TURN d 60", p[3].last())

	h.manager.Leave(p[2])
	h.manager.Leave(p[3])
	assert.True(t, p[0].has("GAME_OVER a"))
	assert.Equal(t, "RESULT 1:a:80,2:b:40,2:c:40,2:d:40", p[0].last())
}

func TestRoom_LeaverOnWinningTeamLoses(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode2v2, "a", "b", "c", "d")

	h.manager.Leave(p[0])
	assert.Equal(t, "TURN b 60", p[2].last())

	rounds := [][3]string{
		{"PLACE 5 0", "PLACE 0 0", "PLACE 6 0"},
		{"PLACE 5 2", "PLACE 0 1", "PLACE 6 2"},
		{"PLACE 5 4", "PLACE 0 2", "PLACE 6 4"},
		{"PLACE 5 6", "PLACE 0 3", "PLACE 6 6"},
	}
	for _, round := range rounds {
		send(h, p[1], round[0])
		send(h, p[2], round[1])
		send(h, p[3], round[2])
	}
	send(h, p[1], "PLACE 5 8")
	send(h, p[2], "PLACE 0 4")

	assert.True(t, p[3].has("GAME_OVER c"))
	assert.Equal(t, "RESULT 1:c:80,2:a:40,2:b:40,2:d:40", p[3].last())

	ev := h.waitEvent(t, ports.EventTypeGameFinished)
	assert.Equal(t, []string{"c"}, ev.Data["winners"])
	results, ok := ev.Data["results"].([]user.PlayerResult)
	require.True(t, ok)
	assert.Contains(t, results, user.PlayerResult{Rank: 2, Nickname: "a", PointDelta: 40, Team: 0})
}

func TestRoom_LastTeamStandingExcludesLeavers(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode2v2, "a", "b", "c", "d")

	h.manager.Leave(p[0])
	h.manager.Leave(p[1])
	h.manager.Leave(p[3])

	assert.True(t, p[2].has("GAME_OVER c"))
	assert.False(t, p[2].has("GAME_OVER a,c"))
	assert.Equal(t, "RESULT 1:c:80,2:a:40,2:b:40,2:d:40", p[2].last())
}

func TestRoom_FullBoardIsDraw(t *testing.T) {
	h := newHarness(t, testRules())
	r, p := h.start(t, game.Mode1v1, "alice", "bob")

	// Runs never exceed two stones of a colour in any direction.
	r.mu.Lock()
	for row := 0; row < game.Size; row++ {
		for col := 0; col < game.Size; col++ {
			if row == game.Size-1 && col == game.Size-1 {
				continue
			}
			seat := 0
			if (col+2*row)%4 >= 2 {
				seat = 1
			}
			require.NoError(t, r.board.Place(game.Point{Row: row, Col: col}, seat))
		}
	}
	r.mu.Unlock()

	send(h, p[0], "PLACE 14 14")

	assert.Equal(t, "GAME_OVER DRAW", p[1].last())
	for _, pl := range p {
		for _, line := range pl.received() {
			assert.NotContains(t, line, "RESULT")
		}
	}

	ev := h.waitEvent(t, ports.EventTypeGameFinished)
	assert.Equal(t, true, ev.Data["draw"])
	assert.NotContains(t, ev.Data, "results")
	assert.Zero(t, h.manager.ActiveRooms())
}

func TestRoom_PlayerCanRequeueAfterLeaving(t *testing.T) {
	h := newHarness(t, testRules())
	_, p := h.start(t, game.Mode1v1v1v1, "a", "b", "c", "d")

	h.manager.Leave(p[3])
	_, ok := h.manager.RoomOf(p[3])
	assert.False(t, ok)

	send(h, p[3], "PLACE 0 0")
	assert.Equal(t, "ERROR not_in_room", p[3].last())
}

func itoa(n int) string {
	return string(rune('0' + n))
}
