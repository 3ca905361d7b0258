package protocol

import (
	"strconv"
	"strings"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/internal/domain/user"
)

// WelcomeBanner is sent once per connection.
const WelcomeBanner = "OmokPang!"

// DrawWinner is the GAME_OVER argument when nobody wins.
const DrawWinner = "DRAW"

func Welcome() Message {
	return New(CmdWelcome, WelcomeBanner)
}

func Queued(mode game.Mode, position int) Message {
	return New(CmdQueued, string(mode), strconv.Itoa(position))
}

// Match announces the seat order of a new room.
func Match(mode game.Mode, nicknames []string) Message {
	return New(CmdMatch, string(mode), strings.Join(nicknames, ","))
}

func Cards(hand []game.CardType) Message {
	names := make([]string, len(hand))
	for i, c := range hand {
		names[i] = string(c)
	}
	return New(CmdCards, strings.Join(names, ","))
}

// Turn hands the turn to nickname for the given number of seconds.
func Turn(nickname string, seconds int) Message {
	return New(CmdTurn, nickname, strconv.Itoa(seconds))
}

// Placed relays a stone placement to the other players.
func Placed(p game.Point, nickname string) Message {
	return New(CmdPlace, strconv.Itoa(p.Row), strconv.Itoa(p.Col), nickname)
}

func Cheer(nickname, text string) Message {
	return New(CmdCheer, nickname, text)
}

// ShieldPrompt asks a defender whether to block an incoming attack. The
// argument lists the attack kind followed by its coordinates.
func ShieldPrompt(card game.CardType, points ...game.Point) Message {
	args := []string{string(card)}
	for _, p := range points {
		args = append(args, strconv.Itoa(p.Row), strconv.Itoa(p.Col))
	}
	return New(CmdShieldPrompt, args...)
}

func OpponentLeft() Message {
	return New(CmdOpponentLeft)
}

func PlayerLeft(nickname string) Message {
	return New(CmdPlayerLeft, nickname)
}

// GameOver names the winners joined by commas, or DRAW.
func GameOver(winners []string) Message {
	if len(winners) == 0 {
		return New(CmdGameOver, DrawWinner)
	}
	return New(CmdGameOver, strings.Join(winners, ","))
}

// Result lists rank:nickname:points for every player.
func Result(results []user.PlayerResult) Message {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = strconv.Itoa(r.Rank) + ":" + r.Nickname + ":" + strconv.Itoa(r.PointDelta)
	}
	return New(CmdResult, strings.Join(parts, ","))
}

func Error(code string) Message {
	return New(CmdError, code)
}

// Relay forwards a client message to the other players, tagged with the
// sender's nickname.
func Relay(msg Message, nickname string) Message {
	args := make([]string, 0, len(msg.Args)+1)
	args = append(args, msg.Args...)
	args = append(args, nickname)
	return New(msg.Command, args...)
}
