package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/omokpang/omokpang/internal/domain/game"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArguments   = errors.New("bad arguments")
)

// Command is the first word of a protocol line.
type Command string

// Client commands.
const (
	CmdQueue             Command = "QUEUE"
	CmdCancel            Command = "CANCEL"
	CmdReroll            Command = "REROLL"
	CmdReady             Command = "READY"
	CmdPlace             Command = "PLACE"
	CmdCheer             Command = "CHEER"
	CmdTurnEnd           Command = "TURN_END"
	CmdRemoveStart       Command = "REMOVE_START"
	CmdRemoveTarget      Command = "REMOVE_TARGET"
	CmdSwapStart         Command = "SWAP_START"
	CmdSwapTarget        Command = "SWAP_TARGET"
	CmdSharedStoneStart  Command = "SHARED_STONE_START"
	CmdSharedStoneTarget Command = "SHARED_STONE_TARGET"
	CmdBombStart         Command = "BOMB_START"
	CmdBombTarget        Command = "BOMB_TARGET"
	CmdTimeLockStart     Command = "TIMELOCK_START"
	CmdDoubleMoveStart   Command = "DOUBLE_MOVE_START"
	CmdDefenseStart      Command = "DEFENSE_START"
	CmdShieldBlockRemove Command = "SHIELD_BLOCK_REMOVE"
	CmdShieldBlockSwap   Command = "SHIELD_BLOCK_SWAP"
	CmdShieldPass        Command = "SHIELD_PASS"
)

// Server commands.
const (
	CmdWelcome      Command = "WELCOME"
	CmdQueued       Command = "QUEUED"
	CmdMatch        Command = "MATCH"
	CmdCards        Command = "CARDS"
	CmdTurn         Command = "TURN"
	CmdShieldPrompt Command = "SHIELD_PROMPT"
	CmdOpponentLeft Command = "OPPONENT_LEFT"
	CmdPlayerLeft   Command = "PLAYER_LEFT"
	CmdGameOver     Command = "GAME_OVER"
	CmdResult       Command = "RESULT"
	CmdError        Command = "ERROR"
)

// Error codes sent in ERROR lines.
const (
	CodeUnknownCommand     = "unknown_command"
	CodeBadArguments       = "bad_arguments"
	CodeUnknownMode        = "unknown_mode"
	CodeNotInRoom          = "not_in_room"
	CodeAlreadyInRoom      = "already_in_room"
	CodeWrongPhase         = "wrong_phase"
	CodeNotYourTurn        = "not_your_turn"
	CodeOutOfBounds        = "out_of_bounds"
	CodeCellOccupied       = "cell_occupied"
	CodeNoSuchCard         = "no_such_card"
	CodeCardAlreadyUsed    = "card_already_used"
	CodeBadTarget          = "bad_target"
	CodeProtected          = "protected"
	CodeInsufficientPoints = "insufficient_points"
	CodeRoomClosed         = "room_closed"
	CodeInternal           = "internal"
)

// arity bounds the number of arguments a client command takes. A max of -1
// keeps the remainder of the line as a single argument.
type arity struct {
	min, max int
	ints     bool
}

var clientCommands = map[Command]arity{
	CmdQueue:             {2, 2, false},
	CmdCancel:            {0, 0, false},
	CmdReroll:            {1, 1, true},
	CmdReady:             {0, 0, false},
	CmdPlace:             {2, 2, true},
	CmdCheer:             {1, -1, false},
	CmdTurnEnd:           {0, 0, false},
	CmdRemoveStart:       {0, 0, false},
	CmdRemoveTarget:      {2, 2, true},
	CmdSwapStart:         {0, 0, false},
	CmdSwapTarget:        {4, 4, true},
	CmdSharedStoneStart:  {0, 0, false},
	CmdSharedStoneTarget: {2, 2, true},
	CmdBombStart:         {0, 0, false},
	CmdBombTarget:        {2, 2, true},
	CmdTimeLockStart:     {0, 0, false},
	CmdDoubleMoveStart:   {0, 0, false},
	CmdDefenseStart:      {0, 0, false},
	CmdShieldBlockRemove: {0, 0, false},
	CmdShieldBlockSwap:   {0, 0, false},
	CmdShieldPass:        {0, 0, false},
}

// Message is one protocol line.
type Message struct {
	Command Command
	Args    []string
}

// New builds a message from a command and its arguments.
func New(cmd Command, args ...string) Message {
	return Message{Command: cmd, Args: args}
}

// String formats the message as a wire line.
func (m Message) String() string {
	if len(m.Args) == 0 {
		return string(m.Command)
	}
	return string(m.Command) + " " + strings.Join(m.Args, " ")
}

// Int returns argument i as an integer.
func (m Message) Int(i int) (int, error) {
	if i < 0 || i >= len(m.Args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	n, err := strconv.Atoi(m.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadArguments, m.Args[i])
	}
	return n, nil
}

// Point reads arguments i and i+1 as a row and column.
func (m Message) Point(i int) (game.Point, error) {
	r, err := m.Int(i)
	if err != nil {
		return game.Point{}, err
	}
	c, err := m.Int(i + 1)
	if err != nil {
		return game.Point{}, err
	}
	return game.Point{Row: r, Col: c}, nil
}

// Parse validates a client line.
func Parse(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, ErrUnknownCommand
	}

	head, rest, _ := strings.Cut(line, " ")
	cmd := Command(head)
	a, ok := clientCommands[cmd]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownCommand, head)
	}

	rest = strings.TrimSpace(rest)
	var args []string
	if a.max == -1 {
		if rest != "" {
			args = []string{rest}
		}
	} else {
		args = strings.Fields(rest)
	}

	if len(args) < a.min || (a.max >= 0 && len(args) > a.max) {
		return Message{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArguments, cmd, a.min, len(args))
	}

	msg := Message{Command: cmd, Args: args}
	if a.ints {
		for i := range args {
			if _, err := msg.Int(i); err != nil {
				return Message{}, err
			}
		}
	}
	return msg, nil
}

// IsClientCommand reports whether cmd is accepted from clients.
func IsClientCommand(cmd Command) bool {
	_, ok := clientCommands[cmd]
	return ok
}

// CodeFor maps a parse error to its ERROR code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, ErrBadArguments):
		return CodeBadArguments
	default:
		return CodeInternal
	}
}
