package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/protocol"
)

const dialTimeout = 10 * time.Second

// Play joins the queue and relays lines between stdin and the server until
// the game ends or the server hangs up.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	mode, err := game.ParseMode(cmd.String("mode"))
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", cmd.String("mode"), err)
	}
	return r.play(ctx, mode, cmd.String("nickname"))
}

func (r *Runner) play(ctx context.Context, mode game.Mode, nickname string) error {
	wsURL, err := websocketURL(r.baseURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	r.logger.Info("connected", "url", wsURL, "mode", mode, "nickname", nickname)

	var writeMu sync.Mutex
	send := func(line string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(line))
	}

	if err := send(protocol.New(protocol.CmdQueue, string(mode), nickname).String()); err != nil {
		return fmt.Errorf("failed to queue: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(r.input)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := send(line); err != nil {
				r.logger.Debug("stopped forwarding input", "err", err)
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Info("server closed the connection")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		line := string(data)
		fmt.Fprintln(r.output, line)

		if gameEnded(line) {
			return nil
		}
		if head, rest, _ := strings.Cut(line, " "); protocol.Command(head) == protocol.CmdError {
			r.logger.Warn("server rejected a command", "code", rest)
		}
	}
}

// gameEnded reports whether line is the last one the server sends for a
// game: RESULT after a win, GAME_OVER DRAW, or the room closing.
func gameEnded(line string) bool {
	head, rest, _ := strings.Cut(line, " ")
	switch protocol.Command(head) {
	case protocol.CmdResult:
		return true
	case protocol.CmdGameOver:
		return rest == protocol.DrawWinner
	case protocol.CmdError:
		return rest == protocol.CodeRoomClosed
	}
	return false
}

// websocketURL maps the server's HTTP base URL to its game endpoint.
func websocketURL(base string) (string, error) {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("server URL must start with http:// or https://, got %q", base)
	}
}
