package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/internal/application/room"
	"github.com/omokpang/omokpang/internal/domain/game"
	"github.com/omokpang/omokpang/pkg/ports"
	"github.com/omokpang/omokpang/pkg/protocol"
)

const lookupTimeout = 3 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Matchmaker queues players for a mode
type Matchmaker interface {
	Enqueue(p ports.Player, mode game.Mode) error
	Cancel(p ports.Player) bool
	Remove(p ports.Player) bool
}

// Rooms routes commands to live rooms
type Rooms interface {
	RoomOf(p ports.Player) (*room.Room, bool)
	Handle(p ports.Player, msg protocol.Message)
	Leave(p ports.Player)
}

// Accounts checks that a queued nickname is registered
type Accounts interface {
	Exists(ctx context.Context, nickname string) (bool, error)
}

// Handler handles WebSocket connections
type Handler struct {
	matchmaker Matchmaker
	rooms      Rooms
	accounts   Accounts
	metrics    ports.MetricsCollector
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// NewHandler creates a new WebSocket handler. A nil accounts accepts any
// nickname.
func NewHandler(matchmaker Matchmaker, rooms Rooms, accounts Accounts, metrics ports.MetricsCollector, logger *zap.Logger) *Handler {
	return &Handler{
		matchmaker: matchmaker,
		rooms:      rooms,
		accounts:   accounts,
		metrics:    metrics,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
	}
}

// HandleConnection upgrades the request and serves the game protocol until
// the client disconnects
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(conn, c.ClientIP(), h.logger)
	h.register(client)
	defer h.unregister(client)

	h.logger.Info("WebSocket connection established", zap.String("client", client.ip))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()

	client.Send(protocol.Welcome())
	client.readPump(func(line string) {
		h.dispatch(client, line)
	})
}

func (h *Handler) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetConnectedClients(n)
}

// unregister takes a closed connection out of matchmaking and its room.
// The client is marked closed first so a room being created for it right
// now sees the drop.
func (h *Handler) unregister(c *Client) {
	c.close()
	h.matchmaker.Remove(c)
	h.rooms.Leave(c)

	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetConnectedClients(n)

	h.logger.Info("WebSocket connection closed",
		zap.String("client", c.ip),
		zap.String("nickname", c.Nickname()))
}

func (h *Handler) dispatch(c *Client, line string) {
	msg, err := protocol.Parse(line)
	if err != nil {
		h.logger.Debug("rejected client line",
			zap.String("client", c.ip),
			zap.Error(err))
		c.Send(protocol.Error(protocol.CodeFor(err)))
		return
	}

	switch msg.Command {
	case protocol.CmdQueue:
		h.queue(c, msg)
	case protocol.CmdCancel:
		h.matchmaker.Cancel(c)
	default:
		h.rooms.Handle(c, msg)
	}
}

// queue handles QUEUE <mode> <nickname>.
func (h *Handler) queue(c *Client, msg protocol.Message) {
	if _, inRoom := h.rooms.RoomOf(c); inRoom {
		c.Send(protocol.Error(protocol.CodeAlreadyInRoom))
		return
	}

	mode, err := game.ParseMode(msg.Args[0])
	if err != nil {
		c.Send(protocol.Error(protocol.CodeUnknownMode))
		return
	}

	nickname := msg.Args[1]
	if err := h.checkNickname(nickname); err != nil {
		h.logger.Warn("queue rejected",
			zap.String("client", c.ip),
			zap.String("nickname", nickname),
			zap.Error(err))
		c.Send(protocol.Error(protocol.CodeBadArguments))
		return
	}

	if current := c.Nickname(); current != nickname {
		h.matchmaker.Remove(c)
		c.setNickname(nickname)
	}

	if err := h.matchmaker.Enqueue(c, mode); err != nil {
		if errors.Is(err, game.ErrUnknownMode) {
			c.Send(protocol.Error(protocol.CodeUnknownMode))
			return
		}
		h.logger.Error("failed to enqueue", zap.Error(err))
		c.Send(protocol.Error(protocol.CodeInternal))
	}
}

func (h *Handler) checkNickname(nickname string) error {
	if h.accounts == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	ok, err := h.accounts.Exists(ctx, nickname)
	if err != nil {
		return fmt.Errorf("failed to look up nickname: %w", err)
	}
	if !ok {
		return fmt.Errorf("nickname %q is not registered", nickname)
	}
	return nil
}

// ConnectedClients returns the number of open connections
func (h *Handler) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every connection after flushing its queued lines
func (h *Handler) Shutdown(ctx context.Context) error {
	h.logger.Info("closing WebSocket connections")

	h.mu.Lock()
	for c := range h.clients {
		c.close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("WebSocket connections closed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket shutdown: %w", ctx.Err())
	}
}
