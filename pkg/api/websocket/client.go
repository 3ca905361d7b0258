package websocket

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omokpang/omokpang/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client is one game connection. It implements ports.Player.
type Client struct {
	conn   *websocket.Conn
	ip     string
	logger *zap.Logger

	send      chan string
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	nickname string
}

func newClient(conn *websocket.Conn, ip string, logger *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		ip:     ip,
		logger: logger,
		send:   make(chan string, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Nickname returns the name given with QUEUE, or "" before that.
func (c *Client) Nickname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

func (c *Client) setNickname(nickname string) {
	c.mu.Lock()
	c.nickname = nickname
	c.mu.Unlock()
}

// Send queues msg without blocking. A client whose buffer is full is
// disconnected.
func (c *Client) Send(msg protocol.Message) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg.String():
	case <-c.done:
	default:
		c.logger.Warn("send buffer full, dropping client",
			zap.String("nickname", c.Nickname()),
			zap.String("client", c.ip))
		c.close()
	}
}

// Closed reports whether the connection is shutting down.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close stops the client. The write pump flushes what is queued and then
// closes the connection, which ends the read pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump delivers every received line to handle until the connection
// fails.
func (c *Client) readPump(handle func(line string)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected websocket close",
					zap.String("client", c.ip),
					zap.Error(err))
			}
			return
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				handle(line)
			}
		}
	}
}

// writePump writes queued lines and keeps the connection alive with pings.
// Lines still queued when the client closes are flushed first.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case line := <-c.send:
			if err := c.write(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case line := <-c.send:
			if err := c.write(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		default:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
