package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/reachy-voice/pkg/events"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	// eventBuffer is each client's event queue; the oldest events are
	// dropped when a client falls behind.
	eventBuffer = 256
)

// client is one WebSocket connection. Only writePump writes to conn.
type client struct {
	conn     *websocket.Conn
	sub      *events.Subscription
	send     chan []byte
	requests chan Request
	done     chan struct{}
	logger   *slog.Logger
}

// handleWS streams pipeline events to the client and executes its commands.
func (s *Server) handleWS(conn *websocket.Conn) {
	c := &client{
		conn:     conn,
		sub:      s.voice.Events().Subscribe(eventBuffer),
		send:     make(chan []byte, 16),
		requests: make(chan Request, 8),
		done:     make(chan struct{}),
		logger:   s.logger.With("remote", conn.RemoteAddr().String()),
	}
	defer c.sub.Close()
	c.logger.Debug("websocket client connected")

	// Initial status goes out before any event.
	if err := c.writeJSON(Message{Type: cmdStatus, Data: s.voice.Status()}); err != nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		s.serveRequests(c)
	}()

	c.readPump()
	close(c.done)
	wg.Wait()
	c.logger.Debug("websocket client disconnected", "dropped_events", c.sub.Dropped())
}

// readPump decodes client requests until the connection closes.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(errorMessage("Invalid JSON"))
			continue
		}
		select {
		case c.requests <- req:
		default:
			c.reply(errorMessage("Too many pending commands"))
		}
	}
}

// writePump writes replies, events and pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}

		case e, ok := <-c.sub.C:
			if !ok {
				return
			}
			if err := c.writeJSON(eventMessage(e)); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("encode websocket message failed", "type", msg.Type, "error", err)
		return nil
	}
	return c.write(websocket.TextMessage, data)
}

// reply queues msg for writePump. It gives up once the client is gone.
func (c *client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("encode websocket reply failed", "type", msg.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

// serveRequests runs client commands one at a time so a long execute never
// stalls the read loop.
func (s *Server) serveRequests(c *client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	for {
		select {
		case <-c.done:
			return
		case req := <-c.requests:
			s.handleRequest(ctx, c, req)
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, c *client, req Request) {
	switch req.Command {
	case cmdStart:
		err := s.voice.Start(ctx)
		c.reply(Message{Type: typeCommandResult, Command: cmdStart, Data: result(err, "Voice control started")})

	case cmdStop:
		err := s.voice.Stop(ctx)
		c.reply(Message{Type: typeCommandResult, Command: cmdStop, Data: result(err, "Voice control stopped")})

	case cmdExecute:
		if req.Text == "" {
			return
		}
		useClaudeCode := req.UseClaudeCode == nil || *req.UseClaudeCode
		res := s.voice.ExecuteManualCommand(ctx, req.Text, useClaudeCode)
		c.reply(Message{Type: typeCommandResult, Command: cmdExecute, Data: res})

	case cmdStatus:
		c.reply(Message{Type: cmdStatus, Data: s.voice.Status()})

	case cmdCancel:
		err := s.voice.CancelExecution()
		c.reply(Message{Type: typeCommandResult, Command: cmdCancel, Data: result(err, "Execution cancelled")})

	default:
		c.reply(errorMessage("Unknown command: " + req.Command))
	}
}
