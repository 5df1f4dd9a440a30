package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradmak/aixos/internal/appstate"
	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/stream"
	"github.com/tradmak/aixos/internal/transport/httpdto"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Rate limits per minute
type CommandLimits struct {
	MaxSelects int
	MaxSends   int
	MaxPings   int
}

var DefaultCommandLimits = CommandLimits{
	MaxSelects: 60,
	MaxSends:   60,
	MaxPings:   60,
}

// commandLimiter tracks per-connection command budgets
type commandLimiter struct {
	selectTokens int
	sendTokens   int
	pingTokens   int
	lastRefill   time.Time
	mu           sync.Mutex
}

func newCommandLimiter() *commandLimiter {
	return &commandLimiter{
		selectTokens: DefaultCommandLimits.MaxSelects,
		sendTokens:   DefaultCommandLimits.MaxSends,
		pingTokens:   DefaultCommandLimits.MaxPings,
		lastRefill:   time.Now(),
	}
}

func (rl *commandLimiter) Allow(action string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.selectTokens = DefaultCommandLimits.MaxSelects
		rl.sendTokens = DefaultCommandLimits.MaxSends
		rl.pingTokens = DefaultCommandLimits.MaxPings
		rl.lastRefill = now
	}

	switch action {
	case httpdto.StreamActionSelect:
		if rl.selectTokens > 0 {
			rl.selectTokens--
			return true
		}
	case httpdto.StreamActionSend:
		if rl.sendTokens > 0 {
			rl.sendTokens--
			return true
		}
	case httpdto.StreamActionPing:
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

// Client is a single browser connection. Each client owns one stream
// controller, so two tabs never share a subscription scope.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	agent        domain.Agent
	connID       string
	app          *appstate.AppContext
	controller   *stream.Controller
	limiter      *commandLimiter
	ctx          context.Context
	cancel       context.CancelFunc
	connectedAt  time.Time
	lastActivity time.Time
	logger       *StreamLogger
}

// streamPush is the server-to-browser envelope.
type streamPush struct {
	Type     string                  `json:"type"`
	Snapshot *httpdto.StreamSnapshot `json:"snapshot,omitempty"`
	Error    *httpdto.StreamError    `json:"error,omitempty"`
	Trace    *domain.ChatbotTrace    `json:"trace,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, agent domain.Agent, connID string, logger *StreamLogger) *Client {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	app := appstate.New(hub.data, hub.auth)
	app.SetAgent(agent)
	c := &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		agent:        agent,
		connID:       connID,
		app:          app,
		limiter:      newCommandLimiter(),
		ctx:          ctx,
		cancel:       cancel,
		connectedAt:  now,
		lastActivity: now,
		logger:       logger,
	}
	c.controller = stream.NewController(stream.Config{
		Data:     hub.data,
		Feed:     hub.feed,
		Log:      hub.log,
		Identity: c.app.Agent,
		OnChange: c.pushSnapshot,
		OnActivity: func(entityID string, at time.Time) {
			c.hub.touchActivity(c.controller.Snapshot().Kind)
		},
	})
	return c
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("stream unexpected close", c.agent.ID, c.connID, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity = time.Now()

		if err := c.handleCommand(message); err != nil {
			c.logger.Error("stream command failed", c.agent.ID, c.connID, err)
		}
	}
}

func (c *Client) handleCommand(message []byte) error {
	var cmd httpdto.StreamCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.pushError("malformed command", "INVALID_COMMAND")
		return err
	}

	if !c.limiter.Allow(cmd.Action) {
		c.logger.Warn("command rate limit exceeded", c.agent.ID, c.connID, zap.String("action", cmd.Action))
		c.pushError("slow down", "RATE_LIMITED")
		return nil
	}

	switch cmd.Action {
	case httpdto.StreamActionSelect:
		return c.handleSelect(cmd)
	case httpdto.StreamActionSend:
		return c.handleSend(cmd)
	case httpdto.StreamActionPing:
		return c.handlePing()
	default:
		c.logger.Warn("unknown command action", c.agent.ID, c.connID, zap.String("action", cmd.Action))
		c.pushError("unknown action", "INVALID_COMMAND")
		return nil
	}
}

func (c *Client) handleSelect(cmd httpdto.StreamCommand) error {
	if cmd.EntityID == "" {
		// Deselect: the controller goes idle and the subscription drops.
		c.controller.SelectEntity(c.ctx, "", "")
		c.app.SetActiveSelection("", "")
		return nil
	}
	kind, ok := domain.ParseKind(cmd.Kind)
	if !ok {
		c.pushError("unknown stream kind", "INVALID_COMMAND")
		return nil
	}
	c.controller.SelectEntity(c.ctx, kind, cmd.EntityID)
	c.app.SetActiveSelection(kind, cmd.EntityID)
	return nil
}

func (c *Client) handleSend(cmd httpdto.StreamCommand) error {
	_, err := c.controller.Send(c.ctx, cmd.Content, cmd.AttachmentRefs)
	if err != nil {
		c.pushError(err.Error(), sendErrorCode(err))
	}
	return nil
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, aixos_errors.ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, aixos_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, aixos_errors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, aixos_errors.ErrSendFailed):
		return "SEND_FAILED"
	default:
		return "INTERNAL"
	}
}

func (c *Client) handlePing() error {
	c.enqueue([]byte(`{"type":"pong"}`))
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.hub.presence.Heartbeat(ctx, c.agent.ID); err != nil {
		c.logger.Warn("presence heartbeat failed", c.agent.ID, c.connID, zap.Error(err))
	}
	return nil
}

// pushSnapshot serializes the controller state and queues it for the write
// pump. Fired by the controller after every state or sequence change.
func (c *Client) pushSnapshot() {
	snap := c.controller.Snapshot()
	messages := snap.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	push := streamPush{
		Type: "snapshot",
		Snapshot: &httpdto.StreamSnapshot{
			Kind:        string(snap.Kind),
			EntityID:    snap.EntityID,
			State:       snap.State.String(),
			FetchFailed: snap.FetchFailed,
			SubFailed:   snap.SubFailed,
			Messages:    messages,
		},
	}
	data, err := json.Marshal(push)
	if err != nil {
		c.logger.Error("snapshot marshal failed", c.agent.ID, c.connID, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) pushError(message, code string) {
	data, err := json.Marshal(streamPush{
		Type:  "error",
		Error: &httpdto.StreamError{Error: message, Code: code},
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full", c.agent.ID, c.connID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(c.lastActivity) > pongWait*2 {
				c.logger.Info("client idle timeout", c.agent.ID, c.connID)
				return
			}
		}
	}
}
