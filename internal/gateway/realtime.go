package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradmak/aixos/internal/domain"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

const (
	realtimeWriteWait    = 10 * time.Second
	realtimePongWait     = 60 * time.Second
	heartbeatPeriod      = 30 * time.Second
	reconnectBaseBackoff = time.Second
	reconnectMaxBackoff  = 30 * time.Second
)

// RealtimeClient is the websocket change-feed client. One socket carries
// all topic subscriptions; topics are joined and left as screens select
// and deselect entities. The platform does not reconnect for us, so the
// client reconnects with exponential backoff and rejoins every live topic.
type RealtimeClient struct {
	endpoint   string
	serviceKey string
	log        *logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*subscription
	refSeq  uint64
	started bool
	closed  bool
	done    chan struct{}
}

type subscription struct {
	topic   string
	table   string
	onEvent func(Event)
}

// realtimeMessage is the phoenix-style frame the platform speaks.
type realtimeMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type changePayload struct {
	Type     string     `json:"type"`
	Record   domain.Row `json:"record"`
	CommitAt string     `json:"commit_timestamp"`
}

func NewRealtimeClient(endpoint, serviceKey string, log *logger.Logger) *RealtimeClient {
	return &RealtimeClient{
		endpoint:   endpoint,
		serviceKey: serviceKey,
		log:        log,
		subs:       make(map[string]*subscription),
		done:       make(chan struct{}),
	}
}

// Start dials the feed and keeps it alive until Close. Safe to call once.
func (c *RealtimeClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		// Keep retrying in the background; subscriptions queue up and
		// join once the socket is live.
		c.log.Warnf("realtime: initial dial failed, retrying in background: %v", err)
	}
	go c.readLoop(ctx)
	go c.heartbeatLoop(ctx)
	return nil
}

func (c *RealtimeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Subscribe implements Feed. The returned Unsubscribe removes the handler
// before it returns: once it completes, no further events are delivered
// for this subscription even if frames are still in flight.
func (c *RealtimeClient) Subscribe(ctx context.Context, table, filterColumn, filterValue string, onEvent func(Event)) (Unsubscribe, error) {
	if onEvent == nil {
		return nil, aixos_errors.ErrInvalidInput
	}
	topic := "realtime:public:" + table
	if filterColumn != "" {
		topic += ":" + filterColumn + "=eq." + filterValue
	}

	sub := &subscription{topic: topic, table: table, onEvent: onEvent}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, aixos_errors.ErrSubscriptionFailed
	}
	c.subs[topic] = sub
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.sendJoin(topic); err != nil {
			c.log.Warnf("realtime: join %s failed, will rejoin on reconnect: %v", topic, err)
		}
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, topic)
			live := c.conn != nil
			c.mu.Unlock()
			if live {
				_ = c.send(realtimeMessage{Topic: topic, Event: "phx_leave", Ref: c.nextRef()})
			}
		})
	}
	return unsubscribe, nil
}

func (c *RealtimeClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	endpoint := c.endpoint + "/websocket?apikey=" + c.serviceKey + "&vsn=1.0.0"
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return err
	}
	conn.SetReadDeadline(time.Now().Add(realtimePongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(realtimePongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if err := c.sendJoin(topic); err != nil {
			c.log.Warnf("realtime: rejoin %s failed: %v", topic, err)
		}
	}
	return nil
}

func (c *RealtimeClient) readLoop(ctx context.Context) {
	backoff := reconnectBaseBackoff
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			if err := c.dial(ctx); err != nil {
				select {
				case <-time.After(backoff):
				case <-c.done:
					return
				}
				backoff = min(backoff*2, reconnectMaxBackoff)
				continue
			}
			backoff = reconnectBaseBackoff
			continue
		}

		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			if !c.isClosed() {
				c.log.Warnf("realtime: connection lost, reconnecting: %v", err)
			}
			continue
		}
		c.dispatch(msg)
	}
}

func (c *RealtimeClient) dispatch(msg realtimeMessage) {
	switch msg.Event {
	case string(EventInsert), string(EventUpdate), string(EventDelete):
	default:
		return
	}

	c.mu.Lock()
	sub, ok := c.subs[msg.Topic]
	c.mu.Unlock()
	if !ok {
		return
	}

	var payload changePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.log.Warnf("realtime: undecodable %s payload on %s: %v", msg.Event, msg.Topic, err)
		return
	}

	at := time.Now()
	if payload.CommitAt != "" {
		if t, err := time.Parse(time.RFC3339, payload.CommitAt); err == nil {
			at = t
		}
	}
	sub.onEvent(Event{Table: sub.table, Op: EventOp(msg.Event), Row: payload.Record, At: at})
}

func (c *RealtimeClient) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.send(realtimeMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage("{}"), Ref: c.nextRef()})
		}
	}
}

func (c *RealtimeClient) sendJoin(topic string) error {
	return c.send(realtimeMessage{Topic: topic, Event: "phx_join", Payload: json.RawMessage("{}"), Ref: c.nextRef()})
}

func (c *RealtimeClient) send(msg realtimeMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return aixos_errors.ErrSubscriptionFailed
	}
	c.conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *RealtimeClient) nextRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refSeq++
	return strconv.FormatUint(c.refSeq, 10)
}

func (c *RealtimeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
