package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/redis"
	"github.com/tradmak/aixos/internal/services"
	"github.com/tradmak/aixos/pkg/logger"
)

// Hub maintains the set of active stream connections. It ties connection
// lifecycle to agent presence and fans new chatbot traces out to admins.
type Hub struct {
	clients    map[string]map[string]*Client
	register   chan *Client
	unregister chan *Client

	data     gateway.Data
	feed     gateway.Feed
	auth     *gateway.AuthClient
	presence *redis.PresenceStore
	cache    *redis.CacheStore
	monitor  *services.MonitorService
	log      *logger.Logger

	rateLimiter *connectionLimiter
	logger      *StreamLogger
	mu          sync.RWMutex
	stopChan    chan struct{}
	traceUnsub  gateway.Unsubscribe
	isRunning   int32
}

// connectionLimiter tracks connection attempts per agent
type connectionLimiter struct {
	connectionsPerAgent map[string][]time.Time
	mu                  sync.Mutex
}

func newConnectionLimiter() *connectionLimiter {
	cl := &connectionLimiter{
		connectionsPerAgent: make(map[string][]time.Time),
	}
	go cl.cleanupLoop()
	return cl
}

func (l *connectionLimiter) AllowConnection(agentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)

	valid := []time.Time{}
	for _, t := range l.connectionsPerAgent[agentID] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= 10 {
		return false
	}

	l.connectionsPerAgent[agentID] = append(valid, now)
	return true
}

func (l *connectionLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.cleanup()
	}
}

func (l *connectionLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)

	for agentID, times := range l.connectionsPerAgent {
		valid := []time.Time{}
		for _, t := range times {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(l.connectionsPerAgent, agentID)
		} else {
			l.connectionsPerAgent[agentID] = valid
		}
	}
}

// NewHub creates a new Hub
func NewHub(
	data gateway.Data,
	feed gateway.Feed,
	auth *gateway.AuthClient,
	presence *redis.PresenceStore,
	cache *redis.CacheStore,
	monitor *services.MonitorService,
	log *logger.Logger,
) *Hub {
	return &Hub{
		clients:     make(map[string]map[string]*Client),
		register:    make(chan *Client, 256),
		unregister:  make(chan *Client, 256),
		data:        data,
		feed:        feed,
		auth:        auth,
		presence:    presence,
		cache:       cache,
		monitor:     monitor,
		log:         log,
		rateLimiter: newConnectionLimiter(),
		logger:      NewStreamLogger(),
		stopChan:    make(chan struct{}),
	}
}

// Run starts the Hub
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	h.watchTraces()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.rateLimiter.AllowConnection(client.agent.ID) {
		h.logger.Warn("connection rate limit exceeded", client.agent.ID, client.connID)
		client.conn.Close()
		return
	}

	if h.clients[client.agent.ID] == nil {
		h.clients[client.agent.ID] = make(map[string]*Client)
	}

	const maxConnectionsPerAgent = 10
	if len(h.clients[client.agent.ID]) >= maxConnectionsPerAgent {
		h.logger.Warn("max connections per agent reached", client.agent.ID, client.connID)
		for id, c := range h.clients[client.agent.ID] {
			h.removeClient(c)
			delete(h.clients[client.agent.ID], id)
			break
		}
	}

	h.clients[client.agent.ID][client.connID] = client

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := h.presence.SetOnline(ctx, client.agent.ID); err != nil {
		h.log.Warnf("hub: presence set online %s: %v", client.agent.ID, err)
	}
	cancel()

	h.logger.Info("client connected", client.agent.ID, client.connID)

	go client.writePump()
	go client.readPump()

	// First snapshot puts the browser in a known idle state.
	client.pushSnapshot()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if agentClients, ok := h.clients[client.agent.ID]; ok {
		if _, ok := agentClients[client.connID]; ok {
			delete(agentClients, client.connID)
			h.removeClient(client)

			if len(agentClients) == 0 {
				delete(h.clients, client.agent.ID)
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := h.presence.SetOffline(ctx, client.agent.ID); err != nil {
					h.log.Warnf("hub: presence set offline %s: %v", client.agent.ID, err)
				}
				cancel()
			}

			h.logger.Info("client disconnected", client.agent.ID, client.connID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	client.controller.Close()
	client.cancel()
	close(client.send)
	client.conn.Close()
}

// touchActivity drops the cached conversation lists for a kind after a
// message lands, so the next list fetch reorders.
func (h *Hub) touchActivity(kind domain.Kind) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.cache.InvalidateConversationLists(ctx, kind); err != nil {
		h.log.Warnf("hub: list cache invalidate %s: %v", kind, err)
	}
}

// watchTraces opens a table-wide feed on the website chatbot log and pushes
// each new trace to connected admins, so the monitor screen updates without
// polling.
func (h *Hub) watchTraces() {
	unsub, err := h.monitor.WatchTable(context.Background(), func(trace domain.ChatbotTrace) {
		h.broadcastTrace(trace)
	})
	if err != nil {
		h.log.Warnf("hub: chatbot trace watch unavailable: %v", err)
		return
	}
	h.traceUnsub = unsub
}

func (h *Hub) broadcastTrace(trace domain.ChatbotTrace) {
	data, err := json.Marshal(streamPush{Type: "trace", Trace: &trace})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, agentClients := range h.clients {
		for _, client := range agentClients {
			if !client.agent.IsAdmin() {
				continue
			}
			client.enqueue(data)
		}
	}
}

// Stop gracefully shuts down the Hub
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.traceUnsub != nil {
		h.traceUnsub()
		h.traceUnsub = nil
	}

	for _, agentClients := range h.clients {
		for _, client := range agentClients {
			h.removeClient(client)
		}
	}
	h.clients = make(map[string]map[string]*Client)
}
