package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/transcript"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

// State is the per-entity lifecycle of a controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSynced
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSynced:
		return "synced"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// pendingMatchWindow bounds how far apart the optimistic append and the
// authoritative echo may sit and still be treated as the same message.
const pendingMatchWindow = 5 * time.Minute

// Config wires a controller. Identity supplies the sender for optimistic
// appends; OnChange fires after every state or sequence change; OnActivity
// reports the latest known message time per entity so conversation lists
// can stay ordered without their own subscription.
type Config struct {
	Data       gateway.Data
	Feed       gateway.Feed
	Log        *logger.Logger
	Identity   func() (domain.Agent, bool)
	OnChange   func()
	OnActivity func(entityID string, at time.Time)

	// test seams
	Now   func() time.Time
	NewID func() string
}

// Controller keeps one displayed message stream consistent with the
// platform: ordered history, live merge, optimistic sends. Each screen
// owns its own instance; instances never share subscription scope.
type Controller struct {
	cfg Config

	mu          sync.Mutex
	kind        domain.Kind
	entityID    string
	token       uint64
	state       State
	fetchFailed bool
	subFailed   bool
	messages    []domain.Message
	unsubscribe gateway.Unsubscribe
}

// Snapshot is what screens render. Messages is a copy; mutating it does
// not affect the controller.
type Snapshot struct {
	Kind        domain.Kind
	EntityID    string
	State       State
	FetchFailed bool
	SubFailed   bool
	Messages    []domain.Message
}

func NewController(cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return domain.PendingIDPrefix + uuid.NewString() }
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	if cfg.OnActivity == nil {
		cfg.OnActivity = func(string, time.Time) {}
	}
	return &Controller{cfg: cfg}
}

// SelectEntity switches the controller to (kind, entityID), or to idle
// when entityID is empty. The previous subscription is torn down before
// this method first suspends; stale in-flight fetches are discarded by
// comparing the selection token at resolution time.
func (c *Controller) SelectEntity(ctx context.Context, kind domain.Kind, entityID string) {
	c.mu.Lock()
	c.token++
	token := c.token
	prevUnsub := c.unsubscribe
	c.unsubscribe = nil
	c.kind = kind
	c.entityID = entityID
	c.messages = nil
	c.fetchFailed = false
	c.subFailed = false
	if entityID == "" {
		c.state = StateIdle
	} else {
		c.state = StateLoading
	}
	c.mu.Unlock()

	// Hard requirement: no suspension point between deselecting the old
	// entity and dropping its channel, or messages from the previous
	// conversation bleed into the new view.
	if prevUnsub != nil {
		prevUnsub()
	}
	c.cfg.OnChange()

	if entityID == "" {
		return
	}

	go c.load(ctx, kind, entityID, token)
}

// load opens the live channel first and then backfills history through the
// same idempotent merge, so rows that arrive during the fetch are neither
// lost nor duplicated. Read and subscribe stay decoupled: either may fail
// without blocking the other.
func (c *Controller) load(ctx context.Context, kind domain.Kind, entityID string, token uint64) {
	route := domain.Route(kind)

	if !route.ReadOnly {
		unsub, err := c.cfg.Feed.Subscribe(ctx, route.MessagesTable, route.FilterColumn, entityID, func(ev gateway.Event) {
			c.onRemoteEvent(token, ev)
		})
		c.mu.Lock()
		if token != c.token {
			c.mu.Unlock()
			if unsub != nil {
				unsub()
			}
			return
		}
		if err != nil {
			c.subFailed = true
			c.cfg.Log.Warnf("stream: subscribe %s/%s failed: %v", route.MessagesTable, entityID, err)
		} else {
			c.unsubscribe = unsub
		}
		c.mu.Unlock()
	}

	msgs, err := c.fetchHistory(ctx, kind, entityID)

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.fetchFailed = true
		c.state = StateError
		c.cfg.Log.Errorf("stream: history fetch %s/%s failed: %v", route.MessagesTable, entityID, err)
	} else {
		for _, m := range msgs {
			c.messages = merge(c.messages, m)
		}
		c.state = StateSynced
	}
	c.mu.Unlock()
	c.cfg.OnChange()
}

func (c *Controller) fetchHistory(ctx context.Context, kind domain.Kind, entityID string) ([]domain.Message, error) {
	route := domain.Route(kind)

	if route.ReadOnly {
		rows, err := c.cfg.Data.Query(ctx, route.MessagesTable, gateway.Filter{"id": gateway.Eq(entityID)}, nil, 1)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		trace := domain.TraceFromRow(rows[0])
		return traceMessages(trace), nil
	}

	rows, err := c.cfg.Data.Query(ctx, route.MessagesTable,
		gateway.Filter{route.FilterColumn: gateway.Eq(entityID)},
		gateway.Asc("created_at"), 0)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, domain.MessageFromRow(r))
	}
	return msgs, nil
}

// traceMessages materializes a bot-trace blob as a message sequence. The
// blob carries no per-line timestamps, so input order is the only ordering
// signal; synthetic ids keep the sort stable.
func traceMessages(trace domain.ChatbotTrace) []domain.Message {
	var msgs []domain.Message
	i := 0
	for turn := range transcript.Turns(trace.Conversation) {
		sender := domain.SenderUser
		if turn.Role == transcript.RoleAI {
			sender = domain.SenderBot
		}
		msgs = append(msgs, domain.Message{
			ID:             trace.ID + "/" + itoaPad(i),
			ConversationID: trace.ID,
			SenderType:     sender,
			Content:        turn.Content,
			CreatedAt:      trace.CreatedAt,
		})
		i++
	}
	return msgs
}

// onRemoteEvent merges one feed delivery. Guarded by the selection token
// captured at subscribe time: deliveries raced against a newer selection
// are dropped.
func (c *Controller) onRemoteEvent(token uint64, ev gateway.Event) {
	if ev.Op == gateway.EventDelete {
		c.removeByID(token, ev.Row.String("id"))
		return
	}
	msg := domain.MessageFromRow(ev.Row)
	if msg.ID == "" {
		return
	}

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	c.reconcileLocked(msg)
	c.mu.Unlock()
	c.cfg.OnChange()
	c.cfg.OnActivity(msg.ConversationID, msg.CreatedAt)
}

func (c *Controller) removeByID(token uint64, id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	for i, m := range c.messages {
		if m.ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.cfg.OnChange()
}

// reconcileLocked folds an authoritative row into the sequence. A pending
// sentinel matching by conversation, sender, content and time window is
// superseded rather than kept alongside; ids never match because the
// platform assigns its own.
func (c *Controller) reconcileLocked(msg domain.Message) {
	if !msg.IsPending() {
		for i, m := range c.messages {
			if m.IsPending() &&
				m.ConversationID == msg.ConversationID &&
				m.SenderType == msg.SenderType &&
				m.Content == msg.Content &&
				absDuration(m.CreatedAt.Sub(msg.CreatedAt)) <= pendingMatchWindow {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				break
			}
		}
	}
	c.messages = merge(c.messages, msg)
}

// Send appends content optimistically and persists it through the
// platform. When no entity is active one is created first and becomes
// active, so the console never shows an empty conversation shell before
// the user commits to sending.
func (c *Controller) Send(ctx context.Context, content string, attachmentRefs []string) (domain.Message, error) {
	if content == "" && len(attachmentRefs) == 0 {
		return domain.Message{}, aixos_errors.ErrInvalidInput
	}
	identity, ok := c.cfg.Identity()
	if !ok {
		return domain.Message{}, aixos_errors.ErrUnauthorized
	}

	c.mu.Lock()
	kind := c.kind
	entityID := c.entityID
	c.mu.Unlock()

	route := domain.Route(kind)
	if route.ReadOnly {
		return domain.Message{}, aixos_errors.ErrInvalidInput
	}

	if entityID == "" {
		created, err := c.createEntity(ctx, kind, identity, content)
		if err != nil {
			return domain.Message{}, err
		}
		entityID = created
	}

	pending := domain.Message{
		ID:             c.cfg.NewID(),
		ConversationID: entityID,
		SenderType:     senderFor(kind),
		SenderID:       identity.ID,
		Content:        content,
		CreatedAt:      c.cfg.Now(),
		AttachmentRefs: attachmentRefs,
		Pending:        true,
	}

	c.mu.Lock()
	if c.entityID != entityID {
		// Selection moved while we were creating the entity; the send
		// belongs to the old target and is abandoned.
		c.mu.Unlock()
		return domain.Message{}, aixos_errors.ErrConflict
	}
	c.messages = merge(c.messages, pending)
	c.mu.Unlock()
	c.cfg.OnChange()

	payload := sendPayload(kind, route, entityID, identity, content, attachmentRefs)
	row, err := c.cfg.Data.Mutate(ctx, route.MessagesTable, gateway.OpInsert, payload, nil)
	if err != nil {
		c.markFailed(pending.ID)
		c.cfg.Log.Errorf("stream: send to %s/%s failed: %v", route.MessagesTable, entityID, err)
		return pending, aixos_errors.ErrSendFailed
	}

	authoritative := domain.MessageFromRow(row)
	c.mu.Lock()
	if c.entityID == entityID {
		c.reconcileLocked(authoritative)
	}
	c.mu.Unlock()
	c.cfg.OnChange()
	c.cfg.OnActivity(entityID, authoritative.CreatedAt)

	// Fire-and-forget activity touch; its failure never rolls back the send.
	go c.touchActivity(kind, route, entityID)

	return authoritative, nil
}

func (c *Controller) createEntity(ctx context.Context, kind domain.Kind, identity domain.Agent, content string) (string, error) {
	payload := map[string]any{}
	switch kind {
	case domain.KindAIAssistant:
		payload["agent_id"] = identity.ID
		payload["title"] = domain.SessionTitle(content)
	default:
		payload["status"] = string(domain.StatusOpen)
		payload["assigned_agent_id"] = identity.ID
	}
	route := domain.Route(kind)
	row, err := c.cfg.Data.Mutate(ctx, route.ConversationsTable, gateway.OpInsert, payload, nil)
	if err != nil {
		return "", aixos_errors.ErrSendFailed
	}
	id := row.String("id")
	if id == "" {
		return "", aixos_errors.ErrSendFailed
	}
	c.SelectEntity(ctx, kind, id)
	return id, nil
}

func (c *Controller) markFailed(pendingID string) {
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == pendingID {
			c.messages[i].Failed = true
			break
		}
	}
	c.mu.Unlock()
	c.cfg.OnChange()
}

func (c *Controller) touchActivity(kind domain.Kind, route domain.TableRoute, entityID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := c.cfg.Data.Mutate(ctx, route.ConversationsTable, gateway.OpUpdate,
		map[string]any{route.ActivityColumn: c.cfg.Now().UTC().Format(time.RFC3339)},
		gateway.Filter{"id": gateway.Eq(entityID)})
	if err != nil {
		c.cfg.Log.Warnf("stream: activity touch on %s/%s failed: %v", route.ConversationsTable, entityID, err)
	}
}

// Snapshot returns the current sequence and state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]domain.Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		Kind:        c.kind,
		EntityID:    c.entityID,
		State:       c.state,
		FetchFailed: c.fetchFailed,
		SubFailed:   c.subFailed,
		Messages:    msgs,
	}
}

// Close tears down any live subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	c.token++
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.state = StateIdle
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func senderFor(kind domain.Kind) domain.SenderType {
	if kind == domain.KindAIAssistant {
		return domain.SenderUser
	}
	return domain.SenderAgent
}

func sendPayload(kind domain.Kind, route domain.TableRoute, entityID string, identity domain.Agent, content string, attachmentRefs []string) map[string]any {
	payload := map[string]any{
		route.FilterColumn: entityID,
		"content":          content,
	}
	switch kind {
	case domain.KindAIAssistant:
		payload["role"] = "user"
	case domain.KindInternalChannel:
		payload["sender_id"] = identity.ID
	default:
		payload["sender_type"] = string(domain.SenderAgent)
		payload["sender_id"] = identity.ID
	}
	if len(attachmentRefs) > 0 {
		payload["attachment_refs"] = attachmentRefs
	}
	return payload
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func itoaPad(i int) string {
	return fmt.Sprintf("%04d", i)
}
