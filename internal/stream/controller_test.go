package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
	"github.com/tradmak/aixos/pkg/logger"
)

type fakeData struct {
	mu        sync.Mutex
	rows      map[string][]domain.Row
	queryErr  error
	queryGate chan struct{} // when set, Query blocks until closed
	mutateFn  func(table string, op gateway.MutateOp, payload map[string]any) (domain.Row, error)
	mutations []string
}

func (f *fakeData) Query(ctx context.Context, table string, filter gateway.Filter, order *gateway.Order, limit int) ([]domain.Row, error) {
	f.mu.Lock()
	gate := f.queryGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows[table], nil
}

func (f *fakeData) Mutate(ctx context.Context, table string, op gateway.MutateOp, payload map[string]any, filter gateway.Filter) (domain.Row, error) {
	f.mu.Lock()
	f.mutations = append(f.mutations, table)
	fn := f.mutateFn
	f.mu.Unlock()
	if fn == nil {
		return domain.Row{}, nil
	}
	return fn(table, op, payload)
}

func (f *fakeData) Count(ctx context.Context, table string, filter gateway.Filter) (int64, error) {
	return 0, nil
}

func (f *fakeData) RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	return nil, nil
}

type fakeSub struct {
	table   string
	col     string
	val     string
	onEvent func(gateway.Event)
	closed  bool
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(ctx context.Context, table, col, val string, onEvent func(gateway.Event)) (gateway.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{table: table, col: col, val: val, onEvent: onEvent}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		sub.closed = true
		f.mu.Unlock()
	}, nil
}

// emit delivers an event to every open subscription on table.
func (f *fakeFeed) emit(table string, ev gateway.Event) {
	f.mu.Lock()
	var targets []func(gateway.Event)
	for _, s := range f.subs {
		if s.table == table && !s.closed {
			targets = append(targets, s.onEvent)
		}
	}
	f.mu.Unlock()
	for _, fn := range targets {
		fn(ev)
	}
}

func (f *fakeFeed) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.closed {
			n++
		}
	}
	return n
}

func testAgent() domain.Agent {
	return domain.Agent{ID: "agent-1", Name: "Dana", Role: domain.RoleAgent}
}

func newTestController(t *testing.T, data *fakeData, feed *fakeFeed) *Controller {
	t.Helper()
	if data.rows == nil {
		data.rows = map[string][]domain.Row{}
	}
	ctrl := NewController(Config{
		Data:     data,
		Feed:     feed,
		Log:      logger.New("test"),
		Identity: func() (domain.Agent, bool) { return testAgent(), true },
		NewID:    func() string { return domain.PendingIDPrefix + "fixed" },
	})
	t.Cleanup(ctrl.Close)
	return ctrl
}

func waitForState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = c.Snapshot()
		return snap.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func messageRow(id, convID, content string, at time.Time) domain.Row {
	return domain.Row{
		"id":              id,
		"conversation_id": convID,
		"sender_type":     "user",
		"content":         content,
		"created_at":      at.Format(time.RFC3339),
	}
}

func TestSelectEntityLoadsOrderedHistory(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{
		"messages": {
			messageRow("m2", "conv-1", "second", base.Add(time.Minute)),
			messageRow("m1", "conv-1", "first", base),
		},
	}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")

	snap := waitForState(t, ctrl, StateSynced)
	require.Equal(t, []string{"m1", "m2"}, ids(snap.Messages))
	require.False(t, snap.FetchFailed)
	require.False(t, snap.SubFailed)
}

func TestSelectEmptyEntityGoesIdle(t *testing.T) {
	data := &fakeData{}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "")

	snap := ctrl.Snapshot()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.Messages)
	require.Zero(t, feed.openCount())
}

func TestReselectTearsDownPreviousSubscription(t *testing.T) {
	data := &fakeData{rows: map[string][]domain.Row{"messages": {}}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-2")
	waitForState(t, ctrl, StateSynced)

	// Only the conv-2 channel may remain open.
	require.Equal(t, 1, feed.openCount())

	// A delivery raced from the conv-1 subscription is dropped: its
	// callback holds a stale token.
	feed.mu.Lock()
	staleFn := feed.subs[0].onEvent
	feed.mu.Unlock()
	staleFn(gateway.Event{
		Table: "messages",
		Op:    gateway.EventInsert,
		Row:   messageRow("stale", "conv-1", "late", time.Now()),
	})

	require.Empty(t, ctrl.Snapshot().Messages)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := make(chan struct{})
	data := &fakeData{
		rows: map[string][]domain.Row{
			"messages": {messageRow("old", "conv-1", "from the old entity", base)},
		},
		queryGate: gate,
	}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	// First selection's fetch is stuck behind the gate.
	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")

	// Selection moves on before the fetch resolves.
	data.mu.Lock()
	data.queryGate = nil
	data.rows["messages"] = []domain.Row{messageRow("new", "conv-2", "current", base)}
	data.mu.Unlock()
	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-2")
	snap := waitForState(t, ctrl, StateSynced)
	require.Equal(t, []string{"new"}, ids(snap.Messages))

	// Now the old fetch resolves; its rows must not leak into conv-2.
	close(gate)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []string{"new"}, ids(ctrl.Snapshot().Messages))
}

func TestFeedEventDuringLoadIsNotDuplicated(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{
		"messages": {messageRow("m1", "conv-1", "hello", base)},
	}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	// The same row arrives over the feed after history already has it.
	feed.emit("messages", gateway.Event{
		Table: "messages",
		Op:    gateway.EventInsert,
		Row:   messageRow("m1", "conv-1", "hello", base),
	})

	require.Equal(t, []string{"m1"}, ids(ctrl.Snapshot().Messages))
}

func TestFetchFailureIsVisibleButSubscriptionSurvives(t *testing.T) {
	data := &fakeData{queryErr: errors.New("boom")}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	snap := waitForState(t, ctrl, StateError)

	require.True(t, snap.FetchFailed)
	require.False(t, snap.SubFailed)
	require.Equal(t, 1, feed.openCount())

	// Live rows still merge while history is missing.
	feed.emit("messages", gateway.Event{
		Table: "messages",
		Op:    gateway.EventInsert,
		Row:   messageRow("live", "conv-1", "still flowing", time.Now().UTC()),
	})
	require.Equal(t, []string{"live"}, ids(ctrl.Snapshot().Messages))
}

func TestSubscribeFailureIsVisibleButHistoryLoads(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{
		"messages": {messageRow("m1", "conv-1", "hello", base)},
	}}
	feed := &fakeFeed{err: errors.New("feed down")}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	snap := waitForState(t, ctrl, StateSynced)

	require.True(t, snap.SubFailed)
	require.Equal(t, []string{"m1"}, ids(snap.Messages))
}

func TestSendReconcilesPendingWithAuthoritativeEcho(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{"messages": {}}}
	data.mutateFn = func(table string, op gateway.MutateOp, payload map[string]any) (domain.Row, error) {
		if table != "messages" {
			return domain.Row{"id": "whatever"}, nil
		}
		return domain.Row{
			"id":              "srv-1",
			"conversation_id": payload["conversation_id"],
			"sender_type":     payload["sender_type"],
			"content":         payload["content"],
			"created_at":      now.Format(time.RFC3339),
		}, nil
	}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)
	ctrl.cfg.Now = func() time.Time { return now }

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	sent, err := ctrl.Send(context.Background(), "hi there", nil)
	require.NoError(t, err)
	require.Equal(t, "srv-1", sent.ID)

	// Exactly one copy: the pending sentinel was superseded by the echo.
	msgs := ctrl.Snapshot().Messages
	require.Equal(t, []string{"srv-1"}, ids(msgs))
	require.False(t, msgs[0].IsPending())
}

func TestSendDuplicateEchoFromFeedStaysSingle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	echo := messageRow("srv-1", "conv-1", "hi there", now)
	echo["sender_type"] = "agent"
	data := &fakeData{rows: map[string][]domain.Row{"messages": {}}}
	data.mutateFn = func(table string, op gateway.MutateOp, payload map[string]any) (domain.Row, error) {
		return echo, nil
	}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)
	ctrl.cfg.Now = func() time.Time { return now }

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	_, err := ctrl.Send(context.Background(), "hi there", nil)
	require.NoError(t, err)

	// The platform also echoes the insert over the change feed.
	feed.emit("messages", gateway.Event{Table: "messages", Op: gateway.EventInsert, Row: echo})

	require.Equal(t, []string{"srv-1"}, ids(ctrl.Snapshot().Messages))
}

func TestSendFailureKeepsPendingMarkedFailed(t *testing.T) {
	data := &fakeData{rows: map[string][]domain.Row{"messages": {}}}
	data.mutateFn = func(table string, op gateway.MutateOp, payload map[string]any) (domain.Row, error) {
		return nil, errors.New("insert rejected")
	}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	_, err := ctrl.Send(context.Background(), "will not land", nil)
	require.ErrorIs(t, err, aixos_errors.ErrSendFailed)

	msgs := ctrl.Snapshot().Messages
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsPending())
	require.True(t, msgs[0].Failed)
}

func TestSendWithoutEntityCreatesOneFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{"ai_messages": {}}}
	data.mutateFn = func(table string, op gateway.MutateOp, payload map[string]any) (domain.Row, error) {
		if table == "ai_conversations" {
			require.Equal(t, "agent-1", payload["agent_id"])
			require.Equal(t, "what is our churn rate", payload["title"])
			return domain.Row{"id": "sess-1"}, nil
		}
		return domain.Row{
			"id":              "srv-1",
			"conversation_id": payload["conversation_id"],
			"role":            payload["role"],
			"content":         payload["content"],
			"created_at":      now.Format(time.RFC3339),
		}, nil
	}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)
	ctrl.cfg.Now = func() time.Time { return now }

	ctrl.SelectEntity(context.Background(), domain.KindAIAssistant, "")

	sent, err := ctrl.Send(context.Background(), "what is our churn rate", nil)
	require.NoError(t, err)
	require.Equal(t, "srv-1", sent.ID)
	require.Equal(t, "sess-1", ctrl.Snapshot().EntityID)
}

func TestSendRejectedOnReadOnlyKind(t *testing.T) {
	data := &fakeData{rows: map[string][]domain.Row{"chatbot_conversation": {}}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindBotTrace, "42")
	waitForState(t, ctrl, StateSynced)

	_, err := ctrl.Send(context.Background(), "hello?", nil)
	require.ErrorIs(t, err, aixos_errors.ErrInvalidInput)
	// Read-only kinds never open a feed channel.
	require.Zero(t, feed.openCount())
}

func TestBotTraceMaterializesTurnsInOrder(t *testing.T) {
	created := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{
		"chatbot_conversation": {{
			"id":           "42",
			"session_id":   "sess-external",
			"conversation": "user:- Hi there\nbot:- Hello! How can I help?\n",
			"created_at":   created.Format(time.RFC3339),
		}},
	}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindBotTrace, "42")
	snap := waitForState(t, ctrl, StateSynced)

	require.Len(t, snap.Messages, 2)
	require.Equal(t, domain.SenderUser, snap.Messages[0].SenderType)
	require.Equal(t, "Hi there", snap.Messages[0].Content)
	require.Equal(t, domain.SenderBot, snap.Messages[1].SenderType)
	require.Equal(t, "Hello! How can I help?", snap.Messages[1].Content)
	// Synthetic ids keep the blob's order stable under the (time, id) sort.
	require.True(t, snap.Messages[0].ID < snap.Messages[1].ID)
}

func TestDeleteEventRemovesMessage(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := &fakeData{rows: map[string][]domain.Row{
		"messages": {
			messageRow("m1", "conv-1", "one", base),
			messageRow("m2", "conv-1", "two", base.Add(time.Second)),
		},
	}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)

	feed.emit("messages", gateway.Event{
		Table: "messages",
		Op:    gateway.EventDelete,
		Row:   domain.Row{"id": "m1"},
	})

	require.Equal(t, []string{"m2"}, ids(ctrl.Snapshot().Messages))
}

func TestCloseDropsSubscription(t *testing.T) {
	data := &fakeData{rows: map[string][]domain.Row{"messages": {}}}
	feed := &fakeFeed{}
	ctrl := newTestController(t, data, feed)

	ctrl.SelectEntity(context.Background(), domain.KindHumanSupport, "conv-1")
	waitForState(t, ctrl, StateSynced)
	require.Equal(t, 1, feed.openCount())

	ctrl.Close()
	require.Zero(t, feed.openCount())
}
