package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	"github.com/tradmak/aixos/internal/transcript"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// stubData answers Query per table and records mutations and RPC calls.
type stubData struct {
	mu        sync.Mutex
	rows      map[string][]domain.Row
	rpcResult json.RawMessage
	rpcErr    error
	rpcCalls  []string
	mutations []stubMutation
}

type stubMutation struct {
	table   string
	op      gateway.MutateOp
	payload map[string]any
	filter  gateway.Filter
}

func (s *stubData) Query(ctx context.Context, table string, filter gateway.Filter, order *gateway.Order, limit int) ([]domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[table], nil
}

func (s *stubData) Mutate(ctx context.Context, table string, op gateway.MutateOp, payload map[string]any, filter gateway.Filter) (domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = append(s.mutations, stubMutation{table: table, op: op, payload: payload, filter: filter})
	return domain.Row{"id": "row-1"}, nil
}

func (s *stubData) Count(ctx context.Context, table string, filter gateway.Filter) (int64, error) {
	return int64(len(s.rows[table])), nil
}

func (s *stubData) RPC(ctx context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rpcCalls = append(s.rpcCalls, fn)
	return s.rpcResult, s.rpcErr
}

func TestDecodeRPCIDShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare string", `"conv-1"`, "conv-1"},
		{"one-row array", `[{"id":"conv-2"}]`, "conv-2"},
		{"object", `{"id":"conv-3"}`, "conv-3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeRPCID(json.RawMessage(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{`""`, `[]`, `{}`, `[{"other":"x"}]`, `null`} {
		_, err := decodeRPCID(json.RawMessage(bad))
		require.ErrorIs(t, err, aixos_errors.ErrNotFound, bad)
	}
}

func TestContactOpenConversationUsesRPC(t *testing.T) {
	data := &stubData{rpcResult: json.RawMessage(`[{"id":"conv-9"}]`)}
	svc := NewContactService(data)

	id, err := svc.OpenConversation(context.Background(), "contact-1")

	require.NoError(t, err)
	require.Equal(t, "conv-9", id)
	require.Equal(t, []string{"get_or_create_conversation"}, data.rpcCalls)
}

func TestContactListFiltersByNameOrEmail(t *testing.T) {
	data := &stubData{rows: map[string][]domain.Row{
		"contacts": {
			{"id": "c1", "name": "Alice Chen", "email": "alice@example.com"},
			{"id": "c2", "name": "Bob Marsh", "email": "bob@shop.io"},
		},
	}}
	svc := NewContactService(data)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	byName, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, "c1", byName[0].ID)

	byEmail, err := svc.List(context.Background(), "SHOP.IO")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	require.Equal(t, "c2", byEmail[0].ID)
}

func TestMonitorSearchMatchesAcrossFields(t *testing.T) {
	data := &stubData{rows: map[string][]domain.Row{
		"chatbot_conversation": {
			{"id": "1", "session_id": "sess-aa", "name": "Dana", "email": "dana@x.com", "conversation": "user:- pricing"},
			{"id": "2", "session_id": "sess-bb", "name": "Eli", "email": "eli@y.com", "conversation": "user:- refunds"},
		},
	}}
	svc := NewMonitorService(data, nil)

	byBlob, err := svc.Search(context.Background(), "refunds", 0)
	require.NoError(t, err)
	require.Len(t, byBlob, 1)
	require.Equal(t, "2", byBlob[0].ID)

	bySession, err := svc.Search(context.Background(), "sess-aa", 0)
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	require.Equal(t, "1", bySession[0].ID)

	everything, err := svc.Search(context.Background(), "  ", 0)
	require.NoError(t, err)
	require.Len(t, everything, 2)
}

func TestMonitorTurnsParsesBlob(t *testing.T) {
	svc := NewMonitorService(&stubData{}, nil)

	turns := svc.Turns(domain.ChatbotTrace{Conversation: "user:- hi\nbot:- hello"})

	require.Equal(t, []transcript.Turn{
		{Role: transcript.RoleUser, Content: "hi"},
		{Role: transcript.RoleAI, Content: "hello"},
	}, turns)
}

func TestInquiryMarkContacted(t *testing.T) {
	data := &stubData{}
	svc := NewInquiryService(data)

	err := svc.MarkContacted(context.Background(), "inq-1")

	require.NoError(t, err)
	require.Len(t, data.mutations, 1)
	m := data.mutations[0]
	require.Equal(t, "inquiries", m.table)
	require.Equal(t, gateway.OpUpdate, m.op)
	require.Equal(t, "contacted", m.payload["status"])
}

func TestChannelOpenDirectUsesRPC(t *testing.T) {
	data := &stubData{rpcResult: json.RawMessage(`"chan-7"`)}
	svc := NewChannelService(data, nil)

	id, err := svc.OpenDirect(context.Background(), "agent-1", "agent-2")

	require.NoError(t, err)
	require.Equal(t, "chan-7", id)
	require.Equal(t, []string{"get_or_create_private_channel"}, data.rpcCalls)
}

func TestResourceKnowledgeContextSkipsEmptyContent(t *testing.T) {
	data := &stubData{rows: map[string][]domain.Row{
		"unlocked_resources": {
			{"resource_id": "r1", "resource": map[string]any{"id": "r1", "name": "Pricing FAQ", "knowledge_content": "plans start at $29"}},
			{"resource_id": "r2", "resource": map[string]any{"id": "r2", "name": "Empty Doc", "knowledge_content": ""}},
		},
	}}
	svc := NewResourceService(data)

	knowledge, err := svc.KnowledgeContext(context.Background(), "agent-1")

	require.NoError(t, err)
	require.Len(t, knowledge, 1)
	require.Equal(t, "Pricing FAQ", knowledge[0].Name)
}
