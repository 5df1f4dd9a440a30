package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"human-support", "ai-assistant", "internal-channel", "external-bot-trace"} {
		kind, ok := ParseKind(valid)
		require.True(t, ok, valid)
		require.Equal(t, Kind(valid), kind)
	}

	for _, invalid := range []string{"", "support", "HUMAN-SUPPORT", "bot"} {
		_, ok := ParseKind(invalid)
		require.False(t, ok, invalid)
	}
}

func TestRoutePerKind(t *testing.T) {
	support := Route(KindHumanSupport)
	require.Equal(t, "messages", support.MessagesTable)
	require.Equal(t, "conversations", support.ConversationsTable)
	require.Equal(t, "conversation_id", support.FilterColumn)
	require.False(t, support.ReadOnly)

	ai := Route(KindAIAssistant)
	require.Equal(t, "ai_messages", ai.MessagesTable)
	require.Equal(t, "last_message_at", ai.ActivityColumn)

	channel := Route(KindInternalChannel)
	require.Equal(t, "internal_messages", channel.MessagesTable)
	require.Equal(t, "channel_id", channel.FilterColumn)

	trace := Route(KindBotTrace)
	require.True(t, trace.ReadOnly)
	require.Equal(t, "chatbot_conversation", trace.MessagesTable)
}

func TestSessionTitle(t *testing.T) {
	require.Equal(t, "Intelligence Session", SessionTitle(""))
	require.Equal(t, "short question", SessionTitle("short question"))

	long := "this input is far longer than the thirty rune budget"
	require.Equal(t, []rune(long)[:30], []rune(SessionTitle(long)))

	// Rune-safe, not byte-safe: multibyte input must not be split mid-rune.
	unicode := "ценообразование на годовой тарифный план"
	title := SessionTitle(unicode)
	require.Equal(t, 30, len([]rune(title)))
}

func TestMessageFromRowSenderTypeColumn(t *testing.T) {
	msg := MessageFromRow(Row{
		"id":              "m1",
		"conversation_id": "c1",
		"sender_type":     "agent",
		"sender_id":       "a1",
		"content":         "hello",
		"created_at":      "2026-03-01T12:00:00Z",
	})

	require.Equal(t, SenderAgent, msg.SenderType)
	require.Equal(t, "c1", msg.ConversationID)
	require.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), msg.CreatedAt)
}

func TestMessageFromRowAIRoleColumn(t *testing.T) {
	ai := MessageFromRow(Row{"id": "m1", "conversation_id": "c1", "role": "ai", "content": "x"})
	require.Equal(t, SenderAI, ai.SenderType)

	user := MessageFromRow(Row{"id": "m2", "conversation_id": "c1", "role": "user", "content": "y"})
	require.Equal(t, SenderUser, user.SenderType)
}

func TestMessageFromRowChannelScope(t *testing.T) {
	msg := MessageFromRow(Row{"id": "m1", "channel_id": "ch-9", "sender_id": "a1", "content": "z"})
	require.Equal(t, "ch-9", msg.ConversationID)
}

func TestMessagePendingDetection(t *testing.T) {
	require.True(t, Message{ID: PendingIDPrefix + "abc"}.IsPending())
	require.True(t, Message{ID: "srv-1", Pending: true}.IsPending())
	require.False(t, Message{ID: "srv-1"}.IsPending())
}

func TestMessageBeforeOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	early := Message{ID: "z", CreatedAt: base}
	late := Message{ID: "a", CreatedAt: base.Add(time.Second)}

	require.True(t, early.Before(late))
	require.False(t, late.Before(early))

	// Equal timestamps fall back to id.
	tieA := Message{ID: "a", CreatedAt: base}
	tieB := Message{ID: "b", CreatedAt: base}
	require.True(t, tieA.Before(tieB))
}

func TestRowDecodersTolerateMissingAndOddShapes(t *testing.T) {
	r := Row{
		"str":     "value",
		"num_f":   float64(7),
		"num_j":   json.Number("12"),
		"flag":    true,
		"iso":     "2026-03-01T12:00:00.123Z",
		"no_frac": "2026-03-01T12:00:00",
	}

	require.Equal(t, "value", r.String("str"))
	require.Equal(t, "", r.String("missing"))
	require.Equal(t, int64(7), r.Int("num_f"))
	require.Equal(t, int64(12), r.Int("num_j"))
	require.Zero(t, r.Int("missing"))
	require.True(t, r.Bool("flag"))
	require.False(t, r.Time("iso").IsZero())
	require.False(t, r.Time("no_frac").IsZero())
	require.True(t, r.Time("missing").IsZero())
}

func TestTraceFromRowNumericID(t *testing.T) {
	trace := TraceFromRow(Row{
		"id":           json.Number("99"),
		"session_id":   "sess-1",
		"conversation": "user:- hi",
	})

	require.Equal(t, "99", trace.ID)
	require.Equal(t, "sess-1", trace.SessionID)
}

func TestAgentFromRowDefaultsRole(t *testing.T) {
	agent := AgentFromRow(Row{"id": "a1", "name": "Dana"})
	require.Equal(t, RoleAgent, agent.Role)
	require.False(t, agent.IsAdmin())

	admin := AgentFromRow(Row{"id": "a2", "role": "admin"})
	require.True(t, admin.IsAdmin())
}
