package domain

// Kind distinguishes the four message streams the console displays. Each
// kind is backed by its own pair of platform tables.
type Kind string

const (
	KindHumanSupport    Kind = "human-support"
	KindAIAssistant     Kind = "ai-assistant"
	KindInternalChannel Kind = "internal-channel"
	KindBotTrace        Kind = "external-bot-trace"
)

// ParseKind validates a wire value against the known kinds.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindHumanSupport, KindAIAssistant, KindInternalChannel, KindBotTrace:
		return Kind(s), true
	}
	return "", false
}

// TableRoute names the tables and the scoping column behind a kind.
type TableRoute struct {
	MessagesTable      string
	ConversationsTable string
	FilterColumn       string
	ActivityColumn     string
	// ReadOnly kinds have no message table of their own: the whole
	// exchange lives in one blob column and sends are rejected.
	ReadOnly bool
}

// Route maps a kind to its platform tables. This is the single point of
// variability between the console's message screens.
func Route(kind Kind) TableRoute {
	switch kind {
	case KindAIAssistant:
		return TableRoute{
			MessagesTable:      "ai_messages",
			ConversationsTable: "ai_conversations",
			FilterColumn:       "conversation_id",
			ActivityColumn:     "last_message_at",
		}
	case KindInternalChannel:
		return TableRoute{
			MessagesTable:      "internal_messages",
			ConversationsTable: "internal_channels",
			FilterColumn:       "channel_id",
			ActivityColumn:     "last_activity_at",
		}
	case KindBotTrace:
		return TableRoute{
			MessagesTable:      "chatbot_conversation",
			ConversationsTable: "chatbot_conversation",
			FilterColumn:       "id",
			ActivityColumn:     "created_at",
			ReadOnly:           true,
		}
	default:
		return TableRoute{
			MessagesTable:      "messages",
			ConversationsTable: "conversations",
			FilterColumn:       "conversation_id",
			ActivityColumn:     "last_activity_at",
		}
	}
}
