package domain

import (
	"strconv"
	"time"
)

// ChatbotTrace is one logged exchange of the external website chatbot.
// The whole conversation is a single blob of "user:- ..." / "bot:- ..."
// lines; the transcript package turns it into discrete turns.
type ChatbotTrace struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Number       string    `json:"number,omitempty"`
	Conversation string    `json:"conversation"`
	CreatedAt    time.Time `json:"created_at"`
}

func TraceFromRow(r Row) ChatbotTrace {
	id := r.String("id")
	if id == "" {
		// chatbot_conversation uses a numeric primary key
		if n := r.Int("id"); n != 0 {
			id = strconv.FormatInt(n, 10)
		}
	}
	return ChatbotTrace{
		ID:           id,
		SessionID:    r.String("session_id"),
		Name:         r.String("name"),
		Email:        r.String("email"),
		Number:       r.String("number"),
		Conversation: r.String("conversation"),
		CreatedAt:    r.Time("created_at"),
	}
}
