package domain

import "time"

// InternalChannel is a team room. Private channels back the 1:1 agent
// chats; OtherMemberName is filled in for those so the sidebar can show a
// person instead of a room name.
type InternalChannel struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	IsPrivate       bool      `json:"is_private"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	OtherMemberName string    `json:"other_member_name,omitempty"`
}

func ChannelFromRow(r Row) InternalChannel {
	return InternalChannel{
		ID:          r.String("id"),
		Name:        r.String("name"),
		Description: r.String("description"),
		IsPrivate:   r.Bool("is_private"),
		CreatedBy:   r.String("created_by"),
		CreatedAt:   r.Time("created_at"),
	}
}

// AsConversation lets channel listings share the conversation list model.
func (ch InternalChannel) AsConversation() Conversation {
	title := ch.Name
	if ch.IsPrivate && ch.OtherMemberName != "" {
		title = ch.OtherMemberName
	}
	return Conversation{
		ID:             ch.ID,
		Kind:           KindInternalChannel,
		Title:          title,
		Subject:        ch.Description,
		LastActivityAt: ch.CreatedAt,
	}
}
