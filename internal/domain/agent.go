package domain

import "time"

type AgentRole string

const (
	RoleAdmin AgentRole = "admin"
	RoleAgent AgentRole = "agent"
)

// Agent is the signed-in console identity. Created at signup, mutated by
// settings actions, never deleted locally.
type Agent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Role           AgentRole `json:"role"`
	Theme          string    `json:"theme,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

func (a Agent) IsAdmin() bool { return a.Role == RoleAdmin }

func AgentFromRow(r Row) Agent {
	role := AgentRole(r.String("role"))
	if role == "" {
		role = RoleAgent
	}
	return Agent{
		ID:             r.String("id"),
		UserID:         r.String("user_id"),
		Name:           r.String("name"),
		Email:          r.String("email"),
		Role:           role,
		Theme:          r.String("theme"),
		AvatarURL:      r.String("avatar_url"),
		OrganizationID: r.String("organization_id"),
	}
}

type Contact struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
}

func ContactFromRow(r Row) Contact {
	c := Contact{
		ID:         r.String("id"),
		Name:       r.String("name"),
		Email:      r.String("email"),
		Phone:      r.String("phone"),
		AvatarURL:  r.String("avatar_url"),
		LastSeenAt: r.Time("last_seen_at"),
	}
	if raw, ok := r["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				c.Tags = append(c.Tags, s)
			}
		}
	}
	return c
}
