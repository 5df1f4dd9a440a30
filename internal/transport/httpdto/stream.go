package httpdto

import "github.com/tradmak/aixos/internal/domain"

// Stream websocket protocol. The browser drives one sync-core controller
// per connection with commands; the server pushes full snapshots on change.

const (
	StreamActionSelect = "select"
	StreamActionSend   = "send"
	StreamActionPing   = "ping"
)

type StreamCommand struct {
	Action         string   `json:"action"`
	Kind           string   `json:"kind,omitempty"`
	EntityID       string   `json:"entity_id,omitempty"`
	Content        string   `json:"content,omitempty"`
	AttachmentRefs []string `json:"attachment_refs,omitempty"`
}

type StreamSnapshot struct {
	Kind        string           `json:"kind"`
	EntityID    string           `json:"entity_id"`
	State       string           `json:"state"`
	FetchFailed bool             `json:"fetch_failed,omitempty"`
	SubFailed   bool             `json:"sub_failed,omitempty"`
	Messages    []domain.Message `json:"messages"`
}

// StreamError reports a failed command without tearing the connection down.
type StreamError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
