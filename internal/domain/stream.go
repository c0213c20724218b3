package domain

import "time"

// MessageKind distinguishes chat entries.
type MessageKind string

const (
	KindSystem MessageKind = "system"
	KindUser   MessageKind = "user"
	KindAdmin  MessageKind = "admin"
)

// ChatMessage is an immutable chat log entry. Text is already HTML-escaped.
type ChatMessage struct {
	ID          string      `json:"id"`
	Kind        MessageKind `json:"kind"`
	DisplayName string      `json:"display_name,omitempty"`
	Text        string      `json:"text"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Snapshot is a copy of the broadcast session state.
// PublisherPeerID and StartedAt are nil whenever IsLive is false.
type Snapshot struct {
	IsLive          bool       `json:"is_live"`
	PublisherPeerID *string    `json:"publisher_peer_id"`
	Title           string     `json:"title"`
	StartedAt       *time.Time `json:"started_at"`
}

// Viewer is a presence record for a joined connection.
type Viewer struct {
	ConnID      string    `json:"-"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Role is the author role claimed for a chat post.
type Role int

const (
	RoleViewer Role = iota
	RoleAdmin
)

// StreamStatus is the read-only view served over HTTP.
type StreamStatus struct {
	Snapshot
	ViewerCount int `json:"viewer_count"`
}
