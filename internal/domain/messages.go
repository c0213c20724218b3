package domain

// WebSocket message types from client.
const (
	MsgTypeAuth        = "auth"
	MsgTypeJoin        = "join"
	MsgTypeChatMessage = "chat_message"
	MsgTypeStartStream = "start_stream"
	MsgTypeStopStream  = "stop_stream"
	MsgTypeUpdateTitle = "update_title"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult    = "auth_result"
	MsgTypeStreamStatus  = "stream_status"
	MsgTypeChatHistory   = "chat_history"
	MsgTypeStreamStarted = "stream_started"
	MsgTypeStreamEnded   = "stream_ended"
	MsgTypeTitleUpdated  = "title_updated"
	MsgTypeViewerCount   = "viewer_count"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
	// MsgTypeChatMessage is also used outbound.
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// AuthMessage presents an admin token on an open connection.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// JoinMessage makes the connection part of the audience.
type JoinMessage struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

// ChatPostMessage carries a chat post. IsAdminRole is only honoured for
// admin sessions.
type ChatPostMessage struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	DisplayName string `json:"display_name"`
	IsAdminRole bool   `json:"is_admin_role"`
}

// StartStreamMessage announces that the publisher is live.
type StartStreamMessage struct {
	Type            string `json:"type"`
	PublisherPeerID string `json:"publisher_peer_id"`
	Title           string `json:"title"`
}

// StopStreamMessage ends the broadcast.
type StopStreamMessage struct {
	Type string `json:"type"`
}

// UpdateTitleMessage changes the stream title. A nil Title means the field was absent.
type UpdateTitleMessage struct {
	Type  string  `json:"type"`
	Title *string `json:"title"`
}

// Server -> Client messages

// AuthResultMessage is sent to client after authentication.
type AuthResultMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StreamStatusMessage is unicast to a joiner.
type StreamStatusMessage struct {
	Type string `json:"type"`
	Snapshot
}

// ChatHistoryMessage replays the chat log, oldest first.
type ChatHistoryMessage struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// StreamStartedMessage is broadcast when the publisher goes live.
type StreamStartedMessage struct {
	Type            string `json:"type"`
	PublisherPeerID string `json:"publisher_peer_id"`
	Title           string `json:"title"`
}

// StreamEndedMessage is broadcast when the session goes offline.
type StreamEndedMessage struct {
	Type string `json:"type"`
}

// TitleUpdatedMessage is broadcast after a title change.
type TitleUpdatedMessage struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// ChatEventMessage wraps a chat log entry for broadcast.
type ChatEventMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

// ViewerCountMessage is sent when viewer count changes.
type ViewerCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// PongMessage answers a ping.
type PongMessage struct {
	Type string `json:"type"`
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// NewStreamStatusMessage wraps a snapshot for a joiner.
func NewStreamStatusMessage(s Snapshot) *StreamStatusMessage {
	return &StreamStatusMessage{Type: MsgTypeStreamStatus, Snapshot: s}
}

// NewChatEventMessage wraps a chat entry for broadcast.
func NewChatEventMessage(m ChatMessage) *ChatEventMessage {
	return &ChatEventMessage{Type: MsgTypeChatMessage, Message: m}
}
