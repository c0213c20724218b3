package pubsub

import "fmt"

// Channel naming conventions. Every channel has the shape
// {source}:room:{roomID}:to_{target} so the Kafka driver can map it onto a
// fixed topic keyed by room.
const (
	// Relay -> observers (archivers, dashboards, moderation bots)
	ChannelRelayToObservers = "relay:room:%s:to_observers"

	// Operators -> relay
	ChannelControlToRelay = "control:room:%s:to_relay"
)

// Kafka topics backing the two channel families above.
var kafkaTopics = []string{"relay-to-observers", "control-to-relay"}

// Event types published by the relay.
const (
	EventStreamStarted = "stream_started"
	EventStreamEnded   = "stream_ended"
	EventTitleUpdated  = "title_updated"
	EventChatMessage   = "chat_message"
	EventViewerCount   = "viewer_count"
)

// Event types consumed by the relay.
const (
	EventAnnounce = "announce"
)

// RelayToObserversChannel returns the channel the relay mirrors its events to.
func RelayToObserversChannel(roomID string) string {
	return fmt.Sprintf(ChannelRelayToObservers, roomID)
}

// ControlToRelayChannel returns the channel operators publish control events on.
func ControlToRelayChannel(roomID string) string {
	return fmt.Sprintf(ChannelControlToRelay, roomID)
}

// StreamStartedPayload is mirrored when a publisher goes live.
type StreamStartedPayload struct {
	PublisherPeerID string `json:"publisher_peer_id"`
	Title           string `json:"title"`
	StartedAt       int64  `json:"started_at"`
}

// StreamEndedPayload is mirrored when the session goes offline.
type StreamEndedPayload struct {
	Reason string `json:"reason"` // "explicit", "publisher_timeout"
}

// TitleUpdatedPayload is mirrored on a title change.
type TitleUpdatedPayload struct {
	Title string `json:"title"`
}

// ChatMessagePayload is mirrored for every chat or system message.
type ChatMessagePayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name,omitempty"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
}

// ViewerCountPayload is mirrored whenever the audience size changes.
type ViewerCountPayload struct {
	Count int `json:"count"`
}

// AnnouncePayload asks the relay to post a system message.
type AnnouncePayload struct {
	Text string `json:"text"`
}
