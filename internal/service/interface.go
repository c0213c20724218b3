package service

import (
	"context"

	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/hub"
)

// RelayService routes realtime events between connections and the session,
// presence and chat stores.
type RelayService interface {
	// HandleAuth attaches the admin capability when token is valid.
	HandleAuth(ctx context.Context, client *hub.Client, token string) error

	// HandleJoin adds the connection to the audience.
	HandleJoin(ctx context.Context, client *hub.Client, displayName string) error

	// HandleChat posts a chat message.
	HandleChat(ctx context.Context, client *hub.Client, msg *domain.ChatPostMessage) error

	// HandleStartStream marks the session live. Admin only.
	HandleStartStream(ctx context.Context, client *hub.Client, publisherPeerID, title string) error

	// HandleStopStream ends the session. Admin only.
	HandleStopStream(ctx context.Context, client *hub.Client) error

	// HandleUpdateTitle changes the stream title. Admin only.
	HandleUpdateTitle(ctx context.Context, client *hub.Client, title string) error

	// HandleDisconnect handles a client disconnecting.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// Announce posts and broadcasts a system message.
	Announce(ctx context.Context, text string)

	// Status returns the session snapshot and the viewer count.
	Status() domain.StreamStatus

	// Start starts background goroutines (event mirror, control subscription).
	Start(ctx context.Context) error

	// Stop stops background goroutines and pending timers.
	Stop() error
}
