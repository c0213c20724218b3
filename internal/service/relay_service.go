package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkglog "github.com/weiawesome/live-relay/pkg/log"
	"github.com/weiawesome/live-relay/pkg/pubsub"

	"github.com/weiawesome/live-relay/internal/audit"
	"github.com/weiawesome/live-relay/internal/auth"
	"github.com/weiawesome/live-relay/internal/chatlog"
	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/hub"
	"github.com/weiawesome/live-relay/internal/presence"
	"github.com/weiawesome/live-relay/internal/registry"
)

var ErrForbidden = errors.New("admin capability required")

// System chat texts.
const (
	msgStreamStarted = "🔴 The stream has started!"
	msgStreamEnded   = "⬛ The stream has ended"
)

// Reasons attached to mirrored stream_ended events.
const (
	reasonExplicit         = "explicit"
	reasonPublisherTimeout = "publisher_timeout"
)

// Options tunes the relay service.
type Options struct {
	// Room names the pub/sub channels.
	Room string
	// PublisherGracePeriod is how long a live session survives its publisher
	// connection dropping. Zero keeps the session live indefinitely.
	PublisherGracePeriod time.Duration
	// MaxNameLength caps display names, in runes.
	MaxNameLength int
}

type relayService struct {
	hub       *hub.Hub
	registry  *registry.Registry
	directory *presence.Directory
	chat      *chatlog.Log
	auth      auth.Authenticator
	pubsub    pubsub.PubSub
	mirror    *mirror
	opts      Options

	// mu linearizes every core mutation together with the fan-out it causes.
	mu         sync.Mutex
	graceTimer *time.Timer
	graceGen   uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelayService creates a new RelayService instance. ps may be nil, which
// disables the event mirror and the control subscription.
func NewRelayService(
	h *hub.Hub,
	reg *registry.Registry,
	dir *presence.Directory,
	chat *chatlog.Log,
	authenticator auth.Authenticator,
	ps pubsub.PubSub,
	opts Options,
) RelayService {
	if opts.Room == "" {
		opts.Room = "live"
	}
	s := &relayService{
		hub:       h,
		registry:  reg,
		directory: dir,
		chat:      chat,
		auth:      authenticator,
		pubsub:    ps,
		opts:      opts,
	}
	if ps != nil {
		s.mirror = newMirror(ps, opts.Room)
	}
	return s
}

func (s *relayService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	claims, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionWSAuthFailed, "", c.ID, "websocket auth failed")
		s.unicast(ctx, c, &domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "Invalid or expired token",
		})
		return fmt.Errorf("authenticate: %w", err)
	}

	c.Session.GrantAdmin(claims.UserID, claims.Username)
	audit.LogWithDetail(ctx, audit.ActionWSAuth, claims.UserID, c.ID, "admin capability granted")

	s.unicast(ctx, c, &domain.AuthResultMessage{
		Type:     domain.MsgTypeAuthResult,
		Success:  true,
		Username: claims.Username,
	})
	return nil
}

func (s *relayService) HandleJoin(ctx context.Context, c *hub.Client, displayName string) error {
	name := chatlog.SanitizeName(displayName, s.opts.MaxNameLength)

	s.mu.Lock()
	defer s.mu.Unlock()

	viewer, count := s.directory.Join(c.ID, name)

	// The joiner gets state and history before anything broadcast after it.
	s.unicast(ctx, c, domain.NewStreamStatusMessage(s.registry.Snapshot()))
	s.unicast(ctx, c, &domain.ChatHistoryMessage{
		Type:     domain.MsgTypeChatHistory,
		Messages: s.chat.History(),
	})

	s.broadcastViewerCount(ctx, count)
	s.broadcastSystem(ctx, viewer.DisplayName+" joined the stream")

	l := pkglog.Ctx(ctx)
	l.Info().Str("display_name", viewer.DisplayName).Int(pkglog.FieldViewerCount, count).Msg("viewer joined")
	return nil
}

func (s *relayService) HandleChat(ctx context.Context, c *hub.Client, msg *domain.ChatPostMessage) error {
	role := domain.RoleViewer
	if msg.IsAdminRole {
		if c.Session.IsAdmin() {
			role = domain.RoleAdmin
		} else {
			l := pkglog.Ctx(ctx)
			l.Debug().Msg("admin role claimed without capability, posting as viewer")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	author := chatlog.Author{
		Role:       role,
		ClientName: chatlog.SanitizeName(msg.DisplayName, s.opts.MaxNameLength),
	}
	if v, ok := s.directory.Get(c.ID); ok {
		author.DirectoryName = v.DisplayName
	}

	posted, ok := s.chat.Post(msg.Text, author)
	if !ok {
		return nil
	}

	s.broadcast(ctx, domain.NewChatEventMessage(posted))
	s.mirror.chat(posted)
	return nil
}

func (s *relayService) HandleStartStream(ctx context.Context, c *hub.Client, publisherPeerID, title string) error {
	if !s.requireAdmin(ctx, c, domain.MsgTypeStartStream) {
		return ErrForbidden
	}
	title = chatlog.Sanitize(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelGraceLocked()
	snap := s.registry.StartStream(publisherPeerID, title, c.ID)

	s.broadcast(ctx, &domain.StreamStartedMessage{
		Type:            domain.MsgTypeStreamStarted,
		PublisherPeerID: publisherPeerID,
		Title:           snap.Title,
	})
	s.mirror.emit(pubsub.EventStreamStarted, &pubsub.StreamStartedPayload{
		PublisherPeerID: publisherPeerID,
		Title:           snap.Title,
		StartedAt:       snap.StartedAt.UnixMilli(),
	})
	s.broadcastSystem(ctx, msgStreamStarted)

	audit.LogWithDetail(ctx, audit.ActionStreamStart, c.Session.GetUserID(), publisherPeerID, "stream started")
	return nil
}

func (s *relayService) HandleStopStream(ctx context.Context, c *hub.Client) error {
	if !s.requireAdmin(ctx, c, domain.MsgTypeStopStream) {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelGraceLocked()
	s.stopLocked(ctx, reasonExplicit)

	audit.Log(ctx, audit.ActionStreamStop, c.Session.GetUserID(), "stream stopped")
	return nil
}

func (s *relayService) HandleUpdateTitle(ctx context.Context, c *hub.Client, title string) error {
	if !s.requireAdmin(ctx, c, domain.MsgTypeUpdateTitle) {
		return ErrForbidden
	}
	title = chatlog.Sanitize(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.UpdateTitle(title) {
		return nil
	}

	s.broadcast(ctx, &domain.TitleUpdatedMessage{
		Type:  domain.MsgTypeTitleUpdated,
		Title: title,
	})
	s.mirror.emit(pubsub.EventTitleUpdated, &pubsub.TitleUpdatedPayload{Title: title})

	audit.LogWithDetail(ctx, audit.ActionTitleUpdate, c.Session.GetUserID(), title, "stream title updated")
	return nil
}

func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if viewer, count, removed := s.directory.Leave(c.ID); removed {
		s.broadcastViewerCount(ctx, count)
		s.broadcastSystem(ctx, viewer.DisplayName+" left the stream")

		l := pkglog.Ctx(ctx)
		l.Info().Str("display_name", viewer.DisplayName).Int(pkglog.FieldViewerCount, count).Msg("viewer left")
	}

	if s.registry.PublisherConn() == c.ID && s.registry.Snapshot().IsLive {
		s.startGraceLocked(ctx, c.ID)
	}
	return nil
}

func (s *relayService) Announce(ctx context.Context, text string) {
	text = chatlog.Sanitize(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastSystem(ctx, text)
}

func (s *relayService) Status() domain.StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.StreamStatus{
		Snapshot:    s.registry.Snapshot(),
		ViewerCount: s.directory.Count(),
	}
}

func (s *relayService) Start(ctx context.Context) error {
	if s.pubsub == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	channel := pubsub.ControlToRelayChannel(s.opts.Room)
	eventCh, err := s.pubsub.Subscribe(ctx, channel)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.mirror.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.handleControlEvents(ctx, eventCh)
	}()

	l := pkglog.Ctx(ctx)
	l.Info().Str("channel", channel).Msg("relay service started, subscribed to control events")
	return nil
}

func (s *relayService) Stop() error {
	s.mu.Lock()
	s.cancelGraceLocked()
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *relayService) handleControlEvents(ctx context.Context, eventCh <-chan *pubsub.Event) {
	l := pkglog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			switch event.Type {
			case pubsub.EventAnnounce:
				var payload pubsub.AnnouncePayload
				if err := event.UnmarshalPayload(&payload); err != nil {
					l.Warn().Err(err).Msg("failed to unmarshal announce event")
					continue
				}
				s.Announce(ctx, payload.Text)
			default:
				l.Debug().Str(pkglog.FieldEventType, event.Type).Msg("ignoring control event")
			}
		}
	}
}

// requireAdmin answers a forbidden error to non-admin connections.
func (s *relayService) requireAdmin(ctx context.Context, c *hub.Client, action string) bool {
	if c.Session.IsAdmin() {
		return true
	}
	audit.LogWithDetail(ctx, audit.ActionForbidden, "", action, "admin action from non-admin connection")
	s.unicast(ctx, c, domain.NewErrorMessage(domain.ErrCodeForbidden, "Admin authentication required"))
	return false
}

// stopLocked must be called with s.mu held.
func (s *relayService) stopLocked(ctx context.Context, reason string) {
	s.registry.StopStream()

	s.broadcast(ctx, &domain.StreamEndedMessage{Type: domain.MsgTypeStreamEnded})
	s.mirror.emit(pubsub.EventStreamEnded, &pubsub.StreamEndedPayload{Reason: reason})
	s.broadcastSystem(ctx, msgStreamEnded)
}

// startGraceLocked must be called with s.mu held.
func (s *relayService) startGraceLocked(ctx context.Context, connID string) {
	if s.opts.PublisherGracePeriod <= 0 {
		return
	}
	s.cancelGraceLocked()

	gen := s.graceGen
	s.graceTimer = time.AfterFunc(s.opts.PublisherGracePeriod, func() {
		s.expirePublisher(ctx, gen, connID)
	})

	l := pkglog.Ctx(ctx)
	l.Info().Dur("grace_period", s.opts.PublisherGracePeriod).Msg("publisher disconnected, grace period started")
}

// cancelGraceLocked must be called with s.mu held.
func (s *relayService) cancelGraceLocked() {
	s.graceGen++
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

func (s *relayService) expirePublisher(ctx context.Context, gen uint64, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A start, stop or newer disconnect superseded this timer.
	if gen != s.graceGen {
		return
	}
	s.graceTimer = nil
	if !s.registry.Snapshot().IsLive || s.registry.PublisherConn() != connID {
		return
	}

	s.stopLocked(ctx, reasonPublisherTimeout)
	audit.LogWithDetail(ctx, audit.ActionPublisherTimeout, "", connID, "publisher did not return, stream stopped")
}

func (s *relayService) broadcastSystem(ctx context.Context, text string) {
	msg := s.chat.System(text)
	s.broadcast(ctx, domain.NewChatEventMessage(msg))
	s.mirror.chat(msg)
}

func (s *relayService) broadcastViewerCount(ctx context.Context, count int) {
	s.broadcast(ctx, &domain.ViewerCountMessage{
		Type:  domain.MsgTypeViewerCount,
		Count: count,
	})
	s.mirror.viewerCount(count)
}

func (s *relayService) broadcast(ctx context.Context, message interface{}) {
	if err := s.hub.Broadcast(message); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast message")
	}
}

func (s *relayService) unicast(ctx context.Context, c *hub.Client, message interface{}) {
	if err := c.SendMessage(message); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to send message")
	}
}
