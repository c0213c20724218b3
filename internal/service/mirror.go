package service

import (
	"context"
	"sync/atomic"
	"time"

	pkglog "github.com/weiawesome/live-relay/pkg/log"
	"github.com/weiawesome/live-relay/pkg/pubsub"

	"github.com/weiawesome/live-relay/internal/domain"
)

const (
	mirrorQueueSize      = 256
	mirrorPublishTimeout = 5 * time.Second
)

// mirror republishes relay events on the observers channel. Events are queued
// without blocking; when the queue is full they are dropped.
type mirror struct {
	pub     pubsub.Publisher
	room    string
	channel string
	queue   chan *pubsub.Event
	dropped atomic.Int64
}

func newMirror(pub pubsub.Publisher, room string) *mirror {
	return &mirror{
		pub:     pub,
		room:    room,
		channel: pubsub.RelayToObserversChannel(room),
		queue:   make(chan *pubsub.Event, mirrorQueueSize),
	}
}

// emit is a no-op on a nil mirror.
func (m *mirror) emit(eventType string, payload interface{}) {
	if m == nil {
		return
	}

	event, err := pubsub.NewEvent(eventType, m.room, payload)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str(pkglog.FieldEventType, eventType).Msg("failed to build mirror event")
		return
	}

	select {
	case m.queue <- event:
	default:
		if n := m.dropped.Add(1); n == 1 || n%100 == 0 {
			l := pkglog.L()
			l.Warn().Int64("dropped", n).Msg("mirror queue full, dropping events")
		}
	}
}

func (m *mirror) chat(msg domain.ChatMessage) {
	m.emit(pubsub.EventChatMessage, &pubsub.ChatMessagePayload{
		ID:          msg.ID,
		Kind:        string(msg.Kind),
		DisplayName: msg.DisplayName,
		Text:        msg.Text,
		Timestamp:   msg.Timestamp.UnixMilli(),
	})
}

func (m *mirror) viewerCount(n int) {
	m.emit(pubsub.EventViewerCount, &pubsub.ViewerCountPayload{Count: n})
}

// run publishes queued events until ctx is done.
func (m *mirror) run(ctx context.Context) {
	l := pkglog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.queue:
			pubCtx, cancel := context.WithTimeout(ctx, mirrorPublishTimeout)
			if err := m.pub.Publish(pubCtx, m.channel, event); err != nil {
				l.Warn().Err(err).Str(pkglog.FieldEventType, event.Type).Msg("failed to publish mirror event")
			}
			cancel()
		}
	}
}
