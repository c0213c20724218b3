package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/weiawesome/live-relay/internal/chatlog"
	"github.com/weiawesome/live-relay/internal/config"
	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/hub"
	"github.com/weiawesome/live-relay/internal/idgen"
	"github.com/weiawesome/live-relay/internal/presence"
	"github.com/weiawesome/live-relay/internal/registry"
	"github.com/weiawesome/live-relay/pkg/jwt"
	"github.com/weiawesome/live-relay/pkg/pubsub"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const adminToken = "admin-token"

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (*jwt.Claims, error) {
	if token != adminToken {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{UserID: "admin-1", Username: "boss", Role: domain.RoleAdminClaim}, nil
}

type stubPubSub struct {
	mu        sync.Mutex
	published map[string][]*pubsub.Event
	control   chan *pubsub.Event
}

func newStubPubSub() *stubPubSub {
	return &stubPubSub{
		published: make(map[string][]*pubsub.Event),
		control:   make(chan *pubsub.Event, 8),
	}
}

func (p *stubPubSub) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[channel] = append(p.published[channel], event)
	return nil
}

func (p *stubPubSub) Subscribe(_ context.Context, channel string) (<-chan *pubsub.Event, error) {
	if channel != pubsub.ControlToRelayChannel("live") {
		return nil, errors.New("unexpected channel")
	}
	return p.control, nil
}

func (p *stubPubSub) Unsubscribe(context.Context, string) error { return nil }
func (p *stubPubSub) Close() error                              { return nil }

func (p *stubPubSub) types(channel string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.published[channel] {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	hub  *hub.Hub
	reg  *registry.Registry
	dir  *presence.Directory
	chat *chatlog.Log
	svc  RelayService
}

func newFixture(t *testing.T, opts Options, ps pubsub.PubSub) *fixture {
	t.Helper()
	f := &fixture{
		hub:  hub.NewHub(config.WebSocketConfig{SendBuffer: 512}),
		reg:  registry.New(""),
		dir:  presence.New(),
		chat: chatlog.New(chatlog.Config{}, idgen.NewULIDGenerator()),
	}
	if opts.MaxNameLength == 0 {
		opts.MaxNameLength = 32
	}
	f.svc = NewRelayService(f.hub, f.reg, f.dir, f.chat, stubAuth{}, ps, opts)
	t.Cleanup(func() { require.NoError(t, f.svc.Stop()) })
	return f
}

func (f *fixture) connect(id string) *hub.Client {
	c := hub.NewClient(f.hub, nil, id)
	f.hub.Register(c)
	return c
}

func (f *fixture) admin(t *testing.T, id string) *hub.Client {
	t.Helper()
	c := f.connect(id)
	require.NoError(t, f.svc.HandleAuth(context.Background(), c, adminToken))
	require.Equal(t, domain.MsgTypeAuthResult, next(t, c).Type)
	return c
}

type frame struct {
	Type string
	raw  []byte
}

func (fr frame) decode(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(fr.raw, v))
}

func next(t *testing.T, c *hub.Client) frame {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		var base domain.BaseMessage
		require.NoError(t, json.Unmarshal(data, &base))
		return frame{Type: base.Type, raw: data}
	case <-time.After(time.Second):
		t.Fatalf("client %s: no message", c.ID)
		return frame{}
	}
}

func drain(c *hub.Client) []frame {
	var out []frame
	for {
		select {
		case data := <-c.Send:
			var base domain.BaseMessage
			_ = json.Unmarshal(data, &base)
			out = append(out, frame{Type: base.Type, raw: data})
		default:
			return out
		}
	}
}

func types(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Type
	}
	return out
}

func systemTexts(l *chatlog.Log) []string {
	var out []string
	for _, m := range l.History() {
		if m.Kind == domain.KindSystem {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestJoinSequence(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	other := f.connect("other-conn")
	joiner := f.connect("abcdef-123")

	require.NoError(t, f.svc.HandleJoin(ctx, joiner, ""))

	got := drain(joiner)
	require.Equal(t, []string{
		domain.MsgTypeStreamStatus,
		domain.MsgTypeChatHistory,
		domain.MsgTypeViewerCount,
		domain.MsgTypeChatMessage,
	}, types(got))

	var status domain.StreamStatusMessage
	got[0].decode(t, &status)
	assert.False(t, status.IsLive)
	assert.Nil(t, status.PublisherPeerID)
	assert.Equal(t, "Live Stream", status.Title)

	var count domain.ViewerCountMessage
	got[2].decode(t, &count)
	assert.Equal(t, 1, count.Count)

	var chat domain.ChatEventMessage
	got[3].decode(t, &chat)
	assert.Equal(t, domain.KindSystem, chat.Message.Kind)
	assert.Equal(t, "Viewer_abcde joined the stream", chat.Message.Text)

	// connected but not joined: gets broadcasts only
	assert.Equal(t, []string{domain.MsgTypeViewerCount, domain.MsgTypeChatMessage}, types(drain(other)))
}

func TestJoinSanitizesName(t *testing.T) {
	f := newFixture(t, Options{MaxNameLength: 8}, nil)
	c := f.connect("c1")

	require.NoError(t, f.svc.HandleJoin(context.Background(), c, "  <b>Ana</b>  "))

	v, ok := f.dir.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "&lt;b&gt;Ana&lt;/", v.DisplayName)
}

func TestViewerCountScenario(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	v1, v2 := f.connect("v1-conn"), f.connect("v2-conn")
	watcher := f.connect("watcher")

	lastCount := func() int {
		n := -1
		for _, fr := range drain(watcher) {
			if fr.Type == domain.MsgTypeViewerCount {
				var m domain.ViewerCountMessage
				fr.decode(t, &m)
				n = m.Count
			}
		}
		return n
	}

	require.NoError(t, f.svc.HandleJoin(ctx, v1, "V1"))
	require.NoError(t, f.svc.HandleJoin(ctx, v2, "V2"))
	assert.Equal(t, 2, lastCount())
	assert.Equal(t, 2, f.svc.Status().ViewerCount)

	require.NoError(t, f.svc.HandleDisconnect(ctx, v1))
	assert.Equal(t, 1, lastCount())

	require.NoError(t, f.svc.HandleDisconnect(ctx, v1))
	assert.Equal(t, -1, lastCount(), "second leave must not broadcast")
	assert.Equal(t, 1, f.dir.Count())

	leaves := 0
	for _, text := range systemTexts(f.chat) {
		if text == "V1 left the stream" {
			leaves++
		}
	}
	assert.Equal(t, 1, leaves)
}

func TestDisconnectWithoutJoinIsSilent(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	c, watcher := f.connect("c"), f.connect("w")

	require.NoError(t, f.svc.HandleDisconnect(context.Background(), c))
	assert.Empty(t, drain(watcher))
	assert.Zero(t, f.chat.Len())
}

func TestAdminActionsRequireCapability(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	viewer, watcher := f.connect("viewer"), f.connect("watcher")

	assert.ErrorIs(t, f.svc.HandleStartStream(ctx, viewer, "peer", "t"), ErrForbidden)
	assert.ErrorIs(t, f.svc.HandleStopStream(ctx, viewer), ErrForbidden)
	assert.ErrorIs(t, f.svc.HandleUpdateTitle(ctx, viewer, "t"), ErrForbidden)

	for _, fr := range drain(viewer) {
		require.Equal(t, domain.MsgTypeError, fr.Type)
		var e domain.ErrorMessage
		fr.decode(t, &e)
		assert.Equal(t, domain.ErrCodeForbidden, e.Code)
	}
	assert.Empty(t, drain(watcher))
	assert.False(t, f.reg.Snapshot().IsLive)
	assert.Equal(t, "Live Stream", f.reg.Snapshot().Title)
}

func TestAuth(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	c := f.connect("c")

	err := f.svc.HandleAuth(ctx, c, "bogus")
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
	var res domain.AuthResultMessage
	next(t, c).decode(t, &res)
	assert.False(t, res.Success)
	assert.False(t, c.Session.IsAdmin())

	require.NoError(t, f.svc.HandleAuth(ctx, c, adminToken))
	next(t, c).decode(t, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "boss", res.Username)
	assert.True(t, c.Session.IsAdmin())
}

func TestStartStopStream(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")

	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-1", ""))

	got := drain(viewer)
	require.Equal(t, []string{domain.MsgTypeStreamStarted, domain.MsgTypeChatMessage}, types(got))
	var started domain.StreamStartedMessage
	got[0].decode(t, &started)
	assert.Equal(t, "peer-1", started.PublisherPeerID)
	assert.Equal(t, "Live Stream", started.Title)
	var chat domain.ChatEventMessage
	got[1].decode(t, &chat)
	assert.Equal(t, "🔴 The stream has started!", chat.Message.Text)

	snap := f.svc.Status().Snapshot
	require.True(t, snap.IsLive)
	assert.Equal(t, "peer-1", *snap.PublisherPeerID)
	assert.NotNil(t, snap.StartedAt)

	// second start wins
	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-2", "Round 2"))
	snap = f.svc.Status().Snapshot
	assert.Equal(t, "peer-2", *snap.PublisherPeerID)
	assert.Equal(t, "Round 2", snap.Title)
	drain(viewer)

	require.NoError(t, f.svc.HandleStopStream(ctx, admin))
	got = drain(viewer)
	require.Equal(t, []string{domain.MsgTypeStreamEnded, domain.MsgTypeChatMessage}, types(got))
	got[1].decode(t, &chat)
	assert.Equal(t, "⬛ The stream has ended", chat.Message.Text)

	snap = f.svc.Status().Snapshot
	assert.False(t, snap.IsLive)
	assert.Nil(t, snap.PublisherPeerID)
	assert.Nil(t, snap.StartedAt)
	assert.Equal(t, "Live Stream", snap.Title)
}

func TestUpdateTitle(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")

	require.NoError(t, f.svc.HandleUpdateTitle(ctx, admin, "   "))
	assert.Empty(t, drain(viewer))

	require.NoError(t, f.svc.HandleUpdateTitle(ctx, admin, "New <title>"))
	got := drain(viewer)
	require.Equal(t, []string{domain.MsgTypeTitleUpdated}, types(got))
	var m domain.TitleUpdatedMessage
	got[0].decode(t, &m)
	assert.Equal(t, "New &lt;title&gt;", m.Title)
	assert.Equal(t, "New &lt;title&gt;", f.reg.Snapshot().Title)
}

func TestChat(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")
	require.NoError(t, f.svc.HandleJoin(ctx, viewer, "Ana"))
	drain(viewer)
	drain(admin)

	// rejected silently
	require.NoError(t, f.svc.HandleChat(ctx, viewer, &domain.ChatPostMessage{Text: "   "}))
	assert.Empty(t, drain(viewer))

	// admin role claimed without capability
	require.NoError(t, f.svc.HandleChat(ctx, viewer, &domain.ChatPostMessage{Text: "hi", IsAdminRole: true}))
	var chat domain.ChatEventMessage
	next(t, admin).decode(t, &chat)
	assert.Equal(t, domain.KindUser, chat.Message.Kind)
	assert.Equal(t, "Ana", chat.Message.DisplayName)

	require.NoError(t, f.svc.HandleChat(ctx, admin, &domain.ChatPostMessage{Text: "<b>hey</b>", IsAdminRole: true}))
	next(t, viewer) // own copy of the first post
	next(t, viewer).decode(t, &chat)
	assert.Equal(t, domain.KindAdmin, chat.Message.Kind)
	assert.Equal(t, "🔴 ADMIN", chat.Message.DisplayName)
	assert.Equal(t, "&lt;b&gt;hey&lt;/b&gt;", chat.Message.Text)

	// unjoined connection with a client-supplied name
	anon := f.connect("anon")
	require.NoError(t, f.svc.HandleChat(ctx, anon, &domain.ChatPostMessage{Text: "yo", DisplayName: "Zed"}))
	next(t, anon).decode(t, &chat)
	assert.Equal(t, "Zed", chat.Message.DisplayName)
}

func TestJoinerGetsHistoryBeforeLaterMessages(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	poster := f.connect("poster")
	joiner := f.connect("joiner")

	const posts = 40
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < posts; i++ {
			_ = f.svc.HandleChat(ctx, poster, &domain.ChatPostMessage{Text: fmt.Sprintf("m%d", i)})
		}
	}()
	time.Sleep(time.Millisecond)
	require.NoError(t, f.svc.HandleJoin(ctx, joiner, "J"))
	wg.Wait()

	frames := drain(joiner)
	historyAt := -1
	inHistory := map[string]bool{}
	for i, fr := range frames {
		if fr.Type == domain.MsgTypeChatHistory {
			historyAt = i
			var h domain.ChatHistoryMessage
			fr.decode(t, &h)
			for _, m := range h.Messages {
				inHistory[m.ID] = true
			}
		}
	}
	require.GreaterOrEqual(t, historyAt, 0)

	seenAfter := map[string]bool{}
	for _, fr := range frames[historyAt+1:] {
		if fr.Type != domain.MsgTypeChatMessage {
			continue
		}
		var chat domain.ChatEventMessage
		fr.decode(t, &chat)
		assert.False(t, inHistory[chat.Message.ID], "message %s delivered twice", chat.Message.Text)
		seenAfter[chat.Message.ID] = true
	}

	for _, m := range f.chat.History() {
		assert.True(t, inHistory[m.ID] || seenAfter[m.ID], "message %s never reached the joiner", m.Text)
	}
}

func TestPublisherGracePeriodExpires(t *testing.T) {
	f := newFixture(t, Options{PublisherGracePeriod: 20 * time.Millisecond}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")

	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-1", "t"))
	drain(viewer)

	require.NoError(t, f.svc.HandleDisconnect(ctx, admin))
	f.hub.Unregister(admin)
	assert.True(t, f.reg.Snapshot().IsLive)

	require.Eventually(t, func() bool { return !f.reg.Snapshot().IsLive }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{domain.MsgTypeStreamEnded, domain.MsgTypeChatMessage}, types(drain(viewer)))
}

func TestPublisherReturnCancelsGrace(t *testing.T) {
	f := newFixture(t, Options{PublisherGracePeriod: 30 * time.Millisecond}, nil)
	ctx := context.Background()
	first := f.admin(t, "first")

	require.NoError(t, f.svc.HandleStartStream(ctx, first, "peer-1", "t"))
	require.NoError(t, f.svc.HandleDisconnect(ctx, first))
	f.hub.Unregister(first)

	second := f.admin(t, "second")
	require.NoError(t, f.svc.HandleStartStream(ctx, second, "peer-2", "t"))

	time.Sleep(80 * time.Millisecond)
	snap := f.reg.Snapshot()
	require.True(t, snap.IsLive)
	assert.Equal(t, "peer-2", *snap.PublisherPeerID)
}

func TestZeroGraceKeepsSessionLive(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")

	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-1", "t"))
	require.NoError(t, f.svc.HandleDisconnect(ctx, admin))

	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.reg.Snapshot().IsLive)
}

func TestNonPublisherDisconnectKeepsSessionLive(t *testing.T) {
	f := newFixture(t, Options{PublisherGracePeriod: 10 * time.Millisecond}, nil)
	ctx := context.Background()
	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")

	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-1", "t"))
	require.NoError(t, f.svc.HandleDisconnect(ctx, viewer))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, f.reg.Snapshot().IsLive)
}

func TestEventMirrorAndAnnounce(t *testing.T) {
	ps := newStubPubSub()
	f := newFixture(t, Options{}, ps)
	ctx := context.Background()
	require.NoError(t, f.svc.Start(ctx))

	admin := f.admin(t, "admin")
	viewer := f.connect("viewer")
	require.NoError(t, f.svc.HandleJoin(ctx, viewer, "V"))
	require.NoError(t, f.svc.HandleStartStream(ctx, admin, "peer-1", "t"))
	drain(viewer)

	observers := pubsub.RelayToObserversChannel("live")
	require.Eventually(t, func() bool { return len(ps.types(observers)) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		pubsub.EventViewerCount,
		pubsub.EventChatMessage,
		pubsub.EventStreamStarted,
		pubsub.EventChatMessage,
	}, ps.types(observers))

	announce, err := pubsub.NewEvent(pubsub.EventAnnounce, "live", &pubsub.AnnouncePayload{Text: "Back in 5"})
	require.NoError(t, err)
	ps.control <- announce

	var chat domain.ChatEventMessage
	next(t, viewer).decode(t, &chat)
	assert.Equal(t, domain.KindSystem, chat.Message.Kind)
	assert.Equal(t, "Back in 5", chat.Message.Text)
}
