package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/weiawesome/live-relay/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestHub(buffer int) *Hub {
	return NewHub(config.WebSocketConfig{SendBuffer: buffer})
}

func recv(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h := newTestHub(4)
	a, b := NewClient(h, nil, "a"), NewClient(h, nil, "b")
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Count())

	require.NoError(t, h.Broadcast(map[string]string{"type": "pong"}))

	assert.Equal(t, "pong", recv(t, a)["type"])
	assert.Equal(t, "pong", recv(t, b)["type"])
}

func TestSendToClientIsUnicast(t *testing.T) {
	h := newTestHub(4)
	a, b := NewClient(h, nil, "a"), NewClient(h, nil, "b")
	h.Register(a)
	h.Register(b)

	require.NoError(t, a.SendMessage(map[string]string{"type": "x"}))
	assert.Equal(t, "x", recv(t, a)["type"])
	assert.Empty(t, b.Send)

	// unknown ids are ignored
	require.NoError(t, h.SendToClient("ghost", map[string]string{"type": "x"}))
}

func TestMarshalFailureReturnsError(t *testing.T) {
	h := newTestHub(4)
	assert.Error(t, h.Broadcast(make(chan int)))
	assert.Error(t, h.SendToClient("a", func() {}))
}

func TestUnregisterClosesOnce(t *testing.T) {
	h := newTestHub(4)
	a := NewClient(h, nil, "a")
	h.Register(a)

	h.Unregister(a)
	h.Unregister(a)

	_, ok := <-a.Send
	assert.False(t, ok)
	assert.Zero(t, h.Count())

	// sending to an unregistered client must not panic
	require.NoError(t, h.Broadcast(map[string]string{"type": "x"}))
	require.NoError(t, a.SendMessage(map[string]string{"type": "x"}))
}

func TestFullBufferEvictsOnlySlowClient(t *testing.T) {
	h := newTestHub(1)
	slow, fast := NewClient(h, nil, "slow"), NewClient(h, nil, "fast")
	h.Register(slow)
	h.Register(fast)

	require.NoError(t, h.Broadcast(map[string]int{"n": 1}))
	recv(t, fast)
	require.NoError(t, h.Broadcast(map[string]int{"n": 2}))

	assert.Equal(t, float64(2), recv(t, fast)["n"])
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestShutdownUnregistersAll(t *testing.T) {
	h := newTestHub(1)
	clients := []*Client{NewClient(h, nil, "a"), NewClient(h, nil, "b")}
	for _, c := range clients {
		h.Register(c)
	}

	h.Shutdown()

	assert.Zero(t, h.Count())
	for _, c := range clients {
		_, ok := <-c.Send
		assert.False(t, ok)
	}
}
