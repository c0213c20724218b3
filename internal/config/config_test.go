package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeYAML(t *testing.T, doc string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	SetDefaults(v)
	if doc != "" {
		require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	}
	cfg, err := Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := decodeYAML(t, "")

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.Stream.PublisherGracePeriod)
	assert.Equal(t, "Live Stream", cfg.Stream.DefaultTitle)
	assert.Equal(t, 50, cfg.Chat.HistorySize)
	assert.Equal(t, 500, cfg.Chat.MaxTextLength)
	assert.Equal(t, "ulid", cfg.Chat.MessageID)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, "none", cfg.PubSub.Driver)
	assert.Equal(t, "live-relay", cfg.Log.ServiceName)
	assert.Empty(t, cfg.Auth.AdminSecret)
}

func TestDecodeOverrides(t *testing.T) {
	cfg := decodeYAML(t, `
stream:
  publisher_grace_period: 0s
websocket:
  ping_interval: nonsense
chat:
  history_size: -3
  message_id: ksuid
webrtc:
  ice_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: relay
      credential: pw
`)

	assert.Zero(t, cfg.Stream.PublisherGracePeriod)
	assert.Equal(t, 25*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 50, cfg.Chat.HistorySize)
	assert.Equal(t, "ksuid", cfg.Chat.MessageID)
	require.Len(t, cfg.WebRTC.ICEServers, 1)
	assert.Equal(t, ICEServer{
		URLs:       []string{"turn:turn.example.com:3478"},
		Username:   "relay",
		Credential: "pw",
	}, cfg.WebRTC.ICEServers[0])
}

func TestLoadBindsLegacyEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("PORT", "8081")
	t.Setenv("ADMIN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.AdminSecret)
}
