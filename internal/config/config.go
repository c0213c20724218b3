package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/live-relay/pkg/config"
	"github.com/weiawesome/live-relay/pkg/database"
	pkglog "github.com/weiawesome/live-relay/pkg/log"
	"github.com/weiawesome/live-relay/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Stream    StreamConfig
	Chat      ChatConfig
	Database  database.Config
	PubSub    pubsub.Config
	WebRTC    WebRTCConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	AdminSecret string        `mapstructure:"admin_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Issuer      string        `mapstructure:"issuer"`
	BcryptCost  int           `mapstructure:"bcrypt_cost"`
}

type StreamConfig struct {
	DefaultTitle         string        `mapstructure:"default_title"`
	PublisherGracePeriod time.Duration `mapstructure:"publisher_grace_period"`
}

type ChatConfig struct {
	HistorySize   int    `mapstructure:"history_size"`
	MaxTextLength int    `mapstructure:"max_text_length"`
	MaxNameLength int    `mapstructure:"max_name_length"`
	AdminLabel    string `mapstructure:"admin_label"`
	MessageID     string `mapstructure:"message_id"` // ulid, uuid, nanoid, ksuid, cuid2
}

// ICEServer is one entry of the RTCPeerConnection iceServers list.
type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

type WebRTCConfig struct {
	ICEServers []ICEServer `mapstructure:"ice_servers"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	SetDefaults(v)

	// Short env names kept for existing deployments.
	pkgconfig.BindEnv(v, map[string]string{
		"server.port":          "PORT",
		"auth.jwt_secret":      "JWT_SECRET",
		"auth.admin_secret":    "ADMIN_SECRET",
		"pubsub.redis.address": "REDIS_ADDRESS",
		"pubsub.kafka.brokers": "KAFKA_BROKERS",
		"log.level":            "LOG_LEVEL",
	})

	return Decode(v)
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)

	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "live-relay")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("stream.default_title", "Live Stream")
	v.SetDefault("stream.publisher_grace_period", "30s")

	v.SetDefault("chat.history_size", 50)
	v.SetDefault("chat.max_text_length", 500)
	v.SetDefault("chat.max_name_length", 32)
	v.SetDefault("chat.admin_label", "🔴 ADMIN")
	v.SetDefault("chat.message_id", "ulid")

	v.SetDefault("database.driver", database.DriverMemory)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("pubsub.driver", "none")
	v.SetDefault("pubsub.room", "live")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "live-relay")
	v.SetDefault("pubsub.kafka.partitions", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Decode unmarshals v and normalises durations and limits.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 25*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 24*time.Hour)
	cfg.Stream.PublisherGracePeriod = parseDuration(v, "stream.publisher_grace_period", 30*time.Second)

	if cfg.Chat.HistorySize <= 0 {
		cfg.Chat.HistorySize = 50
	}
	if cfg.Chat.MaxTextLength <= 0 {
		cfg.Chat.MaxTextLength = 500
	}
	if cfg.WebSocket.SendBuffer <= 0 {
		cfg.WebSocket.SendBuffer = 256
	}
	cfg.Log.ServiceName = "live-relay"

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
