package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	pkglog "github.com/weiawesome/live-relay/pkg/log"

	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/hub"
	"github.com/weiawesome/live-relay/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // viewers embed the player anywhere
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.RelayService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.RelayService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// HandleWebSocket upgrades the request and starts the client pumps. A token
// query parameter is treated like an auth event sent right after connecting.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqLog := pkglog.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		reqLog.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The request context ends when this handler returns; the connection
	// outlives it.
	clientID := uuid.New().String()
	ctx := pkglog.WithConn(pkglog.WithLogger(context.Background(), reqLog), clientID)

	client := hub.NewClient(h.hub, conn, clientID)
	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			l := pkglog.Ctx(ctx)
			l.Error().Err(err).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)

	if token := r.URL.Query().Get("token"); token != "" {
		h.logResult(ctx, domain.MsgTypeAuth, h.service.HandleAuth(ctx, client, token))
	}

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		l.Warn().Err(err).Msg("dropping malformed message")
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if !h.decode(ctx, client, message, &msg) {
			return
		}
		if msg.Token == "" {
			h.badRequest(ctx, client, base.Type, "token is required")
			return
		}
		err = h.service.HandleAuth(ctx, client, msg.Token)

	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if !h.decode(ctx, client, message, &msg) {
			return
		}
		err = h.service.HandleJoin(ctx, client, msg.DisplayName)

	case domain.MsgTypeChatMessage:
		var msg domain.ChatPostMessage
		if !h.decode(ctx, client, message, &msg) {
			return
		}
		err = h.service.HandleChat(ctx, client, &msg)

	case domain.MsgTypeStartStream:
		var msg domain.StartStreamMessage
		if !h.decode(ctx, client, message, &msg) {
			return
		}
		if msg.PublisherPeerID == "" {
			h.badRequest(ctx, client, base.Type, "publisher_peer_id is required")
			return
		}
		err = h.service.HandleStartStream(ctx, client, msg.PublisherPeerID, msg.Title)

	case domain.MsgTypeStopStream:
		err = h.service.HandleStopStream(ctx, client)

	case domain.MsgTypeUpdateTitle:
		var msg domain.UpdateTitleMessage
		if !h.decode(ctx, client, message, &msg) {
			return
		}
		if msg.Title == nil {
			h.badRequest(ctx, client, base.Type, "title is required")
			return
		}
		err = h.service.HandleUpdateTitle(ctx, client, *msg.Title)

	case domain.MsgTypePing:
		client.SendMessage(&domain.PongMessage{Type: domain.MsgTypePong})

	default:
		h.badRequest(ctx, client, base.Type, "Unknown message type")
		return
	}

	h.logResult(ctx, base.Type, err)
}

func (h *WSHandler) decode(ctx context.Context, client *hub.Client, message []byte, v interface{}) bool {
	if err := json.Unmarshal(message, v); err != nil {
		var base domain.BaseMessage
		_ = json.Unmarshal(message, &base)
		h.badRequest(ctx, client, base.Type, "Invalid "+base.Type+" message")
		return false
	}
	return true
}

func (h *WSHandler) badRequest(ctx context.Context, client *hub.Client, msgType, reason string) {
	l := pkglog.Ctx(ctx)
	l.Warn().Str(pkglog.FieldEventType, msgType).Str("reason", reason).Msg("dropping invalid event")
	client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, reason))
}

func (h *WSHandler) logResult(ctx context.Context, msgType string, err error) {
	if err == nil {
		return
	}
	l := pkglog.Ctx(ctx)
	if errors.Is(err, service.ErrForbidden) {
		l.Warn().Str(pkglog.FieldEventType, msgType).Msg("admin event from non-admin connection dropped")
		return
	}
	l.Warn().Err(err).Str(pkglog.FieldEventType, msgType).Msg("event failed")
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}
