package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/seedling-live/internal/config"
	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	"github.com/weiawesome/seedling-live/internal/hub"
	pkglog "github.com/weiawesome/seedling-live/pkg/log"
)

// WSHandler serves the display websocket. Every connection is one mounted UI
// fragment (navbar badge, cart page, live page).
type WSHandler struct {
	hub      *hub.Hub
	http     *Handler
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler sharing h's services.
func NewWSHandler(wsHub *hub.Hub, h *Handler, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:  wsHub,
		http: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and mounts a display.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	h.mount(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

// mount subscribes the client to every display topic and sends it the
// current state. Subscriptions are released when the client goes away.
//
// The initial values are read under the same lock the subscription handlers
// take, so a concurrent update is either already reflected in them or
// queued after them.
func (h *WSHandler) mount(client *hub.Client) {
	svc := h.http.svc
	var mu sync.Mutex

	countTok := svc.Bus.Subscribe(eventbus.TopicCartCount, func(ev eventbus.Event) error {
		changed, ok := ev.Payload.(domain.CartCountChanged)
		if !ok {
			return errors.New("unexpected cart count payload")
		}
		mu.Lock()
		defer mu.Unlock()
		return client.SendMessage(domain.CartCountMessage{Type: domain.MsgTypeCartCount, Count: changed.Count})
	})
	liveTok := svc.Bus.Subscribe(eventbus.TopicLiveChanged, func(ev eventbus.Event) error {
		view, ok := ev.Payload.(domain.LiveView)
		if !ok {
			return errors.New("unexpected live view payload")
		}
		mu.Lock()
		defer mu.Unlock()
		return client.SendMessage(domain.LiveStateMessage{Type: domain.MsgTypeLiveState, View: view})
	})
	chatTok := svc.Relay.OnMessage(func(msg domain.ChatMessage) {
		client.SendMessage(domain.ChatMessageOut{Type: domain.MsgTypeChatMessage, Message: msg})
	})

	client.OnRelease(func() {
		svc.Bus.Unsubscribe(countTok)
		svc.Bus.Unsubscribe(liveTok)
		svc.Relay.Unsubscribe(chatTok)
	})

	mu.Lock()
	client.SendMessage(domain.CartCountMessage{Type: domain.MsgTypeCartCount, Count: svc.Cart.Current().Count()})
	client.SendMessage(domain.LiveStateMessage{Type: domain.MsgTypeLiveState, View: svc.Live.View()})
	mu.Unlock()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := pkglog.L().With().Str(pkglog.FieldClientID, client.ID).Logger()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := pkglog.WithLogger(context.Background(), l)

	switch base.Type {
	case domain.MsgTypePing:
		client.SendMessage(domain.BaseMessage{Type: domain.MsgTypePong})

	case domain.MsgTypeChat:
		var msg domain.ChatSendMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat message"))
			return
		}
		if _, err := h.http.svc.Relay.Send(ctx, domain.KindChat, msg.Text); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotConnected):
				client.SendMessage(domain.NewErrorMessage(domain.ErrCodeNotConnected, err.Error()))
			case errors.Is(err, domain.ErrEmptyMessage):
				client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, err.Error()))
			default:
				l.Error().Err(err).Msg("chat send failed")
				client.SendMessage(domain.NewErrorMessage(domain.ErrCodeInternal, "Failed to send message"))
			}
		}

	case domain.MsgTypeCartChanged:
		h.http.notifyCartChanged(ctx)

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}
