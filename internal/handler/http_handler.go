package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/weiawesome/seedling-live/internal/cart"
	"github.com/weiawesome/seedling-live/internal/domain"
	"github.com/weiawesome/seedling-live/internal/eventbus"
	"github.com/weiawesome/seedling-live/internal/hub"
	"github.com/weiawesome/seedling-live/internal/live"
	"github.com/weiawesome/seedling-live/internal/receipt"
	"github.com/weiawesome/seedling-live/internal/relay"
	"github.com/weiawesome/seedling-live/internal/session"
	"github.com/weiawesome/seedling-live/pkg/log"
	"github.com/weiawesome/seedling-live/pkg/middleware"
	"github.com/weiawesome/seedling-live/pkg/response"
)

const headerReceiptURL = "X-Receipt-URL"

// Services are the components the API exposes.
type Services struct {
	Bus      *eventbus.Bus
	Cart     *cart.Synchronizer
	Mutator  cart.Mutator // nil when the cart backend is read-only
	Live     *live.Controller
	Relay    *relay.Relay
	Session  *session.Manager
	Receipts receipt.Generator
	Archive  *receipt.Archive // nil when archiving is disabled
	Hub      *hub.Hub
}

// Handler handles HTTP requests of the storefront daemon.
type Handler struct {
	svc            Services
	authMiddleware *middleware.AuthMiddleware
	now            func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc Services, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, authMiddleware: authMiddleware, now: time.Now}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		sess := api.Group("/session")
		{
			sess.POST("", h.authMiddleware.RequireAuth(), h.Login)
			sess.GET("", h.CurrentSession)
			sess.DELETE("", h.Logout)
		}

		carts := api.Group("/cart")
		{
			carts.GET("", h.GetCart)
			carts.POST("/refresh", h.RefreshCart)
			carts.POST("/changed", h.CartChanged)
			if h.svc.Mutator != nil {
				carts.POST("/items", h.AddCartItem)
			}
		}

		lv := api.Group("/live")
		{
			lv.GET("", h.GetLive)
			lv.POST("/join", h.JoinLive)
			lv.POST("/leave", h.LeaveLive)
			lv.POST("/chat", h.SendChat)
		}

		api.GET("/receipt", h.GetReceipt)
		api.GET("/receipts", h.ListReceipts)
	}
}

// Health reports liveness together with bus and hub counters.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": h.svc.Hub.Count(),
		"bus":     h.svc.Bus.Metrics(),
		"live":    h.svc.Live.CurrentState(),
	})
}

// Login makes the bearer of the request the current shopper.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user, err := h.svc.Session.Login(ctx, middleware.GetToken(c))
	if err != nil {
		l.Warn().Err(err).Msg("login rejected")
		response.Unauthorized(c, "invalid token")
		return
	}
	c.Set(log.FieldUserID, user.ID)
	c.Set(log.FieldUsername, user.Username)

	response.Success(c, user)
}

// CurrentSession returns the current shopper.
func (h *Handler) CurrentSession(c *gin.Context) {
	user, ok := h.svc.Session.Current()
	if !ok {
		response.Unauthorized(c, "no active session")
		return
	}
	response.Success(c, user)
}

// Logout ends the shopper session. The local session is cleared even when
// the storefront backend fails to invalidate it.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if err := h.svc.Session.Logout(ctx); err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			response.Unauthorized(c, "no active session")
			return
		}
		l.Warn().Err(err).Msg("backend logout failed")
	}
	response.NoContent(c)
}

// GetCart returns the last applied cart snapshot.
func (h *Handler) GetCart(c *gin.Context) {
	response.Success(c, cartResponse(h.svc.Cart.Current()))
}

// RefreshCart fetches the cart of the current shopper now.
func (h *Handler) RefreshCart(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	snap, err := h.svc.Cart.Refresh(ctx, h.svc.Cart.User())
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			l.Warn().Err(err).Msg("cart fetch failed")
			response.BadGateway(c, response.CodeFetchFailed, "failed to fetch cart")
			return
		}
		l.Error().Err(err).Msg("cart refresh failed")
		response.InternalError(c, "failed to refresh cart")
		return
	}
	response.Success(c, cartResponse(snap))
}

// CartChanged announces a cart mutation made elsewhere.
func (h *Handler) CartChanged(c *gin.Context) {
	relayed := h.notifyCartChanged(c.Request.Context())
	response.Accepted(c, gin.H{"relayed": relayed})
}

// AddCartItem writes a cart line through the backend and announces the change.
func (h *Handler) AddCartItem(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user, ok := h.svc.Session.Current()
	if !ok {
		response.Unauthorized(c, "no active session")
		return
	}

	var req domain.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind add item request")
		response.BadRequest(c, err.Error())
		return
	}

	item := domain.CartItem{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
	if err := h.svc.Mutator.AddItem(ctx, user.ID, item); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to add cart item")
		response.InternalError(c, "failed to add cart item")
		return
	}

	relayed := h.notifyCartChanged(ctx)
	response.Accepted(c, gin.H{"relayed": relayed})
}

// notifyCartChanged publishes the local trigger and, while the live session
// is started, tells the other participants too. It reports whether the
// notice went out on the side-channel.
func (h *Handler) notifyCartChanged(ctx context.Context) bool {
	h.svc.Bus.Publish(eventbus.TopicCartChanged, nil)

	if h.svc.Live.CurrentState() != domain.SessionStarted {
		return false
	}
	if err := h.svc.Relay.NotifyCartChanged(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to relay cart notification")
		return false
	}
	return true
}

// GetLive returns the current live view.
func (h *Handler) GetLive(c *gin.Context) {
	response.Success(c, h.svc.Live.View())
}

// JoinLive joins a live room.
func (h *Handler) JoinLive(c *gin.Context) {
	var req domain.JoinLiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := log.With(c.Request.Context(), log.FieldRoomID, req.RoomID)
	l := log.Ctx(ctx)

	self := h.participant(req)
	if err := h.svc.Live.Join(ctx, req.RoomID, self); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMode):
			response.BadRequest(c, fmt.Sprintf("invalid mode %q", req.Mode))
		case errors.Is(err, domain.ErrAlreadyJoined):
			response.Conflict(c, response.CodeConflict, "already joined a live session")
		default:
			l.Error().Err(err).Msg("failed to join live session")
			response.InternalError(c, "failed to join live session")
		}
		return
	}

	response.Success(c, h.svc.Live.View())
}

func (h *Handler) participant(req domain.JoinLiveRequest) domain.Participant {
	p := domain.Participant{
		ID:          req.ParticipantID,
		DisplayName: req.DisplayName,
		Mode:        domain.Mode(strings.ToUpper(strings.TrimSpace(req.Mode))),
	}
	if p.Mode == "" {
		p.Mode = domain.ModeViewer
	}
	if user, ok := h.svc.Session.Current(); ok {
		if p.ID == "" {
			p.ID = user.ID
		}
		if p.DisplayName == "" {
			p.DisplayName = user.Username
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return p
}

// LeaveLive leaves the current live room.
func (h *Handler) LeaveLive(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if err := h.svc.Live.Leave(ctx); err != nil {
		if errors.Is(err, domain.ErrNotJoined) {
			response.Conflict(c, response.CodeConflict, "not joined to a live session")
			return
		}
		l.Warn().Err(err).Msg("provider leave failed")
	}
	response.NoContent(c)
}

// SendChat sends a side-channel message.
func (h *Handler) SendChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	kind := domain.KindChat
	if req.Kind != "" {
		k, err := domain.ParseMessageKind(req.Kind)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		kind = k
	}

	msg, err := h.svc.Relay.Send(ctx, kind, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			response.Conflict(c, response.CodeNotConnected, err.Error())
		case errors.Is(err, domain.ErrEmptyMessage):
			response.BadRequest(c, err.Error())
		default:
			l.Error().Err(err).Msg("failed to send message")
			response.InternalError(c, "failed to send message")
		}
		return
	}
	if kind == domain.KindCartNotification {
		h.svc.Bus.Publish(eventbus.TopicCartChanged, nil)
	}

	response.Success(c, msg)
}

// GetReceipt renders the current cart as a PDF receipt.
func (h *Handler) GetReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	user, ok := h.svc.Session.Current()
	customer := c.Query("customer")
	if customer == "" && ok {
		customer = user.Username
	}

	in := receipt.FromSnapshot(h.svc.Cart.Current(), customer, h.now())
	var buf bytes.Buffer
	if err := h.svc.Receipts.Generate(ctx, in, &buf); err != nil {
		l.Error().Err(err).Msg("failed to render receipt")
		response.InternalError(c, "failed to render receipt")
		return
	}

	if h.svc.Archive != nil && ok {
		if _, url, err := h.svc.Archive.Save(ctx, user.ID, buf.Bytes(), h.svc.Receipts.ContentType()); err != nil {
			l.Warn().Err(err).Msg("failed to archive receipt")
		} else {
			c.Header(headerReceiptURL, url)
		}
	}

	c.Header("Content-Disposition", `inline; filename="receipt.pdf"`)
	c.Data(http.StatusOK, h.svc.Receipts.ContentType(), buf.Bytes())
}

// ListReceipts lists the archived receipts of the current shopper.
func (h *Handler) ListReceipts(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if h.svc.Archive == nil {
		response.NotFound(c, "receipt archive is disabled")
		return
	}
	user, ok := h.svc.Session.Current()
	if !ok {
		response.Unauthorized(c, "no active session")
		return
	}

	files, err := h.svc.Archive.List(ctx, user.ID)
	if err != nil {
		l.Error().Err(err).Msg("failed to list receipts")
		response.InternalError(c, "failed to list receipts")
		return
	}
	response.Success(c, files)
}

func cartResponse(s domain.CartSnapshot) domain.CartResponse {
	return domain.CartResponse{Cart: s, Count: cart.Count(s), Total: s.Total()}
}
