package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/live-relay/internal/auth"
	"github.com/weiawesome/live-relay/internal/config"
	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/internal/repository"
	"github.com/weiawesome/live-relay/internal/service"
	"github.com/weiawesome/live-relay/pkg/log"
	"github.com/weiawesome/live-relay/pkg/middleware"
	"github.com/weiawesome/live-relay/pkg/response"
)

const fallbackSTUN = "stun:stun.l.google.com:19302"

// Handler handles HTTP requests for the relay.
type Handler struct {
	authService    auth.Service
	relayService   service.RelayService
	authMiddleware *middleware.AuthMiddleware
	iceServers     []config.ICEServer
}

// NewHandler creates a new HTTP handler.
func NewHandler(authService auth.Service, relayService service.RelayService, authMiddleware *middleware.AuthMiddleware, iceServers []config.ICEServer) *Handler {
	return &Handler{
		authService:    authService,
		relayService:   relayService,
		authMiddleware: authMiddleware,
		iceServers:     withSTUNFallback(iceServers),
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		// Public routes
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.GET("/stream-status", h.StreamStatus)
		api.GET("/ice-servers", h.ICEServers)

		// Protected routes
		api.GET("/verify", h.authMiddleware.RequireAuth(), h.Verify)
	}
}

// Register handles admin registration.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid register request")
		response.BadRequest(c, auth.ErrMissingFields.Error())
		return
	}

	result, err := h.authService.Register(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields),
			errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrWeakPassword):
			response.BadRequest(c, err.Error())
		case errors.Is(err, auth.ErrInvalidAdminSecret):
			response.Forbidden(c, err.Error())
		case errors.Is(err, repository.ErrUsernameExists):
			response.Conflict(c, "username already exists")
		default:
			l.Error().Err(err).Msg("register failed")
			response.InternalError(c, "failed to register admin")
		}
		return
	}

	response.Created(c, result)
}

// Login handles admin login.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, auth.ErrMissingFields.Error())
		return
	}

	result, err := h.authService.Login(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			response.BadRequest(c, err.Error())
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Unauthorized(c, "invalid username or password")
		default:
			l.Error().Err(err).Msg("login failed")
			response.InternalError(c, "failed to login")
		}
		return
	}

	response.Success(c, result)
}

// Verify echoes the identity carried by a valid token.
func (h *Handler) Verify(c *gin.Context) {
	response.Success(c, domain.VerifyResponse{
		Valid: true,
		User: domain.TokenUser{
			ID:       middleware.GetUserID(c),
			Username: middleware.GetUsername(c),
			Role:     middleware.GetRole(c),
		},
	})
}

// StreamStatus returns the current snapshot and viewer count.
func (h *Handler) StreamStatus(c *gin.Context) {
	response.Success(c, h.relayService.Status())
}

// ICEServers serves ICE server configuration to the rendezvous clients.
func (h *Handler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// withSTUNFallback prepends a public STUN server unless one is configured.
func withSTUNFallback(servers []config.ICEServer) []config.ICEServer {
	for _, s := range servers {
		for _, url := range s.URLs {
			if strings.HasPrefix(url, "stun") {
				return servers
			}
		}
	}
	return append([]config.ICEServer{{URLs: []string{fallbackSTUN}}}, servers...)
}
