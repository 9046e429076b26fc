package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/middleware"
	"github.com/noah-isme/smart-report-api/internal/models"
	appErrors "github.com/noah-isme/smart-report-api/pkg/errors"
	"github.com/noah-isme/smart-report-api/pkg/middleware/cors"
	"github.com/noah-isme/smart-report-api/pkg/response"
)

type connectionAttacher interface {
	Attach(conn *websocket.Conn, principal *models.Principal)
}

// RealtimeHandler upgrades authenticated requests to websocket connections.
type RealtimeHandler struct {
	hub        connectionAttacher
	tokens     middleware.TokenValidator
	identities middleware.PrincipalResolver
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewRealtimeHandler constructs RealtimeHandler. An empty allowedOrigins accepts any origin.
func NewRealtimeHandler(hub connectionAttacher, tokens middleware.TokenValidator, identities middleware.PrincipalResolver, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := cors.OriginChecker(allowedOrigins)
	return &RealtimeHandler{
		hub:        hub,
		tokens:     tokens,
		identities: identities,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowed(r.Header.Get("Origin"))
			},
		},
	}
}

// Connect godoc
// @Summary Subscribe to report events over a websocket
// @Tags Realtime
// @Param token query string true "Access token"
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(c.GetHeader("Authorization")); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token required"))
			return
		}
	}
	principal, err := middleware.Authenticate(c.Request.Context(), h.tokens, h.identities, token)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Attach(conn, principal)
}
