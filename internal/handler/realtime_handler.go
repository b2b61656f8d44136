package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/noah-isme/grievance-api/internal/realtime"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

type hubAttacher interface {
	Attach(conn *websocket.Conn, userID string) *realtime.Client
}

// RealtimeHandler upgrades staff dashboards to a live event stream.
type RealtimeHandler struct {
	hub      hubAttacher
	upgrader websocket.Upgrader
}

// NewRealtimeHandler constructs the handler. An empty origin list accepts any origin.
func NewRealtimeHandler(hub hubAttacher, allowedOrigins []string) *RealtimeHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(origins) == 0 || origin == "" {
					return true
				}
				_, ok := origins[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

// Stream godoc
// @Summary Live grievance events
// @Description Websocket stream of grievance notification events. Pass the access token as ?token= when headers are unavailable.
// @Tags Realtime
// @Param token query string false "Access token"
// @Success 101
// @Router /ws/grievances [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		_ = c.Error(err)
		return
	}
	h.hub.Attach(conn, claims.UserID)
}
