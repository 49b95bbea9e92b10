package websocket

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/princekumarofficial/chat-media-service/internal/delivery"
	"github.com/princekumarofficial/chat-media-service/internal/events"
	"github.com/princekumarofficial/chat-media-service/internal/http/middleware"
	"github.com/princekumarofficial/chat-media-service/internal/media"
	"github.com/princekumarofficial/chat-media-service/internal/utils/jwt"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
	wsClient "github.com/princekumarofficial/chat-media-service/internal/websocket"
)

// SessionDeps are shared by every console session.
type SessionDeps struct {
	Inspector *media.Inspector
	Routes    delivery.Routes
	// Memo is optional.
	Memo delivery.Memo
	// AllowedOrigins lists console hosts accepted besides the server's own.
	AllowedOrigins []string
	Logger         *slog.Logger
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if strings.EqualFold(u.Host, r.Host) {
				return true
			}
			return len(allowed) > 0 && media.HostAllowed(allowed, u)
		},
	}
}

// WebSocketHandler upgrades a console connection and starts its media session
// @Summary Media delivery session
// @Description Upgrade to a WebSocket carrying media.mount, media.event, media.unmount and media.retry messages
// @Tags websocket
// @Param token query string true "Console session token"
// @Router /ws/media [get]
func WebSocketHandler(hub *wsClient.Hub, jwtSecret string, deps SessionDeps) http.HandlerFunc {
	upgrader := newUpgrader(deps.AllowedOrigins)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token, err := middleware.TokenFromRequest(r)
		if err != nil {
			logger.Warn("WebSocket connection attempted without token")
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("token required")))
			return
		}

		userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
		if err != nil {
			logger.Warn("WebSocket connection attempted with invalid token", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("invalid token")))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		sessionID := uuid.NewString()
		sessionLogger := logger.With(slog.String("session_id", sessionID), slog.String("user_id", userID))
		publisher := events.NewMediaPublisher(hub, sessionID)

		opts := []delivery.Option{delivery.WithSink(publisher), delivery.WithLogger(sessionLogger)}
		if deps.Memo != nil {
			opts = append(opts, delivery.WithMemo(deps.Memo))
		}
		tracker := delivery.NewTracker(deps.Inspector, deps.Routes, opts...)

		client := wsClient.NewClient(conn, sessionID, userID, hub, wsClient.NewSession(tracker, publisher, sessionLogger))
		hub.RegisterClient(client)
		client.Start()

		sessionLogger.Info("WebSocket connection established")
	}
}
