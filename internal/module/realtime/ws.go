package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/response"
)

// Authenticator resolves a bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Principal, error)
}

// Config holds websocket transport settings.
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// DefaultConfig returns the default transport settings.
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 512,
		AllowedOrigins: []string{"*"},
	}
}

func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Handler upgrades HTTP requests to websocket sessions.
type Handler struct {
	broadcaster *Broadcaster
	authn       Authenticator
	upgrader    websocket.Upgrader
	cfg         Config
	logger      *zap.Logger
}

// NewHandler creates a new websocket handler.
func NewHandler(b *Broadcaster, authn Authenticator, cfg Config, logger *zap.Logger) *Handler {
	def := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	h := &Handler{
		broadcaster: b,
		authn:       authn,
		cfg:         cfg,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RegisterRoutes registers the websocket endpoint.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.Serve)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func tokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// Serve authenticates the request, upgrades it and runs the session until the
// client goes away.
func (h *Handler) Serve(c *gin.Context) {
	principal, err := h.authn.Authenticate(c.Request.Context(), tokenFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	s := h.broadcaster.Connect(principal)
	_ = h.broadcaster.Send(s, controlMessage(TypeConnected, ""))

	go h.writePump(conn, s)
	h.readPump(ctx, conn, s)

	h.broadcaster.Disconnect(s)
	_ = conn.Close()
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, s *Session) {
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error",
					zap.String("session_id", s.ID),
					zap.Error(err),
				)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = h.broadcaster.Send(s, errorMessage("", apperrors.Validation("malformed message")))
			continue
		}
		h.HandleMessage(ctx, s, msg)
	}
}

// HandleMessage applies one inbound client frame to the session.
func (h *Handler) HandleMessage(ctx context.Context, s *Session, msg ClientMessage) {
	projectID, err := uuid.Parse(msg.ProjectID)
	if err != nil {
		_ = h.broadcaster.Send(s, errorMessage(msg.ProjectID, apperrors.Validation("invalid projectId")))
		return
	}

	switch msg.Type {
	case TypeJoinProject:
		if err := h.broadcaster.Join(ctx, s, projectID); err != nil {
			_ = h.broadcaster.Send(s, errorMessage(msg.ProjectID, err))
			return
		}
		_ = h.broadcaster.Send(s, controlMessage(TypeJoined, msg.ProjectID))

	case TypeLeaveProject:
		h.broadcaster.Leave(s, projectID)
		_ = h.broadcaster.Send(s, controlMessage(TypeLeft, msg.ProjectID))

	case TypeTyping:
		if err := h.broadcaster.Typing(s, projectID, msg.TaskID); err != nil {
			_ = h.broadcaster.Send(s, errorMessage(msg.ProjectID, err))
		}

	default:
		_ = h.broadcaster.Send(s, errorMessage(msg.ProjectID, apperrors.Validationf("unknown message type %q", msg.Type)))
	}
}

func (h *Handler) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(h.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-s.Notify():
			for _, msg := range s.Drain() {
				if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("websocket write failed",
						zap.String("session_id", s.ID),
						zap.Error(err),
					)
					return
				}
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		}
	}
}
