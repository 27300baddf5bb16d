package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bitescout/BiteScoutAPI/internal/apierror"
	"github.com/bitescout/BiteScoutAPI/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	JWTSecret        string
	RequireToken     bool          // reject authenticate frames on connections without a bearer token
	HandshakeTimeout time.Duration // how long an unauthenticated connection may stay open
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	SendBuffer       int
	AllowedOrigins   []string // empty allows any origin
}

func (c HandlerConfig) withDefaults() HandlerConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 2
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// Handler upgrades HTTP requests to realtime sessions and runs the
// authenticate handshake.
type Handler struct {
	hub      *Hub
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler builds a Handler around a shared hub.
func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	cfg = cfg.withDefaults()
	h := &Handler{hub: hub, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messagePayload struct {
	Message string `json:"message"`
}

// Serve handles GET /ws.
func (h *Handler) Serve(c *gin.Context) {
	claims, errClaims := h.tokenClaims(c.Request)
	if errClaims != nil {
		apiErr := apierror.Authentication("invalid token")
		c.AbortWithStatusJSON(apiErr.Code.HTTPStatus(), apierror.NewEnvelope(apiErr, c.Request.URL.Path, time.Now()))
		return
	}

	ws, errUpgrade := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if errUpgrade != nil {
		log.WithError(errUpgrade).Debug("realtime: upgrade failed")
		return
	}
	sess := newSession(ws, h.cfg)
	go sess.writePump()
	h.readLoop(sess, claims)
}

func (h *Handler) readLoop(sess *session, claims *security.UserClaims) {
	userID := ""
	defer func() {
		if userID != "" {
			h.hub.Unregister(userID, sess)
			log.WithField("user_id", userID).Debug("realtime: session closed")
		}
		_ = sess.Close()
	}()

	ws := sess.ws
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))

	for {
		var frame inboundFrame
		if errRead := ws.ReadJSON(&frame); errRead != nil {
			return
		}
		if frame.Event != EventAuthenticate {
			if userID == "" {
				_ = sess.Send(Event{Event: EventError, Data: messagePayload{Message: "authenticate first"}})
			}
			continue
		}
		if userID != "" {
			_ = sess.Send(Event{Event: EventError, Data: messagePayload{Message: "already authenticated"}})
			continue
		}

		requested := parseAuthenticateData(frame.Data)
		if reason := h.authorize(requested, claims); reason != "" {
			sess.sendAndClose(Event{Event: EventError, Data: messagePayload{Message: reason}})
			sess.waitWriter(h.cfg.WriteTimeout)
			return
		}

		userID = requested
		// Queue the ack before registering so no push can overtake it.
		_ = sess.Send(Event{Event: EventAuthenticated, Data: messagePayload{Message: "Authenticated successfully"}})
		h.hub.Register(userID, sess)
		log.WithField("user_id", userID).Debug("realtime: session authenticated")

		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		})
	}
}

// authorize returns a rejection reason, or "" when userID may bind to this connection.
func (h *Handler) authorize(userID string, claims *security.UserClaims) string {
	if userID == "" {
		return "userId is required"
	}
	if claims == nil {
		if h.cfg.RequireToken {
			return "bearer token required"
		}
		return ""
	}
	if claims.UserID != userID {
		return "userId does not match token"
	}
	return ""
}

// parseAuthenticateData accepts either a bare JSON string or {"userId": "..."}.
func parseAuthenticateData(raw json.RawMessage) string {
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if errUnmarshal := json.Unmarshal(raw, &obj); errUnmarshal == nil {
		return strings.TrimSpace(obj.UserID)
	}
	return ""
}

// tokenClaims reads an optional bearer token from the header or the token query parameter.
func (h *Handler) tokenClaims(r *http.Request) (*security.UserClaims, error) {
	token, ok := security.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return nil, nil
	}
	return security.ParseToken(h.cfg.JWTSecret, token)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, errParse := url.Parse(origin)
	if errParse != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, parsed.Host) {
			return true
		}
	}
	return false
}
