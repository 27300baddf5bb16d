// Package realtime delivers notifications to live websocket connections.
package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bitescout/BiteScoutAPI/internal/models"
	log "github.com/sirupsen/logrus"
)

// Channel event names.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventNotification  = "notification"
	EventError         = "error"
)

// Event is one JSON frame on the realtime channel.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Delivery errors.
var (
	// ErrConnClosed indicates the connection is already torn down.
	ErrConnClosed = errors.New("realtime: connection closed")
	// ErrSlowConsumer indicates the outbound buffer is full.
	ErrSlowConsumer = errors.New("realtime: outbound buffer full")
)

// Conn is a live, authenticated connection as seen by the hub.
type Conn interface {
	// Send enqueues an event without blocking.
	Send(ev Event) error
	// Close tears the connection down; it is safe to call more than once.
	Close() error
}

// Hub maps user ids to their live connections. One Hub is built per process
// and shared by the HTTP layer and the websocket handler.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[Conn]struct{})}
}

// Register binds conn to userID.
func (h *Hub) Register(userID string, conn Conn) {
	userID = strings.TrimSpace(userID)
	if h == nil || userID == "" || conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	if set == nil {
		set = make(map[Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes conn from userID; it does not close it.
func (h *Hub) Unregister(userID string, conn Conn) {
	if h == nil || conn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

// Count returns the number of live connections for userID.
func (h *Hub) Count(userID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Users returns the number of users with at least one live connection.
func (h *Hub) Users() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Deliver sends ev to every connection of userID and returns how many accepted it.
// Connections that fail are dropped and closed; their clients resync over REST.
func (h *Hub) Deliver(userID string, ev Event) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if errSend := conn.Send(ev); errSend != nil {
			log.WithError(errSend).WithField("user_id", userID).Debug("realtime: dropping connection")
			h.Unregister(userID, conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// Publish pushes a notification to its recipient's live connections.
func (h *Hub) Publish(_ context.Context, n models.Notification) error {
	h.Deliver(n.UserID, Event{Event: EventNotification, Data: n})
	return nil
}

// CloseAll closes and forgets every connection.
func (h *Hub) CloseAll() {
	if h == nil {
		return
	}
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]map[Conn]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for conn := range set {
			_ = conn.Close()
		}
	}
}
