package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type outbound struct {
	ev         Event
	closeAfter bool
}

// session is one websocket connection. Only writePump writes to ws.
type session struct {
	ws   *websocket.Conn
	send chan outbound
	done chan struct{}
	once sync.Once

	writerDone chan struct{} // closed when writePump returns

	writeTimeout time.Duration
	pingInterval time.Duration
}

func newSession(ws *websocket.Conn, cfg HandlerConfig) *session {
	return &session{
		ws:           ws,
		send:         make(chan outbound, cfg.SendBuffer),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
	}
}

// Send enqueues ev without blocking.
func (s *session) Send(ev Event) error {
	return s.enqueue(outbound{ev: ev})
}

// sendAndClose enqueues a final event; the writer closes the socket after flushing it.
func (s *session) sendAndClose(ev Event) {
	if errSend := s.enqueue(outbound{ev: ev, closeAfter: true}); errSend != nil {
		_ = s.Close()
	}
}

func (s *session) enqueue(msg outbound) error {
	select {
	case <-s.done:
		return ErrConnClosed
	default:
	}
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// waitWriter blocks until the writer exits or timeout elapses.
func (s *session) waitWriter(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.writerDone:
	case <-timer.C:
	}
}

// Close stops the writer and closes the socket.
func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ws.Close()
	})
	return err
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.Close()
		close(s.writerDone)
	}()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if errWrite := s.ws.WriteJSON(msg.ev); errWrite != nil {
				log.WithError(errWrite).Debug("realtime: write failed")
				return
			}
			if msg.closeAfter {
				_ = s.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if errPing := s.ws.WriteMessage(websocket.PingMessage, nil); errPing != nil {
				return
			}
		}
	}
}
