package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"soulconnect/domain/event"
	"soulconnect/errors"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Session wraps one websocket and coordinates outbound writes via a
// buffered channel. It doubles as the connection's event sink: fanned-out
// domain events are converted to wire envelopes and enqueued here, so a
// slow client never blocks the router.
type Session struct {
	ID          string
	IdentityID  string
	DisplayName string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewSession(id, identityID, displayName string, ws *websocket.Conn, bufferSize int) *Session {
	return &Session{
		ID:          id,
		IdentityID:  identityID,
		DisplayName: displayName,
		ws:          ws,
		send:        make(chan []byte, bufferSize),
		close:       make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once per session.
func (s *Session) Start() {
	go s.writeLoop()
}

// Consume implements contract.EventSink. A full buffer drops the session
// instead of blocking the broadcast path.
func (s *Session) Consume(_ context.Context, e event.DomainEvent) error {
	payload, err := json.Marshal(toEnvelope(e))
	if err != nil {
		return err
	}
	select {
	case <-s.close:
		return errors.ErrConnectionClosed
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.ErrConnectionClosed
	}
}

// Send enqueues a pre-built frame, used for acks and errors on the read path.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.close:
		return errors.ErrConnectionClosed
	case s.send <- payload:
		return nil
	default:
		s.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.ErrConnectionClosed
	}
}

// Close terminates the session and stops the write loop.
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.close)
		_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.ws.Close()
	})
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.close:
			return
		case msg := <-s.send:
			if err := s.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeMessage(payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) writePing() error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(websocket.PingMessage, nil)
}
