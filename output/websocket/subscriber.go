package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ashwingupta21/VR-API/errors"
)

const (
	// writeWait bounds how long a single frame write may block.
	writeWait = 5 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// side gives up on it. Pongs and data frames both reset the clock.
	pongWait = 60 * time.Second

	// pingPeriod is how often the maintenance loop pings idle clients.
	// Must be shorter than pongWait.
	pingPeriod = 30 * time.Second
)

// subscriber adapts one WebSocket connection to broadcast.Subscriber.
// gorilla/websocket allows at most one concurrent writer per connection,
// so Send and Ping serialize on writeMu.
type subscriber struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// ID implements broadcast.Subscriber.
func (s *subscriber) ID() string {
	return s.id
}

// Send writes one event frame as a text message. A write that fails or
// exceeds the deadline marks the subscriber for removal by the caller.
func (s *subscriber) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.WrapTransient(err, "Subscriber", "Send", "write frame")
	}
	return nil
}

// Ping sends a control ping so dead connections fail fast instead of
// lingering until their next event frame.
func (s *subscriber) Ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return errors.WrapTransient(err, "Subscriber", "Ping", "write ping")
	}
	return nil
}

// Close sends a best-effort close frame and tears down the connection.
// Safe to call from multiple goroutines; only the first call does work.
func (s *subscriber) Close() error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
