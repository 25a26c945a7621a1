package handler

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/events"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamBuffer     = 16
)

// EventStreamer pushes event bus subjects to browsers over WebSocket.
// Delivery is best effort: a subscriber whose buffer is full misses events
// and catches up with the next one, since every event is a full snapshot.
type EventStreamer struct {
	bus      events.Bus
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewEventStreamer creates a streamer. allowedOrigins limits which browser
// origins may connect; empty allows any.
func NewEventStreamer(bus events.Bus, allowedOrigins []string, logger zerolog.Logger) *EventStreamer {
	return &EventStreamer{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}

// Stream upgrades the request and forwards every event on subject until the
// client disconnects. initial, if non-nil, is called after subscribing and
// its payload is sent first.
func (s *EventStreamer) Stream(w http.ResponseWriter, r *http.Request, subject string, initial func() ([]byte, error)) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.logger.Debug().Err(err).Str("subject", subject).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan []byte, streamBuffer)
	sub, err := s.bus.Subscribe(subject, func(data []byte) {
		select {
		case send <- data:
		default:
			s.logger.Warn().Str("subject", subject).Msg("dropping event for slow subscriber")
		}
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", subject).Msg("subscribing to events")
		closeWith(conn, websocket.CloseInternalServerErr, "event bus unavailable")
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	if initial != nil {
		data, err := initial()
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}
		if err := write(conn, data); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go s.readPump(conn, done)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-send:
			if err := write(conn, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and closes done when the connection ends.
func (s *EventStreamer) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("event stream closed")
			}
			return
		}
	}
}

func write(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
