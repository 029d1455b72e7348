package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/domain"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// clientWriter owns all writes to one connection after the snapshot has been
// sent. It drains the hub subscription and keeps the connection alive with pings.
type clientWriter struct {
	connection  *websocket.Conn
	clock       clockwork.Clock
	events      <-chan domain.Event
	metrics     *metrics.WebSocketMetrics
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// newClientWriter starts the writer goroutine. m must be non-nil; NewGateway guarantees it.
func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, events <-chan domain.Event, m *metrics.WebSocketMetrics) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		events:      events,
		metrics:     m,
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case event, ok := <-cw.events:
			if !ok {
				// The hub dropped this subscriber (queue overflow or shutdown).
				cw.closeWith(websocket.CloseTryAgainLater, "subscription ended")
				return
			}
			if err := writeEvent(cw.connection, cw.clock, event); err != nil {
				cw.metrics.WriteErrors.Inc()
				_ = cw.connection.Close()
				return
			}
			cw.metrics.MessagesSent.Inc()
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.metrics.WriteErrors.Inc()
				_ = cw.connection.Close()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// stop terminates the writer goroutine and waits for it. Safe to call repeatedly.
func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
	})
	cw.wg.Wait()
}

// closeWith sends a close frame and closes the socket, which also ends the read loop.
func (cw *clientWriter) closeWith(code int, reason string) {
	cw.updateWriteDeadline()
	_ = cw.connection.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = cw.connection.Close()
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}

func writeEvent(conn *websocket.Conn, clock clockwork.Clock, event domain.Event) error {
	_ = conn.SetWriteDeadline(clock.Now().Add(writeDeadline))
	return conn.WriteJSON(event)
}
