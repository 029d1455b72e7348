package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/broadcast"
	"github.com/pscheid92/streamroom/internal/domain"
	apperrors "github.com/pscheid92/streamroom/internal/platform/errors"
)

const (
	inboundReadLimit = 4096

	inboundVote = "vote"
)

type roomService interface {
	CastVote(ctx context.Context, option string) ([]domain.PollOption, error)
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

type subscriptionHub interface {
	Subscribe() (*broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// GatewayConfig bounds connection admission.
type GatewayConfig struct {
	AllowedOrigins      []string
	IsDevelopment       bool
	MaxConnections      int
	MaxConnectionsPerIP int
}

// Gateway upgrades HTTP requests to push connections.
type Gateway struct {
	service  roomService
	hub      subscriptionHub
	upgrader websocket.Upgrader
	global   *GlobalConnectionLimiter
	perIP    *IPConnectionLimiter
	clock    clockwork.Clock
	metrics  *metrics.WebSocketMetrics
}

// NewGateway creates the push endpoint. m may be nil, in which case the
// counters are kept on a private registry that is never scraped.
func NewGateway(service roomService, hub subscriptionHub, cfg GatewayConfig, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Gateway {
	if m == nil {
		m = metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	}
	return &Gateway{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AllowedOrigins, cfg.IsDevelopment),
		},
		global:  NewGlobalConnectionLimiter(int64(cfg.MaxConnections)),
		perIP:   NewIPConnectionLimiter(cfg.MaxConnectionsPerIP),
		clock:   clock,
		metrics: m,
	}
}

// inboundFrame is a client-to-server message, e.g. {"event":"vote","data":{"option":"Song A"}}.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type votePayload struct {
	Option string `json:"option"`
}

// Handle serves GET /ws. It returns after the connection has closed.
func (g *Gateway) Handle(c echo.Context) error {
	ip := c.RealIP()

	if !g.global.Acquire() {
		return g.reject(c, "capacity", apperrors.UnavailableError("too many connections"))
	}
	defer g.global.Release()

	if !g.perIP.Acquire(ip) {
		return g.reject(c, "per_ip", apperrors.RateLimitedError("too many connections from this address"))
	}
	defer g.perIP.Release(ip)

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		g.metrics.Rejected.WithLabelValues("upgrade").Inc()
		slog.Debug("WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()

	// Subscribe before reading the snapshot, so no event committed after the
	// snapshot can be missed. Events already reflected in it arrive as repeats.
	sub, err := g.hub.Subscribe()
	if err != nil {
		closeNow(conn, g.clock, websocket.CloseGoingAway, "server shutting down")
		return nil
	}
	defer g.hub.Unsubscribe(sub)

	snapshot, err := g.service.Snapshot(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load snapshot for new connection", "error", err)
		closeNow(conn, g.clock, websocket.CloseInternalServerErr, "state unavailable")
		return nil
	}
	for _, event := range snapshotEvents(snapshot) {
		if err := writeEvent(conn, g.clock, event); err != nil {
			g.metrics.WriteErrors.Inc()
			return nil
		}
		g.metrics.MessagesSent.Inc()
	}

	g.metrics.ActiveConnections.Inc()
	defer g.metrics.ActiveConnections.Dec()
	slog.DebugContext(ctx, "WebSocket connected", "remote_ip", ip, "subscription", sub.ID())

	writer := newClientWriter(conn, g.clock, sub.Events(), g.metrics)
	defer writer.stop()

	g.readLoop(ctx, conn)

	slog.DebugContext(ctx, "WebSocket disconnected", "remote_ip", ip, "subscription", sub.ID())
	return nil
}

func (g *Gateway) reject(c echo.Context, reason string, err *apperrors.Error) error {
	g.metrics.Rejected.WithLabelValues(reason).Inc()
	slog.Warn("WebSocket connection rejected", "reason", reason, "remote_ip", c.RealIP())
	return c.JSON(err.HTTPStatus(), err.ToResponse())
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(inboundReadLimit)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read failed", "error", err)
			}
			return
		}
		g.handleFrame(ctx, payload)
	}
}

// handleFrame dispatches one inbound frame. Malformed and unknown frames are
// logged and dropped; they never close the connection.
func (g *Gateway) handleFrame(ctx context.Context, payload []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		g.metrics.MessagesReceived.WithLabelValues("malformed").Inc()
		slog.DebugContext(ctx, "Ignoring malformed frame", "error", err)
		return
	}

	switch frame.Event {
	case inboundVote:
		g.metrics.MessagesReceived.WithLabelValues(inboundVote).Inc()
		var vote votePayload
		if err := json.Unmarshal(frame.Data, &vote); err != nil {
			slog.DebugContext(ctx, "Ignoring malformed vote", "error", err)
			return
		}
		// The vote commits and broadcasts even if this client disconnects now.
		if _, err := g.service.CastVote(context.WithoutCancel(ctx), vote.Option); err != nil {
			if errors.Is(err, domain.ErrInvalidInput) {
				slog.DebugContext(ctx, "Rejected vote", "error", err)
				return
			}
			slog.ErrorContext(ctx, "Failed to cast vote", "option", vote.Option, "error", err)
		}
	default:
		g.metrics.MessagesReceived.WithLabelValues("unknown").Inc()
		slog.DebugContext(ctx, "Ignoring unknown event", "event", frame.Event)
	}
}

func snapshotEvents(snapshot domain.Snapshot) []domain.Event {
	return []domain.Event{
		domain.PollUpdated(snapshot.Poll),
		domain.LikesUpdated(snapshot.Likes),
	}
}

func closeNow(conn *websocket.Conn, clock clockwork.Clock, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), clock.Now().Add(writeDeadline))
}
