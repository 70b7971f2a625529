package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/messenger"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
)

type Gateway interface {
	Connect(ctx context.Context, handshake domain.Handshake) (*domain.Connection, error)
	Dispatch(ctx context.Context, connectionID string, in domain.Inbound) error
	Disconnect(ctx context.Context, connectionID string) error
}

type Config struct {
	SendQueueSize  int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (c Config) withDefaults() Config {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = messenger.DefaultQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1 << 20
	}

	return c
}

type Handler struct {
	gateway  Gateway
	cfg      Config
	upgrader websocket.Upgrader
}

func NewHandler(gateway Gateway, cfg Config) *Handler {
	return &Handler{
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	m := messenger.NewMessenger(h.cfg.SendQueueSize)

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writePump(ctx, ws, m)
	}()

	conn, err := h.gateway.Connect(ctx, domain.Handshake{
		Credentials: domain.Credentials{Token: token(r), RemoteAddr: r.RemoteAddr},
		Messenger:   m,
	})
	if err != nil {
		<-written
		return
	}

	slog.DebugContext(ctx, "websocket client connected", "connection_id", conn.ID, "user_id", conn.UserID)

	h.readPump(ctx, ws, m, conn.ID)

	if err := h.gateway.Disconnect(ctx, conn.ID); err != nil {
		slog.ErrorContext(ctx, "error disconnecting", "connection_id", conn.ID, "error", err)
	}

	_ = m.Close("connection closed")
	<-written

	slog.DebugContext(ctx, "websocket client disconnected", "connection_id", conn.ID)
}

func (h *Handler) readPump(ctx context.Context, ws *websocket.Conn, m *messenger.Messenger, connectionID string) {
	ws.SetReadLimit(h.cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "websocket read error", "connection_id", connectionID, "error", err)
			}
			return
		}

		in, err := protocol.Decode(data)
		if err != nil {
			if serr := m.Send(ctx, domain.Outbound{
				Kind:    domain.OutboundError,
				Code:    domain.CodeOf(err),
				Message: err.Error(),
			}); serr != nil {
				_ = m.Close("stale connection")
			}
			continue
		}

		if err := h.gateway.Dispatch(ctx, connectionID, in); err != nil {
			if errors.Is(err, domain.ErrConnectionNotFound) {
				return
			}
			slog.ErrorContext(ctx, "error dispatching", "connection_id", connectionID, "error", err)
		}
	}
}

func (h *Handler) writePump(ctx context.Context, ws *websocket.Conn, m *messenger.Messenger) {
	ticker := time.NewTicker(h.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case data := <-m.Outbox():
			if err := h.write(ws, websocket.TextMessage, data); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "error", err)
				_ = m.Close("write failed")
				return
			}
		case <-ticker.C:
			if err := h.write(ws, websocket.PingMessage, nil); err != nil {
				_ = m.Close("ping failed")
				return
			}
		case <-m.Done():
			for _, data := range m.Drain() {
				if err := h.write(ws, websocket.TextMessage, data); err != nil {
					return
				}
			}

			_ = h.write(ws, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason(m.Reason())))
			return
		}
	}
}

func (h *Handler) write(ws *websocket.Conn, messageType int, data []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return ws.WriteMessage(messageType, data)
}

// token reads the bearer token from the Authorization header, falling back
// to the token query parameter for browser clients.
func token(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	return r.URL.Query().Get("token")
}

// close frame payloads are capped at 125 bytes, two of which hold the code
func closeReason(reason string) string {
	if len(reason) > 123 {
		return reason[:123]
	}

	return reason
}
