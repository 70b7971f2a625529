package domain

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Handshake is what a transport knows about a freshly accepted client.
type Handshake struct {
	Credentials Credentials
	Messenger   Messenger
}

// Gateway drives the per-connection state machine
// CONNECTING -> AUTHENTICATED -> JOINED(room) -> CLOSED and dispatches
// client requests to the registry, room manager and relay.
type Gateway struct {
	auth     Authenticator
	registry *Registry
	rooms    *RoomManager
	relay    *Relay
	recorder Recorder
}

func NewGateway(auth Authenticator, registry *Registry, rooms *RoomManager, relay *Relay, recorder Recorder) *Gateway {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Gateway{
		auth:     auth,
		registry: registry,
		rooms:    rooms,
		relay:    relay,
		recorder: recorder,
	}
}

// Connect authenticates a new transport and registers its connection. On
// authentication failure the client is told why, its transport is closed
// and the returned error matches ErrAuthFailed.
func (g *Gateway) Connect(ctx context.Context, handshake Handshake) (*Connection, error) {
	conn := NewConnection(uuid.NewString(), handshake.Messenger)

	userID, err := g.auth.Authenticate(ctx, handshake.Credentials)
	if err != nil {
		if !errors.Is(err, ErrAuthFailed) {
			err = errors.Mark(err, ErrAuthFailed)
		}

		g.recorder.AuthFailed()
		_ = conn.transition(StateClosed)

		slog.InfoContext(ctx, "handshake rejected", "remote_addr", handshake.Credentials.RemoteAddr, "error", err)

		_ = handshake.Messenger.Send(ctx, Outbound{
			Kind:    OutboundError,
			Code:    CodeAuthFailed,
			Message: ErrAuthFailed.Error(),
		})
		if cerr := handshake.Messenger.Close("authentication failed"); cerr != nil {
			slog.DebugContext(ctx, "error closing rejected transport", "error", cerr)
		}

		return nil, errors.Wrap(err, "auth.Authenticate")
	}

	conn.UserID = userID
	if err := conn.transition(StateAuthenticated); err != nil {
		return nil, err
	}

	if _, err := g.registry.Register(ctx, conn); err != nil {
		if !errors.Is(err, ErrDuplicateConnection) {
			return nil, errors.Wrap(err, "registry.Register")
		}

		previous, ok := g.registry.LookupByMessenger(ctx, handshake.Messenger)
		if ok {
			slog.WarnContext(ctx, "replacing duplicate connection", "previous_connection_id", previous.ID, "connection_id", conn.ID)
			if err := g.close(ctx, previous); err != nil {
				return nil, errors.Wrap(err, "close duplicate")
			}
		}

		if _, err := g.registry.Register(ctx, conn); err != nil {
			return nil, errors.Wrap(err, "registry.Register")
		}
	}

	g.reply(ctx, conn, Outbound{
		Kind:         OutboundWelcome,
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
	})

	return conn, nil
}

// Dispatch handles one client request. Request-level failures are reported
// to the sender with an error message and leave the connection open; the
// returned error is reserved for an unknown connection.
func (g *Gateway) Dispatch(ctx context.Context, connectionID string, in Inbound) error {
	conn, ok := g.registry.Lookup(ctx, connectionID)
	if !ok {
		return errors.Wrapf(ErrConnectionNotFound, "connection %q", connectionID)
	}

	switch in.Kind {
	case InboundJoinRoom:
		g.join(ctx, conn, in)
	case InboundLeaveRoom:
		g.leave(ctx, conn, in)
	case InboundDesignUpdate:
		g.update(ctx, conn, in)
	case InboundPing:
		g.reply(ctx, conn, Outbound{Kind: OutboundPong, Timestamp: in.Timestamp})
	default:
		g.reject(ctx, conn, in.Kind, errors.Wrapf(ErrBadRequest, "unknown message type %q", in.Kind))
	}

	return nil
}

// Disconnect closes the connection and removes it from its room. It is
// safe to call more than once.
func (g *Gateway) Disconnect(ctx context.Context, connectionID string) error {
	conn, ok := g.registry.Lookup(ctx, connectionID)
	if !ok {
		return nil
	}

	return g.close(ctx, conn)
}

// Shutdown notifies every live connection that the server is going away
// and closes it.
func (g *Gateway) Shutdown(ctx context.Context) error {
	conns, err := g.registry.Connections(ctx)
	if err != nil {
		return errors.Wrap(err, "registry.Connections")
	}

	slog.DebugContext(ctx, "notifying connections of shutdown", "connections", len(conns))

	for _, conn := range conns {
		if err := conn.Messenger.Send(ctx, Outbound{
			Kind:    OutboundServerClosing,
			Message: "server is closing",
		}); err != nil {
			slog.DebugContext(ctx, "error sending server closing", "connection_id", conn.ID, "error", err)
		}

		if err := g.close(ctx, conn); err != nil {
			slog.ErrorContext(ctx, "error closing connection", "connection_id", conn.ID, "error", err)
		}

		if err := conn.Messenger.Close("server closing"); err != nil {
			slog.DebugContext(ctx, "error closing transport", "connection_id", conn.ID, "error", err)
		}
	}

	return nil
}

func (g *Gateway) join(ctx context.Context, conn *Connection, in Inbound) {
	if in.RoomID == "" {
		g.reject(ctx, conn, in.Kind, errors.Wrap(ErrBadRequest, "room id is required"))
		return
	}

	if !canTransition(conn.State(), StateJoined) {
		g.reject(ctx, conn, in.Kind, errors.Wrapf(ErrInvalidTransition, "%s -> %s", conn.State(), StateJoined))
		return
	}

	members, err := g.rooms.Join(ctx, conn, in.RoomID)
	if err != nil {
		g.reject(ctx, conn, in.Kind, err)
		return
	}

	if err := conn.transition(StateJoined); err != nil {
		// closed after Join took the room lock; close's Leave runs after it
		slog.DebugContext(ctx, "join raced with close", "connection_id", conn.ID, "error", err)
		return
	}

	g.reply(ctx, conn, Outbound{
		Kind:    OutboundJoinAck,
		RoomID:  in.RoomID,
		Members: members,
	})
}

func (g *Gateway) leave(ctx context.Context, conn *Connection, in Inbound) {
	roomID := conn.CurrentRoom()

	if err := g.rooms.Leave(ctx, conn.ID); err != nil {
		g.reject(ctx, conn, in.Kind, err)
		return
	}

	if conn.State() == StateJoined {
		if err := conn.transition(StateAuthenticated); err != nil {
			slog.DebugContext(ctx, "leave raced with close", "connection_id", conn.ID, "error", err)
			return
		}
	}

	g.reply(ctx, conn, Outbound{Kind: OutboundLeaveAck, RoomID: roomID})
}

func (g *Gateway) update(ctx context.Context, conn *Connection, in Inbound) {
	if in.RoomID == "" {
		g.reject(ctx, conn, in.Kind, errors.Wrap(ErrBadRequest, "room id is required"))
		return
	}

	seq, err := g.relay.Submit(ctx, in.RoomID, conn.ID, in.Payload)
	if err != nil {
		g.reject(ctx, conn, in.Kind, err)
		return
	}

	g.reply(ctx, conn, Outbound{
		Kind:     OutboundUpdateAck,
		RoomID:   in.RoomID,
		Sequence: seq,
	})
}

func (g *Gateway) close(ctx context.Context, conn *Connection) error {
	if err := conn.transition(StateClosed); err != nil {
		slog.DebugContext(ctx, "connection already closed", "connection_id", conn.ID)
	}

	if err := g.registry.Unregister(ctx, conn.ID); err != nil {
		return errors.Wrap(err, "registry.Unregister")
	}

	return nil
}

func (g *Gateway) reject(ctx context.Context, conn *Connection, ref InboundKind, err error) {
	slog.DebugContext(ctx, "request rejected", "connection_id", conn.ID, "type", ref, "error", err)
	g.reply(ctx, conn, errorMessage(ref, err))
}

// reply sends a direct response to conn. A transport that cannot take it is
// closed; its reader then drives the disconnect.
func (g *Gateway) reply(ctx context.Context, conn *Connection, message Outbound) {
	if err := conn.Messenger.Send(ctx, message); err != nil {
		slog.WarnContext(ctx, "error replying to connection", "connection_id", conn.ID, "type", message.Kind, "error", err)
		_ = conn.Messenger.Close("stale connection")
	}
}
