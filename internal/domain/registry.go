package domain

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type RoomLeaver interface {
	Leave(ctx context.Context, connectionID string) error
}

// Registry tracks live connections. Unregistering a connection always
// removes it from its room before returning.
type Registry struct {
	store    ConnectionStore
	rooms    RoomLeaver
	recorder Recorder
}

func NewRegistry(store ConnectionStore, rooms RoomLeaver, recorder Recorder) *Registry {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Registry{
		store:    store,
		rooms:    rooms,
		recorder: recorder,
	}
}

func (r *Registry) Register(ctx context.Context, conn *Connection) (string, error) {
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}

	if err := r.store.Add(ctx, conn); err != nil {
		return "", errors.Wrap(err, "store.Add")
	}

	r.recorder.ConnectionOpened()
	slog.DebugContext(ctx, "connection registered", "connection_id", conn.ID, "user_id", conn.UserID)

	return conn.ID, nil
}

func (r *Registry) Unregister(ctx context.Context, connectionID string) error {
	if _, err := r.store.Remove(ctx, connectionID); err != nil {
		if errors.Is(err, ErrConnectionNotFound) {
			return nil
		}

		return errors.Wrap(err, "store.Remove")
	}

	r.recorder.ConnectionClosed()

	if err := r.rooms.Leave(ctx, connectionID); err != nil {
		return errors.Wrap(err, "rooms.Leave")
	}

	slog.DebugContext(ctx, "connection unregistered", "connection_id", connectionID)
	return nil
}

func (r *Registry) Lookup(ctx context.Context, connectionID string) (*Connection, bool) {
	conn, err := r.store.Get(ctx, connectionID)
	if err != nil {
		return nil, false
	}

	return conn, true
}

func (r *Registry) LookupByMessenger(ctx context.Context, messenger Messenger) (*Connection, bool) {
	conn, err := r.store.FindByMessenger(ctx, messenger)
	if err != nil {
		return nil, false
	}

	return conn, true
}

func (r *Registry) Connections(ctx context.Context) ([]*Connection, error) {
	conns, err := r.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "store.List")
	}

	return conns, nil
}

func (r *Registry) Count(ctx context.Context) int {
	conns, err := r.store.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error listing connections", "error", err)
		return 0
	}

	return len(conns)
}
