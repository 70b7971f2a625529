package domain_test

import (
	"context"
	"sync"
	"testing"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/store"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/domain/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	mu       sync.Mutex
	received []domain.Outbound
	sendErr  error
	closed   bool
	reason   string
}

func (m *fakeMessenger) Send(_ context.Context, msg domain.Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.received = append(m.received, msg)
	return nil
}

func (m *fakeMessenger) Close(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.reason = reason
	return nil
}

func (m *fakeMessenger) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = err
}

func (m *fakeMessenger) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}

func (m *fakeMessenger) ofKind(kind domain.OutboundKind) []domain.Outbound {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Outbound
	for _, msg := range m.received {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}

	return out
}

func (m *fakeMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received = nil
}

// discardMessenger accepts everything and keeps nothing.
type discardMessenger struct{ id int }

func (*discardMessenger) Send(context.Context, domain.Outbound) error { return nil }
func (*discardMessenger) Close(string) error                         { return nil }

type harness struct {
	rooms    *domain.RoomManager
	registry *domain.Registry
	relay    *domain.Relay
	gateway  *domain.Gateway
	auth     *mocks.MockAuthenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rooms := domain.NewRoomManager()
	registry := domain.NewRegistry(store.NewMemoryConnectionStore(), rooms, nil)
	relay := domain.NewRelay(rooms, nil, nil)
	auth := mocks.NewMockAuthenticator(t)

	return &harness{
		rooms:    rooms,
		registry: registry,
		relay:    relay,
		gateway:  domain.NewGateway(auth, registry, rooms, relay, nil),
		auth:     auth,
	}
}

func (h *harness) connect(t *testing.T, ctx context.Context, token, userID string) (*domain.Connection, *fakeMessenger) {
	t.Helper()

	m := &fakeMessenger{}
	h.auth.On("Authenticate", mock.Anything, domain.Credentials{Token: token}).Return(userID, nil).Once()

	conn, err := h.gateway.Connect(ctx, domain.Handshake{
		Credentials: domain.Credentials{Token: token},
		Messenger:   m,
	})
	require.NoError(t, err)

	return conn, m
}

func (h *harness) join(t *testing.T, ctx context.Context, conn *domain.Connection, roomID string) {
	t.Helper()

	require.NoError(t, h.gateway.Dispatch(ctx, conn.ID, domain.Inbound{Kind: domain.InboundJoinRoom, RoomID: roomID}))
}

// requireConsistent checks that every live connection's current room lists
// it as a member.
func (h *harness) requireConsistent(t *testing.T, ctx context.Context) {
	t.Helper()

	conns, err := h.registry.Connections(ctx)
	require.NoError(t, err)

	for _, conn := range conns {
		roomID := conn.CurrentRoom()
		if roomID == "" {
			_, ok := h.rooms.RoomOf(conn.ID)
			require.False(t, ok, "connection %s has no room but is a member", conn.ID)
			continue
		}

		require.Contains(t, h.rooms.Members(roomID), conn.ID)
	}
}
