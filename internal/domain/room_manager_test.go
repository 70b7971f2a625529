package domain_test

import (
	"context"
	"testing"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMember(id string) (*domain.Connection, *fakeMessenger) {
	m := &fakeMessenger{}
	return domain.NewConnection(id, m), m
}

func TestRoomManager_Join(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("it should create the room lazily and count members", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		c1, _ := newMember("c1")
		c2, _ := newMember("c2")

		n, err := rooms.Join(ctx, c1, "P1")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = rooms.Join(ctx, c2, "P1")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		require.ElementsMatch(t, []string{"c1", "c2"}, rooms.Members("P1"))
		require.Equal(t, "P1", c1.CurrentRoom())
	})

	t.Run("it should leave the previous room before joining the next one", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		c1, _ := newMember("c1")
		c2, m2 := newMember("c2")

		_, err := rooms.Join(ctx, c1, "A")
		require.NoError(t, err)
		_, err = rooms.Join(ctx, c2, "A")
		require.NoError(t, err)

		_, err = rooms.Join(ctx, c1, "B")
		require.NoError(t, err)

		require.Equal(t, []string{"c2"}, rooms.Members("A"))
		require.Equal(t, []string{"c1"}, rooms.Members("B"))
		require.Equal(t, "B", c1.CurrentRoom())

		roomID, ok := rooms.RoomOf("c1")
		require.True(t, ok)
		require.Equal(t, "B", roomID)

		left := m2.ofKind(domain.OutboundMemberLeft)
		require.Len(t, left, 1)
		require.Equal(t, "c1", left[0].ConnectionID)
	})

	t.Run("it should treat a join of the current room as a no-op", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		c1, _ := newMember("c1")
		c2, m2 := newMember("c2")

		_, err := rooms.Join(ctx, c2, "P1")
		require.NoError(t, err)
		_, err = rooms.Join(ctx, c1, "P1")
		require.NoError(t, err)

		n, err := rooms.Join(ctx, c1, "P1")
		require.NoError(t, err)
		require.Equal(t, 2, n)
		require.Len(t, m2.ofKind(domain.OutboundMemberJoined), 1)
		require.Empty(t, m2.ofKind(domain.OutboundMemberLeft))
	})

	t.Run("it should reject an empty room id", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		c1, _ := newMember("c1")

		_, err := rooms.Join(ctx, c1, "")
		require.ErrorIs(t, err, domain.ErrBadRequest)
	})

	t.Run("it should share membership changes with the cluster", func(t *testing.T) {
		cluster := mocks.NewMockCluster(t)
		rooms := domain.NewRoomManager(domain.WithCluster(cluster))
		c1, _ := newMember("c1")

		cluster.On("NodeID").Return("node-a")
		cluster.On("AddMember", mock.Anything, "A", "c1").Return(nil).Once()
		cluster.On("RemoveMember", mock.Anything, "A", "c1").Return(nil).Once()
		cluster.On("AddMember", mock.Anything, "B", "c1").Return(nil).Once()
		cluster.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.ClusterEvent) bool {
			return e.NodeID == "node-a" && e.Message.ConnectionID == "c1"
		})).Return(nil).Times(3)

		_, err := rooms.Join(ctx, c1, "A")
		require.NoError(t, err)
		_, err = rooms.Join(ctx, c1, "B")
		require.NoError(t, err)
	})
}

func TestRoomManager_Leave(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("it should be a no-op outside a room", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		require.NoError(t, rooms.Leave(ctx, "c1"))
	})

	t.Run("it should delete an empty room", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		c1, _ := newMember("c1")

		_, err := rooms.Join(ctx, c1, "P1")
		require.NoError(t, err)
		require.NoError(t, rooms.Leave(ctx, "c1"))

		n, _ := rooms.Stats()
		require.Zero(t, n)
		require.Empty(t, c1.CurrentRoom())
	})
}

func TestRoomManager_Broadcast(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		name         string
		setup        func(*domain.RoomManager) map[string]*fakeMessenger
		wantReceived map[string]int
	}{
		{
			name: "broadcast to room members",
			setup: func(r *domain.RoomManager) map[string]*fakeMessenger {
				out := map[string]*fakeMessenger{}
				for _, id := range []string{"sender", "recv1", "recv2"} {
					c, m := newMember(id)
					_, _ = r.Join(ctx, c, "room1")
					m.reset()
					out[id] = m
				}
				return out
			},
			wantReceived: map[string]int{"sender": 0, "recv1": 1, "recv2": 1},
		},
		{
			name: "no cross-room broadcast",
			setup: func(r *domain.RoomManager) map[string]*fakeMessenger {
				sender, ms := newMember("sender")
				recv, mr := newMember("recv1")
				_, _ = r.Join(ctx, sender, "room1")
				_, _ = r.Join(ctx, recv, "room2")
				return map[string]*fakeMessenger{"sender": ms, "recv1": mr}
			},
			wantReceived: map[string]int{"sender": 0, "recv1": 0},
		},
		{
			name: "single member in room",
			setup: func(r *domain.RoomManager) map[string]*fakeMessenger {
				sender, ms := newMember("sender")
				_, _ = r.Join(ctx, sender, "room1")
				return map[string]*fakeMessenger{"sender": ms}
			},
			wantReceived: map[string]int{"sender": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms := domain.NewRoomManager()
			messengers := tt.setup(rooms)

			rooms.Broadcast(ctx, "room1", "sender", domain.Outbound{Kind: domain.OutboundDesignUpdate, RoomID: "room1"})

			for id, m := range messengers {
				assert.Len(t, m.ofKind(domain.OutboundDesignUpdate), tt.wantReceived[id], "member %s", id)
			}
		})
	}

	t.Run("it should reap a stale member and keep delivering to the others", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		sender, _ := newMember("sender")
		stale, ms := newMember("stale")
		healthy, mh := newMember("healthy")

		for _, c := range []*domain.Connection{sender, stale, healthy} {
			_, err := rooms.Join(ctx, c, "P1")
			require.NoError(t, err)
		}

		ms.fail(domain.ErrStaleMember)

		rooms.Broadcast(ctx, "P1", "sender", domain.Outbound{Kind: domain.OutboundDesignUpdate, RoomID: "P1"})

		require.Len(t, mh.ofKind(domain.OutboundDesignUpdate), 1)
		require.ElementsMatch(t, []string{"sender", "healthy"}, rooms.Members("P1"))
		require.True(t, ms.isClosed())
		require.Empty(t, stale.CurrentRoom())

		left := mh.ofKind(domain.OutboundMemberLeft)
		require.Len(t, left, 1)
		require.Equal(t, "stale", left[0].ConnectionID)
	})
}

func TestRoomManager_DeliverRemote(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rooms := domain.NewRoomManager()
	c1, m1 := newMember("c1")
	_, err := rooms.Join(ctx, c1, "P1")
	require.NoError(t, err)

	rooms.DeliverRemote(ctx, "P1", domain.Outbound{
		Kind:               domain.OutboundDesignUpdate,
		RoomID:             "P1",
		SenderConnectionID: "remote",
		Sequence:           7,
	})
	rooms.DeliverRemote(ctx, "P9", domain.Outbound{Kind: domain.OutboundDesignUpdate, RoomID: "P9", Sequence: 1})

	updates := m1.ofKind(domain.OutboundDesignUpdate)
	require.Len(t, updates, 1)
	require.Equal(t, uint64(7), updates[0].Sequence)

	seq, ok := rooms.LastSequence("P1")
	require.True(t, ok)
	require.Equal(t, uint64(7), seq)
}
