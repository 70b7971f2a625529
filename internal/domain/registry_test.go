package domain_test

import (
	"context"
	"testing"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/store"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("it should assign an id when none is set", func(t *testing.T) {
		registry := domain.NewRegistry(store.NewMemoryConnectionStore(), domain.NewRoomManager(), nil)
		conn := domain.NewConnection("", &fakeMessenger{})

		id, err := registry.Register(ctx, conn)
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.Equal(t, id, conn.ID)

		found, ok := registry.Lookup(ctx, id)
		require.True(t, ok)
		require.Same(t, conn, found)
	})

	t.Run("it should fail on a duplicate transport", func(t *testing.T) {
		registry := domain.NewRegistry(store.NewMemoryConnectionStore(), domain.NewRoomManager(), nil)
		m := &fakeMessenger{}

		_, err := registry.Register(ctx, domain.NewConnection("c1", m))
		require.NoError(t, err)

		_, err = registry.Register(ctx, domain.NewConnection("c2", m))
		require.ErrorIs(t, err, domain.ErrDuplicateConnection)

		found, ok := registry.LookupByMessenger(ctx, m)
		require.True(t, ok)
		require.Equal(t, "c1", found.ID)
	})

	t.Run("it should leave the room on unregister", func(t *testing.T) {
		rooms := domain.NewRoomManager()
		registry := domain.NewRegistry(store.NewMemoryConnectionStore(), rooms, nil)

		c1, _ := newMember("c1")
		c2, m2 := newMember("c2")
		for _, c := range []*domain.Connection{c1, c2} {
			_, err := registry.Register(ctx, c)
			require.NoError(t, err)
			_, err = rooms.Join(ctx, c, "P1")
			require.NoError(t, err)
		}

		require.NoError(t, registry.Unregister(ctx, "c1"))

		_, ok := registry.Lookup(ctx, "c1")
		require.False(t, ok)
		require.Equal(t, []string{"c2"}, rooms.Members("P1"))
		require.Len(t, m2.ofKind(domain.OutboundMemberLeft), 1)
	})

	t.Run("it should ignore an unknown connection on unregister", func(t *testing.T) {
		registry := domain.NewRegistry(store.NewMemoryConnectionStore(), domain.NewRoomManager(), nil)

		require.NoError(t, registry.Unregister(ctx, "missing"))
		require.NoError(t, registry.Unregister(ctx, "missing"))
	})

	t.Run("it should list live connections", func(t *testing.T) {
		registry := domain.NewRegistry(store.NewMemoryConnectionStore(), domain.NewRoomManager(), nil)

		for _, id := range []string{"a", "b", "c"} {
			c, _ := newMember(id)
			_, err := registry.Register(ctx, c)
			require.NoError(t, err)
		}

		conns, err := registry.Connections(ctx)
		require.NoError(t, err)
		require.Len(t, conns, 3)
		require.Equal(t, 3, registry.Count(ctx))
	})
}
