package store

import (
	"context"
	"sync"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type MemoryConnectionStore struct {
	connections map[string]*domain.Connection
	transports  map[domain.Messenger]string
	sync.RWMutex
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		connections: make(map[string]*domain.Connection),
		transports:  make(map[domain.Messenger]string),
	}
}

func (s *MemoryConnectionStore) Add(ctx context.Context, conn *domain.Connection) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.connections[conn.ID]; ok {
		return errors.Wrapf(domain.ErrDuplicateConnection, "connection %q", conn.ID)
	}

	if id, ok := s.transports[conn.Messenger]; ok {
		return errors.Wrapf(domain.ErrDuplicateConnection, "transport bound to %q", id)
	}

	s.connections[conn.ID] = conn
	s.transports[conn.Messenger] = conn.ID
	return nil
}

func (s *MemoryConnectionStore) Remove(ctx context.Context, connectionID string) (*domain.Connection, error) {
	s.Lock()
	defer s.Unlock()

	conn, ok := s.connections[connectionID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrConnectionNotFound, "connection %q", connectionID)
	}

	delete(s.connections, connectionID)
	if s.transports[conn.Messenger] == connectionID {
		delete(s.transports, conn.Messenger)
	}

	return conn, nil
}

func (s *MemoryConnectionStore) Get(ctx context.Context, connectionID string) (*domain.Connection, error) {
	s.RLock()
	defer s.RUnlock()

	conn, ok := s.connections[connectionID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrConnectionNotFound, "connection %q", connectionID)
	}

	return conn, nil
}

func (s *MemoryConnectionStore) FindByMessenger(ctx context.Context, messenger domain.Messenger) (*domain.Connection, error) {
	s.RLock()
	defer s.RUnlock()

	id, ok := s.transports[messenger]
	if !ok {
		return nil, domain.ErrConnectionNotFound
	}

	return s.connections[id], nil
}

func (s *MemoryConnectionStore) List(ctx context.Context) ([]*domain.Connection, error) {
	s.RLock()
	defer s.RUnlock()

	return lo.Values(s.connections), nil
}
