package domain

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Room is the set of connections collaborating on one project.
type Room struct {
	ID           string
	members      map[string]*Connection
	lastSequence uint64
}

type RoomManagerOption func(*RoomManager)

func WithCluster(cluster Cluster) RoomManagerOption {
	return func(m *RoomManager) {
		m.cluster = cluster
	}
}

func WithRecorder(recorder Recorder) RoomManagerOption {
	return func(m *RoomManager) {
		m.recorder = recorder
	}
}

func WithClock(now func() time.Time) RoomManagerOption {
	return func(m *RoomManager) {
		m.now = now
	}
}

// RoomManager owns every room of the process. All membership changes and
// fan-outs run under a single mutex; Messenger.Send never blocks, so the
// critical sections stay short.
type RoomManager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	memberships map[string]string

	cluster  Cluster
	recorder Recorder
	now      func() time.Time
}

func NewRoomManager(opts ...RoomManagerOption) *RoomManager {
	m := &RoomManager{
		rooms:       make(map[string]*Room),
		memberships: make(map[string]string),
		recorder:    NopRecorder{},
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Join moves conn into roomID and returns the room's member count.
func (m *RoomManager) Join(ctx context.Context, conn *Connection, roomID string) (int, error) {
	if roomID == "" {
		return 0, errors.Wrap(ErrBadRequest, "room id is required")
	}

	m.mu.Lock()

	// close flips the state before its Leave takes m.mu, so a closed
	// connection seen here has already been cleaned up or is about to be.
	if state := conn.State(); state == StateClosed {
		m.mu.Unlock()
		return 0, errors.Wrapf(ErrInvalidTransition, "%s -> %s", state, StateJoined)
	}

	if current, ok := m.memberships[conn.ID]; ok && current == roomID {
		count := len(m.rooms[roomID].members)
		m.mu.Unlock()
		return count, nil
	}

	previous, stale := m.leaveLocked(ctx, conn.ID)

	room, ok := m.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, members: make(map[string]*Connection)}
		m.rooms[roomID] = room
		m.recorder.RoomCreated()
		slog.DebugContext(ctx, "room created", "room_id", roomID)
	}

	joined := Outbound{
		Kind:         OutboundMemberJoined,
		RoomID:       roomID,
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
	}
	stale = append(stale, m.fanoutLocked(ctx, room, conn.ID, joined)...)

	room.members[conn.ID] = conn
	m.memberships[conn.ID] = roomID
	conn.currentRoom.Store(roomID)
	count := len(room.members)

	m.mu.Unlock()

	slog.DebugContext(ctx, "connection joined room", "connection_id", conn.ID, "room_id", roomID, "members", count)

	m.reap(ctx, stale)

	if previous != "" {
		m.clusterLeave(ctx, previous, conn.ID)
	}
	m.clusterJoin(ctx, roomID, joined)

	return count, nil
}

// Leave removes the connection from its current room. It is a no-op when
// the connection is not in a room.
func (m *RoomManager) Leave(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	roomID, stale := m.leaveLocked(ctx, connectionID)
	m.mu.Unlock()

	if roomID == "" {
		return nil
	}

	slog.DebugContext(ctx, "connection left room", "connection_id", connectionID, "room_id", roomID)

	m.reap(ctx, stale)
	m.clusterLeave(ctx, roomID, connectionID)

	return nil
}

// Broadcast delivers message to every member of roomID except the sender.
// Members that cannot accept the message are reaped.
func (m *RoomManager) Broadcast(ctx context.Context, roomID, senderID string, message Outbound) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	stale := m.fanoutLocked(ctx, room, senderID, message)
	m.mu.Unlock()

	m.reap(ctx, stale)
}

// DeliverRemote fans out a message published by another relay node to the
// local members of roomID.
func (m *RoomManager) DeliverRemote(ctx context.Context, roomID string, message Outbound) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if message.Kind == OutboundDesignUpdate && message.Sequence > room.lastSequence {
		room.lastSequence = message.Sequence
	}
	stale := m.fanoutLocked(ctx, room, message.SenderConnectionID, message)
	m.mu.Unlock()

	m.reap(ctx, stale)
}

func (m *RoomManager) Members(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}

	return lo.Keys(room.members)
}

func (m *RoomManager) RoomOf(connectionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.memberships[connectionID]
	return roomID, ok
}

func (m *RoomManager) LastSequence(roomID string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return 0, false
	}

	return room.lastSequence, true
}

func (m *RoomManager) Stats() (rooms, members int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms), len(m.memberships)
}

// relay checks the sender's membership, stamps the next sequence and fans
// the update out, all against the same room under m.mu. A non-zero external
// sequence (cluster mode) replaces the local increment.
func (m *RoomManager) relay(ctx context.Context, roomID, senderID string, payload []byte, external uint64) (UpdateEvent, error) {
	m.mu.Lock()

	if !m.isMemberLocked(roomID, senderID) {
		m.mu.Unlock()
		return UpdateEvent{}, errors.Wrapf(ErrNotInRoom, "room %q", roomID)
	}

	room := m.rooms[roomID]
	if external > 0 {
		room.lastSequence = external
	} else {
		room.lastSequence++
	}

	event := UpdateEvent{
		RoomID:             roomID,
		SenderConnectionID: senderID,
		Sequence:           room.lastSequence,
		Payload:            payload,
		Timestamp:          m.now(),
	}
	stale := m.fanoutLocked(ctx, room, senderID, event.Outbound())

	m.mu.Unlock()

	m.reap(ctx, stale)

	return event, nil
}

func (m *RoomManager) isMember(roomID, connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.isMemberLocked(roomID, connectionID)
}

func (m *RoomManager) isMemberLocked(roomID, connectionID string) bool {
	current, ok := m.memberships[connectionID]
	return ok && current == roomID
}

func (m *RoomManager) leaveLocked(ctx context.Context, connectionID string) (string, []*Connection) {
	roomID, ok := m.memberships[connectionID]
	if !ok {
		return "", nil
	}

	room := m.rooms[roomID]
	if conn, ok := room.members[connectionID]; ok {
		conn.currentRoom.Store("")
	}
	delete(room.members, connectionID)
	delete(m.memberships, connectionID)

	if len(room.members) == 0 {
		delete(m.rooms, roomID)
		m.recorder.RoomDeleted()
		slog.DebugContext(ctx, "room deleted", "room_id", roomID)
		return roomID, nil
	}

	left := Outbound{
		Kind:         OutboundMemberLeft,
		RoomID:       roomID,
		ConnectionID: connectionID,
	}

	return roomID, m.fanoutLocked(ctx, room, connectionID, left)
}

func (m *RoomManager) fanoutLocked(ctx context.Context, room *Room, excludeID string, message Outbound) []*Connection {
	var stale []*Connection

	for id, conn := range room.members {
		if id == excludeID {
			continue
		}

		if err := conn.Messenger.Send(ctx, message); err != nil {
			slog.DebugContext(ctx, "send to member failed", "room_id", room.ID, "connection_id", id, "error", err)
			stale = append(stale, conn)
		}
	}

	return stale
}

// reap removes members whose transport failed during a fan-out and closes
// their transport.
func (m *RoomManager) reap(ctx context.Context, stale []*Connection) {
	for _, conn := range lo.UniqBy(stale, func(c *Connection) string { return c.ID }) {
		if _, ok := m.RoomOf(conn.ID); !ok {
			continue
		}

		slog.WarnContext(ctx, "reaping stale member", "connection_id", conn.ID, "error", ErrStaleMember)
		m.recorder.MemberReaped()

		if err := m.Leave(ctx, conn.ID); err != nil {
			slog.ErrorContext(ctx, "error reaping stale member", "connection_id", conn.ID, "error", err)
		}

		if err := conn.Messenger.Close("stale member"); err != nil {
			slog.DebugContext(ctx, "error closing stale member", "connection_id", conn.ID, "error", err)
		}
	}
}

func (m *RoomManager) clusterJoin(ctx context.Context, roomID string, joined Outbound) {
	if m.cluster == nil {
		return
	}

	if err := m.cluster.AddMember(ctx, roomID, joined.ConnectionID); err != nil {
		slog.ErrorContext(ctx, "cluster.AddMember", "room_id", roomID, "error", err)
	}

	m.publish(ctx, roomID, joined)
}

func (m *RoomManager) clusterLeave(ctx context.Context, roomID, connectionID string) {
	if m.cluster == nil {
		return
	}

	if err := m.cluster.RemoveMember(ctx, roomID, connectionID); err != nil {
		slog.ErrorContext(ctx, "cluster.RemoveMember", "room_id", roomID, "error", err)
	}

	m.publish(ctx, roomID, Outbound{
		Kind:         OutboundMemberLeft,
		RoomID:       roomID,
		ConnectionID: connectionID,
	})
}

func (m *RoomManager) publish(ctx context.Context, roomID string, message Outbound) {
	if m.cluster == nil {
		return
	}

	if err := m.cluster.Publish(ctx, ClusterEvent{
		NodeID:  m.cluster.NodeID(),
		RoomID:  roomID,
		Message: message,
	}); err != nil {
		slog.ErrorContext(ctx, "cluster.Publish", "room_id", roomID, "error", err)
	}
}
