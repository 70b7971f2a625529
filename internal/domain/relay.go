package domain

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
)

// Relay stamps design updates with a per-room sequence number and hands
// them to the RoomManager for fan-out. Submissions to the same room are
// serialized, so on a single node members observe updates in sequence
// order. In cluster mode updates from other nodes arrive through
// DeliverRemote and may interleave out of order; clients order by sequence.
type Relay struct {
	rooms    *RoomManager
	cluster  Cluster
	recorder Recorder
	locks    *keyedMutex
}

func NewRelay(rooms *RoomManager, cluster Cluster, recorder Recorder) *Relay {
	if recorder == nil {
		recorder = NopRecorder{}
	}

	return &Relay{
		rooms:    rooms,
		cluster:  cluster,
		recorder: recorder,
		locks:    newKeyedMutex(),
	}
}

func (r *Relay) Submit(ctx context.Context, roomID, senderID string, payload []byte) (uint64, error) {
	unlock := r.locks.Lock(roomID)
	defer unlock()

	var external uint64
	if r.cluster != nil {
		if !r.rooms.isMember(roomID, senderID) {
			r.recorder.UpdateRejected(CodeNotInRoom)
			return 0, errors.Wrapf(ErrNotInRoom, "room %q", roomID)
		}

		seq, err := r.cluster.NextSequence(ctx, roomID)
		if err != nil {
			r.recorder.UpdateRejected(CodeInternal)
			return 0, errors.Wrap(err, "cluster.NextSequence")
		}
		external = seq
	}

	event, err := r.rooms.relay(ctx, roomID, senderID, payload, external)
	if err != nil {
		r.recorder.UpdateRejected(CodeOf(err))
		return 0, err
	}

	r.recorder.UpdateRelayed()

	if r.cluster != nil {
		if err := r.cluster.Publish(ctx, ClusterEvent{
			NodeID:  r.cluster.NodeID(),
			RoomID:  roomID,
			Message: event.Outbound(),
		}); err != nil {
			slog.ErrorContext(ctx, "cluster.Publish", "room_id", roomID, "sequence", event.Sequence, "error", err)
		}
	}

	slog.DebugContext(ctx, "update relayed", "room_id", roomID, "sender", senderID, "sequence", event.Sequence)
	return event.Sequence, nil
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
