package broadcaster

import (
	"context"
	"fmt"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cockroachdb/errors"
)

type RedisClient interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Incr(ctx context.Context, key string) (uint64, error)
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, setKey, counterKey, member string) (int64, error)
}

var _ RedisClient = (*redis.Client)(nil)

// Broadcaster shares room sequences, memberships and messages between
// relay nodes through Redis.
type Broadcaster struct {
	redisClient RedisClient
	nodeID      string
	channel     string
}

func NewBroadcaster(redisClient RedisClient, nodeID, channel string) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		nodeID:      nodeID,
		channel:     channel,
	}
}

var _ domain.Cluster = (*Broadcaster)(nil)

func (b *Broadcaster) NodeID() string {
	return b.nodeID
}

func (b *Broadcaster) NextSequence(ctx context.Context, roomID string) (uint64, error) {
	seq, err := b.redisClient.Incr(ctx, sequenceKey(roomID))
	if err != nil {
		return 0, errors.Wrap(err, "redisClient.Incr")
	}

	return seq, nil
}

func (b *Broadcaster) AddMember(ctx context.Context, roomID, connectionID string) error {
	if err := b.redisClient.AddToSet(ctx, membersKey(roomID), b.member(connectionID)); err != nil {
		return errors.Wrap(err, "redisClient.AddToSet")
	}

	return nil
}

func (b *Broadcaster) RemoveMember(ctx context.Context, roomID, connectionID string) error {
	if _, err := b.redisClient.RemoveFromSet(ctx, membersKey(roomID), sequenceKey(roomID), b.member(connectionID)); err != nil {
		return errors.Wrap(err, "redisClient.RemoveFromSet")
	}

	return nil
}

func (b *Broadcaster) Publish(ctx context.Context, event domain.ClusterEvent) error {
	payload, err := protocol.EncodeClusterEvent(event)
	if err != nil {
		return errors.Wrap(err, "protocol.EncodeClusterEvent")
	}

	if err := b.redisClient.Publish(ctx, b.channel, payload); err != nil {
		return errors.Wrap(err, "redisClient.Publish")
	}

	return nil
}

func (b *Broadcaster) member(connectionID string) string {
	return fmt.Sprintf("%s/%s", b.nodeID, connectionID)
}

func sequenceKey(roomID string) string {
	return fmt.Sprintf("relay:room:%s:seq", roomID)
}

func membersKey(roomID string) string {
	return fmt.Sprintf("relay:room:%s:members", roomID)
}
