package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
)

type LocalDeliverer interface {
	DeliverRemote(ctx context.Context, roomID string, message domain.Outbound)
}

type Subscription interface {
	Subscribe(ctx context.Context, channel string) func(handler func(redis.Message) error) error
}

// Subscriber fans out messages published by other relay nodes to the local
// members of their room.
type Subscriber struct {
	redisClient Subscription
	deliverer   LocalDeliverer
	nodeID      string
}

func NewSubscriber(redisClient Subscription, deliverer LocalDeliverer, nodeID string) *Subscriber {
	return &Subscriber{
		redisClient: redisClient,
		deliverer:   deliverer,
		nodeID:      nodeID,
	}
}

// Subscribe consumes channel until ctx is done, resubscribing with an
// exponential backoff when the connection drops.
func (s *Subscriber) Subscribe(ctx context.Context, channel string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		subscriber := s.redisClient.Subscribe(ctx, channel)

		err := subscriber(func(msg redis.Message) error {
			b.Reset()
			s.Handle(ctx, []byte(msg.Payload))
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		slog.WarnContext(ctx, "redis subscription lost, retrying", "channel", channel, "retry_in", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Handle delivers one bus payload. Events published by this node and
// payloads that fail to decode are dropped.
func (s *Subscriber) Handle(ctx context.Context, payload []byte) {
	event, err := protocol.DecodeClusterEvent(payload)
	if err != nil {
		slog.ErrorContext(ctx, "dropping undecodable cluster event", "error", errors.Wrap(err, "protocol.DecodeClusterEvent"))
		return
	}

	if event.NodeID == s.nodeID {
		return
	}

	s.deliverer.DeliverRemote(ctx, event.RoomID, event.Message)
}
