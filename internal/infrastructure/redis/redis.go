package redis

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
)

type Client struct {
	*redis.Client
}

func NewClient(addr string) *Client {
	return &Client{Client: redis.NewClient(&redis.Options{Addr: addr})}
}

type Message = redis.Message

var ErrFailedToReceiveMessage = errors.New("failed to receive message")

// removeMember drops ARGV[1] from the KEYS[1] set and, once the set is
// empty, deletes the KEYS[2] counter. It returns the remaining set size.
var removeMember = redis.NewScript(`
redis.call("SREM", KEYS[1], ARGV[1])
local remaining = redis.call("SCARD", KEYS[1])
if remaining == 0 then
	redis.call("DEL", KEYS[2])
end
return remaining
`)

// Subscribe opens a subscription and returns a function that feeds every
// received message to handler until ctx ends or the connection fails.
func (c *Client) Subscribe(ctx context.Context, channel string) func(handler func(Message) error) error {
	pubsub := c.Client.Subscribe(ctx, channel)

	return func(handler func(Message) error) error {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				msg, err := pubsub.Receive(ctx)
				if err != nil {
					return errors.Mark(errors.Wrap(err, "pubsub.Receive"), ErrFailedToReceiveMessage)
				}

				switch m := msg.(type) {
				case *Message:
					if err := handler(*m); err != nil {
						return errors.Wrap(err, "handler")
					}
				}
			}
		}
	}
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.Client.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Wrap(err, "client.Publish")
	}

	return nil
}

func (c *Client) Incr(ctx context.Context, key string) (uint64, error) {
	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "client.Incr")
	}

	return uint64(n), nil
}

func (c *Client) AddToSet(ctx context.Context, key, member string) error {
	if err := c.Client.SAdd(ctx, key, member).Err(); err != nil {
		return errors.Wrap(err, "client.SAdd")
	}

	return nil
}

// RemoveFromSet removes member from setKey and deletes counterKey when the
// set becomes empty.
func (c *Client) RemoveFromSet(ctx context.Context, setKey, counterKey, member string) (int64, error) {
	remaining, err := removeMember.Run(ctx, c.Client, []string{setKey, counterKey}, member).Int64()
	if err != nil {
		return 0, errors.Wrap(err, "removeMember.Run")
	}

	return remaining, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "client.Ping")
	}

	return nil
}
