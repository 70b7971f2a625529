package messenger

import (
	"context"
	"sync"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

const DefaultQueueSize = 256

// Messenger encodes outbound messages into a bounded queue drained by the
// transport's writer. Send never blocks: a full queue means the peer is not
// keeping up and the member is reported stale.
type Messenger struct {
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
	reason atomic.String
}

func NewMessenger(queueSize int) *Messenger {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Messenger{
		outbox: make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

var _ domain.Messenger = (*Messenger)(nil)

func (m *Messenger) Send(_ context.Context, msg domain.Outbound) error {
	select {
	case <-m.done:
		return errors.Wrap(domain.ErrStaleMember, "messenger closed")
	default:
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return errors.Wrap(err, "protocol.Encode")
	}

	select {
	case m.outbox <- data:
		return nil
	default:
		return errors.Wrap(domain.ErrStaleMember, "send queue full")
	}
}

// Close marks the messenger closed. The first reason wins; later calls are
// no-ops.
func (m *Messenger) Close(reason string) error {
	m.once.Do(func() {
		m.reason.Store(reason)
		close(m.done)
	})

	return nil
}

func (m *Messenger) Outbox() <-chan []byte {
	return m.outbox
}

func (m *Messenger) Done() <-chan struct{} {
	return m.done
}

func (m *Messenger) Reason() string {
	return m.reason.Load()
}

// Drain returns the frames still queued, without blocking.
func (m *Messenger) Drain() [][]byte {
	var frames [][]byte
	for {
		select {
		case data := <-m.outbox:
			frames = append(frames, data)
		default:
			return frames
		}
	}
}
