package grpc

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/arthurdotwork/relay/internal/adapters/secondary/messenger"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type SessionHandler struct {
	gateway      Gateway
	queueSize    int
	writeTimeout time.Duration
}

func NewSessionHandler(gateway Gateway, queueSize int, writeTimeout time.Duration) *SessionHandler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	return &SessionHandler{
		gateway:      gateway,
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
	}
}

var _ SessionServer = (*SessionHandler)(nil)

func (h *SessionHandler) Session(stream grpc.ServerStream) error {
	ctx := stream.Context()

	m := messenger.NewMessenger(h.queueSize)

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.write(ctx, stream, m)
	}()

	conn, err := h.gateway.Connect(ctx, domain.Handshake{
		Credentials: credentials(ctx),
		Messenger:   m,
	})
	if err != nil {
		h.await(written)
		return status.Error(codes.Unauthenticated, err.Error())
	}

	slog.DebugContext(ctx, "grpc client connected", "connection_id", conn.ID, "user_id", conn.UserID)

	sink := make(chan error, 1)
	go func() {
		sink <- h.read(ctx, stream, m, conn.ID)
	}()

	var readErr error
	select {
	case readErr = <-sink:
	case <-written:
	case <-ctx.Done():
	}

	if err := h.gateway.Disconnect(context.WithoutCancel(ctx), conn.ID); err != nil {
		slog.ErrorContext(ctx, "error disconnecting", "connection_id", conn.ID, "error", err)
	}

	_ = m.Close("connection closed")
	h.await(written)

	slog.DebugContext(ctx, "grpc client disconnected", "connection_id", conn.ID)

	if readErr != nil {
		return status.Error(codes.Internal, readErr.Error())
	}

	return nil
}

func (h *SessionHandler) read(ctx context.Context, stream grpc.ServerStream, m *messenger.Messenger, connectionID string) error {
	for {
		frame := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(frame); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}

			return errors.Wrap(err, "stream.RecvMsg")
		}

		in, err := protocol.Decode(frame.GetValue())
		if err != nil {
			if serr := m.Send(ctx, domain.Outbound{
				Kind:    domain.OutboundError,
				Code:    domain.CodeOf(err),
				Message: err.Error(),
			}); serr != nil {
				_ = m.Close("stale connection")
			}
			continue
		}

		if err := h.gateway.Dispatch(ctx, connectionID, in); err != nil {
			if errors.Is(err, domain.ErrConnectionNotFound) {
				return nil
			}
			slog.ErrorContext(ctx, "error dispatching", "connection_id", connectionID, "error", err)
		}
	}
}

func (h *SessionHandler) write(ctx context.Context, stream grpc.ServerStream, m *messenger.Messenger) {
	for {
		select {
		case data := <-m.Outbox():
			if err := stream.SendMsg(wrapperspb.Bytes(data)); err != nil {
				slog.DebugContext(ctx, "grpc send failed", "error", err)
				_ = m.Close("write failed")
				return
			}
		case <-m.Done():
			for _, data := range m.Drain() {
				if err := stream.SendMsg(wrapperspb.Bytes(data)); err != nil {
					return
				}
			}
			return
		case <-ctx.Done():
			_ = m.Close("stream closed")
			return
		}
	}
}

// await waits for the writer to flush, bounded by the write timeout.
func (h *SessionHandler) await(written <-chan struct{}) {
	select {
	case <-written:
	case <-time.After(h.writeTimeout):
	}
}

func credentials(ctx context.Context) domain.Credentials {
	var c domain.Credentials

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			c.Token = strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		}
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.RemoteAddr = p.Addr.String()
	}

	return c
}
