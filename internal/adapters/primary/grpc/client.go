package grpc

import (
	"context"

	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/protocol"
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionClient is a client session on relay.v1.SessionService.
type SessionClient struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
}

func Dial(ctx context.Context, target, token string, opts ...grpc.DialOption) (*SessionClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "grpc.NewClient")
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], SessionMethod)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "conn.NewStream")
	}

	return &SessionClient{conn: conn, stream: stream}, nil
}

func (c *SessionClient) Send(in domain.Inbound) error {
	data, err := protocol.EncodeInbound(in)
	if err != nil {
		return errors.Wrap(err, "protocol.EncodeInbound")
	}

	if err := c.stream.SendMsg(wrapperspb.Bytes(data)); err != nil {
		return errors.Wrap(err, "stream.SendMsg")
	}

	return nil
}

func (c *SessionClient) Recv() (domain.Outbound, error) {
	frame := new(wrapperspb.BytesValue)
	if err := c.stream.RecvMsg(frame); err != nil {
		return domain.Outbound{}, errors.Wrap(err, "stream.RecvMsg")
	}

	msg, err := protocol.DecodeOutbound(frame.GetValue())
	if err != nil {
		return domain.Outbound{}, errors.Wrap(err, "protocol.DecodeOutbound")
	}

	return msg, nil
}

func (c *SessionClient) Close() error {
	if err := c.stream.CloseSend(); err != nil {
		return errors.Wrap(err, "stream.CloseSend")
	}

	if err := c.conn.Close(); err != nil {
		return errors.Wrap(err, "conn.Close")
	}

	return nil
}
