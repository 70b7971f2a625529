package grpc

import (
	"context"

	"github.com/arthurdotwork/relay/internal/domain"
	"google.golang.org/grpc"
)

const (
	ServiceName   = "relay.v1.SessionService"
	SessionMethod = "/relay.v1.SessionService/Session"
)

// SessionServer is the server side of relay.v1.SessionService. Frames in
// both directions are google.protobuf.BytesValue messages holding the JSON
// envelopes also used on the WebSocket transport.
type SessionServer interface {
	Session(stream grpc.ServerStream) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       sessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "relay/v1/session.proto",
}

func sessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SessionServer).Session(stream)
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type Gateway interface {
	Connect(ctx context.Context, handshake domain.Handshake) (*domain.Connection, error)
	Dispatch(ctx context.Context, connectionID string, in domain.Inbound) error
	Disconnect(ctx context.Context, connectionID string) error
}
