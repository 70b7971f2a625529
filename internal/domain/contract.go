package domain

import "context"

// Messenger delivers outbound messages to one client transport. Send must
// not block: a transport that cannot accept the message reports
// ErrStaleMember.
type Messenger interface {
	Send(ctx context.Context, message Outbound) error
	Close(reason string) error
}

type Authenticator interface {
	// Authenticate returns the verified user id for the handshake
	// credentials, or an error wrapping ErrAuthFailed.
	Authenticate(ctx context.Context, credentials Credentials) (string, error)
}

type ConnectionStore interface {
	Add(ctx context.Context, conn *Connection) error
	Remove(ctx context.Context, connectionID string) (*Connection, error)
	Get(ctx context.Context, connectionID string) (*Connection, error)
	FindByMessenger(ctx context.Context, messenger Messenger) (*Connection, error)
	List(ctx context.Context) ([]*Connection, error)
}

// Cluster shares room state between relay nodes.
type Cluster interface {
	NodeID() string
	NextSequence(ctx context.Context, roomID string) (uint64, error)
	AddMember(ctx context.Context, roomID, connectionID string) error
	// RemoveMember drops the membership and resets the room sequence once
	// no node has members left in the room.
	RemoveMember(ctx context.Context, roomID, connectionID string) error
	Publish(ctx context.Context, event ClusterEvent) error
}

type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	RoomCreated()
	RoomDeleted()
	UpdateRelayed()
	UpdateRejected(code Code)
	MemberReaped()
	AuthFailed()
}

type NopRecorder struct{}

func (NopRecorder) ConnectionOpened()   {}
func (NopRecorder) ConnectionClosed()   {}
func (NopRecorder) RoomCreated()        {}
func (NopRecorder) RoomDeleted()        {}
func (NopRecorder) UpdateRelayed()      {}
func (NopRecorder) UpdateRejected(Code) {}
func (NopRecorder) MemberReaped()       {}
func (NopRecorder) AuthFailed()         {}
