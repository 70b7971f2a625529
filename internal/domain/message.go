package domain

import "time"

type InboundKind string

const (
	InboundJoinRoom     InboundKind = "join-room"
	InboundLeaveRoom    InboundKind = "leave-room"
	InboundDesignUpdate InboundKind = "design-update"
	InboundPing         InboundKind = "ping"
)

// Inbound is a decoded client request.
type Inbound struct {
	Kind      InboundKind
	RoomID    string
	Payload   []byte
	Timestamp int64
}

type OutboundKind string

const (
	OutboundWelcome       OutboundKind = "welcome"
	OutboundJoinAck       OutboundKind = "join-ack"
	OutboundLeaveAck      OutboundKind = "leave-ack"
	OutboundUpdateAck     OutboundKind = "update-ack"
	OutboundMemberJoined  OutboundKind = "member-joined"
	OutboundMemberLeft    OutboundKind = "member-left"
	OutboundDesignUpdate  OutboundKind = "design-update"
	OutboundPong          OutboundKind = "pong"
	OutboundError         OutboundKind = "error"
	OutboundServerClosing OutboundKind = "server-closing"
)

// Outbound is a message sent from the relay to one client. Only the fields
// relevant to Kind are set.
type Outbound struct {
	Kind               OutboundKind
	RoomID             string
	ConnectionID       string
	UserID             string
	SenderConnectionID string
	Sequence           uint64
	Payload            []byte
	Timestamp          int64
	Members            int

	Code    Code
	Message string
	Ref     InboundKind
}

// UpdateEvent is a design update stamped by the relay.
type UpdateEvent struct {
	RoomID             string
	SenderConnectionID string
	Sequence           uint64
	Payload            []byte
	Timestamp          time.Time
}

func (e UpdateEvent) Outbound() Outbound {
	return Outbound{
		Kind:               OutboundDesignUpdate,
		RoomID:             e.RoomID,
		SenderConnectionID: e.SenderConnectionID,
		Sequence:           e.Sequence,
		Payload:            e.Payload,
		Timestamp:          e.Timestamp.UnixMilli(),
	}
}

// ClusterEvent carries a room message between relay nodes.
type ClusterEvent struct {
	NodeID  string
	RoomID  string
	Message Outbound
}

func errorMessage(ref InboundKind, err error) Outbound {
	return Outbound{
		Kind:    OutboundError,
		Code:    CodeOf(err),
		Message: err.Error(),
		Ref:     ref,
	}
}
