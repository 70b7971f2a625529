package protocol

import (
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the JSON frame exchanged with clients on every transport.
type Envelope struct {
	Type               string              `json:"type"`
	RoomID             string              `json:"roomId,omitempty"`
	ConnectionID       string              `json:"connectionId,omitempty"`
	UserID             string              `json:"userId,omitempty"`
	SenderConnectionID string              `json:"senderConnectionId,omitempty"`
	Sequence           uint64              `json:"sequence,omitempty"`
	Payload            jsoniter.RawMessage `json:"payload,omitempty"`
	Timestamp          int64               `json:"timestamp,omitempty"`
	Members            int                 `json:"members,omitempty"`
	Code               string              `json:"code,omitempty"`
	Message            string              `json:"message,omitempty"`
	Ref                string              `json:"ref,omitempty"`
}

// Decode parses a client frame. Malformed frames and design updates
// without a payload match domain.ErrBadRequest.
func Decode(data []byte) (domain.Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Inbound{}, errors.Mark(errors.Wrap(err, "json.Unmarshal"), domain.ErrBadRequest)
	}

	if env.Type == "" {
		return domain.Inbound{}, errors.Wrap(domain.ErrBadRequest, "missing message type")
	}

	in := domain.Inbound{
		Kind:      domain.InboundKind(env.Type),
		RoomID:    env.RoomID,
		Timestamp: env.Timestamp,
	}

	if in.Kind == domain.InboundDesignUpdate {
		if len(env.Payload) == 0 || string(env.Payload) == "null" {
			return domain.Inbound{}, errors.Wrap(domain.ErrBadRequest, "design update requires a payload")
		}
		in.Payload = []byte(env.Payload)
	}

	return in, nil
}

func Encode(msg domain.Outbound) ([]byte, error) {
	env := Envelope{
		Type:               string(msg.Kind),
		RoomID:             msg.RoomID,
		ConnectionID:       msg.ConnectionID,
		UserID:             msg.UserID,
		SenderConnectionID: msg.SenderConnectionID,
		Sequence:           msg.Sequence,
		Payload:            msg.Payload,
		Timestamp:          msg.Timestamp,
		Members:            msg.Members,
		Code:               string(msg.Code),
		Message:            msg.Message,
		Ref:                string(msg.Ref),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	return data, nil
}

// EncodeClusterEvent wraps a room message for the inter-node bus.
func EncodeClusterEvent(event domain.ClusterEvent) ([]byte, error) {
	msg, err := Encode(event.Message)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(clusterFrame{NodeID: event.NodeID, RoomID: event.RoomID, Message: msg})
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	return data, nil
}

func DecodeClusterEvent(data []byte) (domain.ClusterEvent, error) {
	var frame clusterFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return domain.ClusterEvent{}, errors.Wrap(err, "json.Unmarshal")
	}

	msg, err := DecodeOutbound(frame.Message)
	if err != nil {
		return domain.ClusterEvent{}, err
	}

	return domain.ClusterEvent{NodeID: frame.NodeID, RoomID: frame.RoomID, Message: msg}, nil
}

// DecodeOutbound parses a server frame, as read by clients.
func DecodeOutbound(data []byte) (domain.Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Outbound{}, errors.Wrap(err, "json.Unmarshal")
	}

	msg := domain.Outbound{
		Kind:               domain.OutboundKind(env.Type),
		RoomID:             env.RoomID,
		ConnectionID:       env.ConnectionID,
		UserID:             env.UserID,
		SenderConnectionID: env.SenderConnectionID,
		Sequence:           env.Sequence,
		Timestamp:          env.Timestamp,
		Members:            env.Members,
		Code:               domain.Code(env.Code),
		Message:            env.Message,
		Ref:                domain.InboundKind(env.Ref),
	}
	if len(env.Payload) > 0 {
		msg.Payload = []byte(env.Payload)
	}

	return msg, nil
}

// EncodeInbound builds a client frame.
func EncodeInbound(in domain.Inbound) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		Type:      string(in.Kind),
		RoomID:    in.RoomID,
		Payload:   in.Payload,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	return data, nil
}

type clusterFrame struct {
	NodeID  string              `json:"nodeId"`
	RoomID  string              `json:"roomId"`
	Message jsoniter.RawMessage `json:"message"`
}
