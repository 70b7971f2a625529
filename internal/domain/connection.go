package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateJoined:
		return "JOINED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var transitions = map[State][]State{
	StateConnecting:    {StateAuthenticated, StateClosed},
	StateAuthenticated: {StateJoined, StateClosed},
	StateJoined:        {StateJoined, StateAuthenticated, StateClosed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Credentials are the handshake data handed to the Authenticator.
type Credentials struct {
	Token      string
	RemoteAddr string
}

// Connection is one live client session. CurrentRoom is written only by the
// RoomManager.
type Connection struct {
	ID          string
	UserID      string
	Messenger   Messenger
	ConnectedAt time.Time

	state       atomic.Int32
	currentRoom atomic.String
}

func NewConnection(id string, messenger Messenger) *Connection {
	return &Connection{
		ID:          id,
		Messenger:   messenger,
		ConnectedAt: time.Now(),
	}
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) CurrentRoom() string {
	return c.currentRoom.Load()
}

func (c *Connection) transition(to State) error {
	for {
		from := c.State()
		if !canTransition(from, to) {
			return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			return nil
		}
	}
}
