package domain

import "github.com/cockroachdb/errors"

// Code is the stable identifier of an error as seen by clients.
type Code string

const (
	CodeAuthFailed   Code = "AuthFailed"
	CodeNotInRoom    Code = "NotInRoom"
	CodeBadRequest   Code = "BadRequest"
	CodeInvalidState Code = "InvalidState"
	CodeInternal     Code = "Internal"
)

var (
	ErrAuthFailed          = errors.New("authentication failed")
	ErrDuplicateConnection = errors.New("transport already has an active connection")
	ErrNotInRoom           = errors.New("connection is not a member of the room")
	ErrStaleMember         = errors.New("member transport is stale")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrInvalidTransition   = errors.New("invalid connection state transition")
	ErrBadRequest          = errors.New("bad request")
)

// CodeOf maps err to the code reported to the client.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthFailed):
		return CodeAuthFailed
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidState
	default:
		return CodeInternal
	}
}
