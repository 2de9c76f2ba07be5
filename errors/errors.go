package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrEmptyContent        = fmt.Errorf("message content is empty")
	ErrNotAMember          = fmt.Errorf("identity is not a participant of the room")
	ErrDuplicateConnection = fmt.Errorf("connection id already registered")
	ErrConnectionClosed    = fmt.Errorf("connection closed")
	ErrNotFound            = fmt.Errorf("record not found")
	ErrTooFewParticipants  = fmt.Errorf("a group room needs at least three participants")

	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrStorage = fmt.Errorf("storage failure")
)
