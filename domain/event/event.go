package event

import (
	"time"

	"github.com/google/uuid"

	"soulconnect/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageDelivered carries a persisted message out to room members.
// The id and timestamp are the ones assigned by the store.
type MessageDelivered struct {
	ID         uuid.UUID
	Room       domain.RoomID
	SenderID   string
	SenderName string
	Content    string
	Kind       domain.MessageKind
	At         time.Time
}

func (e MessageDelivered) RoomID() domain.RoomID { return e.Room }

// Typing is an ephemeral indicator, excluded from the typist's own
// connection and never persisted.
type Typing struct {
	Room        domain.RoomID
	IdentityID  string
	DisplayName string
	Typing      bool
}

func (e Typing) RoomID() domain.RoomID { return e.Room }

// PresenceChanged notifies one room that a participant's derived presence
// moved between online, away, and offline.
type PresenceChanged struct {
	Room        domain.RoomID
	IdentityID  string
	DisplayName string
	Presence    domain.Presence
	At          time.Time
}

func (e PresenceChanged) RoomID() domain.RoomID { return e.Room }
