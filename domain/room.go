package domain

import (
	"time"

	"github.com/samber/lo"
)

type RoomID string

type RoomKind string

const (
	RoomPrivate RoomKind = "private"
	RoomGroup   RoomKind = "group"
)

// Room is a set of participants sharing a message thread.
// A private room between two identities is unique: lookup-or-create
// must never produce a second room for the same unordered pair.
type Room struct {
	ID             RoomID
	Participants   []string
	Kind           RoomKind
	CreatedAt      time.Time
	LastActivityAt time.Time
	Active         bool
}

func (r Room) HasParticipant(identityID string) bool {
	return lo.Contains(r.Participants, identityID)
}

// CanonicalPair orders an unordered identity pair deterministically so
// that (A,B) and (B,A) resolve to the same room lookup key.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
