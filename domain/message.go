// Package domain contains core concepts of the matching and chat system.
// This file defines Message entities and related rules.
// Messages are immutable and append-only per room.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
)

// Message represents an immutable chat event. Ordering within a room is
// by SentAt ascending, ties broken by insertion order.
type Message struct {
	ID         uuid.UUID
	Room       RoomID
	SenderID   string
	SenderName string
	Content    string
	Kind       MessageKind
	SentAt     time.Time
	Read       bool
}
