package gateway

import (
	"time"

	"soulconnect/domain/event"
)

// envelope is the outbound wire frame. Type discriminates the payload:
// "message", "typing" or "presence".
type envelope struct {
	Type string `json:"type"`

	ID         string `json:"id,omitempty"`
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	Content    string `json:"content,omitempty"`
	Kind       string `json:"kind,omitempty"`

	IdentityID  string `json:"identityId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Typing      bool   `json:"typing,omitempty"`
	Presence    string `json:"presence,omitempty"`

	At time.Time `json:"at,omitzero"`
}

func toEnvelope(e event.DomainEvent) envelope {
	switch evt := e.(type) {
	case event.MessageDelivered:
		return envelope{
			Type:       "message",
			ID:         evt.ID.String(),
			RoomID:     string(evt.Room),
			SenderID:   evt.SenderID,
			SenderName: evt.SenderName,
			Content:    evt.Content,
			Kind:       string(evt.Kind),
			At:         evt.At,
		}
	case event.Typing:
		return envelope{
			Type:        "typing",
			RoomID:      string(evt.Room),
			IdentityID:  evt.IdentityID,
			DisplayName: evt.DisplayName,
			Typing:      evt.Typing,
		}
	case event.PresenceChanged:
		return envelope{
			Type:        "presence",
			RoomID:      string(evt.Room),
			IdentityID:  evt.IdentityID,
			DisplayName: evt.DisplayName,
			Presence:    string(evt.Presence),
			At:          evt.At,
		}
	default:
		return envelope{Type: "unknown", RoomID: string(e.RoomID())}
	}
}
