package domain

import "time"

// Presence is the derived online/away/offline classification of an identity.
// It is always computed from the last activity timestamp at query time,
// never stored as a flag that could silently go stale.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

const (
	// OnlineWindow is the maximum inactivity before an identity is
	// demoted from online to away.
	OnlineWindow = 5 * time.Minute
	// AwayWindow is the maximum inactivity before an identity is
	// considered offline.
	AwayWindow = 30 * time.Minute
)

// Presence classifies the identity at the given instant. Synthetic
// personas are always online; they reply whenever someone writes.
func (i Identity) Presence(now time.Time) Presence {
	if i.Synthetic {
		return PresenceOnline
	}
	return PresenceAt(i.LastActiveAt, now)
}

// PresenceAt classifies an identity from its last activity timestamp.
// An identity that was never active is offline.
func PresenceAt(lastActiveAt, now time.Time) Presence {
	if lastActiveAt.IsZero() {
		return PresenceOffline
	}
	elapsed := now.Sub(lastActiveAt)
	switch {
	case elapsed < OnlineWindow:
		return PresenceOnline
	case elapsed < AwayWindow:
		return PresenceAway
	default:
		return PresenceOffline
	}
}
