// Package domain contains core concepts of the matching and chat system.
// This file defines Identity entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"
)

// Identity represents a registered user or a synthetic persona.
// An identity is never deleted during a session, only marked offline.
type Identity struct {
	ID           string
	DisplayName  string
	Email        string
	Traits       []string
	Bio          string
	Avatar       string
	Synthetic    bool
	Online       bool
	LastActiveAt time.Time
	CreatedAt    time.Time

	VillainScore int
	VillainLevel string
}

func (i Identity) HasTrait(tag string) bool {
	return lo.Contains(i.Traits, tag)
}

// SharedTraits returns the traits present on both identities,
// in the order they appear on the receiver.
func (i Identity) SharedTraits(other Identity) []string {
	return lo.Filter(i.Traits, func(t string, _ int) bool {
		return other.HasTrait(t)
	})
}
