package domain

import "time"

// MatchResult is the outcome of scoring one candidate against a subject.
// It is ephemeral: recomputed per request and never persisted.
type MatchResult struct {
	CounterpartID   string
	DisplayName     string
	Avatar          string
	Bio             string
	Traits          []string
	Synthetic       bool
	Score           int
	Factors         []string
	LastActiveAt    time.Time
	Status          Presence
	PersonalityType string
	Interests       []string
}
