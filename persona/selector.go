// Package persona selects scripted replies for synthetic identities.
// Response banks are data, not code: they live in an embedded JSON file
// keyed by persona id, so the selection logic never changes when the
// dialogue does.
package persona

import (
	"embed"
	"encoding/json"
	"log/slog"
	"math/rand"

	goahocorasick "github.com/anknown/ahocorasick"

	"soulconnect/contract"
)

//go:embed config/banks.json
var banksFS embed.FS

// Bank holds one persona's reply categories. Any category may be empty;
// selection falls through to the general responses.
type Bank struct {
	Greetings     []string `json:"greetings"`
	Responses     []string `json:"responses"`
	DeepQuestions []string `json:"deepQuestions"`
	Challenges    []string `json:"challenges"`
	Whispers      []string `json:"whispers"`
}

type bankFile struct {
	EmotionalWords []string        `json:"emotionalWords"`
	Fallback       string          `json:"fallback"`
	Personas       map[string]Bank `json:"personas"`
}

// Selector is the bank-backed IResponseSelector. Reply choice within a
// category is uniform over the list; inject a fixed randomness source to
// make tests deterministic.
type Selector struct {
	log      *slog.Logger
	banks    map[string]Bank
	fallback string
	emotions *goahocorasick.Machine
	random   func() float64
}

// NewSelector loads the embedded banks and builds the emotional-keyword
// automaton. random must return values in [0,1); nil defaults to the
// shared math/rand source.
func NewSelector(log *slog.Logger, random func() float64) (*Selector, error) {
	data, err := banksFS.ReadFile("config/banks.json")
	if err != nil {
		return nil, err
	}
	var file bankFile
	if err = json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	matcher, err := buildEmotionMatcher(file.EmotionalWords)
	if err != nil {
		return nil, err
	}
	if random == nil {
		random = rand.Float64
	}
	return &Selector{
		log:      log,
		banks:    file.Personas,
		fallback: file.Fallback,
		emotions: matcher,
		random:   random,
	}, nil
}

// SelectReply picks a category from the message features, then one line
// uniformly within it. Unknown personas get the generic fallback line so
// a misconfigured bank degrades instead of silencing the persona.
func (s *Selector) SelectReply(personaID string, conversation contract.Conversation) (string, error) {
	bank, ok := s.banks[personaID]
	if !ok {
		s.log.Warn("No response bank for persona, using fallback", "persona_id", personaID)
		return s.fallback, nil
	}

	features := s.ExtractFeatures(conversation)
	category, reply := s.route(bank, features)
	s.log.Debug("Selected persona reply",
		"persona_id", personaID, "category", category, "lang", features.Lang)
	return reply, nil
}

func (s *Selector) route(bank Bank, features Features) (string, string) {
	switch {
	case features.Opening && len(bank.Greetings) > 0:
		return "greetings", s.pick(bank.Greetings)
	case features.Question && len(bank.DeepQuestions) > 0:
		return "deepQuestions", s.pick(bank.DeepQuestions)
	case features.Emotional && len(bank.Challenges) > 0:
		return "challenges", s.pick(bank.Challenges)
	case len(bank.Whispers) > 0 && s.random() > 0.7:
		return "whispers", s.pick(bank.Whispers)
	case len(bank.Responses) > 0:
		return "responses", s.pick(bank.Responses)
	default:
		return "fallback", s.fallback
	}
}

func (s *Selector) pick(lines []string) string {
	index := int(s.random() * float64(len(lines)))
	if index >= len(lines) {
		index = len(lines) - 1
	}
	return lines[index]
}
