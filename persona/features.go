package persona

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"

	"soulconnect/contract"
)

const shortMessageRunes = 20

// Features are the message traits the selector routes on.
type Features struct {
	Opening   bool
	Question  bool
	Emotional bool
	Lang      string
}

// ExtractFeatures classifies one inbound message. A message opens the
// conversation when it is the first exchange or short enough to read as
// a greeting. Emotional keywords are matched on a normalized form so
// punctuation and case never hide them.
func (s *Selector) ExtractFeatures(conversation contract.Conversation) Features {
	content := conversation.Content
	info := whatlanggo.Detect(content)

	return Features{
		Opening:   conversation.FirstExchange || len([]rune(content)) < shortMessageRunes,
		Question:  strings.ContainsAny(content, "?？"),
		Emotional: s.containsEmotionalWord(content),
		Lang:      info.Lang.Iso6391(),
	}
}

func (s *Selector) containsEmotionalWord(content string) bool {
	normalized := normalizeRunes([]rune(content))
	if len(normalized) == 0 {
		return false
	}
	return len(s.emotions.MultiPatternSearch(normalized, true)) > 0
}

func buildEmotionMatcher(words []string) (*goahocorasick.Machine, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalizeRunes([]rune(word))
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return machine, nil
}

// normalizeRunes lowercases and strips punctuation and spacing so that
// "I'm SAD." still matches the "sad" pattern.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}
