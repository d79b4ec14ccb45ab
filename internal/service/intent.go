package service

import "github.com/raphaelgruber/ravan/internal/lexicon"

// SessionEndDetector decides whether a chat message closes the session.
type SessionEndDetector interface {
	IsSessionEnding(text string) bool
}

// KeywordDetector matches farewell phrases from a lexicon.
type KeywordDetector struct {
	matchers []func(string) bool
}

// NewKeywordDetector compiles the farewell phrases of lex.
func NewKeywordDetector(lex *lexicon.Lexicon) *KeywordDetector {
	return &KeywordDetector{matchers: lex.FarewellMatchers()}
}

// IsSessionEnding reports whether text contains a farewell phrase.
func (d *KeywordDetector) IsSessionEnding(text string) bool {
	normalized := lexicon.Normalize(text)
	for _, match := range d.matchers {
		if match(normalized) {
			return true
		}
	}
	return false
}
