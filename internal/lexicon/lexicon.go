// Package lexicon holds the word lists used for keyword intent detection
// and the sentiment fallback.
package lexicon

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// Lexicon is a parsed word list file. Entries are normalized on load.
type Lexicon struct {
	Farewells []string `yaml:"farewells"`
	Positive  []string `yaml:"positive"`
	Negative  []string `yaml:"negative"`

	positive map[string]struct{}
	negative map[string]struct{}
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
)

// Default returns the embedded lexicon. It panics if the embedded file is
// malformed, which the package tests guard against.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		lex, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded file: %v", err))
		}
		defaultLex = lex
	})
	return defaultLex
}

// Parse decodes a lexicon YAML document.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	lex.Farewells = normalizeAll(lex.Farewells)
	lex.Positive = normalizeAll(lex.Positive)
	lex.Negative = normalizeAll(lex.Negative)
	lex.positive = toSet(lex.Positive)
	lex.negative = toSet(lex.Negative)
	return &lex, nil
}

var persianReplacer = strings.NewReplacer(
	"ي", "ی",
	"ك", "ک",
	"\u200c", " ",
)

// Normalize lowercases s, unifies Arabic and Persian letter variants and
// turns zero-width non-joiners into spaces.
func Normalize(s string) string {
	return strings.ToLower(persianReplacer.Replace(s))
}

// Tokenize splits s into maximal runs of letters and digits after normalization.
func Tokenize(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Sentiment scores text as (positive-negative)/words, clamped to [-1,1].
// Text without words scores 0.
func (l *Lexicon) Sentiment(text string) float64 {
	words := Tokenize(text)
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		if _, ok := l.positive[w]; ok {
			pos++
		}
		if _, ok := l.negative[w]; ok {
			neg++
		}
	}
	score := float64(pos-neg) / float64(len(words))
	return max(-1, min(1, score))
}

// FarewellMatchers compiles the farewell list into matchers: ASCII phrases
// need word boundaries, anything else matches as a substring.
func (l *Lexicon) FarewellMatchers() []func(normalized string) bool {
	matchers := make([]func(string) bool, 0, len(l.Farewells))
	for _, phrase := range l.Farewells {
		if isASCII(phrase) {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
			matchers = append(matchers, re.MatchString)
			continue
		}
		p := phrase
		matchers = append(matchers, func(s string) bool { return strings.Contains(s, p) })
	}
	return matchers
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(Normalize(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
