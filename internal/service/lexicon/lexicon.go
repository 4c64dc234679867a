// Package lexicon provides case-insensitive keyword sets matched on word
// boundaries. Multi-word entries match as phrases.
package lexicon

import (
	"regexp"
	"strings"
)

// Set is an immutable, ordered collection of keywords.
type Set struct {
	words    []string
	patterns []*regexp.Regexp
}

// NewSet compiles the given keywords. Order is preserved for First.
func NewSet(words ...string) *Set {
	s := &Set{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		s.words = append(s.words, w)
		s.patterns = append(s.patterns, regexp.MustCompile(`(?i)(^|\W)`+regexp.QuoteMeta(w)+`($|\W)`))
	}
	return s
}

// Count returns how many distinct keywords occur in text.
func (s *Set) Count(text string) int {
	n := 0
	for _, p := range s.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// Any reports whether at least one keyword occurs in text.
func (s *Set) Any(text string) bool {
	for _, p := range s.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// First returns the first keyword, in declaration order, that occurs in text.
func (s *Set) First(text string) (string, bool) {
	for i, p := range s.patterns {
		if p.MatchString(text) {
			return s.words[i], true
		}
	}
	return "", false
}

// Words returns a copy of the keywords.
func (s *Set) Words() []string {
	return append([]string(nil), s.words...)
}
