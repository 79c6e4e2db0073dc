// Package classifier tags assistant replies with lightweight keyword heuristics.
//
// Classification is pure: the same text always yields the same tags, and no
// conversation state is read or written. Matching is case and accent
// insensitive, so "Ubicación" and "ubicacion" are the same term.
package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind is the display category of a tag.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindNeutral Kind = "neutral"
	KindDanger  Kind = "danger"
)

// Tag is one qualitative annotation.
type Tag struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label"`
}

// Matcher decides whether a folded reply satisfies a rule.
type Matcher func(folded string) bool

// Rule maps a matcher to the tag it produces.
type Rule struct {
	Tag   Tag
	Match Matcher
}

// Any matches when at least one term occurs.
func Any(terms ...string) Matcher {
	folded := make([]string, len(terms))
	for i, t := range terms {
		folded[i] = Fold(t)
	}
	return func(s string) bool {
		for _, t := range folded {
			if strings.Contains(s, t) {
				return true
			}
		}
		return false
	}
}

// All matches when every matcher matches.
func All(ms ...Matcher) Matcher {
	return func(s string) bool {
		for _, m := range ms {
			if !m(s) {
				return false
			}
		}
		return true
	}
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return func(s string) bool { return !m(s) }
}

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Classifier evaluates a rule table in order.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules. Rules are independent: each one that
// matches contributes its tag, in table order.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Default returns the classifier with the built-in rule table.
func Default() *Classifier {
	return New(DefaultRules())
}

// Classify returns the tags for text. Empty text yields no tags.
func (c *Classifier) Classify(text string) []Tag {
	folded := Fold(text)
	tags := []Tag{}
	if strings.TrimSpace(folded) == "" {
		return tags
	}
	for _, r := range c.rules {
		if r.Match(folded) {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}

// Classify runs the default rule table.
func Classify(text string) []Tag {
	return defaultClassifier.Classify(text)
}

var defaultClassifier = Default()
