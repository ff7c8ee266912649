// Package guard decides whether a message belongs to the supported CBT topic
// domain. A message is on-topic when any vocabulary keyword appears in it
// verbatim or scores above the policy threshold under a fuzzy Scorer.
package guard

import "strings"

// RedirectMessage is returned to the user instead of a generated reply when a
// message is off-topic.
const RedirectMessage = "I'm here to assist with CBT-related topics. Please ask about mental well-being, emotions, or cognitive behavioral therapy techniques."

// DefaultThreshold is the fuzzy score a keyword must exceed to count as a match.
const DefaultThreshold = 85

// Policy defines the vocabulary and tolerance of the topic gate.
type Policy struct {
	Keywords  []string `json:"keywords" yaml:"keywords"`
	Threshold int      `json:"threshold" yaml:"threshold"`
}

// DefaultPolicy gates on the built-in CBT vocabulary.
var DefaultPolicy = Policy{
	Keywords:  DefaultKeywords(),
	Threshold: DefaultThreshold,
}

// Violation represents a message that fell outside the topic policy.
type Violation struct {
	Rule    string
	Message string
	Fatal   bool
}

// Guard enforces the topic policy. It is immutable after New and safe for
// concurrent use as long as its Scorer is.
type Guard struct {
	keywords  []string
	threshold int
	scorer    Scorer
}

// New builds a Guard. Keywords are lower-cased and deduplicated; a nil scorer
// falls back to PartialRatio and a non-positive threshold to DefaultThreshold.
func New(p Policy, s Scorer) *Guard {
	if s == nil {
		s = PartialRatio{}
	}
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	return &Guard{
		keywords:  normalizeKeywords(p.Keywords),
		threshold: p.Threshold,
		scorer:    s,
	}
}

// Policy returns the effective policy after normalization.
func (g *Guard) Policy() Policy {
	kw := make([]string, len(g.keywords))
	copy(kw, g.keywords)
	return Policy{Keywords: kw, Threshold: g.threshold}
}

// IsOnTopic reports whether text matches any keyword, exactly or fuzzily.
func (g *Guard) IsOnTopic(text string) bool {
	_, ok := g.Match(text)
	return ok
}

// Match returns the first keyword that accepted text.
func (g *Guard) Match(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, kw := range g.keywords {
		if strings.Contains(lowered, kw) {
			return kw, true
		}
		if g.scorer.Score(kw, lowered) > g.threshold {
			return kw, true
		}
	}
	return "", false
}

// Check returns a non-fatal violation carrying the redirect message when text
// is off-topic, and nil otherwise.
func (g *Guard) Check(text string) *Violation {
	if g.IsOnTopic(text) {
		return nil
	}
	return &Violation{Rule: "off_topic", Message: RedirectMessage, Fatal: false}
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
