package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/ppiankov/surveyfill/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Disqualified is the score of an option vetoed by a negative rule.
// Positive weights are strictly positive, so no sum of them can reach it.
const Disqualified = -999

// Score is the transparent scoring breakdown for one option
type Score struct {
	Value   int      `json:"value"`
	Matched []string `json:"matched,omitempty"`
	Vetoed  []string `json:"vetoed,omitempty"`
	Bonus   bool     `json:"bonus,omitempty"`
}

// IsDisqualified reports whether a negative rule vetoed the option
func (s Score) IsDisqualified() bool {
	return s.Value <= Disqualified
}

// Ruleset is a compiled set of keyword rules
type Ruleset struct {
	positive  []string // unique normalized patterns, matcher dictionary order
	weights   []int    // summed weight per positive pattern
	negative  []string
	intensity []string
	bonus     int

	// ahocorasick.Matcher.Match mutates per-call counters
	mu       sync.Mutex
	posMatch *ahocorasick.Matcher
	negMatch *ahocorasick.Matcher
}

// DefaultRules compiles the built-in keyword tables
func DefaultRules() *Ruleset {
	rules, err := FromConfig(model.DefaultKeywords())
	if err != nil {
		panic(fmt.Sprintf("default keyword tables are invalid: %v", err))
	}
	return rules
}

// FromConfig compiles rules from a keyword configuration
func FromConfig(cfg model.KeywordConfig) (*Ruleset, error) {
	return NewRuleset(cfg.Positive, cfg.Negative, cfg.Intensity, cfg.IntensityBonus)
}

// NewRuleset validates and compiles keyword rules.
// Rules sharing a pattern have their weights summed so each rule still applies.
func NewRuleset(positive []model.KeywordRule, negative []string, intensity []string, bonus int) (*Ruleset, error) {
	if bonus < 0 {
		return nil, fmt.Errorf("intensity bonus must not be negative, got %d", bonus)
	}

	r := &Ruleset{bonus: bonus}

	index := make(map[string]int)
	for i, rule := range positive {
		pattern := Normalize(rule.Pattern)
		if pattern == "" {
			return nil, fmt.Errorf("positive rule %d: empty pattern", i)
		}
		if rule.Weight <= 0 {
			return nil, fmt.Errorf("positive rule %q: weight must be > 0, got %d", rule.Pattern, rule.Weight)
		}
		if idx, ok := index[pattern]; ok {
			r.weights[idx] += rule.Weight
			continue
		}
		index[pattern] = len(r.positive)
		r.positive = append(r.positive, pattern)
		r.weights = append(r.weights, rule.Weight)
	}

	var err error
	if r.negative, err = normalizePatterns("negative", negative); err != nil {
		return nil, err
	}
	if r.intensity, err = normalizePatterns("intensity", intensity); err != nil {
		return nil, err
	}

	if len(r.positive) > 0 {
		r.posMatch = ahocorasick.NewStringMatcher(r.positive)
	}
	if len(r.negative) > 0 {
		r.negMatch = ahocorasick.NewStringMatcher(r.negative)
	}

	return r, nil
}

// normalizePatterns normalizes and dedupes a plain pattern list
func normalizePatterns(kind string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for i, p := range patterns {
		norm := Normalize(p)
		if norm == "" {
			return nil, fmt.Errorf("%s rule %d: %w", kind, i, errEmptyPattern)
		}
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out, nil
}

var errEmptyPattern = errors.New("empty pattern")

// Normalize trims surrounding whitespace and lowercases text.
func Normalize(text string) string {
	// Casers are stateful; build one per call
	return cases.Lower(language.Und).String(strings.TrimSpace(text))
}

// Score scores a single option text
func (r *Ruleset) Score(text string) Score {
	norm := Normalize(text)
	if norm == "" {
		return Score{}
	}

	var s Score
	for _, idx := range r.match(r.posMatch, norm) {
		s.Value += r.weights[idx]
		s.Matched = append(s.Matched, r.positive[idx])
	}

	// Negative rules always win over accumulated positive weight
	for _, idx := range r.match(r.negMatch, norm) {
		s.Value = Disqualified
		s.Vetoed = append(s.Vetoed, r.negative[idx])
	}

	if s.Value > 0 && r.hasIntensity(norm) {
		s.Value += r.bonus
		s.Bonus = true
	}

	return s
}

// match returns sorted, unique dictionary indices found in text
func (r *Ruleset) match(m *ahocorasick.Matcher, text string) []int {
	if m == nil {
		return nil
	}

	r.mu.Lock()
	hits := m.Match([]byte(text))
	r.mu.Unlock()

	seen := make(map[int]bool, len(hits))
	unique := hits[:0]
	for _, h := range hits {
		if !seen[h] {
			seen[h] = true
			unique = append(unique, h)
		}
	}
	sort.Ints(unique)
	return unique
}

func (r *Ruleset) hasIntensity(text string) bool {
	for _, marker := range r.intensity {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Patterns returns copies of the normalized positive and negative patterns
func (r *Ruleset) Patterns() (positive []string, negative []string) {
	positive = append(positive, r.positive...)
	negative = append(negative, r.negative...)
	return positive, negative
}
