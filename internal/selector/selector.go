// Package selector picks one answer per survey question by keyword scoring.
//
// The selector is a pure function of its inputs: it reads option texts and
// selection flags, and returns decisions. Applying a decision (checking the
// input, firing events, showing a banner) belongs to the host adapter.
package selector

import (
	"github.com/ppiankov/surveyfill/internal/model"
	"go.uber.org/zap"
)

// Option is one selectable choice as seen by the selector
type Option interface {
	// Text returns the display text associated with the option (may be empty)
	Text() string

	// Selected reports whether the host currently has the option selected
	Selected() bool
}

// Question is a group of mutually exclusive options in document order
type Question struct {
	ID      string
	Options []Option
}

// Decision is the outcome of selecting within one question
type Decision struct {
	QuestionID string
	Winner     int    // Index into the question's options, -1 when skipped
	Option     Option // Winning option, nil when skipped
	Score      Score  // Winning score
	Scores     []Score
	Fallback   bool // No option survived the negative rules; first option chosen
	Changed    bool // Winner was not selected before this decision
	Skipped    bool // Question had no options
}

// Selector applies a ruleset to questions
type Selector struct {
	rules  *Ruleset
	logger *zap.Logger
}

// New creates a selector. A nil logger disables logging.
func New(rules *Ruleset, logger *zap.Logger) *Selector {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{rules: rules, logger: logger}
}

// Rules returns the compiled ruleset
func (s *Selector) Rules() *Ruleset {
	return s.rules
}

// Decide picks the winning option of a question.
func (s *Selector) Decide(q Question) Decision {
	if len(q.Options) == 0 {
		s.logger.Debug("question has no options", zap.String("question", q.ID))
		return Decision{QuestionID: q.ID, Winner: -1, Skipped: true}
	}

	scores := make([]Score, len(q.Options))
	winner := 0
	for i, opt := range q.Options {
		scores[i] = s.rules.Score(opt.Text())
		s.logger.Debug("option scored",
			zap.String("question", q.ID),
			zap.String("text", opt.Text()),
			zap.Int("score", scores[i].Value),
			zap.Strings("matched", scores[i].Matched),
			zap.Strings("vetoed", scores[i].Vetoed))

		// Strictly greater: the first option reaching a maximum keeps it
		if scores[i].Value > scores[winner].Value {
			winner = i
		}
	}

	d := Decision{
		QuestionID: q.ID,
		Scores:     scores,
	}
	if scores[winner].IsDisqualified() {
		winner = 0
		d.Fallback = true
	}
	d.Winner = winner
	d.Option = q.Options[winner]
	d.Score = scores[winner]
	d.Changed = !d.Option.Selected()

	s.logger.Debug("question decided",
		zap.String("question", q.ID),
		zap.Int("winner", winner),
		zap.Int("score", d.Score.Value),
		zap.Bool("fallback", d.Fallback),
		zap.Bool("changed", d.Changed))

	return d
}

// DecideAll decides every question independently and aggregates the counts
func (s *Selector) DecideAll(questions []Question) ([]Decision, model.Summary) {
	decisions := make([]Decision, 0, len(questions))
	var summary model.Summary

	for _, q := range questions {
		d := s.Decide(q)
		decisions = append(decisions, d)

		if d.Skipped {
			summary.Skipped++
			continue
		}
		summary.Total++
		if d.Changed {
			summary.Changed++
		}
		if d.Fallback {
			summary.Fallbacks++
		}
	}

	return decisions, summary
}
